//go:build wasip1

package guest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type dnsConfig struct {
	Hostname   string `validate:"required"`
	RecordType string `validate:"oneof=A AAAA CNAME MX TXT NS"`
}

func TestValidateConfigRejectsMissingRequiredField(t *testing.T) {
	err := ValidateConfig(dnsConfig{RecordType: "A"})
	assert.Error(t, err)
}

func TestValidateConfigAcceptsWellFormedValue(t *testing.T) {
	err := ValidateConfig(dnsConfig{Hostname: "example.com", RecordType: "A"})
	assert.NoError(t, err)
}

func TestValidateConfigRejectsOutOfEnumValue(t *testing.T) {
	err := ValidateConfig(dnsConfig{Hostname: "example.com", RecordType: "ZZZ"})
	assert.Error(t, err)
}
