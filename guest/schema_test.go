//go:build wasip1

package guest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type httpConfig struct {
	URL     string `json:"url" validate:"required,url"`
	Timeout int    `json:"timeout_ms"`
}

func TestGenerateSchemaProducesValidJSON(t *testing.T) {
	out, err := GenerateSchema[httpConfig]()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	properties, ok := decoded["properties"].(map[string]any)
	require.True(t, ok)
	_, hasURL := properties["url"]
	require.True(t, hasURL)
}
