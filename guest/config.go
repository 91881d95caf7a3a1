//go:build wasip1

package guest

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateConfig runs struct tag validation over an already-decoded
// configuration value, the guest-side counterpart of a plugin's
// "describe my config, then validate what I'm handed" contract. Callers
// typically obtain cfg as the record-like argument of an Export1-wrapped
// entry point; ValidateConfig does no decoding itself and only checks
// the `validate:"..."` tags the way the plugin author declared them.
func ValidateConfig[T any](cfg T) error {
	if err := configValidator.Struct(cfg); err != nil {
		return fmt.Errorf("guest: config validation: %w", err)
	}
	return nil
}
