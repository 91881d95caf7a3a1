//go:build wasip1

package guest

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects a configuration struct's JSON Schema, for
// plugins that expose a `schema` wasmexport returning it as a Record
// the host can surface to an operator. T is never constructed; only its
// type is reflected.
func GenerateSchema[T any]() ([]byte, error) {
	var zero T
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(zero)
	out, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("guest: generate schema: %w", err)
	}
	return out, nil
}
