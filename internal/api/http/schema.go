package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// mutationSchema rejects malformed mutation bodies at the transport edge so
// the engine only ever sees structurally sound requests.
const mutationSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["ops"],
  "additionalProperties": false,
  "properties": {
    "source": {"type": "string", "maxLength": 128},
    "acknowledge_warnings": {"type": "boolean"},
    "ops": {
      "type": "array",
      "minItems": 1,
      "maxItems": 64,
      "items": {
        "type": "object",
        "required": ["kind"],
        "additionalProperties": false,
        "properties": {
          "kind": {"type": "string", "minLength": 1},
          "path": {"type": "string"},
          "value": {},
          "item_id": {"type": "string"},
          "provenance": {"enum": ["chosen", "granted", "inherited"]},
          "component_id": {"type": "string"}
        }
      }
    }
  }
}`

var compiledMutationSchema = jsonschema.MustCompileString("mutation.schema.json", mutationSchema)

// validateMutationBody checks the raw body against the mutation schema.
func validateMutationBody(body []byte) error {
	var value any
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&value); err != nil {
		return fmt.Errorf("body is not valid JSON: %w", err)
	}
	if err := compiledMutationSchema.Validate(value); err != nil {
		return fmt.Errorf("body does not match mutation schema: %w", err)
	}
	return nil
}
