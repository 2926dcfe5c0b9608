package flow

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// requestSchema is the JSON schema every raw graph request must satisfy
// before the loader attempts structural validation. It rejects shape
// errors (missing ids, non-array nodes, wrong value types) early with
// field-level messages.
const requestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "data": {
            "type": "object",
            "properties": {
              "input_values": {"type": "object"},
              "parameters": {"type": "object"},
              "label": {"type": "string"}
            }
          }
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "source", "target", "source_handle", "target_handle"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "source": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1},
          "source_handle": {"type": "string", "minLength": 1},
          "target_handle": {"type": "string", "minLength": 1},
          "condition": {"type": "string"}
        }
      }
    },
    "chat_input_override": {"type": "string"}
  }
}`

var compiledRequestSchema = gojsonschema.NewStringLoader(requestSchema)

// ErrInvalidRequest covers malformed request documents: invalid JSON or
// schema violations.
var ErrInvalidRequest = fmt.Errorf("invalid graph request")

// ValidateRequestJSON checks a raw request document against the request
// schema. Returns a single error aggregating every schema violation.
func ValidateRequestJSON(raw []byte) error {
	result, err := gojsonschema.Validate(compiledRequestSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: not valid JSON: %w", ErrInvalidRequest, err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		violations = append(violations, violation.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(violations, "; "))
}
