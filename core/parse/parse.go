package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// TolerantJSON parses content into a structured value (map, slice, or
// primitive). If the content is not valid JSON it is repaired first, which
// handles the malformed output commonly produced by LLM nodes: single
// quotes, unquoted keys, trailing commas, and surrounding prose fences.
func TolerantJSON(content string) (any, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, fmt.Errorf("cannot parse empty content as JSON")
	}

	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err == nil {
		return value, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(trimmed)
	if repairErr != nil {
		return nil, fmt.Errorf("content is not JSON and could not be repaired: %w", repairErr)
	}

	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		return nil, fmt.Errorf("repaired JSON still failed to parse: %w", err)
	}
	return value, nil
}

// TolerantJSONAs parses content into the concrete type T, repairing
// malformed JSON the same way TolerantJSON does. Used by nodes that request
// structured output from an LLM.
func TolerantJSONAs[T any](content string) (T, error) {
	var result T

	trimmed := strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(trimmed), &result); err == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(trimmed)
	if repairErr != nil {
		return result, fmt.Errorf("content is not JSON and could not be repaired: %w", repairErr)
	}

	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return result, fmt.Errorf("failed to parse repaired JSON as %T: %w", result, err)
	}
	return result, nil
}

// CompactJSON encodes a value as a single-line JSON string. Strings are
// returned as-is so that text flowing through a json-kind handle does not
// pick up surrounding quotes.
func CompactJSON(value any) (string, error) {
	if text, isString := value.(string); isString {
		return text, nil
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("value is not JSON-serializable: %w", err)
	}
	return string(encoded), nil
}
