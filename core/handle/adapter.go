package handle

import (
	"fmt"
	"strconv"

	"github.com/flowgrid/flowgrid/core/parse"
)

// AdapterFunc converts a value produced under the source kind into a value
// acceptable to the target kind. Adapters must be pure functions of the value.
type AdapterFunc func(value any) (any, error)

// adapterKey identifies one cell of the adapter matrix.
type adapterKey struct {
	source Kind
	target Kind
}

// AdapterRegistry answers connection-compatibility questions and performs
// value coercion along edges. Two handles are compatible when their kinds are
// equal, when either side is KindDynamic, or when an adapter is registered
// for the (source, target) pair.
//
// The registry is populated once during process start-up and is read-only
// afterwards, so it is safe for concurrent use by parallel node tasks.
type AdapterRegistry struct {
	adapters map[adapterKey]AdapterFunc
}

// NewAdapterRegistry creates a registry pre-populated with the default
// coercions:
//
//	number  -> text   stringification
//	boolean -> text   "true" / "false"
//	number  -> json   pass-through (numbers are valid JSON values)
//	text    -> json   tolerant JSON parsing (repairs malformed JSON)
//	json    -> text   compact JSON encoding
func NewAdapterRegistry() *AdapterRegistry {
	registry := &AdapterRegistry{adapters: make(map[adapterKey]AdapterFunc)}

	registry.Register(KindNumber, KindText, numberToText)
	registry.Register(KindBoolean, KindText, booleanToText)
	registry.Register(KindNumber, KindJSON, passthrough)
	registry.Register(KindText, KindJSON, textToJSON)
	registry.Register(KindJSON, KindText, jsonToText)

	return registry
}

// Register declares that values of the source kind may be connected to
// handles of the target kind, converted through the given adapter.
// Registering the same pair twice replaces the previous adapter.
func (registry *AdapterRegistry) Register(source, target Kind, adapter AdapterFunc) {
	registry.adapters[adapterKey{source: source, target: target}] = adapter
}

// Compatible reports whether a source handle of kind source may be connected
// to a target handle of kind target.
func (registry *AdapterRegistry) Compatible(source, target Kind) bool {
	if source == target || source == KindDynamic || target == KindDynamic {
		return true
	}
	_, exists := registry.adapters[adapterKey{source: source, target: target}]
	return exists
}

// Adapt converts a value crossing an edge from a source-kind handle to a
// target-kind handle. When no adapter is registered for the pair, the value
// passes through unchanged; the loader guarantees such connections were only
// accepted because the kinds already match (or one side is dynamic).
func (registry *AdapterRegistry) Adapt(source, target Kind, value any) (any, error) {
	adapter, exists := registry.adapters[adapterKey{source: source, target: target}]
	if !exists {
		return value, nil
	}

	adapted, err := adapter(value)
	if err != nil {
		return nil, fmt.Errorf("adapting %s -> %s: %w", source, target, err)
	}
	return adapted, nil
}

func passthrough(value any) (any, error) {
	return value, nil
}

// numberToText stringifies any numeric value. Non-numeric inputs are an
// error: the upstream node violated its declared output kind.
func numberToText(value any) (any, error) {
	switch typed := value.(type) {
	case int:
		return strconv.Itoa(typed), nil
	case int32:
		return strconv.FormatInt(int64(typed), 10), nil
	case int64:
		return strconv.FormatInt(typed, 10), nil
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), nil
	default:
		return nil, fmt.Errorf("expected numeric value, got %T", value)
	}
}

func booleanToText(value any) (any, error) {
	typed, isBool := value.(bool)
	if !isBool {
		return nil, fmt.Errorf("expected boolean value, got %T", value)
	}
	return strconv.FormatBool(typed), nil
}

// textToJSON parses a string into a structured JSON value, repairing
// malformed input (single quotes, unquoted keys, trailing commas) on the way.
func textToJSON(value any) (any, error) {
	typed, isString := value.(string)
	if !isString {
		return nil, fmt.Errorf("expected string value, got %T", value)
	}
	return parse.TolerantJSON(typed)
}

func jsonToText(value any) (any, error) {
	return parse.CompactJSON(value)
}
