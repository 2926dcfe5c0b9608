package node

import (
	"fmt"
	"sort"
)

// ErrUnknownNodeType is returned by Registry.New when no factory is
// registered for the requested type name. It is fatal to the run that
// referenced the type.
var ErrUnknownNodeType = fmt.Errorf("unknown node type")

// Factory constructs a fresh node instance. Each graph gets its own
// instances so that per-run Data never leaks between runs.
type Factory func() Node

// Registry maps node type names to factories. It is an explicit value
// constructed at process start and passed to the graph loader by reference;
// the engine performs no hidden global registry reads.
//
// Registration happens during start-up only, so the registry needs no
// locking for the read-heavy loading path.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty node registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given type name. Registering a name
// twice is a programming error and returns an error rather than silently
// replacing the earlier factory.
func (registry *Registry) Register(typeName string, factory Factory) error {
	if typeName == "" {
		return fmt.Errorf("node type name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory for node type %q must not be nil", typeName)
	}
	if _, exists := registry.factories[typeName]; exists {
		return fmt.Errorf("node type %q is already registered", typeName)
	}
	registry.factories[typeName] = factory
	return nil
}

// MustRegister is Register that panics on error, for use in package-level
// library construction where a failure is a programming bug.
func (registry *Registry) MustRegister(typeName string, factory Factory) {
	if err := registry.Register(typeName, factory); err != nil {
		panic(err)
	}
}

// New instantiates a node of the given type. Returns ErrUnknownNodeType
// (wrapped with the offending name) when the type is not registered.
func (registry *Registry) New(typeName string) (Node, error) {
	factory, exists := registry.factories[typeName]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, typeName)
	}

	instance := factory()
	if instance == nil {
		return nil, fmt.Errorf("factory for node type %q returned nil", typeName)
	}
	if err := instance.Spec().Validate(); err != nil {
		return nil, fmt.Errorf("node type %q has an invalid spec: %w", typeName, err)
	}
	return instance, nil
}

// Types returns all registered type names in sorted order.
func (registry *Registry) Types() []string {
	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
