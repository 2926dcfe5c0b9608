package node

import (
	"fmt"

	"github.com/flowgrid/flowgrid/core/handle"
)

// InputSpec declares a named input port on a node.
type InputSpec struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Handle      handle.Handle `json:"handle"`

	// Required marks the input as mandatory: execution fails with a
	// missing-required-input error when neither a value nor a default is
	// available.
	Required bool `json:"required,omitempty"`

	// Default is used when no value was assigned or propagated.
	Default any `json:"default,omitempty"`
}

// OutputSpec declares a named output port on a node.
type OutputSpec struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Handle      handle.Handle `json:"handle"`
}

// ParamSpec declares a configuration parameter on a node. Parameters are
// set in the UI and never fed by edges.
type ParamSpec struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Handle      handle.Handle `json:"handle"`
	Default     any           `json:"default,omitempty"`
}

// Spec is a node type's immutable declaration: its identity, ports,
// parameters, and library metadata. A Spec must not be mutated after the
// node is constructed; the loader and executor share it freely across
// goroutines on that basis.
type Spec struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Inputs      []InputSpec  `json:"inputs,omitempty"`
	Outputs     []OutputSpec `json:"outputs,omitempty"`
	Params      []ParamSpec  `json:"params,omitempty"`

	// CanBeTool marks the node as exposable to agent nodes as a tool. The
	// implementation must also satisfy ToolNode.
	CanBeTool bool `json:"can_be_tool,omitempty"`

	// Group and Tags organize the node library in the UI.
	Group string   `json:"group,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Validate checks the structural invariants of the spec: a non-empty name
// and unique input, output, and parameter names within their lists.
func (spec *Spec) Validate() error {
	if spec.Name == "" {
		return fmt.Errorf("node spec must have a name")
	}

	seenInputs := make(map[string]bool, len(spec.Inputs))
	for _, input := range spec.Inputs {
		if input.Name == "" {
			return fmt.Errorf("node %q declares an unnamed input", spec.Name)
		}
		if seenInputs[input.Name] {
			return fmt.Errorf("node %q declares duplicate input %q", spec.Name, input.Name)
		}
		seenInputs[input.Name] = true
	}

	seenOutputs := make(map[string]bool, len(spec.Outputs))
	for _, output := range spec.Outputs {
		if output.Name == "" {
			return fmt.Errorf("node %q declares an unnamed output", spec.Name)
		}
		if seenOutputs[output.Name] {
			return fmt.Errorf("node %q declares duplicate output %q", spec.Name, output.Name)
		}
		seenOutputs[output.Name] = true
	}

	seenParams := make(map[string]bool, len(spec.Params))
	for _, param := range spec.Params {
		if param.Name == "" {
			return fmt.Errorf("node %q declares an unnamed parameter", spec.Name)
		}
		if seenParams[param.Name] {
			return fmt.Errorf("node %q declares duplicate parameter %q", spec.Name, param.Name)
		}
		seenParams[param.Name] = true
	}

	return nil
}

// Input returns the input spec with the given name.
func (spec *Spec) Input(name string) (*InputSpec, bool) {
	for index := range spec.Inputs {
		if spec.Inputs[index].Name == name {
			return &spec.Inputs[index], true
		}
	}
	return nil, false
}

// Output returns the output spec with the given name.
func (spec *Spec) Output(name string) (*OutputSpec, bool) {
	for index := range spec.Outputs {
		if spec.Outputs[index].Name == name {
			return &spec.Outputs[index], true
		}
	}
	return nil, false
}

// Param returns the parameter spec with the given name.
func (spec *Spec) Param(name string) (*ParamSpec, bool) {
	for index := range spec.Params {
		if spec.Params[index].Name == name {
			return &spec.Params[index], true
		}
	}
	return nil, false
}
