package nodes

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/flowgrid/flowgrid/core/handle"
	"github.com/flowgrid/flowgrid/core/node"
)

// Condition evaluates a boolean expression over its input value. The
// expression language is the same one edge conditions use; the value is
// exposed as "value".
type Condition struct{}

var _ node.Node = (*Condition)(nil)

var conditionSpec = &node.Spec{
	Name:        TypeCondition,
	Description: "Evaluates a boolean expression over the input value.",
	Inputs: []node.InputSpec{
		{
			Name:     "value",
			Handle:   handle.Handle{Kind: handle.KindDynamic, AllowIncomingEdges: true},
			Required: true,
		},
	},
	Outputs: []node.OutputSpec{
		{Name: "result", Handle: handle.Handle{Kind: handle.KindBoolean}},
	},
	Params: []node.ParamSpec{
		{
			Name:        "expression",
			Description: "Boolean expression over 'value'.",
			Handle:      handle.Handle{Kind: handle.KindText},
		},
	},
	Group: "logic",
}

func (condition *Condition) Spec() *node.Spec { return conditionSpec }

func (condition *Condition) Process(_ context.Context, inputs, params map[string]any) (any, error) {
	source, isString := params["expression"].(string)
	if !isString || source == "" {
		return nil, fmt.Errorf("expression parameter is required")
	}

	program, err := expr.Compile(source, expr.AsBool(), expr.Env(map[string]any{"value": inputs["value"]}))
	if err != nil {
		return nil, fmt.Errorf("compiling expression %q: %w", source, err)
	}

	result, err := expr.Run(program, map[string]any{"value": inputs["value"]})
	if err != nil {
		return nil, fmt.Errorf("evaluating expression %q: %w", source, err)
	}
	return result, nil
}
