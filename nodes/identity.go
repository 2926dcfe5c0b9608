package nodes

import (
	"context"

	"github.com/flowgrid/flowgrid/core/handle"
	"github.com/flowgrid/flowgrid/core/node"
)

// Identity passes its input through unchanged. Useful as a fan-out point
// and in tests.
type Identity struct{}

var _ node.Node = (*Identity)(nil)

var identitySpec = &node.Spec{
	Name:        TypeIdentity,
	Description: "Passes its input through unchanged.",
	Inputs: []node.InputSpec{
		{
			Name:     "value",
			Handle:   handle.Handle{Kind: handle.KindDynamic, AllowIncomingEdges: true},
			Required: true,
		},
	},
	Outputs: []node.OutputSpec{
		{Name: "value", Handle: handle.Handle{Kind: handle.KindDynamic}},
	},
	Group: "utility",
}

func (identity *Identity) Spec() *node.Spec { return identitySpec }

func (identity *Identity) Process(_ context.Context, inputs, _ map[string]any) (any, error) {
	return inputs["value"], nil
}
