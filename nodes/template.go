package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowgrid/flowgrid/core/handle"
	"github.com/flowgrid/flowgrid/core/node"
)

// Template fills {placeholder} markers in its template parameter with the
// entries of its values input. Unmatched placeholders are left in place so
// missing data is visible downstream instead of silently vanishing.
type Template struct{}

var _ node.Node = (*Template)(nil)

var templateSpec = &node.Spec{
	Name:        TypeTemplate,
	Description: "Fills {placeholder} markers in a template with input values.",
	Inputs: []node.InputSpec{
		{
			Name:        "values",
			Description: "Map of placeholder names to substitution values.",
			Handle:      handle.Handle{Kind: handle.KindJSON, AllowIncomingEdges: true, AllowMultipleIncomingEdges: true},
			Default:     map[string]any{},
		},
	},
	Outputs: []node.OutputSpec{
		{Name: "text", Handle: handle.Handle{Kind: handle.KindText}},
	},
	Params: []node.ParamSpec{
		{
			Name:        "template",
			Description: "Template text with {placeholder} markers.",
			Handle:      handle.Handle{Kind: handle.KindText},
			Default:     "",
		},
	},
	Group: "utility",
}

func (template *Template) Spec() *node.Spec { return templateSpec }

func (template *Template) Process(_ context.Context, inputs, params map[string]any) (any, error) {
	text := stringify(params["template"])

	values, isMap := inputs["values"].(map[string]any)
	if inputs["values"] != nil && !isMap {
		return nil, fmt.Errorf("values input must be an object, got %T", inputs["values"])
	}

	for key, value := range values {
		text = strings.ReplaceAll(text, "{"+key+"}", stringify(value))
	}
	return text, nil
}
