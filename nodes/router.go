package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/flowgrid/flowgrid/core/flow"
	"github.com/flowgrid/flowgrid/core/handle"
	"github.com/flowgrid/flowgrid/core/node"
)

// Router selects a subset of its outgoing edges and forwards its input
// value along them. The executor injects the node's outgoing edge ids
// through a hidden input before execution; the routes parameter matches
// edge positions against the computed route key.
//
// The output is the routing record the executor consumes: the value to
// propagate plus the list of selected edge ids.
type Router struct{}

var _ node.Node = (*Router)(nil)

var routerSpec = &node.Spec{
	Name:        TypeRouter,
	Description: "Routes its input value along a subset of outgoing edges.",
	Inputs: []node.InputSpec{
		{
			Name:     "value",
			Handle:   handle.Handle{Kind: handle.KindDynamic, AllowIncomingEdges: true},
			Required: true,
		},
		{
			Name:    flow.RouterEdgeIDsInput,
			Handle:  handle.Handle{Kind: handle.KindText, HideInputField: true},
			Default: "",
		},
	},
	Outputs: []node.OutputSpec{
		{Name: "route", Handle: handle.Handle{Kind: handle.KindRouterOutput}},
	},
	Params: []node.ParamSpec{
		{
			Name:        "expression",
			Description: "Optional expression over 'value' computing the route key. Defaults to the value itself.",
			Handle:      handle.Handle{Kind: handle.KindText},
			Default:     "",
		},
		{
			Name:        "routes",
			Description: "Match strings, one per outgoing edge in declaration order. '*' matches any key.",
			Handle:      handle.Handle{Kind: handle.KindJSON},
			Default:     []any{},
		},
	},
	Group: "logic",
}

func (router *Router) Spec() *node.Spec { return routerSpec }

func (router *Router) Process(_ context.Context, inputs, params map[string]any) (any, error) {
	value := inputs["value"]

	edgeIDs := splitEdgeIDs(stringify(inputs[flow.RouterEdgeIDsInput]))

	key, err := routeKey(value, params["expression"])
	if err != nil {
		return nil, err
	}

	routes := matchList(params["routes"])
	selected := make([]string, 0, len(edgeIDs))
	if len(routes) == 0 {
		// No route table means the router is a plain fan-out.
		selected = append(selected, edgeIDs...)
	} else {
		for index, match := range routes {
			if index >= len(edgeIDs) {
				break
			}
			if match == "*" || match == key {
				selected = append(selected, edgeIDs[index])
			}
		}
	}

	return map[string]any{
		flow.RouterValueKey:     value,
		flow.RouterDecisionsKey: selected,
	}, nil
}

func splitEdgeIDs(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	edgeIDs := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			edgeIDs = append(edgeIDs, trimmed)
		}
	}
	return edgeIDs
}

// routeKey computes the string the route table is matched against: the
// stringified value, or the result of the optional expression.
func routeKey(value any, expression any) (string, error) {
	source, isString := expression.(string)
	if !isString || source == "" {
		return stringify(value), nil
	}

	program, err := expr.Compile(source)
	if err != nil {
		return "", fmt.Errorf("compiling route expression %q: %w", source, err)
	}
	result, err := expr.Run(program, map[string]any{"value": value})
	if err != nil {
		return "", fmt.Errorf("evaluating route expression %q: %w", source, err)
	}
	return stringify(result), nil
}

func matchList(routes any) []string {
	switch typed := routes.(type) {
	case []string:
		return typed
	case []any:
		matches := make([]string, 0, len(typed))
		for _, raw := range typed {
			matches = append(matches, stringify(raw))
		}
		return matches
	default:
		return nil
	}
}
