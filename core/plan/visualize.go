package plan

import (
	"fmt"
	"strings"

	"github.com/m1gwings/treedrawer/tree"
)

// RenderTree draws the plan as a tree rooted at the plan summary with one
// branch per layer. Intended for the compile-preview path and debug logs.
func (plan *Plan) RenderTree() string {
	root := tree.NewTree(tree.NodeString(fmt.Sprintf("plan (%d layers, %d nodes)", plan.LayerCount(), plan.NodeCount())))

	for layerIndex, layer := range plan.layers {
		root.AddChild(tree.NodeString(fmt.Sprintf("layer %d", layerIndex)))
		layerNode, err := root.Child(layerIndex)
		if err != nil {
			continue
		}
		for _, nodeID := range layer {
			layerNode.AddChild(tree.NodeString(nodeID))
		}
	}

	return root.String()
}

// Describe returns a compact single-line description of the plan layers,
// e.g. "[a] -> [b c] -> [d]".
func (plan *Plan) Describe() string {
	parts := make([]string, 0, plan.LayerCount())
	for _, layer := range plan.layers {
		parts = append(parts, "["+strings.Join(layer, " ")+"]")
	}
	return strings.Join(parts, " -> ")
}
