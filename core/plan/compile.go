package plan

import (
	"fmt"
	"sort"

	"github.com/flowgrid/flowgrid/core/flow"
)

// Options configures compilation.
type Options struct {
	// RemoveStandalone drops nodes with no incident edges before layering.
	// Used by the compile-only preview path, where dangling library nodes
	// on the canvas should not pollute the plan.
	RemoveStandalone bool
}

// Compile produces a layered execution plan over the graph using a
// Kahn-style layered topological sort.
//
// Layer 0 holds every node with no predecessors; each subsequent layer
// holds the nodes whose remaining in-degree reaches zero once the previous
// layer is removed. Within a layer, nodes keep the graph's insertion order
// so that compiling the same graph twice yields identical plans.
//
// Compile fails with ErrEmptyGraph for graphs with no (remaining) nodes and
// ErrNotADAG when a cycle prevents the layering from covering every node.
func Compile(graph *flow.Graph, options Options) (*Plan, error) {
	nodeIDs := graph.NodeIDs()

	if options.RemoveStandalone {
		connected := make([]string, 0, len(nodeIDs))
		for _, nodeID := range nodeIDs {
			if !graph.Standalone(nodeID) {
				connected = append(connected, nodeID)
			}
		}
		nodeIDs = connected
	}

	if len(nodeIDs) == 0 {
		return nil, ErrEmptyGraph
	}

	planned := make(map[string]bool, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		planned[nodeID] = true
	}

	// In-degrees restricted to the planned node set.
	inDegree := make(map[string]int, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		degree := 0
		for _, edge := range graph.InEdges(nodeID) {
			if planned[edge.Source] {
				degree++
			}
		}
		inDegree[nodeID] = degree
	}

	// Preserve insertion order within layers for deterministic plans.
	position := make(map[string]int, len(nodeIDs))
	for index, nodeID := range nodeIDs {
		position[nodeID] = index
	}

	currentLayer := make([]string, 0)
	for _, nodeID := range nodeIDs {
		if inDegree[nodeID] == 0 {
			currentLayer = append(currentLayer, nodeID)
		}
	}

	layers := make([][]string, 0)
	layerOf := make(map[string]int, len(nodeIDs))
	processed := 0

	for len(currentLayer) > 0 {
		layerIndex := len(layers)
		layers = append(layers, currentLayer)
		for _, nodeID := range currentLayer {
			layerOf[nodeID] = layerIndex
		}
		processed += len(currentLayer)

		nextLayer := make([]string, 0)
		for _, nodeID := range currentLayer {
			for _, edge := range graph.OutEdges(nodeID) {
				if !planned[edge.Target] {
					continue
				}
				inDegree[edge.Target]--
				if inDegree[edge.Target] == 0 {
					nextLayer = append(nextLayer, edge.Target)
				}
			}
		}

		sort.Slice(nextLayer, func(left, right int) bool {
			return position[nextLayer[left]] < position[nextLayer[right]]
		})

		currentLayer = nextLayer
	}

	if processed != len(nodeIDs) {
		stuck := make([]string, 0)
		for _, nodeID := range nodeIDs {
			if inDegree[nodeID] > 0 {
				stuck = append(stuck, nodeID)
			}
		}
		return nil, fmt.Errorf("%w: cycle involving nodes %v", ErrNotADAG, stuck)
	}

	compiled := &Plan{layers: layers, layerOf: layerOf}
	if err := compiled.validate(nodeIDs); err != nil {
		return nil, err
	}
	return compiled, nil
}
