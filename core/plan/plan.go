package plan

import (
	"fmt"
)

// Sentinel errors for compilation. All are fatal: the compile fails and the
// run never starts.
var (
	// ErrEmptyGraph indicates the graph has no nodes (after the optional
	// standalone-node pre-pass).
	ErrEmptyGraph = fmt.Errorf("graph is empty")

	// ErrNotADAG indicates the graph contains a cycle.
	ErrNotADAG = fmt.Errorf("graph is not a DAG")

	// ErrUnprocessedNodes indicates the layering loop terminated without
	// covering every node, which means a cycle or internal inconsistency.
	ErrUnprocessedNodes = fmt.Errorf("unprocessed nodes remain after layering")
)

// Plan is an ordered sequence of layers covering every graph node exactly
// once. All nodes within a layer may run concurrently once the previous
// layer has completed; for every edge u->v, u's layer strictly precedes
// v's.
type Plan struct {
	layers [][]string

	// layerOf maps each node id to its layer index for O(1) lookups.
	layerOf map[string]int
}

// Layers returns the plan's layers. The returned slice is shared; callers
// must not mutate it.
func (plan *Plan) Layers() [][]string {
	return plan.layers
}

// Layer returns the members of one layer.
func (plan *Plan) Layer(index int) []string {
	return plan.layers[index]
}

// LayerCount returns the number of layers.
func (plan *Plan) LayerCount() int {
	return len(plan.layers)
}

// NodeCount returns the total number of planned nodes.
func (plan *Plan) NodeCount() int {
	return len(plan.layerOf)
}

// LayerOf returns the layer index containing the given node.
func (plan *Plan) LayerOf(nodeID string) (int, bool) {
	index, exists := plan.layerOf[nodeID]
	return index, exists
}

// Contains reports whether the plan covers the given node.
func (plan *Plan) Contains(nodeID string) bool {
	_, exists := plan.layerOf[nodeID]
	return exists
}

// validate checks the structural invariants of a freshly built plan against
// the node set it was compiled from: no empty layers, no duplicate
// membership, and exact coverage of the node set.
func (plan *Plan) validate(nodeIDs []string) error {
	seen := make(map[string]bool, len(nodeIDs))

	for layerIndex, layer := range plan.layers {
		if len(layer) == 0 {
			return fmt.Errorf("plan layer %d is empty", layerIndex)
		}
		for _, nodeID := range layer {
			if seen[nodeID] {
				return fmt.Errorf("node %q appears in more than one plan layer", nodeID)
			}
			seen[nodeID] = true
		}
	}

	if len(seen) != len(nodeIDs) {
		return fmt.Errorf("%w: plan covers %d of %d nodes", ErrUnprocessedNodes, len(seen), len(nodeIDs))
	}
	for _, nodeID := range nodeIDs {
		if !seen[nodeID] {
			return fmt.Errorf("%w: node %q missing from plan", ErrUnprocessedNodes, nodeID)
		}
	}

	return nil
}

// Stats summarizes a compiled plan for the compile-preview path.
type Stats struct {
	TotalNodes    int     `json:"total_nodes"`
	TotalEdges    int     `json:"total_edges"`
	LayerCount    int     `json:"layer_count"`
	MaxLayerWidth int     `json:"max_layer_width"`
	MinLayerWidth int     `json:"min_layer_width"`
	AvgLayerWidth float64 `json:"avg_layer_width"`
	LayerSizes    []int   `json:"layer_sizes"`
}

// Stats computes width statistics over the plan's layers. The edge count is
// supplied by the caller because the plan itself does not retain edges.
func (plan *Plan) Stats(totalEdges int) Stats {
	stats := Stats{
		TotalNodes: plan.NodeCount(),
		TotalEdges: totalEdges,
		LayerCount: plan.LayerCount(),
		LayerSizes: make([]int, 0, plan.LayerCount()),
	}

	for layerIndex, layer := range plan.layers {
		width := len(layer)
		stats.LayerSizes = append(stats.LayerSizes, width)
		if width > stats.MaxLayerWidth {
			stats.MaxLayerWidth = width
		}
		if layerIndex == 0 || width < stats.MinLayerWidth {
			stats.MinLayerWidth = width
		}
	}

	if stats.LayerCount > 0 {
		stats.AvgLayerWidth = float64(stats.TotalNodes) / float64(stats.LayerCount)
	}

	return stats
}
