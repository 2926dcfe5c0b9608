package run

import (
	"fmt"

	"github.com/flowgrid/flowgrid/core/flow"
	"github.com/flowgrid/flowgrid/core/node"
)

// propagateLayer performs the sequential propagation step after a layer's
// barrier. For every completed node it walks the outgoing edges in
// declaration order, decides edge activity (router selection, then the
// optional edge condition), adapts the value across the handle kinds, and
// assigns it into the target's inputs. Runs single-threaded between
// layers, so target input maps need no locking.
func (state *execution) propagateLayer(members []string) error {
	for _, nodeID := range members {
		entry, exists := state.graph.Entry(nodeID)
		if !exists || entry.Data.Status != node.StatusCompleted {
			continue
		}

		var routing *routerDecision
		if entry.Data.Label == flow.LabelRouter {
			routing = state.parseRouterDecision(entry)
		}

		for _, edge := range state.graph.OutEdges(nodeID) {
			if err := state.propagateEdge(entry, edge, routing); err != nil {
				return err
			}
		}
	}
	return nil
}

// propagateEdge resolves activity and value for one edge and, when active,
// writes the adapted value into the target node's inputs.
func (state *execution) propagateEdge(source *flow.Entry, edge *flow.Edge, routing *routerDecision) error {
	value, produced := source.Data.Outputs[edge.SourceHandle]
	active := produced

	if routing != nil {
		active = routing.selected[edge.ID]
		value = routing.value
	}

	if active && edge.HasCondition() {
		passed, err := edge.EvaluateCondition(value)
		if err != nil {
			state.logger.Warn().Err(err).Str("edge_id", edge.ID).Msg("edge condition failed, treating edge as inactive")
			passed = false
		}
		active = passed
	}

	state.edgeActive[edge.ID] = active
	if !active {
		return nil
	}

	adapted, err := state.adaptAcrossEdge(source, edge, value)
	if err != nil {
		return err
	}

	target, exists := state.graph.Entry(edge.Target)
	if !exists {
		return fmt.Errorf("edge %s references unknown target node %q", edge.ID, edge.Target)
	}
	target.Data.Inputs[edge.TargetHandle] = adapted
	return nil
}

// adaptAcrossEdge coerces a value from the source output kind to the target
// input kind using the adapter registry.
func (state *execution) adaptAcrossEdge(source *flow.Entry, edge *flow.Edge, value any) (any, error) {
	outputSpec, hasOutput := source.Spec.Output(edge.SourceHandle)
	if !hasOutput {
		return nil, fmt.Errorf("edge %s references unknown output %q on node %s", edge.ID, edge.SourceHandle, edge.Source)
	}

	target, exists := state.graph.Entry(edge.Target)
	if !exists {
		return nil, fmt.Errorf("edge %s references unknown target node %q", edge.ID, edge.Target)
	}
	inputSpec, hasInput := target.Spec.Input(edge.TargetHandle)
	if !hasInput {
		return nil, fmt.Errorf("edge %s references unknown input %q on node %s", edge.ID, edge.TargetHandle, edge.Target)
	}

	adapted, err := state.executor.adapters.Adapt(outputSpec.Handle.Kind, inputSpec.Handle.Kind, value)
	if err != nil {
		return nil, fmt.Errorf("propagating %s.%s -> %s.%s: %w", edge.Source, edge.SourceHandle, edge.Target, edge.TargetHandle, err)
	}
	return adapted, nil
}

// routerDecision is a parsed router output record: the value to forward and
// the set of selected outgoing edge ids.
type routerDecision struct {
	value    any
	selected map[string]bool
}

// parseRouterDecision reads the routing record from the router's outputs.
// A malformed record deselects every branch, which downstream skip
// propagation then handles like an all-inactive router.
func (state *execution) parseRouterDecision(entry *flow.Entry) *routerDecision {
	decision := &routerDecision{selected: make(map[string]bool)}

	for _, value := range entry.Data.Outputs {
		record, isRecord := value.(map[string]any)
		if !isRecord {
			continue
		}

		decision.value = record[flow.RouterValueKey]
		switch decisions := record[flow.RouterDecisionsKey].(type) {
		case []string:
			for _, edgeID := range decisions {
				decision.selected[edgeID] = true
			}
		case []any:
			for _, raw := range decisions {
				if edgeID, isString := raw.(string); isString {
					decision.selected[edgeID] = true
				}
			}
		}
		return decision
	}

	state.logger.Warn().Str("node_id", entry.ID).Msg("router produced no routing record, deselecting all branches")
	return decision
}
