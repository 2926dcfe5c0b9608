package run

import (
	"context"
	"fmt"
	"time"

	"github.com/flowgrid/flowgrid/core/events"
	"github.com/flowgrid/flowgrid/core/flow"
	"github.com/flowgrid/flowgrid/core/node"
	"github.com/flowgrid/flowgrid/core/parse"
)

// runFull executes every plan layer in order.
func (state *execution) runFull(ctx context.Context) (*Result, error) {
	start := time.Now()

	state.publish(ctx, events.Event{
		Type: events.TypeFlowStarted,
		Data: map[string]any{"scope": string(ScopeFull), "total_layers": state.compiled.LayerCount()},
	})

	planned := make([]string, 0, state.compiled.NodeCount())
	for _, layer := range state.compiled.Layers() {
		planned = append(planned, layer...)
	}
	state.markQueued(ctx, planned)

	for layerIndex, layer := range state.compiled.Layers() {
		toRun := state.prepareLayer(ctx, layer)

		if failed := state.runLayer(ctx, layerIndex, toRun); len(failed) > 0 {
			return state.failRun(ctx, start, layerIndex, failed, nil), nil
		}
		if err := state.propagateLayer(toRun); err != nil {
			return state.failRun(ctx, start, layerIndex, nil, err), nil
		}
	}

	return state.finalize(ctx, start, state.compiled.LayerCount()), nil
}

// runFromNode re-executes stale ancestors of the start node as a mini-plan,
// validates that every ancestor now carries outputs, seeds the start node's
// inputs from its incoming edges, and then continues execution from the
// start node's layer over its descendants.
func (state *execution) runFromNode(ctx context.Context, startID string) (*Result, error) {
	start := time.Now()

	if _, exists := state.graph.Entry(startID); !exists || !state.compiled.Contains(startID) {
		return nil, fmt.Errorf("%w: %q", ErrStartNodeNotFound, startID)
	}

	ancestors := state.graph.Ancestors(startID)
	state.result.Ancestors = ancestors

	staleSet := make(map[string]bool)
	for _, ancestorID := range ancestors {
		entry, exists := state.graph.Entry(ancestorID)
		if exists && !entry.Data.HasOutputs(entry.Spec) {
			staleSet[ancestorID] = true
		}
	}

	continueSet := map[string]bool{startID: true}
	for _, descendantID := range state.graph.Descendants(startID) {
		continueSet[descendantID] = true
	}

	state.publish(ctx, events.Event{
		Type: events.TypeFlowStarted,
		Data: map[string]any{
			"scope":           string(ScopeFromNode),
			"start_node":      startID,
			"stale_ancestors": len(staleSet),
		},
	})

	queued := make([]string, 0, len(staleSet)+len(continueSet))
	for _, layer := range state.compiled.Layers() {
		for _, nodeID := range layer {
			if staleSet[nodeID] || continueSet[nodeID] {
				queued = append(queued, nodeID)
			}
		}
	}
	state.markQueued(ctx, queued)

	// Ancestor phase: the full plan filtered down to stale ancestors keeps
	// their relative ordering and parallelism.
	for layerIndex, layer := range state.compiled.Layers() {
		members := filterMembers(layer, staleSet)
		if len(members) == 0 {
			continue
		}

		toRun := state.prepareLayer(ctx, members)
		if failed := state.runLayer(ctx, layerIndex, toRun); len(failed) > 0 {
			return state.failRun(ctx, start, layerIndex, failed, nil), nil
		}
		if err := state.propagateLayer(toRun); err != nil {
			return state.failRun(ctx, start, layerIndex, nil, err), nil
		}
	}

	startLayer, _ := state.compiled.LayerOf(startID)

	for _, ancestorID := range ancestors {
		entry, exists := state.graph.Entry(ancestorID)
		if !exists || entry.Data.Status == node.StatusSkipped {
			continue
		}
		if !entry.Data.HasOutputs(entry.Spec) {
			err := fmt.Errorf("%w: %s has no outputs before %s", ErrAncestorNotExecuted, ancestorID, startID)
			return state.failRun(ctx, start, startLayer, []string{ancestorID}, err), err
		}
	}

	if err := state.seedInputs(startID); err != nil {
		return state.failRun(ctx, start, startLayer, []string{startID}, err), nil
	}

	// Continuation phase: from the start node's layer onward, restricted to
	// the start node and its descendants whose predecessors are satisfied.
	for layerIndex := startLayer; layerIndex < state.compiled.LayerCount(); layerIndex++ {
		members := make([]string, 0)
		for _, nodeID := range state.compiled.Layer(layerIndex) {
			if continueSet[nodeID] && state.predecessorsSatisfied(nodeID) {
				members = append(members, nodeID)
			}
		}
		if len(members) == 0 {
			continue
		}

		toRun := state.prepareLayer(ctx, members)
		if failed := state.runLayer(ctx, layerIndex, toRun); len(failed) > 0 {
			return state.failRun(ctx, start, layerIndex, failed, nil), nil
		}
		if err := state.propagateLayer(toRun); err != nil {
			return state.failRun(ctx, start, layerIndex, nil, err), nil
		}
	}

	return state.finalize(ctx, start, state.compiled.LayerCount()-startLayer), nil
}

// runNodeOnly executes exactly the start node. Every incoming edge must
// originate from a node that already carries outputs.
func (state *execution) runNodeOnly(ctx context.Context, startID string) (*Result, error) {
	start := time.Now()

	entry, exists := state.graph.Entry(startID)
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrStartNodeNotFound, startID)
	}

	state.publish(ctx, events.Event{
		Type: events.TypeFlowStarted,
		Data: map[string]any{"scope": string(ScopeNodeOnly), "start_node": startID},
	})
	state.markQueued(ctx, []string{startID})

	for _, edge := range state.graph.InEdges(startID) {
		source, sourceExists := state.graph.Entry(edge.Source)
		if !sourceExists || !source.Data.HasOutputs(source.Spec) {
			err := fmt.Errorf("%w: %s has no outputs for %s", ErrAncestorNotExecuted, edge.Source, startID)
			return state.failRun(ctx, start, 0, []string{edge.Source}, err), err
		}
	}
	if err := state.seedInputs(startID); err != nil {
		return state.failRun(ctx, start, 0, []string{startID}, err), nil
	}

	if entry.Data.Label == flow.LabelRouter {
		state.injectRouterEdgeIDs(entry)
	}

	if failed := state.runLayer(ctx, 0, []string{startID}); len(failed) > 0 {
		return state.failRun(ctx, start, 0, failed, nil), nil
	}

	return state.finalize(ctx, start, 1), nil
}

// seedInputs propagates values into a node from every incoming edge whose
// source carries outputs, applying routing and edge conditions. Sources
// without outputs are left alone; the caller decides whether that is an
// error.
func (state *execution) seedInputs(nodeID string) error {
	for _, edge := range state.graph.InEdges(nodeID) {
		source, exists := state.graph.Entry(edge.Source)
		if !exists || !source.Data.HasOutputs(source.Spec) {
			continue
		}

		var routing *routerDecision
		if source.Data.Label == flow.LabelRouter {
			routing = state.parseRouterDecision(source)
		}
		if err := state.propagateEdge(source, edge, routing); err != nil {
			return err
		}
	}
	return nil
}

// predecessorsSatisfied reports whether every direct predecessor reached a
// settled state: completed or skipped in this run, or already carrying
// outputs from before.
func (state *execution) predecessorsSatisfied(nodeID string) bool {
	for _, predecessorID := range state.graph.Predecessors(nodeID) {
		entry, exists := state.graph.Entry(predecessorID)
		if !exists {
			return false
		}
		switch {
		case entry.Data.Status == node.StatusCompleted, entry.Data.Status == node.StatusSkipped:
		case entry.Data.HasOutputs(entry.Spec):
		default:
			return false
		}
	}
	return true
}

func filterMembers(layer []string, include map[string]bool) []string {
	members := make([]string, 0, len(layer))
	for _, nodeID := range layer {
		if include[nodeID] {
			members = append(members, nodeID)
		}
	}
	return members
}

// finalize assembles the successful result and publishes FLOW_ENDED.
func (state *execution) finalize(ctx context.Context, start time.Time, totalLayers int) *Result {
	state.result.Success = true
	state.result.TotalLayers = totalLayers
	state.result.Results = state.collectResults()
	state.result.TotalNodes = len(state.result.Results)
	for _, nodeResult := range state.result.Results {
		if nodeResult.Success {
			state.result.CompletedNodes++
		}
	}
	state.result.ChatOutput = state.extractChatOutput()
	state.result.finish(start)

	state.publish(ctx, events.Event{
		Type: events.TypeFlowEnded,
		Data: state.result.flowEndedData(),
	})

	state.logger.Info().
		Int("total_nodes", state.result.TotalNodes).
		Int("completed_nodes", state.result.CompletedNodes).
		Float64("execution_time_seconds", state.result.ExecutionTime).
		Msg("flow completed")
	return state.result
}

// failRun assembles the failed result and publishes FLOW_FAILED. runErr, if
// set, names a structural failure (propagation or ancestor validation)
// rather than a node error.
func (state *execution) failRun(ctx context.Context, start time.Time, layerIndex int, failedNodes []string, runErr error) *Result {
	state.result.Success = false
	state.result.FailedLayer = &layerIndex
	state.result.FailedNodes = failedNodes
	state.result.Results = state.collectResults()
	state.result.TotalNodes = len(state.result.Results)
	for _, nodeResult := range state.result.Results {
		if nodeResult.Success {
			state.result.CompletedNodes++
		}
	}
	state.result.finish(start)

	data := state.result.flowFailedData()
	if runErr != nil {
		data["error"] = runErr.Error()
	}
	state.publish(ctx, events.Event{Type: events.TypeFlowFailed, Data: data})

	state.logger.Warn().
		Int("failed_layer", layerIndex).
		Strs("failed_nodes", failedNodes).
		Msg("flow failed")
	return state.result
}

// collectResults orders the recorded node results by plan position.
func (state *execution) collectResults() []NodeResult {
	state.resultMu.Lock()
	defer state.resultMu.Unlock()

	ordered := make([]NodeResult, 0, len(state.nodeResults))
	for _, layer := range state.compiled.Layers() {
		for _, nodeID := range layer {
			if nodeResult, recorded := state.nodeResults[nodeID]; recorded {
				ordered = append(ordered, *nodeResult)
			}
		}
	}

	// NODE_ONLY runs may touch a node outside the compiled plan's coverage
	// guarantees; append anything the layer sweep missed.
	if len(ordered) < len(state.nodeResults) {
		covered := make(map[string]bool, len(ordered))
		for _, nodeResult := range ordered {
			covered[nodeResult.NodeID] = true
		}
		for _, nodeID := range state.graph.NodeIDs() {
			if nodeResult, recorded := state.nodeResults[nodeID]; recorded && !covered[nodeID] {
				ordered = append(ordered, *nodeResult)
			}
		}
	}
	return ordered
}

// extractChatOutput pulls the chat-output node's message_in input, when the
// graph has such a node and a value arrived on it.
func (state *execution) extractChatOutput() *ChatOutput {
	entry := state.graph.FindByLabel(flow.LabelChatOutput)
	if entry == nil {
		return nil
	}

	value, present := entry.Data.Inputs["message_in"]
	if !present || value == nil {
		return nil
	}

	if content, isString := value.(string); isString {
		return &ChatOutput{Content: content}
	}
	if content, err := parse.CompactJSON(value); err == nil {
		return &ChatOutput{Content: content}
	}
	return &ChatOutput{Content: fmt.Sprintf("%v", value)}
}
