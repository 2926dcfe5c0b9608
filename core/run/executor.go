package run

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowgrid/flowgrid/core/events"
	"github.com/flowgrid/flowgrid/core/flow"
	"github.com/flowgrid/flowgrid/core/handle"
	"github.com/flowgrid/flowgrid/core/node"
	"github.com/flowgrid/flowgrid/core/plan"
)

// DefaultWorkers is the default worker-pool size for a single executor.
const DefaultWorkers = 8

// Sentinel errors raised by the strategies.
var (
	// ErrStartNodeNotFound indicates the control references a node that is
	// not part of the graph.
	ErrStartNodeNotFound = fmt.Errorf("start node not found")

	// ErrAncestorNotExecuted indicates a FROM_NODE or NODE_ONLY run found
	// an ancestor without valid outputs after the ancestor phase.
	ErrAncestorNotExecuted = fmt.Errorf("ancestor not executed")
)

// Executor runs compiled plans over loaded graphs. Within a layer every
// node runs concurrently on a bounded worker pool; the executor awaits a
// barrier after each layer and then performs the sequential propagation
// step, so node data is never touched by two goroutines at once.
//
// An Executor is stateless across runs and safe for concurrent Run calls
// on distinct graphs.
type Executor struct {
	registry *node.Registry
	adapters *handle.AdapterRegistry
	sink     events.Sink
	logger   zerolog.Logger
	workers  int
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers sets the worker-pool size. Values below one fall back to
// DefaultWorkers.
func WithWorkers(workers int) Option {
	return func(executor *Executor) {
		if workers > 0 {
			executor.workers = workers
		}
	}
}

// NewExecutor creates an executor bound to a node registry, an adapter
// registry, and an event sink.
func NewExecutor(registry *node.Registry, adapters *handle.AdapterRegistry, sink events.Sink, logger zerolog.Logger, options ...Option) *Executor {
	if sink == nil {
		sink = events.Nop{}
	}

	executor := &Executor{
		registry: registry,
		adapters: adapters,
		sink:     sink,
		logger:   logger.With().Str("component", "executor").Logger(),
		workers:  DefaultWorkers,
	}
	for _, option := range options {
		option(executor)
	}
	return executor
}

// Run executes the plan under the given control. Node-level failures
// produce a Result with Success=false and a published FLOW_FAILED event;
// the error return is reserved for structural problems (unknown start
// node, unexecutable ancestors).
func (executor *Executor) Run(ctx context.Context, graph *flow.Graph, compiled *plan.Plan, runContext *Context, control Control) (*Result, error) {
	state := &execution{
		executor:    executor,
		graph:       graph,
		compiled:    compiled,
		runContext:  runContext,
		result:      newResult(),
		edgeActive:  make(map[string]bool),
		nodeResults: make(map[string]*NodeResult),
		logger: executor.logger.With().
			Str("run_id", runContext.RunID).
			Str("flow_id", runContext.FlowID).
			Logger(),
	}

	switch control.Scope {
	case ScopeFull, "":
		return state.runFull(ctx)
	case ScopeFromNode:
		return state.runFromNode(ctx, control.StartNode)
	case ScopeNodeOnly:
		return state.runNodeOnly(ctx, control.StartNode)
	default:
		return nil, fmt.Errorf("unknown execution scope %q", control.Scope)
	}
}

// execution is the mutable state of one run.
type execution struct {
	executor   *Executor
	graph      *flow.Graph
	compiled   *plan.Plan
	runContext *Context
	result     *Result
	logger     zerolog.Logger

	// edgeActive records, for every edge whose source executed this run,
	// whether the edge carried a value. Routing and edge conditions
	// deactivate edges; skipped and failed sources never activate theirs.
	edgeActive map[string]bool

	// resultMu guards nodeResults, the only map written from layer
	// goroutines.
	resultMu    sync.Mutex
	nodeResults map[string]*NodeResult
}

// publish sends one lifecycle event, logging instead of failing the run
// when the sink is unavailable.
func (state *execution) publish(ctx context.Context, event events.Event) {
	event.RunID = state.runContext.RunID
	if err := state.executor.sink.Publish(ctx, event); err != nil {
		state.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to publish event")
	}
}

// publishStatus emits a NODE_STATUS_CHANGED event.
func (state *execution) publishStatus(ctx context.Context, nodeID string, status node.Status, data map[string]any) {
	state.publish(ctx, events.Event{
		Type:   events.TypeNodeStatusChanged,
		NodeID: nodeID,
		Status: string(status),
		Data:   data,
	})
}

// markQueued sets QUEUED on every node about to be planned in and emits the
// corresponding events so clients can paint the DAG up front.
func (state *execution) markQueued(ctx context.Context, nodeIDs []string) {
	for _, nodeID := range nodeIDs {
		entry, exists := state.graph.Entry(nodeID)
		if !exists {
			continue
		}
		entry.Data.Status = node.StatusQueued
		state.publishStatus(ctx, nodeID, node.StatusQueued, nil)
	}
}

// prepareLayer applies the pre-execution checks to a layer's members and
// returns the nodes to submit to the pool. Nodes whose incoming branches
// are all inactive are marked SKIPPED here; router nodes get their
// synthetic outgoing-edge-ids input injected.
func (state *execution) prepareLayer(ctx context.Context, members []string) []string {
	toRun := make([]string, 0, len(members))

	for _, nodeID := range members {
		entry, exists := state.graph.Entry(nodeID)
		if !exists {
			continue
		}

		if entry.Data.Status == node.StatusSkipped || state.shouldSkip(nodeID) {
			if entry.Data.Status != node.StatusSkipped {
				entry.Data.Status = node.StatusSkipped
				state.publishStatus(ctx, nodeID, node.StatusSkipped, nil)
			}
			state.recordResult(&NodeResult{NodeID: nodeID, Skipped: true})
			nodeExecutions.WithLabelValues("skipped").Inc()
			continue
		}

		if entry.Data.Label == flow.LabelRouter {
			state.injectRouterEdgeIDs(entry)
		}

		toRun = append(toRun, nodeID)
	}

	return toRun
}

// shouldSkip decides whether a node's incoming branches are all inactive.
// A node with no incoming edges always runs. An edge is active when its
// source completed and neither routing nor an edge condition deselected
// it; a completed source that did not execute in this run (a pre-satisfied
// ancestor) counts as active.
func (state *execution) shouldSkip(nodeID string) bool {
	incoming := state.graph.InEdges(nodeID)
	if len(incoming) == 0 {
		return false
	}

	for _, edge := range incoming {
		if state.edgeIsActive(edge) {
			return false
		}
	}
	return true
}

func (state *execution) edgeIsActive(edge *flow.Edge) bool {
	source, exists := state.graph.Entry(edge.Source)
	if !exists {
		return false
	}
	satisfied := source.Data.Status == node.StatusCompleted ||
		(source.Data.Status != node.StatusSkipped && source.Data.Status != node.StatusFailed &&
			source.Data.HasOutputs(source.Spec))
	if !satisfied {
		return false
	}
	if active, recorded := state.edgeActive[edge.ID]; recorded {
		return active
	}
	return true
}

// injectRouterEdgeIDs places the comma-joined outgoing edge ids under the
// reserved router input so the node can reference concrete edges in its
// routing decision.
func (state *execution) injectRouterEdgeIDs(entry *flow.Entry) {
	outgoing := state.graph.OutEdges(entry.ID)
	edgeIDs := make([]string, 0, len(outgoing))
	for _, edge := range outgoing {
		edgeIDs = append(edgeIDs, edge.ID)
	}
	entry.Data.Inputs[flow.RouterEdgeIDsInput] = strings.Join(edgeIDs, ",")
}

// runLayer submits the prepared nodes to the bounded pool and awaits the
// layer barrier. It returns the ids of failed nodes in layer order.
func (state *execution) runLayer(ctx context.Context, layerIndex int, toRun []string) []string {
	if len(toRun) == 0 {
		return nil
	}

	layerStart := time.Now()
	semaphore := make(chan struct{}, state.executor.workers)
	var waitGroup sync.WaitGroup

	var failedMu sync.Mutex
	failedSet := make(map[string]bool)

	for _, nodeID := range toRun {
		waitGroup.Add(1)

		go func(executingNodeID string) {
			defer waitGroup.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := state.runNode(ctx, executingNodeID); err != nil {
				failedMu.Lock()
				failedSet[executingNodeID] = true
				failedMu.Unlock()
			}
		}(nodeID)
	}

	waitGroup.Wait()
	layerDuration.Observe(time.Since(layerStart).Seconds())

	if len(failedSet) == 0 {
		return nil
	}

	failed := make([]string, 0, len(failedSet))
	for _, nodeID := range toRun {
		if failedSet[nodeID] {
			failed = append(failed, nodeID)
		}
	}
	state.logger.Warn().Int("layer", layerIndex).Strs("failed_nodes", failed).Msg("layer failed")
	return failed
}

// runNode executes a single node: RUNNING event, instantiation through the
// registry, the runner's extract-process-package cycle, and the terminal
// status event.
func (state *execution) runNode(ctx context.Context, nodeID string) error {
	entry, exists := state.graph.Entry(nodeID)
	if !exists {
		return fmt.Errorf("node %q not in graph", nodeID)
	}

	entry.Data.Status = node.StatusRunning
	state.publishStatus(ctx, nodeID, node.StatusRunning, nil)

	nodeStart := time.Now()

	instance, err := state.executor.registry.New(entry.TypeName)
	if err == nil {
		var outputs map[string]any
		outputs, err = node.Run(ctx, instance, entry.Data)
		if err == nil {
			entry.Data.Outputs = outputs
			entry.Data.Status = node.StatusCompleted
			duration := time.Since(nodeStart)

			state.publishStatus(ctx, nodeID, node.StatusCompleted, outputs)
			state.recordResult(&NodeResult{
				NodeID:        nodeID,
				Success:       true,
				Data:          outputs,
				ExecutionTime: duration.Seconds(),
			})
			nodeExecutions.WithLabelValues("completed").Inc()
			return nil
		}
	}

	duration := time.Since(nodeStart)
	kind := errorKind(err)

	entry.Data.Status = node.StatusFailed
	state.publishStatus(ctx, nodeID, node.StatusFailed, map[string]any{
		"error":      err.Error(),
		"error_kind": kind,
	})
	state.recordResult(&NodeResult{
		NodeID:        nodeID,
		Error:         err.Error(),
		ErrorKind:     kind,
		ExecutionTime: duration.Seconds(),
	})
	nodeExecutions.WithLabelValues("failed").Inc()

	state.logger.Error().Err(err).Str("node_id", nodeID).Str("error_kind", kind).Msg("node failed")
	return err
}

func (state *execution) recordResult(result *NodeResult) {
	state.resultMu.Lock()
	defer state.resultMu.Unlock()
	state.nodeResults[result.NodeID] = result
}

// errorKind classifies a node failure for event payloads.
func errorKind(err error) string {
	switch {
	case errors.Is(err, node.ErrMissingRequiredInput):
		return "MISSING_REQUIRED_INPUT"
	case errors.Is(err, node.ErrOutputShapeMismatch):
		return "OUTPUT_SHAPE_MISMATCH"
	case errors.Is(err, node.ErrUnknownNodeType):
		return "UNKNOWN_NODE_TYPE"
	default:
		return "NODE_EXECUTION_ERROR"
	}
}
