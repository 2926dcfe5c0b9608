package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flowgrid/flowgrid/core/admission"
	"github.com/flowgrid/flowgrid/core/events"
	"github.com/flowgrid/flowgrid/core/flow"
	"github.com/flowgrid/flowgrid/core/handle"
	"github.com/flowgrid/flowgrid/core/node"
	"github.com/flowgrid/flowgrid/core/plan"
	"github.com/flowgrid/flowgrid/core/run"
	"github.com/flowgrid/flowgrid/storage"
)

// Time limits for test-case runs. The soft limit cancels the execution
// context so the run can fail cleanly; the hard limit bounds the entire
// task including cleanup.
const (
	DefaultSoftLimit = 3540 * time.Second
	DefaultHardLimit = 3600 * time.Second
)

// RunStore is the persistence the dispatcher needs for test-case runs.
// Implemented by storage.TestCaseRuns (Postgres) and
// storage.MemoryTestCaseRuns.
type RunStore interface {
	Create(ctx context.Context, record *storage.TestCaseRun) error
	GetStatus(ctx context.Context, runID string) (string, error)
	SetStatus(ctx context.Context, runID, status string) error
	MarkCancelled(ctx context.Context, runID string) error
}

// Dispatcher wires the loader, compiler, and executor behind the engine's
// public operations.
type Dispatcher struct {
	registry *node.Registry
	adapters *handle.AdapterRegistry
	stream   events.Stream
	slots    admission.SlotManager
	runs     RunStore
	logger   zerolog.Logger

	workers   int
	softLimit time.Duration
	hardLimit time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithWorkers sets the executor worker-pool size.
func WithWorkers(workers int) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		if workers > 0 {
			dispatcher.workers = workers
		}
	}
}

// WithLimits overrides the soft and hard time limits for test-case runs.
func WithLimits(soft, hard time.Duration) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		if soft > 0 {
			dispatcher.softLimit = soft
		}
		if hard > 0 {
			dispatcher.hardLimit = hard
		}
	}
}

// NewDispatcher creates a dispatcher over the given registries, event
// stream, admission ledger, and run store.
func NewDispatcher(registry *node.Registry, adapters *handle.AdapterRegistry, stream events.Stream, slots admission.SlotManager, runs RunStore, logger zerolog.Logger, options ...DispatcherOption) *Dispatcher {
	dispatcher := &Dispatcher{
		registry:  registry,
		adapters:  adapters,
		stream:    stream,
		slots:     slots,
		runs:      runs,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
		workers:   run.DefaultWorkers,
		softLimit: DefaultSoftLimit,
		hardLimit: DefaultHardLimit,
	}
	for _, option := range options {
		option(dispatcher)
	}
	return dispatcher
}

// CompileResult is the compile-preview response: plan statistics, the
// layers themselves, and a rendered tree for display.
type CompileResult struct {
	FlowID string     `json:"flow_id"`
	Stats  plan.Stats `json:"stats"`
	Layers [][]string `json:"layers"`
	Tree   string     `json:"tree,omitempty"`
}

// CompileFlow validates and loads a raw graph request, compiles it, and
// returns the plan preview. Standalone nodes are removed so dangling
// library nodes on the canvas do not pollute the preview.
func (dispatcher *Dispatcher) CompileFlow(flowID string, raw []byte) (*CompileResult, error) {
	graph, err := dispatcher.load(raw)
	if err != nil {
		return nil, err
	}

	compiled, err := plan.Compile(graph, plan.Options{RemoveStandalone: true})
	if err != nil {
		return nil, err
	}

	return &CompileResult{
		FlowID: flowID,
		Stats:  compiled.Stats(graph.EdgeCount()),
		Layers: compiled.Layers(),
		Tree:   compiled.RenderTree(),
	}, nil
}

// RunFlow loads, compiles, and executes a raw graph request for the given
// user, publishing lifecycle events to the user's stream under a fresh
// task id.
func (dispatcher *Dispatcher) RunFlow(ctx context.Context, userID, flowID string, raw []byte, control run.Control) (*run.Result, error) {
	graph, err := dispatcher.load(raw)
	if err != nil {
		return nil, err
	}

	compiled, err := plan.Compile(graph, plan.Options{})
	if err != nil {
		return nil, err
	}

	taskID := uuid.NewString()
	return dispatcher.execute(ctx, graph, compiled, userID, flowID, taskID, control)
}

// DispatchRunTest is the admission-controlled entry point for test-case
// runs. A missing run record is created; a cancelled one is skipped. When
// the user is at slot capacity the task is not run and a Retry with a
// jittered delay is returned for the caller to re-queue.
func (dispatcher *Dispatcher) DispatchRunTest(ctx context.Context, taskID, userID, flowID, caseID string, raw []byte, control run.Control) (*admission.Retry, *run.Result, error) {
	status, err := dispatcher.runs.GetStatus(ctx, taskID)
	switch {
	case errors.Is(err, storage.ErrRunNotFound):
		createErr := dispatcher.runs.Create(ctx, &storage.TestCaseRun{
			ID:     taskID,
			UserID: userID,
			FlowID: flowID,
			CaseID: caseID,
			Status: storage.RunStatusPending,
		})
		if createErr != nil {
			return nil, nil, fmt.Errorf("creating test case run: %w", createErr)
		}
	case err != nil:
		return nil, nil, fmt.Errorf("checking test case run status: %w", err)
	case status == storage.RunStatusCancelled:
		dispatcher.logger.Info().Str("task_id", taskID).Msg("test case run already cancelled, skipping")
		return nil, nil, nil
	}

	granted, err := dispatcher.slots.Acquire(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("acquiring slot: %w", err)
	}
	if !granted {
		delay := admission.RetryDelay()
		dispatcher.logger.Info().
			Str("user_id", userID).
			Str("task_id", taskID).
			Dur("retry_after", delay).
			Msg("no slot available, re-queueing")
		return &admission.Retry{After: delay}, nil, nil
	}

	result, err := dispatcher.runFlowTest(ctx, taskID, userID, flowID, raw, control)
	return nil, result, err
}

// runFlowTest executes one admitted test-case run under the soft and hard
// time limits. The terminator's deferred Finish releases the slot and marks
// the run cancelled if no terminal status was reached, on every exit path.
func (dispatcher *Dispatcher) runFlowTest(ctx context.Context, taskID, userID, flowID string, raw []byte, control run.Control) (*run.Result, error) {
	terminator := NewTerminator(dispatcher.slots, dispatcher.runs, userID, taskID, dispatcher.logger)
	cleanupCtx := context.WithoutCancel(ctx)
	defer terminator.Finish(cleanupCtx)

	hardCtx, cancelHard := context.WithTimeout(ctx, dispatcher.hardLimit)
	defer cancelHard()
	runCtx, cancelSoft := context.WithTimeout(hardCtx, dispatcher.softLimit)
	defer cancelSoft()

	if err := dispatcher.runs.SetStatus(runCtx, taskID, storage.RunStatusRunning); err != nil {
		return nil, fmt.Errorf("marking test case run running: %w", err)
	}

	graph, err := dispatcher.load(raw)
	if err != nil {
		dispatcher.failRun(cleanupCtx, taskID)
		return nil, err
	}
	compiled, err := plan.Compile(graph, plan.Options{})
	if err != nil {
		dispatcher.failRun(cleanupCtx, taskID)
		return nil, err
	}

	result, err := dispatcher.execute(runCtx, graph, compiled, userID, flowID, taskID, control)
	switch {
	case err != nil:
		dispatcher.failRun(cleanupCtx, taskID)
	case result.Success:
		if statusErr := dispatcher.runs.SetStatus(cleanupCtx, taskID, storage.RunStatusCompleted); statusErr != nil {
			dispatcher.logger.Error().Err(statusErr).Str("task_id", taskID).Msg("failed to mark run completed")
		}
	default:
		dispatcher.failRun(cleanupCtx, taskID)
	}

	return result, err
}

func (dispatcher *Dispatcher) failRun(ctx context.Context, taskID string) {
	if err := dispatcher.runs.SetStatus(ctx, taskID, storage.RunStatusFailed); err != nil {
		dispatcher.logger.Error().Err(err).Str("task_id", taskID).Msg("failed to mark run failed")
	}
}

// load validates the raw request against the schema and builds the graph.
func (dispatcher *Dispatcher) load(raw []byte) (*flow.Graph, error) {
	return flow.NewLoader(dispatcher.registry, dispatcher.adapters, dispatcher.logger).LoadJSON(raw)
}

// execute runs a compiled plan with a task-bound publisher.
func (dispatcher *Dispatcher) execute(ctx context.Context, graph *flow.Graph, compiled *plan.Plan, userID, flowID, taskID string, control run.Control) (*run.Result, error) {
	runContext := run.NewContext(flowID, "", userID)
	publisher := events.NewPublisher(dispatcher.stream, dispatcher.logger, userID, taskID).WithRun(runContext.RunID)

	executor := run.NewExecutor(dispatcher.registry, dispatcher.adapters, publisher, dispatcher.logger, run.WithWorkers(dispatcher.workers))
	return executor.Run(ctx, graph, compiled, runContext, control)
}
