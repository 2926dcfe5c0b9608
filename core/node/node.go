package node

import (
	"context"
)

// Status represents the lifecycle status of a node within a single run.
type Status string

const (
	// StatusPending indicates the node has not been scheduled yet.
	StatusPending Status = "PENDING"

	// StatusQueued indicates the node is part of a compiled plan awaiting
	// execution. Emitted up-front for every planned node so clients can
	// paint the DAG.
	StatusQueued Status = "QUEUED"

	// StatusRunning indicates the node is currently executing.
	StatusRunning Status = "RUNNING"

	// StatusCompleted indicates the node finished successfully.
	StatusCompleted Status = "COMPLETED"

	// StatusFailed indicates the node's Process returned an error or its
	// inputs/outputs failed validation.
	StatusFailed Status = "FAILED"

	// StatusSkipped indicates the node was deselected by a routing
	// predecessor. Skipped nodes are never executed and the status
	// propagates transitively along otherwise-exclusive branches.
	StatusSkipped Status = "SKIPPED"
)

// Node is the contract every concrete node type implements. A node declares
// its ports and parameters through an immutable Spec and performs its work
// in Process. The engine owns input extraction and output packaging; Process
// receives fully resolved values and returns either a single value (for
// single-output specs) or a map keyed by declared output names.
//
// Process implementations may block on I/O (LLM calls, HTTP, DB); the
// executor treats each node as an opaque blocking operation and honors the
// context for cancellation.
type Node interface {
	// Spec returns the node's immutable declaration. Implementations must
	// return the same Spec value on every call.
	Spec() *Spec

	// Process runs the node with resolved inputs and parameters.
	Process(ctx context.Context, inputs, params map[string]any) (any, error)
}

// ToolDescriptor describes a node exposed as a callable tool to an agent
// node. InputSchema is a JSON-schema-shaped description of the tool inputs.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolNode is implemented by nodes whose Spec declares CanBeTool. The
// executor never invokes these methods directly; agent nodes compose
// sibling ToolNodes as tools at their own discretion.
type ToolNode interface {
	Node

	// BuildTool produces the tool descriptor advertised to the agent's LLM.
	BuildTool(inputs, config map[string]any) (*ToolDescriptor, error)

	// ProcessTool runs the node on behalf of an agent, merging the agent's
	// tool-call arguments over the node's own inputs.
	ProcessTool(ctx context.Context, inputs, params, toolInputs map[string]any) (any, error)
}

// Data holds the mutable per-run values attached to a node instance in a
// graph. The executor guarantees that Data is touched only by the owning
// node's task during execution and by the orchestrator during the
// sequential post-layer propagation step, so no additional locking is
// required.
type Data struct {
	// Inputs holds values assigned by the user or propagated along edges.
	Inputs map[string]any

	// Params holds parameter values set by the user.
	Params map[string]any

	// Outputs holds the packaged result of the last execution.
	Outputs map[string]any

	// Status is the node's lifecycle status within the current run.
	Status Status

	// Label is the UI label attached to the node record. Certain labels
	// (router, chat-input, chat-output) trigger special executor behavior.
	Label string
}

// NewData returns an empty Data with initialized maps and StatusPending.
func NewData() *Data {
	return &Data{
		Inputs:  make(map[string]any),
		Params:  make(map[string]any),
		Outputs: make(map[string]any),
		Status:  StatusPending,
	}
}

// HasOutputs reports whether the node produced a value for every declared
// output of the given spec. Used by the FROM_NODE strategy to decide which
// ancestors are stale.
func (data *Data) HasOutputs(spec *Spec) bool {
	if len(spec.Outputs) == 0 {
		return data.Status == StatusCompleted
	}
	for _, output := range spec.Outputs {
		if _, exists := data.Outputs[output.Name]; !exists {
			return false
		}
	}
	return true
}
