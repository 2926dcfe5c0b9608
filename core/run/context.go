package run

import (
	"github.com/google/uuid"
)

// Context is the immutable per-run record carried through the executor and
// stamped onto every event. Repos is an opaque handle to the external
// repository container; the executor never inspects it, nodes that need
// persistence receive it through their parameters.
type Context struct {
	RunID     string
	FlowID    string
	SessionID string
	UserID    string
	Meta      map[string]any
	Repos     any
}

// NewContext creates a run context with a generated run id.
func NewContext(flowID, sessionID, userID string) *Context {
	return &Context{
		RunID:     uuid.NewString(),
		FlowID:    flowID,
		SessionID: sessionID,
		UserID:    userID,
		Meta:      make(map[string]any),
	}
}

// ToDict returns the loggable fields of the context. Repos is deliberately
// excluded.
func (runContext *Context) ToDict() map[string]any {
	fields := map[string]any{
		"run_id":  runContext.RunID,
		"flow_id": runContext.FlowID,
	}
	if runContext.SessionID != "" {
		fields["session_id"] = runContext.SessionID
	}
	if runContext.UserID != "" {
		fields["user_id"] = runContext.UserID
	}
	for key, value := range runContext.Meta {
		fields[key] = value
	}
	return fields
}

// Scope selects which part of the plan a run covers.
type Scope string

const (
	// ScopeFull executes every layer of the plan in order.
	ScopeFull Scope = "FULL"

	// ScopeFromNode executes stale ancestors of the start node first, then
	// the start node and its satisfied descendants.
	ScopeFromNode Scope = "FROM_NODE"

	// ScopeNodeOnly executes exactly the start node using its current
	// inputs; ancestors must already have valid outputs.
	ScopeNodeOnly Scope = "NODE_ONLY"
)

// Control declares a run's scope. StartNode is required for ScopeFromNode
// and ScopeNodeOnly.
type Control struct {
	Scope     Scope
	StartNode string
}

// FullControl returns a Control for a complete run.
func FullControl() Control {
	return Control{Scope: ScopeFull}
}
