package events

import (
	"time"
)

// Type identifies the kind of lifecycle event on the stream.
type Type string

const (
	// TypeNodeStatusChanged reports a node's status transition, with the
	// node's output or error details in Data.
	TypeNodeStatusChanged Type = "NODE_STATUS_CHANGED"

	// TypeFlowStarted marks the beginning of a run.
	TypeFlowStarted Type = "FLOW_STARTED"

	// TypeFlowEnded marks a successful run, with aggregate stats in Data.
	TypeFlowEnded Type = "FLOW_ENDED"

	// TypeFlowFailed marks a failed run, with the failing layer and node
	// ids in Data.
	TypeFlowFailed Type = "FLOW_FAILED"

	// TypeError reports an out-of-band error (publisher or bridge level).
	TypeError Type = "ERROR"
)

// Event is one record on a per-user ordered stream. ID is assigned by the
// stream on append and returned to consumers as the resumption cursor; the
// publisher stamps Timestamp and the correlation ids.
type Event struct {
	ID        string         `json:"id,omitempty"`
	UserID    string         `json:"user_id"`
	RunID     string         `json:"run_id,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	Type      Type           `json:"event_type"`
	NodeID    string         `json:"node_id,omitempty"`
	Status    string         `json:"status,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Stamp fills in the timestamp if unset. Exposed for tests that construct
// events directly.
func (event *Event) Stamp(now time.Time) {
	if event.Timestamp == 0 {
		event.Timestamp = now.UnixMilli()
	}
}
