package run

import (
	"time"
)

// NodeResult records one node's outcome within a run.
type NodeResult struct {
	NodeID        string         `json:"node_id"`
	Success       bool           `json:"success"`
	Skipped       bool           `json:"skipped,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	Error         string         `json:"error,omitempty"`
	ErrorKind     string         `json:"error_kind,omitempty"`
	ExecutionTime float64        `json:"execution_time"`
}

// ChatOutput is the extracted chat-output content of a run, when the graph
// contains a chat-output node.
type ChatOutput struct {
	Content string `json:"content"`
}

// Result is the aggregate outcome of a run, mirroring the wire shape of
// the final execution result.
type Result struct {
	Success        bool         `json:"success"`
	TotalNodes     int          `json:"total_nodes"`
	CompletedNodes int          `json:"completed_nodes"`
	TotalLayers    int          `json:"total_layers"`
	ExecutionTime  float64      `json:"execution_time"`
	Results        []NodeResult `json:"results"`
	ChatOutput     *ChatOutput  `json:"chat_output,omitempty"`
	Ancestors      []string     `json:"ancestors,omitempty"`

	// FailedLayer and FailedNodes identify the failure for FLOW_FAILED
	// payloads. FailedLayer is nil on success so successful results carry
	// no failure fields on the wire.
	FailedLayer *int     `json:"failed_layer,omitempty"`
	FailedNodes []string `json:"failed_nodes,omitempty"`
}

func newResult() *Result {
	return &Result{}
}

// finish stamps the total wall-clock duration.
func (result *Result) finish(start time.Time) {
	result.ExecutionTime = time.Since(start).Seconds()
}

// flowEndedData shapes the result into the FLOW_ENDED event payload.
func (result *Result) flowEndedData() map[string]any {
	data := map[string]any{
		"total_nodes":            result.TotalNodes,
		"completed_nodes":        result.CompletedNodes,
		"total_layers":           result.TotalLayers,
		"execution_time_seconds": result.ExecutionTime,
		"results":                result.Results,
	}
	if result.ChatOutput != nil {
		data["chat_output"] = result.ChatOutput
	}
	return data
}

// flowFailedData shapes the result into the FLOW_FAILED event payload.
func (result *Result) flowFailedData() map[string]any {
	data := map[string]any{
		"failed_nodes": result.FailedNodes,
	}
	if result.FailedLayer != nil {
		data["failed_layer"] = *result.FailedLayer
	}
	return data
}
