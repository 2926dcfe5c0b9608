package flow

// Request is the raw graph description submitted by the UI or API. It is
// validated against an embedded JSON schema (see schema.go) before the
// loader performs structural checks.
type Request struct {
	Nodes []NodeRec `json:"nodes"`
	Edges []EdgeRec `json:"edges"`

	// ChatInputOverride, when set, replaces the text of the chat-input
	// node. Used by API-triggered runs where the message does not come
	// from the UI chat box.
	ChatInputOverride string `json:"chat_input_override,omitempty"`
}

// NodeRec is one node of the raw request.
type NodeRec struct {
	ID   string   `json:"id"`
	Type string   `json:"type"`
	Data NodeData `json:"data"`
}

// NodeData carries the user-assigned values of a node record.
type NodeData struct {
	InputValues map[string]any `json:"input_values,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Label       string         `json:"label,omitempty"`
}

// EdgeRec is one edge of the raw request. Handle names may carry a
// trailing -index<N> disambiguator added by the UI for repeated handles;
// the loader strips it before matching.
type EdgeRec struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"source_handle"`
	TargetHandle string `json:"target_handle"`

	// Condition is an optional boolean expression gating the edge,
	// evaluated against the source handle's output during propagation.
	Condition string `json:"condition,omitempty"`
}
