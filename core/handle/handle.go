package handle

// Kind identifies the semantic type of a value flowing through a handle.
// Connection compatibility and value coercion between handles are decided
// per (source Kind, target Kind) pair by the AdapterRegistry.
type Kind string

const (
	// KindText is free-form text.
	KindText Kind = "text"

	// KindNumber is a numeric value (int or float).
	KindNumber Kind = "number"

	// KindBoolean is a true/false value.
	KindBoolean Kind = "boolean"

	// KindDropdown is a value chosen from a fixed or resolved option list.
	KindDropdown Kind = "dropdown"

	// KindSecret is a sensitive string (API keys, credentials). Values of
	// this kind must never appear in logs or events.
	KindSecret Kind = "secret"

	// KindFile is a file reference.
	KindFile Kind = "file"

	// KindDynamic accepts any value; compatibility checks always pass.
	KindDynamic Kind = "dynamic"

	// KindTable is tabular data (rows of named columns).
	KindTable Kind = "table"

	// KindKeyValue is a flat string-keyed map.
	KindKeyValue Kind = "keyvalue"

	// KindJSON is a structured value that can be offered to tools as JSON.
	KindJSON Kind = "json"

	// KindLLMProvider is a configured LLM provider reference.
	KindLLMProvider Kind = "llm-provider"

	// KindEmbeddingProvider is a configured embedding provider reference.
	KindEmbeddingProvider Kind = "embedding-provider"

	// KindRouterOutput is the routing decision emitted by a router node.
	KindRouterOutput Kind = "router-output"

	// KindAgentTool is a sibling node exposed as a tool to an agent node.
	KindAgentTool Kind = "agent-tool"
)

// ResolverType selects how a dropdown-like handle obtains its option list.
// The engine never invokes resolvers at runtime; the descriptor is serialized
// for the UI, which performs the actual option loading.
type ResolverType string

const (
	// ResolverStatic means the options are fixed at spec time.
	ResolverStatic ResolverType = "static"

	// ResolverHTTP means the UI fetches options from an HTTP endpoint.
	ResolverHTTP ResolverType = "http"

	// ResolverConditional means the option list depends on the value of
	// another handle on the same node.
	ResolverConditional ResolverType = "conditional"
)

// Resolver describes how the UI loads options for a handle. Exactly one of
// the type-specific fields is meaningful, selected by Type.
type Resolver struct {
	Type ResolverType `json:"type"`

	// Options holds the fixed option list for ResolverStatic.
	Options []Option `json:"options,omitempty"`

	// Endpoint is the HTTP endpoint for ResolverHTTP.
	Endpoint string `json:"endpoint,omitempty"`

	// DependsOn names the sibling handle whose value selects the option set
	// for ResolverConditional.
	DependsOn string `json:"depends_on,omitempty"`

	// Cases maps a DependsOn value to its option set for ResolverConditional.
	Cases map[string][]Option `json:"cases,omitempty"`
}

// Option is a single selectable entry for dropdown-like handles.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Handle describes a typed port on a node. Output handles use only the Kind
// and UI-hint fields; the acceptance fields apply to input handles.
type Handle struct {
	Kind Kind `json:"kind"`

	// UI hints. These do not affect engine behavior.
	Placeholder string  `json:"placeholder,omitempty"`
	Min         float64 `json:"min,omitempty"`
	Max         float64 `json:"max,omitempty"`

	// HideInputField hides the literal-value editor in the UI, forcing the
	// handle to be fed by an edge.
	HideInputField bool `json:"hide_input_field,omitempty"`

	// AllowIncomingEdges controls whether edges may target this handle.
	AllowIncomingEdges bool `json:"allow_incoming_edges"`

	// AllowMultipleIncomingEdges permits more than one incoming edge on the
	// same handle. Ignored when AllowIncomingEdges is false.
	AllowMultipleIncomingEdges bool `json:"allow_multiple_incoming_edges,omitempty"`

	// Resolver describes UI-driven option loading, if any.
	Resolver *Resolver `json:"resolver,omitempty"`
}

// Text returns a text handle that accepts a single incoming edge.
func Text() Handle {
	return Handle{Kind: KindText, AllowIncomingEdges: true}
}

// Number returns a number handle that accepts a single incoming edge.
func Number() Handle {
	return Handle{Kind: KindNumber, AllowIncomingEdges: true}
}

// Boolean returns a boolean handle that accepts a single incoming edge.
func Boolean() Handle {
	return Handle{Kind: KindBoolean, AllowIncomingEdges: true}
}

// Dropdown returns a dropdown handle with a static option list. Dropdowns
// are configured in the UI and do not accept incoming edges.
func Dropdown(options ...Option) Handle {
	return Handle{
		Kind:     KindDropdown,
		Resolver: &Resolver{Type: ResolverStatic, Options: options},
	}
}

// Of returns a handle of the given kind that accepts a single incoming edge.
func Of(kind Kind) Handle {
	return Handle{Kind: kind, AllowIncomingEdges: true}
}
