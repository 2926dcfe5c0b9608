package flow

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/expr-lang/expr"
	"github.com/rs/zerolog"

	"github.com/flowgrid/flowgrid/core/handle"
	"github.com/flowgrid/flowgrid/core/node"
)

// ErrInvalidEdge covers every edge rejection: unknown handles, incompatible
// handle kinds, edges into handles that refuse them, and duplicate incoming
// edges on single-edge handles. Fatal to the run.
var ErrInvalidEdge = fmt.Errorf("invalid edge")

// handleIndexSuffix matches the -index<N> disambiguator the UI appends to
// repeated handle names.
var handleIndexSuffix = regexp.MustCompile(`-index\d+$`)

// StripHandleIndex removes a trailing -index<N> disambiguator from a handle
// name, returning the declared name used for spec lookups.
func StripHandleIndex(name string) string {
	return handleIndexSuffix.ReplaceAllString(name, "")
}

// Loader turns a raw Request into a validated in-memory Graph. It resolves
// node types through the registry, checks every edge against the connected
// specs and the adapter registry, and applies the chat-input override.
type Loader struct {
	registry *node.Registry
	adapters *handle.AdapterRegistry
	logger   zerolog.Logger
}

// NewLoader creates a loader bound to a node registry and adapter registry.
func NewLoader(registry *node.Registry, adapters *handle.AdapterRegistry, logger zerolog.Logger) *Loader {
	return &Loader{
		registry: registry,
		adapters: adapters,
		logger:   logger.With().Str("component", "flow_loader").Logger(),
	}
}

// LoadJSON validates a raw request document against the request schema,
// decodes it, and loads it. This is the entry point for API payloads.
func (loader *Loader) LoadJSON(raw []byte) (*Graph, error) {
	if err := ValidateRequestJSON(raw); err != nil {
		return nil, err
	}

	var request Request
	if err := json.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	return loader.Load(&request)
}

// Load builds the graph from an already-decoded request.
func (loader *Loader) Load(request *Request) (*Graph, error) {
	graph := NewGraph()

	for _, record := range request.Nodes {
		entry, err := loader.loadNode(record)
		if err != nil {
			return nil, err
		}
		if err := graph.AddEntry(entry); err != nil {
			return nil, err
		}
	}

	for _, record := range request.Edges {
		edge, err := loader.loadEdge(graph, record)
		if err != nil {
			return nil, err
		}
		if err := graph.AddEdge(edge); err != nil {
			return nil, err
		}
	}

	if request.ChatInputOverride != "" {
		loader.applyChatInputOverride(graph, request.ChatInputOverride)
	}

	loader.logger.Debug().
		Int("nodes", graph.Len()).
		Int("edges", graph.EdgeCount()).
		Msg("graph loaded")

	return graph, nil
}

// loadNode resolves a node record's type through the registry and attaches
// the user-assigned values.
func (loader *Loader) loadNode(record NodeRec) (*Entry, error) {
	instance, err := loader.registry.New(record.Type)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", record.ID, err)
	}

	data := node.NewData()
	for name, value := range record.Data.InputValues {
		data.Inputs[name] = value
	}
	for name, value := range record.Data.Parameters {
		data.Params[name] = value
	}
	data.Label = record.Data.Label

	return &Entry{
		ID:       record.ID,
		TypeName: record.Type,
		Spec:     instance.Spec(),
		Data:     data,
	}, nil
}

// loadEdge validates an edge record against the connected specs, the
// adapter registry, and the target handle's acceptance rules.
func (loader *Loader) loadEdge(graph *Graph, record EdgeRec) (*Edge, error) {
	source, exists := graph.Entry(record.Source)
	if !exists {
		return nil, fmt.Errorf("%w: edge %s references unknown source node %q", ErrInvalidEdge, record.ID, record.Source)
	}
	target, exists := graph.Entry(record.Target)
	if !exists {
		return nil, fmt.Errorf("%w: edge %s references unknown target node %q", ErrInvalidEdge, record.ID, record.Target)
	}

	sourceHandleName := StripHandleIndex(record.SourceHandle)
	targetHandleName := StripHandleIndex(record.TargetHandle)

	sourceOutput, exists := source.Spec.Output(sourceHandleName)
	if !exists {
		return nil, fmt.Errorf("%w: edge %s references unknown output %q on node %q",
			ErrInvalidEdge, record.ID, sourceHandleName, record.Source)
	}
	targetInput, exists := target.Spec.Input(targetHandleName)
	if !exists {
		return nil, fmt.Errorf("%w: edge %s references unknown input %q on node %q",
			ErrInvalidEdge, record.ID, targetHandleName, record.Target)
	}

	if !targetInput.Handle.AllowIncomingEdges {
		return nil, fmt.Errorf("%w: input %q on node %q does not accept incoming edges",
			ErrInvalidEdge, targetHandleName, record.Target)
	}

	if !targetInput.Handle.AllowMultipleIncomingEdges {
		for _, existing := range graph.InEdges(record.Target) {
			if existing.TargetHandle == targetHandleName {
				return nil, fmt.Errorf("%w: input %q on node %q already has an incoming edge",
					ErrInvalidEdge, targetHandleName, record.Target)
			}
		}
	}

	if !loader.adapters.Compatible(sourceOutput.Handle.Kind, targetInput.Handle.Kind) {
		return nil, fmt.Errorf("%w: edge %s connects incompatible kinds %s -> %s",
			ErrInvalidEdge, record.ID, sourceOutput.Handle.Kind, targetInput.Handle.Kind)
	}

	edge := &Edge{
		ID:           record.ID,
		Source:       record.Source,
		Target:       record.Target,
		SourceHandle: sourceHandleName,
		TargetHandle: targetHandleName,
	}

	if record.Condition != "" {
		program, err := expr.Compile(record.Condition, expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("%w: edge %s has an invalid condition %q: %v",
				ErrInvalidEdge, record.ID, record.Condition, err)
		}
		edge.condition = program
		edge.conditionSource = record.Condition
	}

	return edge, nil
}

// applyChatInputOverride replaces the text input of the chat-input node.
// The node is located by label first, then by type name.
func (loader *Loader) applyChatInputOverride(graph *Graph, override string) {
	entry := graph.FindByLabel(LabelChatInput)
	if entry == nil {
		for _, id := range graph.NodeIDs() {
			candidate, _ := graph.Entry(id)
			if candidate.TypeName == LabelChatInput {
				entry = candidate
				break
			}
		}
	}
	if entry == nil {
		loader.logger.Warn().Msg("chat_input_override set but graph has no chat-input node")
		return
	}

	entry.Data.Inputs["text"] = override
	loader.logger.Debug().Str("node_id", entry.ID).Msg("chat input overridden")
}
