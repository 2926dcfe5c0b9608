package flow

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/flowgrid/flowgrid/core/node"
)

// Node labels with engine-level meaning. Labels come from the UI via the
// node record's data and select special executor behavior.
const (
	// LabelRouter marks a node whose output selects a subset of its
	// outgoing edges by edge id.
	LabelRouter = "router"

	// LabelChatInput marks the node whose output may be overridden with a
	// custom text for API-triggered runs.
	LabelChatInput = "chat-input"

	// LabelChatOutput marks the node whose message_in input becomes the
	// run's chat output.
	LabelChatOutput = "chat-output"
)

// Reserved keys of the router contract between the executor and router
// node implementations.
const (
	// RouterEdgeIDsInput is the synthetic input the executor injects before
	// running a router node: the comma-joined list of its outgoing edge ids.
	RouterEdgeIDsInput = "__outgoing_edge_ids"

	// RouterValueKey is the key under which a router's output record
	// carries the value to propagate along selected branches.
	RouterValueKey = "route_value"

	// RouterDecisionsKey is the key under which a router's output record
	// carries the list of selected edge ids.
	RouterDecisionsKey = "route_label_decisions"
)

// Edge is a directed connection from a source node's output handle to a
// target node's input handle. Edges are values owned by the graph; the
// handle names are stored with any -index<N> disambiguator already
// stripped.
type Edge struct {
	ID           string
	Source       string
	Target       string
	SourceHandle string
	TargetHandle string

	// condition is the optional compiled edge condition. A nil condition
	// means the edge is always active.
	condition       *vm.Program
	conditionSource string
}

// HasCondition reports whether the edge carries a condition expression.
func (edge *Edge) HasCondition() bool {
	return edge.condition != nil
}

// EvaluateCondition runs the edge's compiled condition against the source
// node's output. The expression environment exposes "output" (the value on
// the source handle) and "node" (the source node id). An edge without a
// condition is always active.
func (edge *Edge) EvaluateCondition(output any) (bool, error) {
	if edge.condition == nil {
		return true, nil
	}

	result, err := expr.Run(edge.condition, map[string]any{
		"output": output,
		"node":   edge.Source,
	})
	if err != nil {
		return false, fmt.Errorf("evaluating condition %q on edge %s: %w", edge.conditionSource, edge.ID, err)
	}

	passed, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("condition %q on edge %s must return a boolean, got %T", edge.conditionSource, edge.ID, result)
	}
	return passed, nil
}

// Entry is a node's representation inside a graph: its identity, type tag,
// spec, and per-run data. The concrete node implementation is not stored
// here; the executor re-resolves it through the registry at execution time,
// which keeps graph entries free of reference cycles.
type Entry struct {
	ID       string
	TypeName string
	Spec     *node.Spec
	Data     *node.Data
}

// Graph is a directed multigraph of node entries. Parallel edges between
// the same node pair are permitted on distinct handles. The zero value is
// not usable; construct with NewGraph.
type Graph struct {
	entries  map[string]*Entry
	order    []string
	outEdges map[string][]*Edge
	inEdges  map[string][]*Edge

	edgeCount int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		entries:  make(map[string]*Entry),
		outEdges: make(map[string][]*Edge),
		inEdges:  make(map[string][]*Edge),
	}
}

// AddEntry inserts a node entry. Duplicate ids are rejected.
func (graph *Graph) AddEntry(entry *Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("node id must not be empty")
	}
	if _, exists := graph.entries[entry.ID]; exists {
		return fmt.Errorf("duplicate node id %q", entry.ID)
	}
	graph.entries[entry.ID] = entry
	graph.order = append(graph.order, entry.ID)
	return nil
}

// AddEdge inserts an edge. Both endpoints must already exist.
func (graph *Graph) AddEdge(edge *Edge) error {
	if _, exists := graph.entries[edge.Source]; !exists {
		return fmt.Errorf("edge %s references unknown source node %q", edge.ID, edge.Source)
	}
	if _, exists := graph.entries[edge.Target]; !exists {
		return fmt.Errorf("edge %s references unknown target node %q", edge.ID, edge.Target)
	}
	graph.outEdges[edge.Source] = append(graph.outEdges[edge.Source], edge)
	graph.inEdges[edge.Target] = append(graph.inEdges[edge.Target], edge)
	graph.edgeCount++
	return nil
}

// Entry returns the entry with the given id.
func (graph *Graph) Entry(id string) (*Entry, bool) {
	entry, exists := graph.entries[id]
	return entry, exists
}

// NodeIDs returns all node ids in insertion order.
func (graph *Graph) NodeIDs() []string {
	ids := make([]string, len(graph.order))
	copy(ids, graph.order)
	return ids
}

// Len returns the number of nodes.
func (graph *Graph) Len() int {
	return len(graph.entries)
}

// EdgeCount returns the number of edges.
func (graph *Graph) EdgeCount() int {
	return graph.edgeCount
}

// OutEdges returns the outgoing edges of a node.
func (graph *Graph) OutEdges(id string) []*Edge {
	return graph.outEdges[id]
}

// InEdges returns the incoming edges of a node.
func (graph *Graph) InEdges(id string) []*Edge {
	return graph.inEdges[id]
}

// Predecessors returns the distinct direct predecessors of a node.
func (graph *Graph) Predecessors(id string) []string {
	seen := make(map[string]bool)
	predecessors := make([]string, 0)
	for _, edge := range graph.inEdges[id] {
		if !seen[edge.Source] {
			seen[edge.Source] = true
			predecessors = append(predecessors, edge.Source)
		}
	}
	return predecessors
}

// Successors returns the distinct direct successors of a node.
func (graph *Graph) Successors(id string) []string {
	seen := make(map[string]bool)
	successors := make([]string, 0)
	for _, edge := range graph.outEdges[id] {
		if !seen[edge.Target] {
			seen[edge.Target] = true
			successors = append(successors, edge.Target)
		}
	}
	return successors
}

// Ancestors returns every node from which the given node is reachable,
// in no particular order.
func (graph *Graph) Ancestors(id string) []string {
	visited := make(map[string]bool)
	frontier := []string{id}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for _, predecessor := range graph.Predecessors(current) {
			if !visited[predecessor] {
				visited[predecessor] = true
				frontier = append(frontier, predecessor)
			}
		}
	}

	ancestors := make([]string, 0, len(visited))
	for _, candidate := range graph.order {
		if visited[candidate] {
			ancestors = append(ancestors, candidate)
		}
	}
	return ancestors
}

// Descendants returns every node reachable from the given node, in no
// particular order.
func (graph *Graph) Descendants(id string) []string {
	visited := make(map[string]bool)
	frontier := []string{id}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for _, successor := range graph.Successors(current) {
			if !visited[successor] {
				visited[successor] = true
				frontier = append(frontier, successor)
			}
		}
	}

	descendants := make([]string, 0, len(visited))
	for _, candidate := range graph.order {
		if visited[candidate] {
			descendants = append(descendants, candidate)
		}
	}
	return descendants
}

// Standalone reports whether a node has no incident edges.
func (graph *Graph) Standalone(id string) bool {
	return len(graph.inEdges[id]) == 0 && len(graph.outEdges[id]) == 0
}

// FindByLabel returns the first entry (in insertion order) whose data label
// matches, or nil.
func (graph *Graph) FindByLabel(label string) *Entry {
	for _, id := range graph.order {
		if graph.entries[id].Data.Label == label {
			return graph.entries[id]
		}
	}
	return nil
}
