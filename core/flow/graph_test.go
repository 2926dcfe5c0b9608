package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/core/node"
)

func buildGraph(t *testing.T, nodeIDs []string, edges [][2]string) *Graph {
	t.Helper()
	graph := NewGraph()

	for _, id := range nodeIDs {
		require.NoError(t, graph.AddEntry(&Entry{ID: id, Spec: &node.Spec{Name: id}, Data: node.NewData()}))
	}
	for index, pair := range edges {
		require.NoError(t, graph.AddEdge(&Edge{
			ID:           "e" + pair[0] + pair[1] + string(rune('0'+index)),
			Source:       pair[0],
			Target:       pair[1],
			SourceHandle: "out",
			TargetHandle: "in",
		}))
	}
	return graph
}

func TestGraphRejectsDuplicateNode(t *testing.T) {
	graph := NewGraph()
	require.NoError(t, graph.AddEntry(&Entry{ID: "a", Data: node.NewData()}))
	assert.Error(t, graph.AddEntry(&Entry{ID: "a", Data: node.NewData()}))
}

func TestGraphRejectsEdgeWithUnknownEndpoint(t *testing.T) {
	graph := buildGraph(t, []string{"a"}, nil)
	assert.Error(t, graph.AddEdge(&Edge{ID: "e", Source: "a", Target: "ghost"}))
	assert.Error(t, graph.AddEdge(&Edge{ID: "e", Source: "ghost", Target: "a"}))
}

func TestGraphParallelEdges(t *testing.T) {
	// a ==> b twice on distinct handles is a legal multigraph.
	graph := buildGraph(t, []string{"a", "b"}, [][2]string{{"a", "b"}, {"a", "b"}})

	assert.Equal(t, 2, graph.EdgeCount())
	assert.Len(t, graph.OutEdges("a"), 2)
	assert.Equal(t, []string{"b"}, graph.Successors("a"))
	assert.Equal(t, []string{"a"}, graph.Predecessors("b"))
}

func TestGraphAncestorsAndDescendants(t *testing.T) {
	//   a -> b -> d
	//   a -> c -> d
	//        e (standalone)
	graph := buildGraph(t, []string{"a", "b", "c", "d", "e"},
		[][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}})

	assert.Equal(t, []string{"a", "b", "c"}, graph.Ancestors("d"))
	assert.Equal(t, []string{"b", "c", "d"}, graph.Descendants("a"))
	assert.Empty(t, graph.Ancestors("a"))
	assert.Empty(t, graph.Descendants("d"))

	assert.True(t, graph.Standalone("e"))
	assert.False(t, graph.Standalone("a"))
}

func TestGraphFindByLabel(t *testing.T) {
	graph := buildGraph(t, []string{"a", "b"}, nil)

	entryB, _ := graph.Entry("b")
	entryB.Data.Label = LabelChatOutput

	found := graph.FindByLabel(LabelChatOutput)
	require.NotNil(t, found)
	assert.Equal(t, "b", found.ID)

	assert.Nil(t, graph.FindByLabel("missing"))
}

func TestGraphNodeIDsInsertionOrder(t *testing.T) {
	graph := buildGraph(t, []string{"z", "m", "a"}, nil)
	assert.Equal(t, []string{"z", "m", "a"}, graph.NodeIDs())
}
