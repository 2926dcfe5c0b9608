package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/core/flow"
	"github.com/flowgrid/flowgrid/core/node"
)

func buildGraph(t *testing.T, nodeIDs []string, edges [][2]string) *flow.Graph {
	t.Helper()
	graph := flow.NewGraph()

	for _, id := range nodeIDs {
		require.NoError(t, graph.AddEntry(&flow.Entry{ID: id, Spec: &node.Spec{Name: id}, Data: node.NewData()}))
	}
	for index, pair := range edges {
		require.NoError(t, graph.AddEdge(&flow.Edge{
			ID:           "e" + string(rune('0'+index)),
			Source:       pair[0],
			Target:       pair[1],
			SourceHandle: "out",
			TargetHandle: "in",
		}))
	}
	return graph
}

func TestCompileDiamond(t *testing.T) {
	//   a -> b -> d
	//   a -> c -> d
	graph := buildGraph(t, []string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}})

	compiled, err := Compile(graph, Options{})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, compiled.Layers())
	assert.Equal(t, 3, compiled.LayerCount())
	assert.Equal(t, 4, compiled.NodeCount())

	layer, exists := compiled.LayerOf("c")
	require.True(t, exists)
	assert.Equal(t, 1, layer)
	assert.True(t, compiled.Contains("d"))
	assert.False(t, compiled.Contains("ghost"))
}

func TestCompileEveryEdgeCrossesLayersForward(t *testing.T) {
	graph := buildGraph(t, []string{"a", "b", "c", "d", "e"},
		[][2]string{{"a", "c"}, {"b", "c"}, {"c", "d"}, {"a", "e"}, {"d", "e"}})

	compiled, err := Compile(graph, Options{})
	require.NoError(t, err)

	for _, nodeID := range graph.NodeIDs() {
		for _, edge := range graph.OutEdges(nodeID) {
			sourceLayer, _ := compiled.LayerOf(edge.Source)
			targetLayer, _ := compiled.LayerOf(edge.Target)
			assert.Less(t, sourceLayer, targetLayer, "edge %s -> %s", edge.Source, edge.Target)
		}
	}
}

func TestCompileDeterministic(t *testing.T) {
	build := func() *flow.Graph {
		return buildGraph(t, []string{"n1", "n2", "n3", "n4"},
			[][2]string{{"n1", "n3"}, {"n2", "n3"}, {"n2", "n4"}})
	}

	first, err := Compile(build(), Options{})
	require.NoError(t, err)
	second, err := Compile(build(), Options{})
	require.NoError(t, err)

	assert.Equal(t, first.Layers(), second.Layers())
	// Intra-layer order follows graph insertion order.
	assert.Equal(t, []string{"n1", "n2"}, first.Layer(0))
}

func TestCompileEmptyGraph(t *testing.T) {
	_, err := Compile(flow.NewGraph(), Options{})
	assert.ErrorIs(t, err, ErrEmptyGraph)
}

func TestCompileCycle(t *testing.T) {
	graph := buildGraph(t, []string{"a", "b", "c"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}})

	_, err := Compile(graph, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotADAG)
}

func TestCompileSelfLoop(t *testing.T) {
	graph := buildGraph(t, []string{"a"}, [][2]string{{"a", "a"}})

	_, err := Compile(graph, Options{})
	assert.ErrorIs(t, err, ErrNotADAG)
}

func TestCompileRemoveStandalone(t *testing.T) {
	graph := buildGraph(t, []string{"a", "b", "lonely"}, [][2]string{{"a", "b"}})

	compiled, err := Compile(graph, Options{RemoveStandalone: true})
	require.NoError(t, err)
	assert.Equal(t, 2, compiled.NodeCount())
	assert.False(t, compiled.Contains("lonely"))

	// Without the pre-pass the standalone node lands in layer 0.
	compiled, err = Compile(graph, Options{})
	require.NoError(t, err)
	assert.True(t, compiled.Contains("lonely"))
	layer, _ := compiled.LayerOf("lonely")
	assert.Equal(t, 0, layer)
}

func TestCompileOnlyStandaloneNodes(t *testing.T) {
	graph := buildGraph(t, []string{"a", "b"}, nil)

	_, err := Compile(graph, Options{RemoveStandalone: true})
	assert.ErrorIs(t, err, ErrEmptyGraph)
}

func TestStats(t *testing.T) {
	graph := buildGraph(t, []string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}})

	compiled, err := Compile(graph, Options{})
	require.NoError(t, err)

	stats := compiled.Stats(graph.EdgeCount())
	assert.Equal(t, 4, stats.TotalNodes)
	assert.Equal(t, 4, stats.TotalEdges)
	assert.Equal(t, 3, stats.LayerCount)
	assert.Equal(t, 2, stats.MaxLayerWidth)
	assert.Equal(t, 1, stats.MinLayerWidth)
	assert.InDelta(t, 4.0/3.0, stats.AvgLayerWidth, 0.001)
	assert.Equal(t, []int{1, 2, 1}, stats.LayerSizes)
}

func TestDescribe(t *testing.T) {
	graph := buildGraph(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"a", "c"}})

	compiled, err := Compile(graph, Options{})
	require.NoError(t, err)
	assert.Equal(t, "[a] -> [b c]", compiled.Describe())
}
