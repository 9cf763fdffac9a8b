package layout

import (
	"testing"

	"github.com/meikuraledutech/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graph(ids []string, edges ...[2]string) flow.Graph {
	g := flow.Graph{}
	for _, id := range ids {
		g.Nodes = append(g.Nodes, flow.Node{ID: id, Type: flow.NodeAction})
	}
	for _, e := range edges {
		g.Edges = append(g.Edges, flow.Edge{Source: e[0], Target: e[1]})
	}
	return g
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name  string
		graph flow.Graph
		want  map[string]int
	}{
		{
			name:  "chain",
			graph: graph([]string{"A", "B", "C"}, [2]string{"A", "B"}, [2]string{"B", "C"}),
			want:  map[string]int{"A": 0, "B": 1, "C": 2},
		},
		{
			name: "diamond",
			graph: graph([]string{"A", "B", "C", "D"},
				[2]string{"A", "B"}, [2]string{"A", "C"}, [2]string{"B", "D"}, [2]string{"C", "D"}),
			want: map[string]int{"A": 0, "B": 1, "C": 1, "D": 2},
		},
		{
			name: "longest path wins over first arrival",
			graph: graph([]string{"A", "B", "C", "D"},
				[2]string{"A", "D"}, [2]string{"A", "B"}, [2]string{"B", "C"}, [2]string{"C", "D"}),
			want: map[string]int{"A": 0, "B": 1, "C": 2, "D": 3},
		},
		{
			name:  "pure cycle falls back to first node",
			graph: graph([]string{"A", "B"}, [2]string{"A", "B"}, [2]string{"B", "A"}),
			want:  map[string]int{"A": 0, "B": 1},
		},
		{
			name: "cycle below a root",
			graph: graph([]string{"R", "X", "Y"},
				[2]string{"R", "X"}, [2]string{"X", "Y"}, [2]string{"Y", "X"}),
			want: map[string]int{"R": 0, "X": 1, "Y": 2},
		},
		{
			name:  "self loop",
			graph: graph([]string{"A", "B"}, [2]string{"A", "B"}, [2]string{"B", "B"}),
			want:  map[string]int{"A": 0, "B": 1},
		},
		{
			name:  "disconnected components",
			graph: graph([]string{"A", "B", "C"}, [2]string{"A", "B"}),
			want:  map[string]int{"A": 0, "B": 1, "C": 0},
		},
		{
			name:  "dangling edge",
			graph: graph([]string{"A"}, [2]string{"A", "ghost"}, [2]string{"ghost", "A"}),
			want:  map[string]int{"A": 0},
		},
		{
			name:  "empty",
			graph: flow.Graph{},
			want:  map[string]int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Levels(tt.graph))
		})
	}
}

func TestCompute_ChainIsCentredColumn(t *testing.T) {
	g := graph([]string{"A", "B", "C"}, [2]string{"A", "B"}, [2]string{"B", "C"})
	pos := Compute(g, DefaultConfig())

	assert.Equal(t, flow.Position{X: 280, Y: 50}, pos["A"])
	assert.Equal(t, flow.Position{X: 280, Y: 210}, pos["B"])
	assert.Equal(t, flow.Position{X: 280, Y: 370}, pos["C"])
}

func TestCompute_RowCentring(t *testing.T) {
	g := graph([]string{"R", "A", "B", "C"}, [2]string{"R", "A"}, [2]string{"R", "B"}, [2]string{"R", "C"})
	cfg := DefaultConfig()
	pos := Compute(g, cfg)

	xs := []float64{pos["A"].X, pos["B"].X, pos["C"].X}
	assert.Equal(t, []float64{40, 280, 520}, xs)
	assert.Equal(t, cfg.XSpacing, xs[1]-xs[0])
	assert.Equal(t, cfg.XSpacing, xs[2]-xs[1])

	// Slot centres are symmetric around XCenter.
	half := cfg.XSpacing / 2
	assert.Equal(t, cfg.XCenter, xs[1]+half)
	assert.Equal(t, cfg.XCenter-(xs[0]+half), (xs[2]+half)-cfg.XCenter)

	for _, id := range []string{"A", "B", "C"} {
		assert.Equal(t, 210.0, pos[id].Y)
	}
}

func TestCompute_CycleTerminatesDeterministically(t *testing.T) {
	g := graph([]string{"A", "B"}, [2]string{"A", "B"}, [2]string{"B", "A"})

	first := Compute(g, DefaultConfig())
	require.Len(t, first, 2)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Compute(g, DefaultConfig()))
	}
	assert.Equal(t, flow.Position{X: 280, Y: 50}, first["A"])
	assert.Equal(t, flow.Position{X: 280, Y: 210}, first["B"])
}

func TestCompute_CustomConfig(t *testing.T) {
	g := graph([]string{"A", "B"})
	pos := Compute(g, Config{XSpacing: 100, YSpacing: 10, Y0: 0, XCenter: 0})

	assert.Equal(t, flow.Position{X: -100, Y: 0}, pos["A"])
	assert.Equal(t, flow.Position{X: 0, Y: 0}, pos["B"])
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	g := graph([]string{"A", "B"}, [2]string{"A", "B"})
	g.Nodes[0].Position = flow.Position{X: 1, Y: 1}

	out := Apply(g, DefaultConfig())

	assert.Equal(t, flow.Position{X: 1, Y: 1}, g.Nodes[0].Position)
	assert.Equal(t, flow.Position{X: 280, Y: 50}, out.Nodes[0].Position)
	assert.Equal(t, flow.Position{X: 280, Y: 210}, out.Nodes[1].Position)
}

func TestLevels_WideDAGStaysFast(t *testing.T) {
	// Layered graph where every node links to every node of the next layer.
	const layers, width = 12, 4
	g := flow.Graph{}
	id := func(l, i int) string { return string(rune('a'+l)) + string(rune('0'+i)) }
	for l := 0; l < layers; l++ {
		for i := 0; i < width; i++ {
			g.Nodes = append(g.Nodes, flow.Node{ID: id(l, i)})
			if l == 0 {
				continue
			}
			for j := 0; j < width; j++ {
				g.Edges = append(g.Edges, flow.Edge{Source: id(l-1, j), Target: id(l, i)})
			}
		}
	}

	levels := Levels(g)
	assert.Equal(t, layers-1, levels[id(layers-1, 0)])
}
