// Package layout arranges workflow nodes on a grid by longest-path depth.
package layout

import "github.com/meikuraledutech/flow"

// Config holds the grid metrics. Positions are the top-left corners of
// XSpacing-wide slots, so each row's slots are centred on XCenter.
type Config struct {
	XSpacing float64
	YSpacing float64
	Y0       float64
	XCenter  float64
}

// DefaultConfig returns the editor's grid metrics.
func DefaultConfig() Config {
	return Config{XSpacing: 240, YSpacing: 160, Y0: 50, XCenter: 400}
}

// Levels assigns every node its longest-path depth from a root.
//
// When no node is a root (a pure cycle) the first node stands in as the only
// root. Branches that would revisit a node already on the current path are
// cut, so cyclic input always terminates.
func Levels(g flow.Graph) map[string]int {
	levels := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		levels[n.ID] = 0
	}
	if len(g.Nodes) == 0 {
		return levels
	}

	roots := g.Roots()
	if len(roots) == 0 {
		roots = g.Nodes[:1]
	}
	children := childIndex(g)
	for _, r := range roots {
		walk(r.ID, children, levels)
	}
	return levels
}

type frame struct {
	id   string
	next int
}

// walk is an iterative depth-first relaxation from root. A child is only
// descended into when its level grows, which is exactly when its subtree
// can change.
func walk(root string, children map[string][]string, levels map[string]int) {
	onPath := map[string]bool{root: true}
	stack := []*frame{{id: root}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		kids := children[top.id]
		if top.next >= len(kids) {
			delete(onPath, top.id)
			stack = stack[:len(stack)-1]
			continue
		}
		child := kids[top.next]
		top.next++

		if onPath[child] {
			continue
		}
		lvl := levels[top.id] + 1
		if lvl <= levels[child] {
			continue
		}
		levels[child] = lvl
		onPath[child] = true
		stack = append(stack, &frame{id: child})
	}
}

func childIndex(g flow.Graph) map[string][]string {
	idx := make(map[string][]string, len(g.Nodes))
	for _, n := range g.Nodes {
		idx[n.ID] = g.Children(n.ID)
	}
	return idx
}

// Compute returns the position of every node. It is a pure function of the
// graph's node and edge order and never mutates g.
func Compute(g flow.Graph, cfg Config) map[string]flow.Position {
	levels := Levels(g)

	// Group by level, keeping submission order inside each row.
	rows := make(map[int][]string)
	for _, n := range g.Nodes {
		lvl := levels[n.ID]
		rows[lvl] = append(rows[lvl], n.ID)
	}

	positions := make(map[string]flow.Position, len(g.Nodes))
	for lvl, ids := range rows {
		rowWidth := float64(len(ids)) * cfg.XSpacing
		xStart := cfg.XCenter - rowWidth/2
		y := cfg.Y0 + float64(lvl)*cfg.YSpacing
		for i, id := range ids {
			positions[id] = flow.Position{X: xStart + float64(i)*cfg.XSpacing, Y: y}
		}
	}
	return positions
}

// Apply returns a copy of g with every node moved to its computed position.
func Apply(g flow.Graph, cfg Config) flow.Graph {
	out := g.Clone()
	positions := Compute(out, cfg)
	for i := range out.Nodes {
		out.Nodes[i].Position = positions[out.Nodes[i].ID]
	}
	return out
}
