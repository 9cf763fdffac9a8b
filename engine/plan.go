package engine

import (
	"fmt"
	"slices"

	"github.com/meikuraledutech/flow"
)

// Plan returns the activation sequence of g's nodes under order.
//
// OrderTopological returns flow.ErrCycleDetected (wrapped) when some nodes
// can never become ready. Edges with unknown endpoints are ignored.
func Plan(g flow.Graph, order Order) ([]flow.Node, error) {
	switch order {
	case "", OrderSubmission:
		return slices.Clone(g.Nodes), nil
	case OrderTopological:
		return topological(g)
	}
	return nil, fmt.Errorf("engine: unknown execution order %q", order)
}

// topological is Kahn's algorithm; the ready set is kept sorted by
// submission index so ties resolve in the order the user placed nodes.
func topological(g flow.Graph) ([]flow.Node, error) {
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.ID] = i
	}

	indeg := make([]int, len(g.Nodes))
	out := make([][]int, len(g.Nodes))
	for _, e := range g.Edges {
		s, okS := index[e.Source]
		t, okT := index[e.Target]
		if !okS || !okT {
			continue
		}
		out[s] = append(out[s], t)
		indeg[t]++
	}

	var ready []int
	for i, d := range indeg {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	plan := make([]flow.Node, 0, len(g.Nodes))
	for len(ready) > 0 {
		u := ready[0]
		ready = ready[1:]
		plan = append(plan, g.Nodes[u])
		for _, v := range out[u] {
			indeg[v]--
			if indeg[v] == 0 {
				pos, _ := slices.BinarySearch(ready, v)
				ready = slices.Insert(ready, pos, v)
			}
		}
	}

	if len(plan) < len(g.Nodes) {
		var stuck []string
		for i, d := range indeg {
			if d > 0 {
				stuck = append(stuck, g.Nodes[i].ID)
			}
		}
		return nil, flow.CycleError(stuck)
	}
	return plan, nil
}
