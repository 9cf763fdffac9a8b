package flow

// NodeType selects both how a node is rendered and what it does when run.
type NodeType string

const (
	NodeStart  NodeType = "start"
	NodeAction NodeType = "action"
	NodeEnd    NodeType = "end"
)

// NodeStatus is the transient execution status of a node. It is never persisted.
type NodeStatus string

const (
	NodeRunning   NodeStatus = "running"
	NodeCompleted NodeStatus = "completed"
)

// Position is a 2-D canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the per-type payload edited in the UI.
// Message is only meaningful for action nodes.
type NodeData struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// Node is a typed vertex of a workflow graph.
type Node struct {
	ID       string     `json:"id"`
	Type     NodeType   `json:"type"`
	Data     NodeData   `json:"data"`
	Position Position   `json:"position"`
	Status   NodeStatus `json:"status,omitempty"`
}

// Edge is a directed arc Source → Target.
type Edge struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is a snapshot of the editor: nodes and edges in submission order.
// Edges whose endpoints are not in Nodes are ignored by every query.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Workflow is a saved, named graph.
type Workflow struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Graph returns a copy of the workflow's graph.
func (w *Workflow) Graph() Graph {
	return Graph{Nodes: w.Nodes, Edges: w.Edges}.Clone()
}

// Node looks up a node by id.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// HasNode reports whether id names a node of g.
func (g Graph) HasNode(id string) bool {
	_, ok := g.Node(id)
	return ok
}

// IncomingEdges returns the edges targeting id, in insertion order.
func (g Graph) IncomingEdges(id string) []Edge {
	return g.edgesWhere(func(e Edge) bool { return e.Target == id })
}

// OutgoingEdges returns the edges leaving id, in insertion order.
func (g Graph) OutgoingEdges(id string) []Edge {
	return g.edgesWhere(func(e Edge) bool { return e.Source == id })
}

// Children returns the target ids of id's outgoing edges. Parallel edges
// yield the same child more than once.
func (g Graph) Children(id string) []string {
	out := g.OutgoingEdges(id)
	children := make([]string, 0, len(out))
	for _, e := range out {
		children = append(children, e.Target)
	}
	return children
}

// Roots returns the nodes with no incoming edge, in submission order.
func (g Graph) Roots() []Node {
	targets := make(map[string]struct{}, len(g.Edges))
	for _, e := range g.validEdges() {
		targets[e.Target] = struct{}{}
	}
	var roots []Node
	for _, n := range g.Nodes {
		if _, ok := targets[n.ID]; !ok {
			roots = append(roots, n)
		}
	}
	return roots
}

// Clone deep-copies the graph so later edits never alias into the copy.
func (g Graph) Clone() Graph {
	c := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	copy(c.Nodes, g.Nodes)
	copy(c.Edges, g.Edges)
	return c
}

// Validate rejects nodes without an id, duplicate node ids and duplicate
// edge ids. Edges may omit their id. Dangling edges are not an error.
func (g Graph) Validate() error {
	seen := make(map[string]struct{}, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.ID == "" {
			return invalidf("node %d has no id", i)
		}
		if _, dup := seen[n.ID]; dup {
			return invalidf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = struct{}{}
	}

	edges := make(map[string]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		if e.ID == "" {
			continue
		}
		if _, dup := edges[e.ID]; dup {
			return invalidf("duplicate edge id %q", e.ID)
		}
		edges[e.ID] = struct{}{}
	}
	return nil
}

func (g Graph) edgesWhere(match func(Edge) bool) []Edge {
	var out []Edge
	for _, e := range g.validEdges() {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}

func (g Graph) validEdges() []Edge {
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = struct{}{}
	}
	edges := make([]Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		_, okS := ids[e.Source]
		_, okT := ids[e.Target]
		if okS && okT {
			edges = append(edges, e)
		}
	}
	return edges
}
