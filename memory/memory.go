// Package memory implements flow.Store and flow.RunStore in process memory.
// It backs the server when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meikuraledutech/flow"
)

// Store is a mutex-guarded in-memory store. The zero value is not usable;
// call New.
type Store struct {
	mu        sync.RWMutex
	workflows map[string]*flow.Workflow
	runs      map[string]*flow.Run
	events    map[string][]flow.Event
}

// New creates an empty store.
func New() *Store {
	return &Store{
		workflows: make(map[string]*flow.Workflow),
		runs:      make(map[string]*flow.Run),
		events:    make(map[string][]flow.Event),
	}
}

// CreateSchema is a no-op.
func (s *Store) CreateSchema(ctx context.Context) error { return nil }

// DropSchema discards everything.
func (s *Store) DropSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows = make(map[string]*flow.Workflow)
	s.runs = make(map[string]*flow.Run)
	s.events = make(map[string][]flow.Event)
	return nil
}

// SaveWorkflow stores a copy of w, replacing any workflow with the same id.
// Missing workflow, node and edge ids are generated.
func (s *Store) SaveWorkflow(ctx context.Context, w *flow.Workflow) (*flow.Workflow, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	for i := range w.Nodes {
		if w.Nodes[i].ID == "" {
			w.Nodes[i].ID = uuid.NewString()
		}
	}
	for i := range w.Edges {
		if w.Edges[i].ID == "" {
			w.Edges[i].ID = uuid.NewString()
		}
	}
	if err := (flow.Graph{Nodes: w.Nodes, Edges: w.Edges}).Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[w.ID] = cloneWorkflow(w)
	return w, nil
}

// GetWorkflow returns nil, nil if the workflow does not exist.
func (s *Store) GetWorkflow(ctx context.Context, workflowID string) (*flow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[workflowID]
	if !ok {
		return nil, nil
	}
	return cloneWorkflow(w), nil
}

// DeleteWorkflow removes a workflow. Unknown ids are not an error.
func (s *Store) DeleteWorkflow(ctx context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workflows, workflowID)
	return nil
}

// DeleteNode removes the node and every edge touching it from all saved
// workflows. Unknown ids are not an error.
func (s *Store) DeleteNode(ctx context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workflows {
		nodes := w.Nodes[:0]
		for _, n := range w.Nodes {
			if n.ID != nodeID {
				nodes = append(nodes, n)
			}
		}
		w.Nodes = nodes

		edges := w.Edges[:0]
		for _, e := range w.Edges {
			if e.Source != nodeID && e.Target != nodeID {
				edges = append(edges, e)
			}
		}
		w.Edges = edges
	}
	return nil
}

// CreateRun records a new run.
func (s *Store) CreateRun(ctx context.Context, run *flow.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := cloneRun(*run)
	s.runs[run.ExecutionID] = &r
	return nil
}

// FinishRun sets the terminal status of a run.
func (s *Store) FinishRun(ctx context.Context, executionID string, status flow.RunStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[executionID]
	if !ok {
		return flow.ErrRunNotFound
	}
	r.Status = status
	r.FinishedAt = &at
	return nil
}

// GetRun returns nil, nil if the run does not exist.
func (s *Store) GetRun(ctx context.Context, executionID string) (*flow.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[executionID]
	if !ok {
		return nil, nil
	}
	c := cloneRun(*r)
	return &c, nil
}

// AppendEvent adds ev to its run's history.
func (s *Store) AppendEvent(ctx context.Context, ev flow.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ExecutionID] = append(s.events[ev.ExecutionID], ev)
	return nil
}

// ListEvents returns a run's events ordered by sequence number.
// Returns an empty slice (not nil) if none were recorded.
func (s *Store) ListEvents(ctx context.Context, executionID string) ([]flow.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := append([]flow.Event{}, s.events[executionID]...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	return events, nil
}

func cloneWorkflow(w *flow.Workflow) *flow.Workflow {
	g := flow.Graph{Nodes: w.Nodes, Edges: w.Edges}.Clone()
	return &flow.Workflow{ID: w.ID, Name: w.Name, Nodes: g.Nodes, Edges: g.Edges}
}

func cloneRun(r flow.Run) flow.Run {
	g := flow.Graph{Nodes: r.Nodes, Edges: r.Edges}.Clone()
	r.Nodes, r.Edges = g.Nodes, g.Edges
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		r.FinishedAt = &t
	}
	return r
}
