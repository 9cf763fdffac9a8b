package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/meikuraledutech/flow"
)

// SaveWorkflow saves a full workflow (nodes + edges) in one transaction,
// replacing any previous version with the same ID.
// The workflow, nodes and edges without IDs get auto-generated UUIDs.
// Node and edge order is preserved.
func (s *PGStore) SaveWorkflow(ctx context.Context, w *flow.Workflow) (*flow.Workflow, error) {
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

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("flow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO flow_workflows (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()`,
		w.ID, w.Name,
	); err != nil {
		return nil, fmt.Errorf("flow: upsert workflow: %w", err)
	}

	// Replace semantics for the graph itself.
	if _, err := tx.Exec(ctx, `DELETE FROM flow_edges WHERE workflow_id = $1`, w.ID); err != nil {
		return nil, fmt.Errorf("flow: delete edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM flow_nodes WHERE workflow_id = $1`, w.ID); err != nil {
		return nil, fmt.Errorf("flow: delete nodes: %w", err)
	}

	for i, n := range w.Nodes {
		data, err := json.Marshal(n.Data)
		if err != nil {
			return nil, fmt.Errorf("flow: encode node %s: %w", n.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO flow_nodes (workflow_id, id, ord, type, data, x, y) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			w.ID, n.ID, i, string(n.Type), json.RawMessage(data), n.Position.X, n.Position.Y,
		); err != nil {
			return nil, fmt.Errorf("flow: insert node %s: %w", n.ID, err)
		}
	}

	for i, e := range w.Edges {
		if _, err := tx.Exec(ctx,
			`INSERT INTO flow_edges (workflow_id, id, ord, source, target) VALUES ($1, $2, $3, $4, $5)`,
			w.ID, e.ID, i, e.Source, e.Target,
		); err != nil {
			return nil, fmt.Errorf("flow: insert edge %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("flow: commit: %w", err)
	}

	return w, nil
}

// GetWorkflow retrieves a full workflow (nodes + edges) by its ID.
// Returns nil, nil if the workflow doesn't exist.
func (s *PGStore) GetWorkflow(ctx context.Context, workflowID string) (*flow.Workflow, error) {
	w := &flow.Workflow{ID: workflowID, Nodes: []flow.Node{}, Edges: []flow.Edge{}}

	err := s.db.QueryRow(ctx, `SELECT name FROM flow_workflows WHERE id = $1`, workflowID).Scan(&w.Name)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("flow: get workflow: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, type, data, x, y FROM flow_nodes WHERE workflow_id = $1 ORDER BY ord`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("flow: query nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			n    flow.Node
			typ  string
			data []byte
		)
		if err := rows.Scan(&n.ID, &typ, &data, &n.Position.X, &n.Position.Y); err != nil {
			return nil, fmt.Errorf("flow: scan node: %w", err)
		}
		n.Type = flow.NodeType(typ)
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, fmt.Errorf("flow: decode node %s: %w", n.ID, err)
		}
		w.Nodes = append(w.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows nodes: %w", err)
	}

	rows, err = s.db.Query(ctx,
		`SELECT id, source, target FROM flow_edges WHERE workflow_id = $1 ORDER BY ord`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("flow: query edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e flow.Edge
		if err := rows.Scan(&e.ID, &e.Source, &e.Target); err != nil {
			return nil, fmt.Errorf("flow: scan edge: %w", err)
		}
		w.Edges = append(w.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows edges: %w", err)
	}

	return w, nil
}

// DeleteWorkflow removes a workflow; its nodes and edges cascade.
// No error if the workflow doesn't exist.
func (s *PGStore) DeleteWorkflow(ctx context.Context, workflowID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM flow_workflows WHERE id = $1`, workflowID); err != nil {
		return fmt.Errorf("flow: delete workflow: %w", err)
	}
	return nil
}
