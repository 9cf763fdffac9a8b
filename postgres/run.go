package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meikuraledutech/flow"
)

// CreateRun records a run and its graph snapshot.
func (s *PGStore) CreateRun(ctx context.Context, run *flow.Run) error {
	graph, err := json.Marshal(flow.Graph{Nodes: run.Nodes, Edges: run.Edges})
	if err != nil {
		return fmt.Errorf("flow: encode run graph: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO flow_runs (execution_id, workflow_id, status, graph, started_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ExecutionID, run.WorkflowID, string(run.Status), json.RawMessage(graph), run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("flow: insert run: %w", err)
	}
	return nil
}

// FinishRun stores a run's terminal status.
// Returns ErrRunNotFound if the run doesn't exist.
func (s *PGStore) FinishRun(ctx context.Context, executionID string, status flow.RunStatus, at time.Time) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE flow_runs SET status = $1, finished_at = $2 WHERE execution_id = $3`,
		string(status), at, executionID,
	)
	if err != nil {
		return fmt.Errorf("flow: update run: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return flow.ErrRunNotFound
	}
	return nil
}

// GetRun fetches a run by its execution ID.
// Returns nil, nil if not found.
func (s *PGStore) GetRun(ctx context.Context, executionID string) (*flow.Run, error) {
	var (
		r      flow.Run
		status string
		graph  []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT execution_id, workflow_id, status, graph, started_at, finished_at FROM flow_runs WHERE execution_id = $1`,
		executionID,
	).Scan(&r.ExecutionID, &r.WorkflowID, &status, &graph, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("flow: get run: %w", err)
	}

	var g flow.Graph
	if err := json.Unmarshal(graph, &g); err != nil {
		return nil, fmt.Errorf("flow: decode run graph: %w", err)
	}
	r.Status = flow.RunStatus(status)
	r.Nodes, r.Edges = g.Nodes, g.Edges
	return &r, nil
}

// AppendEvent adds an event to its run's history.
func (s *PGStore) AppendEvent(ctx context.Context, ev flow.Event) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO flow_run_events (execution_id, seq, kind, node_id, status, message, stamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ExecutionID, ev.Seq, string(ev.Kind), ev.NodeID, ev.Status, ev.Message, ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("flow: insert event: %w", err)
	}
	return nil
}

// ListEvents returns a run's events ordered by sequence number.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListEvents(ctx context.Context, executionID string) ([]flow.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT execution_id, seq, kind, node_id, status, message, stamp
		 FROM flow_run_events WHERE execution_id = $1 ORDER BY seq`, executionID)
	if err != nil {
		return nil, fmt.Errorf("flow: list events: %w", err)
	}
	defer rows.Close()

	events := []flow.Event{}
	for rows.Next() {
		var (
			ev   flow.Event
			kind string
		)
		if err := rows.Scan(&ev.ExecutionID, &ev.Seq, &kind, &ev.NodeID, &ev.Status, &ev.Message, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("flow: scan event: %w", err)
		}
		ev.Kind = flow.EventKind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows events: %w", err)
	}

	return events, nil
}
