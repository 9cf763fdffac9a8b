package flow

import (
	"context"
	"time"
)

// Store defines the contract for persisting and retrieving saved workflows.
// Getters return nil, nil when nothing matches; deletes of missing rows succeed.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Workflows (bulk, replace semantics)
	SaveWorkflow(ctx context.Context, w *Workflow) (*Workflow, error)
	GetWorkflow(ctx context.Context, workflowID string) (*Workflow, error)
	DeleteWorkflow(ctx context.Context, workflowID string) error

	// Nodes
	DeleteNode(ctx context.Context, nodeID string) error
}

// RunStore records run lifecycles and their event history.
// FinishRun returns ErrRunNotFound for an unknown execution id.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, executionID string, status RunStatus, at time.Time) error
	GetRun(ctx context.Context, executionID string) (*Run, error)
	AppendEvent(ctx context.Context, ev Event) error
	ListEvents(ctx context.Context, executionID string) ([]Event, error)
}
