package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS flow_workflows (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS flow_nodes (
    workflow_id TEXT NOT NULL REFERENCES flow_workflows(id) ON DELETE CASCADE,
    id          TEXT NOT NULL,
    ord         INT  NOT NULL,
    type        TEXT NOT NULL,
    data        JSONB NOT NULL DEFAULT '{}',
    x           DOUBLE PRECISION NOT NULL DEFAULT 0,
    y           DOUBLE PRECISION NOT NULL DEFAULT 0,
    PRIMARY KEY (workflow_id, id)
);

CREATE TABLE IF NOT EXISTS flow_edges (
    workflow_id TEXT NOT NULL REFERENCES flow_workflows(id) ON DELETE CASCADE,
    id          TEXT NOT NULL,
    ord         INT  NOT NULL,
    source      TEXT NOT NULL,
    target      TEXT NOT NULL,
    PRIMARY KEY (workflow_id, id)
);

CREATE TABLE IF NOT EXISTS flow_runs (
    execution_id TEXT PRIMARY KEY,
    workflow_id  TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL,
    graph        JSONB NOT NULL,
    started_at   TIMESTAMPTZ NOT NULL,
    finished_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS flow_run_events (
    execution_id TEXT NOT NULL REFERENCES flow_runs(execution_id) ON DELETE CASCADE,
    seq          INT  NOT NULL,
    kind         TEXT NOT NULL,
    node_id      TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT '',
    message      TEXT NOT NULL DEFAULT '',
    stamp        TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (execution_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_flow_nodes_id      ON flow_nodes(id);
CREATE INDEX IF NOT EXISTS idx_flow_edges_source  ON flow_edges(source);
CREATE INDEX IF NOT EXISTS idx_flow_edges_target  ON flow_edges(target);
CREATE INDEX IF NOT EXISTS idx_flow_runs_workflow ON flow_runs(workflow_id);
`

// CreateSchema creates the workflow and run tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops every table created by CreateSchema.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS flow_run_events, flow_runs, flow_edges, flow_nodes, flow_workflows CASCADE;`)
	return err
}
