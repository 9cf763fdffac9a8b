package postgres

import (
	"context"
	"fmt"
)

// DeleteNode deletes a node, and every edge touching it, from all saved
// workflows in one transaction.
// No error if the node doesn't exist.
func (s *PGStore) DeleteNode(ctx context.Context, nodeID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("flow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM flow_edges WHERE source = $1 OR target = $1`, nodeID); err != nil {
		return fmt.Errorf("flow: delete node edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM flow_nodes WHERE id = $1`, nodeID); err != nil {
		return fmt.Errorf("flow: delete node: %w", err)
	}

	return tx.Commit(ctx)
}
