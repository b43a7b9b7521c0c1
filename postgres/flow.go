package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/flow"
)

// SaveFlow saves a full document (metadata + nodes + edges) in one
// transaction, replacing whatever was stored for flowID before.
// The document is checked structurally first; nothing is written if it
// is not sound.
func (s *PGStore) SaveFlow(ctx context.Context, flowID string, doc flow.Document) error {
	if flowID == "" {
		return fmt.Errorf("flow: empty flow id")
	}
	if err := doc.Validate(s.registry); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("flow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO flows (id, title, enabled) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, enabled = EXCLUDED.enabled, updated_at = NOW()`,
		flowID, doc.Metadata.Title, doc.Metadata.Enabled,
	); err != nil {
		return fmt.Errorf("flow: upsert flow: %w", err)
	}

	// Replace semantics: edges go with their nodes through the FK cascade.
	if _, err := tx.Exec(ctx, `DELETE FROM flow_nodes WHERE flow_id = $1`, flowID); err != nil {
		return fmt.Errorf("flow: delete nodes: %w", err)
	}

	if err := insertNodes(ctx, tx, flowID, doc.Nodes); err != nil {
		return err
	}
	if err := insertEdges(ctx, tx, flowID, doc.Edges); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("flow: commit: %w", err)
	}
	return nil
}

// GetFlow retrieves a full document by flow id.
// Returns nil, nil if the flow was never saved.
func (s *PGStore) GetFlow(ctx context.Context, flowID string) (*flow.Document, error) {
	doc := &flow.Document{}
	err := s.db.QueryRow(ctx,
		`SELECT title, enabled FROM flows WHERE id = $1`, flowID,
	).Scan(&doc.Metadata.Title, &doc.Metadata.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("flow: get flow: %w", err)
	}

	if doc.Nodes, err = s.listNodes(ctx, s.db, flowID); err != nil {
		return nil, err
	}
	if doc.Edges, err = listEdges(ctx, s.db, flowID); err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteFlow removes a flow; its nodes and edges are cascade-deleted by the DB.
// No error if the flow doesn't exist.
func (s *PGStore) DeleteFlow(ctx context.Context, flowID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM flows WHERE id = $1`, flowID); err != nil {
		return fmt.Errorf("flow: delete flow: %w", err)
	}
	return nil
}

// ListFlows returns a summary of every saved flow, most recently updated first.
func (s *PGStore) ListFlows(ctx context.Context) ([]flow.Summary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT f.id, f.title, f.enabled, f.updated_at,
		       (SELECT COUNT(*) FROM flow_nodes n WHERE n.flow_id = f.id),
		       (SELECT COUNT(*) FROM flow_edges e WHERE e.flow_id = f.id)
		FROM flows f
		ORDER BY f.updated_at DESC, f.id`)
	if err != nil {
		return nil, fmt.Errorf("flow: list flows: %w", err)
	}
	defer rows.Close()

	out := []flow.Summary{}
	for rows.Next() {
		var sum flow.Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Enabled, &sum.UpdatedAt, &sum.NodeCount, &sum.EdgeCount); err != nil {
			return nil, fmt.Errorf("flow: scan flow: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows flows: %w", err)
	}
	return out, nil
}
