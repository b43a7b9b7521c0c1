package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/nodes"
)

// SaveFlow replaces the stored document for flowID in one transaction.
func (s *Store) SaveFlow(ctx context.Context, flowID string, doc flow.Document) error {
	if flowID == "" {
		return fmt.Errorf("flow: empty flow id")
	}
	if err := doc.Validate(s.registry); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("flow: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO flows (id, title, enabled, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET title = excluded.title, enabled = excluded.enabled, updated_at = excluded.updated_at`,
		flowID, doc.Metadata.Title, doc.Metadata.Enabled, now, now,
	); err != nil {
		return fmt.Errorf("flow: upsert flow: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM flow_nodes WHERE flow_id = ?`, flowID); err != nil {
		return fmt.Errorf("flow: delete nodes: %w", err)
	}

	for i, n := range doc.Nodes {
		data, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("flow: marshal node %s: %w", n.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO flow_nodes (flow_id, id, seq, type, pos_x, pos_y, data) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			flowID, n.ID, i, string(n.Type), n.Position.X, n.Position.Y, string(data),
		); err != nil {
			return fmt.Errorf("flow: insert node %s: %w", n.ID, err)
		}
	}
	for i, e := range doc.Edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO flow_edges (flow_id, id, seq, source, target, source_handle, target_handle) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			flowID, e.ID, i, e.Source, e.Target, nullString(e.SourceHandle), nullString(e.TargetHandle),
		); err != nil {
			return fmt.Errorf("flow: insert edge %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("flow: commit: %w", err)
	}
	return nil
}

// GetFlow returns nil, nil if flowID was never saved.
func (s *Store) GetFlow(ctx context.Context, flowID string) (*flow.Document, error) {
	doc := &flow.Document{Nodes: []flow.Node{}, Edges: []flow.Edge{}}
	err := s.db.QueryRowContext(ctx,
		`SELECT title, enabled FROM flows WHERE id = ?`, flowID,
	).Scan(&doc.Metadata.Title, &doc.Metadata.Enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("flow: get flow: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, pos_x, pos_y, data FROM flow_nodes WHERE flow_id = ? ORDER BY seq`, flowID)
	if err != nil {
		return nil, fmt.Errorf("flow: query nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, typ, data string
			pos           flow.Position
		)
		if err := rows.Scan(&id, &typ, &pos.X, &pos.Y, &data); err != nil {
			return nil, fmt.Errorf("flow: scan node: %w", err)
		}
		n, err := flow.RestoreNode(s.registry, id, nodes.Type(typ), pos, []byte(data))
		if err != nil {
			return nil, fmt.Errorf("flow: restore node %s: %w", id, err)
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows nodes: %w", err)
	}

	edgeRows, err := s.db.QueryContext(ctx,
		`SELECT id, source, target, source_handle, target_handle FROM flow_edges WHERE flow_id = ? ORDER BY seq`, flowID)
	if err != nil {
		return nil, fmt.Errorf("flow: query edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var (
			e              flow.Edge
			srcHdl, tgtHdl sql.NullString
		)
		if err := edgeRows.Scan(&e.ID, &e.Source, &e.Target, &srcHdl, &tgtHdl); err != nil {
			return nil, fmt.Errorf("flow: scan edge: %w", err)
		}
		e.SourceHandle, e.TargetHandle = srcHdl.String, tgtHdl.String
		doc.Edges = append(doc.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows edges: %w", err)
	}

	return doc, nil
}

// DeleteFlow removes a flow with its nodes and edges.
// No error if the flow doesn't exist.
func (s *Store) DeleteFlow(ctx context.Context, flowID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, flowID); err != nil {
		return fmt.Errorf("flow: delete flow: %w", err)
	}
	return nil
}

// ListFlows returns a summary of every saved flow, most recently updated first.
func (s *Store) ListFlows(ctx context.Context) ([]flow.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
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

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
