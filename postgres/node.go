package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/nodes"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// insertNodes writes nodes in document order.
func insertNodes(ctx context.Context, q querier, flowID string, ns []flow.Node) error {
	for i, n := range ns {
		data, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("flow: marshal node %s: %w", n.ID, err)
		}
		if _, err := q.Exec(ctx,
			`INSERT INTO flow_nodes (flow_id, id, seq, type, pos_x, pos_y, data) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			flowID, n.ID, i, string(n.Type), n.Position.X, n.Position.Y, data,
		); err != nil {
			return fmt.Errorf("flow: insert node %s: %w", n.ID, err)
		}
	}
	return nil
}

// listNodes returns the nodes of a flow in document order.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) listNodes(ctx context.Context, q querier, flowID string) ([]flow.Node, error) {
	rows, err := q.Query(ctx,
		`SELECT id, type, pos_x, pos_y, data FROM flow_nodes WHERE flow_id = $1 ORDER BY seq`, flowID)
	if err != nil {
		return nil, fmt.Errorf("flow: list nodes: %w", err)
	}
	defer rows.Close()

	ns := []flow.Node{}
	for rows.Next() {
		var (
			id, typ string
			pos     flow.Position
			data    []byte
		)
		if err := rows.Scan(&id, &typ, &pos.X, &pos.Y, &data); err != nil {
			return nil, fmt.Errorf("flow: scan node: %w", err)
		}
		n, err := flow.RestoreNode(s.registry, id, nodes.Type(typ), pos, data)
		if err != nil {
			return nil, fmt.Errorf("flow: restore node %s: %w", id, err)
		}
		ns = append(ns, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows nodes: %w", err)
	}

	return ns, nil
}
