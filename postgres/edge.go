package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/flow"
)

// insertEdges writes edges in document order. Empty handles are stored as NULL.
func insertEdges(ctx context.Context, q querier, flowID string, es []flow.Edge) error {
	for i, e := range es {
		if _, err := q.Exec(ctx,
			`INSERT INTO flow_edges (flow_id, id, seq, source, target, source_handle, target_handle) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			flowID, e.ID, i, e.Source, e.Target, nullable(e.SourceHandle), nullable(e.TargetHandle),
		); err != nil {
			return fmt.Errorf("flow: insert edge %s: %w", e.ID, err)
		}
	}
	return nil
}

// listEdges returns the edges of a flow in document order.
// Returns an empty slice (not nil) if none found.
func listEdges(ctx context.Context, q querier, flowID string) ([]flow.Edge, error) {
	rows, err := q.Query(ctx,
		`SELECT id, source, target, source_handle, target_handle FROM flow_edges WHERE flow_id = $1 ORDER BY seq`, flowID)
	if err != nil {
		return nil, fmt.Errorf("flow: list edges: %w", err)
	}
	defer rows.Close()

	es := []flow.Edge{}
	for rows.Next() {
		var (
			e              flow.Edge
			srcHdl, tgtHdl *string
		)
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &srcHdl, &tgtHdl); err != nil {
			return nil, fmt.Errorf("flow: scan edge: %w", err)
		}
		if srcHdl != nil {
			e.SourceHandle = *srcHdl
		}
		if tgtHdl != nil {
			e.TargetHandle = *tgtHdl
		}
		es = append(es, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows edges: %w", err)
	}

	return es, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
