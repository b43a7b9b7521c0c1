package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/flow/nodes"
)

// PGStore implements flow.Store using PostgreSQL via pgx.
type PGStore struct {
	db       *pgxpool.Pool
	registry *nodes.Registry
}

// New creates a new PGStore backed by the given pgx connection pool.
// Node payloads read back from the database are decoded through reg.
func New(db *pgxpool.Pool, reg *nodes.Registry) *PGStore {
	return &PGStore{db: db, registry: reg}
}
