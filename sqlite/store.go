// Package sqlite stores flow documents in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meikuraledutech/flow/nodes"
)

//go:embed schema.sql
var schemaSQL string

// Store implements flow.Store on SQLite.
// Uses WAL mode and a single connection; SQLite has one writer anyway.
type Store struct {
	db       *sql.DB
	registry *nodes.Registry
}

// Open creates or opens a SQLite database at path. Use ":memory:" for a
// throwaway database. The schema is not created; call CreateSchema.
func Open(path string, reg *nodes.Registry) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("flow: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("flow: connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, registry: reg}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("flow: execute %q: %w", pragma, err)
		}
	}
	return nil
}

// CreateSchema creates the flow tables if they don't exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("flow: create schema: %w", err)
	}
	return nil
}

// DropSchema drops the flow tables.
func (s *Store) DropSchema(ctx context.Context) error {
	for _, table := range []string{"flow_edges", "flow_nodes", "flows"} {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("flow: drop %s: %w", table, err)
		}
	}
	return nil
}
