package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/nodes"
	"github.com/meikuraledutech/flow/storetest"
)

// These tests run against a real database. Set DATABASE_URL to a
// disposable PostgreSQL instance; the flow tables are dropped.
func TestStore(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL is not set")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	storetest.Run(t, func(t *testing.T) flow.Store {
		ctx := context.Background()
		s := New(pool, nodes.Default())
		require.NoError(t, s.DropSchema(ctx))
		require.NoError(t, s.CreateSchema(ctx))
		return s
	})
}
