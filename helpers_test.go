package flow

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flow/nodes"
)

// seqIDs mints predictable ids: n1, n2, ... for nodes and
// e<source>-<target>-<seq> for edges.
type seqIDs struct {
	nodes int
	edges int
}

func (g *seqIDs) NodeID() string {
	g.nodes++
	return fmt.Sprintf("n%d", g.nodes)
}

func (g *seqIDs) EdgeID(source, target string) string {
	g.edges++
	return fmt.Sprintf("e%s-%s-%d", source, target, g.edges)
}

func newTestEditor(t *testing.T) *Editor {
	t.Helper()
	return NewEditor(nodes.Default(),
		WithIDGenerator(&seqIDs{}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func mustAdd(t *testing.T, e *Editor, typ nodes.Type, pos Position) string {
	t.Helper()
	id, err := e.AddNode(typ, pos)
	require.NoError(t, err)
	return id
}

func mustConnect(t *testing.T, e *Editor, source, target string) string {
	t.Helper()
	id, err := e.AddEdge(Connection{Source: source, Target: target})
	require.NoError(t, err)
	return id
}

func connReason(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	return ce.Reason
}
