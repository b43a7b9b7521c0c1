// Package storetest holds the behaviour every flow.Store implementation
// must share. Backends call Run from their own tests.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/nodes"
)

// Run exercises store. newStore must return a store with an empty,
// created schema.
func Run(t *testing.T, newStore func(t *testing.T) flow.Store) {
	t.Run("SaveAndGet", func(t *testing.T) { testSaveAndGet(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SaveReplaces", func(t *testing.T) { testSaveReplaces(t, newStore(t)) })
	t.Run("SaveRejectsInvalid", func(t *testing.T) { testSaveRejectsInvalid(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newStore(t)) })
}

type seqIDs struct{ n, e int }

func (g *seqIDs) NodeID() string {
	g.n++
	return fmt.Sprintf("n%d", g.n)
}

func (g *seqIDs) EdgeID(source, target string) string {
	g.e++
	return fmt.Sprintf("e%s-%s-%d", source, target, g.e)
}

// SampleFlow builds a small branching flow with handles and data.
func SampleFlow(t *testing.T) flow.Document {
	t.Helper()
	ed := flow.NewEditor(nodes.Default(),
		flow.WithIDGenerator(&seqIDs{}),
		flow.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	add := func(typ nodes.Type, x, y float64) string {
		id, err := ed.AddNode(typ, flow.Position{X: x, Y: y})
		require.NoError(t, err)
		return id
	}
	start := add(nodes.Start, 0, 0)
	ask := add(nodes.AskQuestion, 250, 0)
	btn := add(nodes.TextButton, 500, 0)
	goal := add(nodes.Goal, 750, -100)
	delay := add(nodes.Delay, 750, 100)

	require.NoError(t, ed.UpdateNodeData(start, json.RawMessage(`{"keywords":["hi"],"matchType":"exact"}`)))
	require.NoError(t, ed.UpdateNodeData(ask, json.RawMessage(`{"questionText":"Email?","validationType":"Email"}`)))
	require.NoError(t, ed.UpdateNodeData(btn, json.RawMessage(`{"bodyText":"Go on?","buttons":[{"id":"yes","text":"Yes"},{"id":"no","text":"No"}]}`)))
	require.NoError(t, ed.UpdateNodeData(delay, json.RawMessage(`{"duration":5,"unit":"minutes"}`)))

	for _, c := range []flow.Connection{
		{Source: start, Target: ask},
		{Source: ask, Target: btn},
		{Source: btn, Target: goal, SourceHandle: "yes"},
		{Source: btn, Target: delay, SourceHandle: "no", TargetHandle: "in"},
	} {
		_, err := ed.AddEdge(c)
		require.NoError(t, err)
	}
	ed.SetMetadata(flow.Metadata{Title: "Lead capture", Enabled: true})
	return ed.Snapshot()
}

func testSaveAndGet(t *testing.T, s flow.Store) {
	ctx := context.Background()
	doc := SampleFlow(t)

	require.NoError(t, s.SaveFlow(ctx, "lead", doc))

	got, err := s.GetFlow(ctx, "lead")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, doc, *got)
}

func testGetMissing(t *testing.T, s flow.Store) {
	got, err := s.GetFlow(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testSaveReplaces(t *testing.T, s flow.Store) {
	ctx := context.Background()
	doc := SampleFlow(t)
	require.NoError(t, s.SaveFlow(ctx, "lead", doc))

	smaller := flow.Document{
		Nodes:    doc.Nodes[:2],
		Edges:    doc.Edges[:1],
		Metadata: flow.Metadata{Title: "Trimmed"},
	}
	require.NoError(t, s.SaveFlow(ctx, "lead", smaller))

	got, err := s.GetFlow(ctx, "lead")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, smaller, *got)
}

func testSaveRejectsInvalid(t *testing.T, s flow.Store) {
	ctx := context.Background()
	doc := SampleFlow(t)
	doc.Edges = append(slices.Clone(doc.Edges), flow.Edge{ID: "dangling", Source: doc.Nodes[0].ID, Target: "ghost"})

	err := s.SaveFlow(ctx, "bad", doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, flow.ErrNodeNotFound)

	got, err := s.GetFlow(ctx, "bad")
	require.NoError(t, err)
	assert.Nil(t, got, "nothing is written")

	assert.Error(t, s.SaveFlow(ctx, "", SampleFlow(t)))
}

func testDelete(t *testing.T, s flow.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveFlow(ctx, "lead", SampleFlow(t)))

	require.NoError(t, s.DeleteFlow(ctx, "lead"))
	got, err := s.GetFlow(ctx, "lead")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, s.DeleteFlow(ctx, "lead"), "deleting twice is fine")
}

func testList(t *testing.T, s flow.Store) {
	ctx := context.Background()

	list, err := s.ListFlows(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.SaveFlow(ctx, "lead", SampleFlow(t)))
	require.NoError(t, s.SaveFlow(ctx, "empty", flow.Document{
		Nodes: []flow.Node{}, Edges: []flow.Edge{}, Metadata: flow.Metadata{Title: "Blank"},
	}))

	list, err = s.ListFlows(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	slices.SortFunc(list, func(a, b flow.Summary) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	assert.Equal(t, "empty", list[0].ID)
	assert.Equal(t, "Blank", list[0].Title)
	assert.False(t, list[0].Enabled)
	assert.Zero(t, list[0].NodeCount)
	assert.Zero(t, list[0].EdgeCount)

	assert.Equal(t, "lead", list[1].ID)
	assert.Equal(t, "Lead capture", list[1].Title)
	assert.True(t, list[1].Enabled)
	assert.Equal(t, 5, list[1].NodeCount)
	assert.Equal(t, 4, list[1].EdgeCount)
	assert.False(t, list[1].UpdatedAt.IsZero())
}
