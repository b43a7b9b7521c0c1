package flow

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flow/nodes"
)

func buildSampleFlow(t *testing.T) *Editor {
	t.Helper()
	e := newTestEditor(t)
	s := mustAdd(t, e, nodes.Start, Position{X: 0, Y: 0})
	ask := mustAdd(t, e, nodes.AskQuestion, Position{X: 250, Y: 0})
	btn := mustAdd(t, e, nodes.TextButton, Position{X: 500, Y: 0})
	goal := mustAdd(t, e, nodes.Goal, Position{X: 750, Y: -100})
	list := mustAdd(t, e, nodes.List, Position{X: 750, Y: 100})

	require.NoError(t, e.UpdateNodeData(s, json.RawMessage(`{"keywords":["hi","hello"],"matchType":"exact"}`)))
	require.NoError(t, e.UpdateNodeData(ask, json.RawMessage(`{"questionText":"What's your email?","validationType":"Email","variableName":"email"}`)))
	require.NoError(t, e.UpdateNodeData(btn, json.RawMessage(`{"bodyText":"Continue?","buttons":[{"id":"yes","text":"Yes"},{"id":"no","text":"No"}]}`)))
	require.NoError(t, e.UpdateNodeData(list, json.RawMessage(`{"bodyText":"Menu","sections":[{"title":"Drinks","rows":[{"id":"tea","title":"Tea","description":""}]}]}`)))

	mustConnect(t, e, s, ask)
	mustConnect(t, e, ask, btn)
	_, err := e.AddEdge(Connection{Source: btn, Target: goal, SourceHandle: "yes"})
	require.NoError(t, err)
	_, err = e.AddEdge(Connection{Source: btn, Target: list, SourceHandle: "no", TargetHandle: "in"})
	require.NoError(t, err)

	e.SetMetadata(Metadata{Title: "Lead capture", Enabled: true})
	require.NoError(t, e.Select(goal))
	return e
}

func TestDocumentRoundTrip(t *testing.T) {
	e := buildSampleFlow(t)
	reg := e.Registry()

	raw, err := e.Export()
	require.NoError(t, err)

	got, err := FromDocument(raw, reg)
	require.NoError(t, err)

	want := e.Snapshot()
	for i := range want.Nodes {
		want.Nodes[i].Selected = false
	}
	assert.Equal(t, want, got)

	// and once more through the decoded document
	again, err := ToDocument(got.Nodes, got.Edges, got.Metadata)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(again))
}

func TestToDocumentShape(t *testing.T) {
	e := buildSampleFlow(t)
	raw, err := e.Export()
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, generic, "nodes")
	assert.Contains(t, generic, "edges")
	assert.Equal(t, map[string]any{"title": "Lead capture", "enabled": true}, generic["metadata"])

	node := generic["nodes"].([]any)[3].(map[string]any)
	assert.Equal(t, []string{"data", "id", "position", "type"}, sortedKeys(node), "selection is not serialized")

	edge := generic["edges"].([]any)[0].(map[string]any)
	assert.Contains(t, edge, "sourceHandle")
	assert.Nil(t, edge["sourceHandle"])
	assert.Nil(t, edge["targetHandle"])

	handled := generic["edges"].([]any)[3].(map[string]any)
	assert.Equal(t, "no", handled["sourceHandle"])
	assert.Equal(t, "in", handled["targetHandle"])
}

func TestToDocumentEmptyFlow(t *testing.T) {
	raw, err := ToDocument(nil, nil, Metadata{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"edges":[],"metadata":{"title":"","enabled":false}}`, string(raw))

	doc, err := FromDocument(raw, nodes.Default())
	require.NoError(t, err)
	assert.Empty(t, doc.Nodes)
	assert.Empty(t, doc.Edges)
}

func TestToDocumentRejectsNodeWithoutData(t *testing.T) {
	_, err := ToDocument([]Node{{ID: "a", Type: nodes.Goal}}, nil, Metadata{})
	assert.Error(t, err)
}

func TestFromDocumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		path    string
		wantErr error
	}{
		{
			name: "malformed JSON",
			doc:  `{"nodes": [}`,
		},
		{
			name: "not an object",
			doc:  `[1, 2, 3]`,
		},
		{
			name: "trailing garbage",
			doc:  `{"nodes": [], "edges": []} {"nodes": []}`,
		},
		{
			name: "missing nodes",
			doc:  `{"edges": []}`,
			path: "nodes",
		},
		{
			name: "null edges",
			doc:  `{"nodes": [], "edges": null}`,
			path: "edges",
		},
		{
			name: "node without id",
			doc:  `{"nodes": [{"type": "goal", "position": {"x": 0, "y": 0}}], "edges": []}`,
			path: "nodes[0].id",
		},
		{
			name: "node without type",
			doc:  `{"nodes": [{"id": "a", "position": {"x": 0, "y": 0}}], "edges": []}`,
			path: "nodes[0].type",
		},
		{
			name: "node without position",
			doc:  `{"nodes": [{"id": "a", "type": "goal"}], "edges": []}`,
			path: "nodes[0].position",
		},
		{
			name: "numeric id",
			doc:  `{"nodes": [{"id": 7, "type": "goal", "position": {"x": 0, "y": 0}}], "edges": []}`,
		},
		{
			name:    "unregistered type",
			doc:     `{"nodes": [{"id": "a", "type": "webhook", "position": {"x": 0, "y": 0}}], "edges": []}`,
			path:    "nodes[0]",
			wantErr: ErrInvalidNodeType,
		},
		{
			name:    "payload violates schema",
			doc:     `{"nodes": [{"id": "a", "type": "delay", "position": {"x": 0, "y": 0}, "data": {"duration": -1}}], "edges": []}`,
			path:    "nodes[0]",
			wantErr: ErrInvalidPayload,
		},
		{
			name: "duplicate node ids",
			doc: `{"nodes": [
				{"id": "a", "type": "goal", "position": {"x": 0, "y": 0}},
				{"id": "a", "type": "delay", "position": {"x": 0, "y": 0}}
			], "edges": []}`,
			path: "nodes[1].id",
		},
		{
			name: "two start nodes",
			doc: `{"nodes": [
				{"id": "s1", "type": "start", "position": {"x": 0, "y": 0}},
				{"id": "s2", "type": "start", "position": {"x": 0, "y": 0}}
			], "edges": []}`,
			path:    "nodes",
			wantErr: ErrStartExists,
		},
		{
			name: "dangling edge",
			doc: `{"nodes": [
				{"id": "a", "type": "goal", "position": {"x": 0, "y": 0}},
				{"id": "b", "type": "goal", "position": {"x": 100, "y": 0}},
				{"id": "c", "type": "goal", "position": {"x": 200, "y": 0}}
			], "edges": [
				{"id": "e1", "source": "a", "target": "b"},
				{"id": "e2", "source": "b", "target": "zzz"}
			]}`,
			path:    "edges[1].target",
			wantErr: ErrNodeNotFound,
		},
		{
			name: "duplicate edge ids",
			doc: `{"nodes": [
				{"id": "a", "type": "goal", "position": {"x": 0, "y": 0}},
				{"id": "b", "type": "goal", "position": {"x": 100, "y": 0}}
			], "edges": [
				{"id": "e1", "source": "a", "target": "b"},
				{"id": "e1", "source": "b", "target": "a"}
			]}`,
			path: "edges[1].id",
		},
		{
			name: "edge without id",
			doc: `{"nodes": [
				{"id": "a", "type": "goal", "position": {"x": 0, "y": 0}},
				{"id": "b", "type": "goal", "position": {"x": 100, "y": 0}}
			], "edges": [{"source": "a", "target": "b"}]}`,
			path: "edges[0].id",
		},
	}

	reg := nodes.Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := FromDocument([]byte(tt.doc), reg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDocument)
			assert.True(t, IsParseError(err))
			assert.Empty(t, doc.Nodes, "no partial graph")

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.path, pe.Path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestFromDocumentTrustsSavedConnections(t *testing.T) {
	// rule violations in a saved document are loaded as they are
	doc, err := FromDocument([]byte(`{
		"nodes": [
			{"id": "s", "type": "start", "position": {"x": 0, "y": 0}},
			{"id": "a", "type": "goal", "position": {"x": 100, "y": 0}},
			{"id": "b", "type": "goal", "position": {"x": 200, "y": 0}}
		],
		"edges": [
			{"id": "e1", "source": "s", "target": "a"},
			{"id": "e2", "source": "s", "target": "b"},
			{"id": "e3", "source": "a", "target": "s"}
		],
		"metadata": {"title": "legacy"}
	}`), nodes.Default())
	require.NoError(t, err)
	assert.Len(t, doc.Edges, 3)
	assert.Equal(t, &nodes.StartData{Keywords: []string{}}, doc.Nodes[0].Data)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
