package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flow/config"
	"github.com/meikuraledutech/flow/nodes"
)

const validFlow = `{
	"nodes": [
		{"id": "s", "type": "start", "position": {"x": 0, "y": 0}},
		{"id": "a", "type": "goal", "position": {"x": 200, "y": 0}}
	],
	"edges": [{"id": "e1", "source": "s", "target": "a", "sourceHandle": null, "targetHandle": null}],
	"metadata": {"title": "ok", "enabled": true}
}`

const legacyFlow = `{
	"nodes": [
		{"id": "s", "type": "start", "position": {"x": 0, "y": 0}},
		{"id": "a", "type": "goal", "position": {"x": 200, "y": 0}},
		{"id": "b", "type": "goal", "position": {"x": 200, "y": 100}}
	],
	"edges": [
		{"id": "e1", "source": "s", "target": "a"},
		{"id": "e2", "source": "s", "target": "b"},
		{"id": "e3", "source": "a", "target": "s"}
	]
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "FLOW_LISTEN", "FLOW_STORE", "FLOW_SQLITE_PATH", "FLOW_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidFlow(t *testing.T) {
	path := writeFile(t, "flow.json", validFlow)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "2 nodes, 1 edges")
	assert.NotContains(t, out, "warning")
}

func TestValidateValidFlowJSON(t *testing.T) {
	path := writeFile(t, "flow.json", validFlow)

	out, err := execute(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var res ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, ValidationResult{Valid: true, Nodes: 2, Edges: 1}, res)
}

func TestValidateInvalidFlow(t *testing.T) {
	path := writeFile(t, "flow.json", `{"nodes": [{"id": "a", "type": "webhook", "position": {"x": 0, "y": 0}}], "edges": []}`)

	out, err := execute(t, "--format", "json", "validate", path)
	require.ErrorIs(t, err, errInvalidFlow)

	var res ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)
	assert.Equal(t, "nodes[0]", res.Path)
	assert.Contains(t, res.Error, "webhook")
}

func TestValidateWarnsAboutRuleViolations(t *testing.T) {
	path := writeFile(t, "legacy.json", legacyFlow)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "edge e2 (s -> b): start node allows only one outgoing connection")
	assert.Contains(t, out, "edge e3 (a -> s): cannot target start")
	assert.NotContains(t, out, "edge e1")
}

func TestValidateStdin(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetIn(strings.NewReader(validFlow))
	cmd.SetArgs([]string{"validate", "-"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ -")
}

func TestValidateMissingFile(t *testing.T) {
	_, err := execute(t, "validate", filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "validate", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestSchemaCreateAndDrop(t *testing.T) {
	clearEnv(t)
	dbPath := filepath.Join(t.TempDir(), "flows.db")
	cfgPath := writeFile(t, "flowd.yaml", "store:\n  driver: sqlite\n  sqlite_path: "+dbPath+"\n")

	out, err := execute(t, "--config", cfgPath, "schema", "create")
	require.NoError(t, err)
	assert.Contains(t, out, "schema created")

	store, closeStore, err := openStore(context.Background(), config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: dbPath}, nodes.Default())
	require.NoError(t, err)
	list, err := store.ListFlows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	closeStore()

	out, err = execute(t, "--config", cfgPath, "schema", "drop")
	require.NoError(t, err)
	assert.Contains(t, out, "schema dropped")
}

func TestSchemaRejectsBadConfig(t *testing.T) {
	clearEnv(t)
	cfgPath := writeFile(t, "flowd.yaml", "store:\n  driver: mongo\n")

	_, err := execute(t, "--config", cfgPath, "schema", "create")
	assert.Error(t, err)

	_, err = execute(t, "--config", writeFile(t, "ok.yaml", ""), "--log-level", "loud", "schema", "create")
	assert.Error(t, err)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, _, err := openStore(context.Background(), config.StoreConfig{Driver: "mongo"}, nodes.Default())
	assert.Error(t, err)
}
