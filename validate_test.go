package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flow/nodes"
)

func TestValidateConnection(t *testing.T) {
	graph := []Node{
		{ID: "start", Type: nodes.Start, Data: &nodes.StartData{}},
		{ID: "a", Type: nodes.AskQuestion, Data: &nodes.AskQuestionData{}},
		{ID: "b", Type: nodes.Delay, Data: &nodes.DelayData{}},
		{ID: "btn", Type: nodes.TextButton, Data: &nodes.TextButtonData{
			Buttons: []nodes.Button{{ID: "yes", Text: "Yes"}, {ID: "no", Text: "No"}},
		}},
	}

	tests := []struct {
		name   string
		edges  []Edge
		conn   Connection
		reason string // empty means accepted
	}{
		{
			name: "plain connection accepted",
			conn: Connection{Source: "a", Target: "b"},
		},
		{
			name:   "self connection",
			conn:   Connection{Source: "a", Target: "a"},
			reason: ReasonSelfConnection,
		},
		{
			name:   "self connection on start wins over start checks",
			conn:   Connection{Source: "start", Target: "start"},
			reason: ReasonSelfConnection,
		},
		{
			name:   "unknown target",
			conn:   Connection{Source: "a", Target: "ghost"},
			reason: ReasonUnknownNode,
		},
		{
			name:   "unknown source",
			conn:   Connection{Source: "ghost", Target: "a"},
			reason: ReasonUnknownNode,
		},
		{
			name:   "cannot target start",
			conn:   Connection{Source: "a", Target: "start"},
			reason: ReasonTargetIsStart,
		},
		{
			name:   "duplicate connection",
			edges:  []Edge{{ID: "e1", Source: "a", Target: "b"}},
			conn:   Connection{Source: "a", Target: "b"},
			reason: ReasonDuplicate,
		},
		{
			name:   "duplicate ignores handles",
			edges:  []Edge{{ID: "e1", Source: "btn", Target: "b", SourceHandle: "yes"}},
			conn:   Connection{Source: "btn", Target: "b", SourceHandle: "no"},
			reason: ReasonDuplicate,
		},
		{
			name:  "reverse direction is not a duplicate",
			edges: []Edge{{ID: "e1", Source: "a", Target: "b"}},
			conn:  Connection{Source: "b", Target: "a"},
		},
		{
			name:   "start allows one outgoing edge",
			edges:  []Edge{{ID: "e1", Source: "start", Target: "a"}},
			conn:   Connection{Source: "start", Target: "b"},
			reason: ReasonStartEgress,
		},
		{
			name:   "duplicate wins over start egress",
			edges:  []Edge{{ID: "e1", Source: "start", Target: "a"}},
			conn:   Connection{Source: "start", Target: "a"},
			reason: ReasonDuplicate,
		},
		{
			name: "first edge from start accepted",
			conn: Connection{Source: "start", Target: "a"},
		},
		{
			name: "known button handle accepted",
			conn: Connection{Source: "btn", Target: "a", SourceHandle: "yes"},
		},
		{
			name: "default anchor on button node accepted",
			conn: Connection{Source: "btn", Target: "a"},
		},
		{
			name:   "unknown button handle",
			conn:   Connection{Source: "btn", Target: "a", SourceHandle: "maybe"},
			reason: ReasonUnknownHandle,
		},
		{
			name: "handles on single output nodes are not checked",
			conn: Connection{Source: "a", Target: "b", SourceHandle: "out"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConnection(graph, tt.edges, tt.conn)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.reason, connReason(t, err))
		})
	}
}

func TestValidateConnectionDoesNotMutate(t *testing.T) {
	ns := []Node{
		{ID: "a", Type: nodes.Goal, Data: &nodes.GoalData{}},
		{ID: "b", Type: nodes.Goal, Data: &nodes.GoalData{}},
	}
	es := []Edge{{ID: "e1", Source: "a", Target: "b"}}

	_ = ValidateConnection(ns, es, Connection{Source: "a", Target: "b"})
	_ = ValidateConnection(ns, es, Connection{Source: "b", Target: "a"})

	require.Len(t, es, 1)
	assert.Equal(t, Edge{ID: "e1", Source: "a", Target: "b"}, es[0])
}

func TestConnectionErrorMessage(t *testing.T) {
	err := &ConnectionError{Connection: Connection{Source: "a", Target: "a"}, Reason: ReasonSelfConnection}
	assert.Equal(t, "flow: invalid connection a -> a: self-connection", err.Error())
}
