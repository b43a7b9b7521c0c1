// Package flow is the data model and mutation core of the automation flow
// editor: nodes and edges of a flow graph, the rules that decide which
// connections may exist, and the document format flows are saved and
// exchanged in.
package flow

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/meikuraledutech/flow/nodes"
)

var (
	ErrInvalidNodeType    = nodes.ErrInvalidType
	ErrInvalidPayload     = nodes.ErrInvalidPayload
	ErrStartExists        = errors.New("flow: flow already has a start node")
	ErrNodeNotFound       = errors.New("flow: node not found")
	ErrViewportUnmeasured = errors.New("flow: canvas viewport is not measurable")
	ErrInvalidDocument    = errors.New("flow: invalid document")
	ErrDetached           = errors.New("flow: node is not attached to an editor")
)

// Position is a point in canvas space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by d.
func (p Position) Add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// ChangeFunc reports a data patch for the node it was bound to.
type ChangeFunc func(patch json.RawMessage) error

// Node is a typed vertex of a flow.
// Selected is editor state and never serialized.
type Node struct {
	ID       string        `json:"id"`
	Type     nodes.Type    `json:"type"`
	Position Position      `json:"position"`
	Data     nodes.Payload `json:"data"`
	Selected bool          `json:"-"`

	report ChangeFunc
}

// ReportChange sends a shallow merge patch for this node's data back to
// the editor that owns the node.
func (n Node) ReportChange(patch json.RawMessage) error {
	if n.report == nil {
		return ErrDetached
	}
	return n.report(patch)
}

// Edge is a directed connection between two nodes. Empty handles mean the
// node's default anchor.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

// MarshalJSON writes empty handles as null.
func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID           string  `json:"id"`
		Source       string  `json:"source"`
		Target       string  `json:"target"`
		SourceHandle *string `json:"sourceHandle"`
		TargetHandle *string `json:"targetHandle"`
	}{e.ID, e.Source, e.Target, nullable(e.SourceHandle), nullable(e.TargetHandle)})
}

// Connection is a proposed edge, before it has an id.
type Connection struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Metadata describes a flow as a whole.
type Metadata struct {
	Title   string `json:"title"`
	Enabled bool   `json:"enabled"`
}

// Document is the persisted and exported unit of a flow.
type Document struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Metadata Metadata `json:"metadata"`
}

// StartNode returns the start node of d, if any.
func (d Document) StartNode() (Node, bool) {
	for _, n := range d.Nodes {
		if n.Type == nodes.Start {
			return n, true
		}
	}
	return Node{}, false
}

// NewTemplate returns a new document holding a single start node at the
// canvas origin, the shape a "new flow" starts from.
func NewTemplate(reg *nodes.Registry, title string, ids IDGenerator) (Document, error) {
	if ids == nil {
		ids = NewUUIDGenerator()
	}
	data, err := reg.CreateDefaultData(nodes.Start)
	if err != nil {
		return Document{}, fmt.Errorf("flow: template: %w", err)
	}
	return Document{
		Nodes:    []Node{{ID: ids.NodeID(), Type: nodes.Start, Data: data}},
		Edges:    []Edge{},
		Metadata: Metadata{Title: title},
	}, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
