package flow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/meikuraledutech/flow/nodes"
)

// ParseError describes why a document could not be loaded. It matches
// ErrInvalidDocument with errors.Is.
type ParseError struct {
	Path string // e.g. "nodes[2].type"; empty for document-wide problems
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("flow: invalid document: %v", e.Err)
	}
	return fmt.Sprintf("flow: invalid document: %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrInvalidDocument }

func parseErr(path string, format string, args ...any) *ParseError {
	return &ParseError{Path: path, Err: fmt.Errorf(format, args...)}
}

// ToDocument serializes a flow. Payloads are embedded as they are; change
// callbacks and selection are left out.
func ToDocument(ns []Node, es []Edge, meta Metadata) ([]byte, error) {
	doc := Document{
		Nodes:    make([]Node, len(ns)),
		Edges:    make([]Edge, len(es)),
		Metadata: meta,
	}
	for i, n := range ns {
		if n.Data == nil {
			return nil, fmt.Errorf("flow: node %s has no data", n.ID)
		}
		doc.Nodes[i] = Node{ID: n.ID, Type: n.Type, Position: n.Position, Data: n.Data}
	}
	copy(doc.Edges, es)

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("flow: marshal document: %w", err)
	}
	return out, nil
}

type wireNode struct {
	ID       *string         `json:"id"`
	Type     *string         `json:"type"`
	Position *Position       `json:"position"`
	Data     json.RawMessage `json:"data"`
}

type wireEdge struct {
	ID           string  `json:"id"`
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	SourceHandle *string `json:"sourceHandle"`
	TargetHandle *string `json:"targetHandle"`
}

type wireDocument struct {
	Nodes    *[]wireNode `json:"nodes"`
	Edges    *[]wireEdge `json:"edges"`
	Metadata Metadata    `json:"metadata"`
}

// FromDocument parses a serialized flow. Node payloads are decoded and
// schema-checked through reg. Connection rules are not re-applied, but the
// document must be structurally sound (see Document.Validate). Any failure
// is a *ParseError and no partial document is returned.
func FromDocument(data []byte, reg *nodes.Registry) (Document, error) {
	var w wireDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return Document{}, &ParseError{Err: fmt.Errorf("malformed JSON: %w", err)}
	}
	if dec.More() {
		return Document{}, parseErr("", "trailing data after document")
	}
	if w.Nodes == nil {
		return Document{}, parseErr("nodes", "missing array")
	}
	if w.Edges == nil {
		return Document{}, parseErr("edges", "missing array")
	}

	doc := Document{
		Nodes:    make([]Node, 0, len(*w.Nodes)),
		Edges:    make([]Edge, 0, len(*w.Edges)),
		Metadata: w.Metadata,
	}
	for i, wn := range *w.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)
		if wn.ID == nil || *wn.ID == "" {
			return Document{}, parseErr(path+".id", "missing")
		}
		if wn.Type == nil || *wn.Type == "" {
			return Document{}, parseErr(path+".type", "missing")
		}
		if wn.Position == nil {
			return Document{}, parseErr(path+".position", "missing")
		}
		n, err := RestoreNode(reg, *wn.ID, nodes.Type(*wn.Type), *wn.Position, wn.Data)
		if err != nil {
			return Document{}, &ParseError{Path: path, Err: err}
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	for _, we := range *w.Edges {
		e := Edge{ID: we.ID, Source: we.Source, Target: we.Target}
		if we.SourceHandle != nil {
			e.SourceHandle = *we.SourceHandle
		}
		if we.TargetHandle != nil {
			e.TargetHandle = *we.TargetHandle
		}
		doc.Edges = append(doc.Edges, e)
	}

	if err := doc.Validate(reg); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// RestoreNode rebuilds a node from its stored parts, decoding data through
// the payload type registered for t.
func RestoreNode(reg *nodes.Registry, id string, t nodes.Type, pos Position, data []byte) (Node, error) {
	p, err := reg.Decode(t, data)
	if err != nil {
		return Node{}, err
	}
	return Node{ID: id, Type: t, Position: pos, Data: p}, nil
}

// Validate checks the structural soundness of d: unique non-empty node
// and edge ids, registered types with matching payloads, at most one start
// node, and edges whose endpoints exist. Dangling edges are an error, not
// something to repair.
func (d Document) Validate(reg *nodes.Registry) error {
	ids := make(map[string]struct{}, len(d.Nodes))
	starts := 0
	for i, n := range d.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)
		if n.ID == "" {
			return parseErr(path+".id", "missing")
		}
		if _, dup := ids[n.ID]; dup {
			return parseErr(path+".id", "duplicate node id %q", n.ID)
		}
		ids[n.ID] = struct{}{}
		if !reg.Has(n.Type) {
			return &ParseError{Path: path + ".type", Err: fmt.Errorf("%w: %q", ErrInvalidNodeType, n.Type)}
		}
		if err := reg.Validate(n.Type, n.Data); err != nil {
			return &ParseError{Path: path + ".data", Err: err}
		}
		if n.Type == nodes.Start {
			starts++
		}
	}
	if starts > 1 {
		return &ParseError{Path: "nodes", Err: fmt.Errorf("%w: %d start nodes", ErrStartExists, starts)}
	}

	edgeIDs := make(map[string]struct{}, len(d.Edges))
	for i, e := range d.Edges {
		path := fmt.Sprintf("edges[%d]", i)
		if e.ID == "" {
			return parseErr(path+".id", "missing")
		}
		if _, dup := edgeIDs[e.ID]; dup {
			return parseErr(path+".id", "duplicate edge id %q", e.ID)
		}
		edgeIDs[e.ID] = struct{}{}
		if _, ok := ids[e.Source]; !ok {
			return &ParseError{Path: path + ".source", Err: fmt.Errorf("%w: %q", ErrNodeNotFound, e.Source)}
		}
		if _, ok := ids[e.Target]; !ok {
			return &ParseError{Path: path + ".target", Err: fmt.Errorf("%w: %q", ErrNodeNotFound, e.Target)}
		}
	}
	return nil
}

// IsParseError reports whether err is a document parse failure.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
