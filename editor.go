package flow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/meikuraledutech/flow/nodes"
)

// DefaultDuplicateOffset is how far a duplicate is placed from its source.
var DefaultDuplicateOffset = Position{X: 50, Y: 50}

// Editor owns one flow graph and is the only thing that mutates it. Every
// operation runs under one lock and either applies fully or leaves the
// graph as it was.
type Editor struct {
	mu       sync.Mutex
	registry *nodes.Registry
	ids      IDGenerator
	logger   *slog.Logger
	offset   Position

	nodes []Node
	edges []Edge
	meta  Metadata
}

// Option configures an Editor.
type Option func(*Editor)

// WithIDGenerator replaces the UUID based id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Editor) { e.ids = g }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// WithDuplicateOffset changes the offset used by DuplicateNode.
func WithDuplicateOffset(p Position) Option {
	return func(e *Editor) { e.offset = p }
}

// NewEditor returns an editor holding an empty flow.
func NewEditor(reg *nodes.Registry, opts ...Option) *Editor {
	e := &Editor{
		registry: reg,
		offset:   DefaultDuplicateOffset,
		nodes:    []Node{},
		edges:    []Edge{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ids == nil {
		e.ids = NewUUIDGenerator()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Registry returns the node type registry the editor validates against.
func (e *Editor) Registry() *nodes.Registry { return e.registry }

// AddNode creates a node of type t at pos with default data and returns
// its id.
func (e *Editor) AddNode(t nodes.Type, pos Position) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addNode(t, pos)
}

// PlaceNode adds a node where a drag was dropped, given in screen space.
func (e *Editor) PlaceNode(t nodes.Type, at ScreenPoint, tr Transform) (string, error) {
	pos, err := ToCanvasPosition(at, tr)
	if err != nil {
		return "", err
	}
	return e.AddNode(t, pos)
}

// PlaceNodeAtCenter adds a node in the middle of the visible canvas.
func (e *Editor) PlaceNodeAtCenter(t nodes.Type, tr Transform) (string, error) {
	center, err := tr.Center()
	if err != nil {
		return "", err
	}
	return e.PlaceNode(t, center, tr)
}

func (e *Editor) addNode(t nodes.Type, pos Position) (string, error) {
	data, err := e.registry.CreateDefaultData(t)
	if err != nil {
		return "", err
	}
	if t == nodes.Start && e.hasStart() {
		return "", ErrStartExists
	}
	n := Node{ID: e.ids.NodeID(), Type: t, Position: pos, Data: data}
	e.nodes = append(e.nodes, n)
	e.logger.Debug("node added", "id", n.ID, "type", t, "x", pos.X, "y", pos.Y)
	return n.ID, nil
}

// DuplicateNode copies the node id by the editor's duplicate offset.
// See DuplicateNodeWithOffset.
func (e *Editor) DuplicateNode(id string) (string, error) {
	return e.DuplicateNodeWithOffset(id, e.offset)
}

// DuplicateNodeWithOffset adds a node of the same type as id at its
// position plus offset, with content cleared and structural fields kept.
// If that spot already holds a node the copy steps on by offset until it
// finds a free one, so repeated duplicates fan out. Stepping gives up after
// one step per node, or as soon as the offset no longer moves the position. The copy becomes the
// only selected node. A missing source is not an error: it returns "" and
// changes nothing.
func (e *Editor) DuplicateNodeWithOffset(id string, offset Position) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOfNode(id)
	if i < 0 {
		e.logger.Debug("duplicate of missing node ignored", "id", id)
		return "", nil
	}
	src := e.nodes[i]
	if src.Type == nodes.Start {
		return "", ErrStartExists
	}
	data, err := e.registry.EmptyDataFor(src.Type, src.Data)
	if err != nil {
		return "", err
	}

	pos := src.Position.Add(offset)
	if offset != (Position{}) {
		taken := make(map[Position]struct{}, len(e.nodes))
		for _, n := range e.nodes {
			taken[n.Position] = struct{}{}
		}
		for range len(e.nodes) {
			if _, ok := taken[pos]; !ok {
				break
			}
			next := pos.Add(offset)
			if next == pos {
				// offset is below float precision at this magnitude
				pos = src.Position.Add(offset)
				break
			}
			pos = next
		}
	}

	dup := Node{ID: e.ids.NodeID(), Type: src.Type, Position: pos, Data: data, Selected: true}
	for j := range e.nodes {
		e.nodes[j].Selected = false
	}
	e.nodes = append(e.nodes, dup)
	e.logger.Debug("node duplicated", "source", id, "id", dup.ID, "type", dup.Type)
	return dup.ID, nil
}

// DeleteNode removes a node together with every edge that starts or ends
// at it. It reports whether the node existed.
func (e *Editor) DeleteNode(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOfNode(id)
	if i < 0 {
		return false
	}
	e.nodes = slices.Delete(e.nodes, i, i+1)
	before := len(e.edges)
	e.edges = slices.DeleteFunc(e.edges, func(ed Edge) bool {
		return ed.Source == id || ed.Target == id
	})
	e.logger.Debug("node deleted", "id", id, "edges_removed", before-len(e.edges))
	return true
}

// CanConnect runs the connection rules against the current graph without
// changing it.
func (e *Editor) CanConnect(c Connection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ValidateConnection(e.nodes, e.edges, c)
}

// AddEdge validates c and, if accepted, appends it under a fresh id.
// Rejections are returned as *ConnectionError.
func (e *Editor) AddEdge(c Connection) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ValidateConnection(e.nodes, e.edges, c); err != nil {
		e.logger.Debug("connection rejected", "source", c.Source, "target", c.Target, "error", err)
		return "", err
	}
	ed := Edge{
		ID:           e.ids.EdgeID(c.Source, c.Target),
		Source:       c.Source,
		Target:       c.Target,
		SourceHandle: c.SourceHandle,
		TargetHandle: c.TargetHandle,
	}
	if slices.ContainsFunc(e.edges, func(x Edge) bool { return x.ID == ed.ID }) {
		return "", fmt.Errorf("flow: edge id %q already in use", ed.ID)
	}
	e.edges = append(e.edges, ed)
	e.logger.Debug("edge added", "id", ed.ID, "source", c.Source, "target", c.Target)
	return ed.ID, nil
}

// DeleteEdge removes one edge and reports whether it existed.
func (e *Editor) DeleteEdge(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := slices.IndexFunc(e.edges, func(ed Edge) bool { return ed.ID == id })
	if i < 0 {
		return false
	}
	e.edges = slices.Delete(e.edges, i, i+1)
	e.logger.Debug("edge deleted", "id", id)
	return true
}

// Reporter returns the change callback bound to node id.
func (e *Editor) Reporter(id string) ChangeFunc {
	return func(patch json.RawMessage) error {
		return e.UpdateNodeData(id, patch)
	}
}

// UpdateNodeData merges patch into the data of node id. The result must
// satisfy the node type's schema. Edges leaving through a handle the new
// data no longer exposes are removed with it.
func (e *Editor) UpdateNodeData(id string, patch json.RawMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOfNode(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	data, err := e.registry.Patch(e.nodes[i].Data, patch)
	if err != nil {
		return err
	}
	e.nodes[i].Data = data

	if _, ok := data.(nodes.HandleProvider); ok {
		handles := nodes.Handles(data)
		e.edges = slices.DeleteFunc(e.edges, func(ed Edge) bool {
			return ed.Source == id && ed.SourceHandle != "" && !slices.Contains(handles, ed.SourceHandle)
		})
	}
	e.logger.Debug("node data updated", "id", id)
	return nil
}

// MoveNode sets the canvas position of node id.
func (e *Editor) MoveNode(id string, pos Position) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOfNode(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	e.nodes[i].Position = pos
	return nil
}

// Select makes node id the only selected node.
func (e *Editor) Select(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.indexOfNode(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	for i := range e.nodes {
		e.nodes[i].Selected = e.nodes[i].ID == id
	}
	return nil
}

// ClearSelection deselects every node.
func (e *Editor) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.nodes {
		e.nodes[i].Selected = false
	}
}

// SetMetadata replaces the title and enabled flag.
func (e *Editor) SetMetadata(m Metadata) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.meta = m
}

// Node returns a copy of node id, wired to report changes back here.
func (e *Editor) Node(id string) (Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOfNode(id)
	if i < 0 {
		return Node{}, false
	}
	n, err := e.copyNode(e.nodes[i])
	if err != nil {
		e.logger.Error("copy node", "id", id, "error", err)
		return Node{}, false
	}
	n.report = e.Reporter(id)
	return n, true
}

// Snapshot returns a deep copy of the current flow. The copy shares
// nothing with the editor and carries no change callbacks.
func (e *Editor) Snapshot() Document {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc := Document{
		Nodes:    make([]Node, 0, len(e.nodes)),
		Edges:    slices.Clone(e.edges),
		Metadata: e.meta,
	}
	skipped := make(map[string]struct{})
	for _, n := range e.nodes {
		c, err := e.copyNode(n)
		if err != nil {
			// payloads always come from the registry, so this means a
			// payload type that cannot round-trip through JSON
			e.logger.Error("snapshot node", "id", n.ID, "error", err)
			skipped[n.ID] = struct{}{}
			continue
		}
		doc.Nodes = append(doc.Nodes, c)
	}
	if len(skipped) > 0 {
		doc.Edges = slices.DeleteFunc(doc.Edges, func(ed Edge) bool {
			_, src := skipped[ed.Source]
			_, dst := skipped[ed.Target]
			return src || dst
		})
	}
	return doc
}

// Selected returns the ids of selected nodes.
func (e *Editor) Selected() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ids []string
	for _, n := range e.nodes {
		if n.Selected {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Export serializes the current flow.
func (e *Editor) Export() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ToDocument(e.nodes, e.edges, e.meta)
}

// Import parses data and, on success, replaces the whole flow with it. On
// failure the current flow is left untouched.
func (e *Editor) Import(data []byte) error {
	doc, err := FromDocument(data, e.registry)
	if err != nil {
		return err
	}
	return e.Load(doc)
}

// Load replaces the whole flow with a copy of doc after checking its
// structure.
func (e *Editor) Load(doc Document) error {
	if err := doc.Validate(e.registry); err != nil {
		return err
	}

	ns := make([]Node, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		c, err := e.copyNode(n)
		if err != nil {
			return err
		}
		c.Selected = false
		ns = append(ns, c)
	}
	es := slices.Clone(doc.Edges)
	if es == nil {
		es = []Edge{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.nodes, e.edges, e.meta = ns, es, doc.Metadata
	e.logger.Debug("flow loaded", "nodes", len(ns), "edges", len(es))
	return nil
}

func (e *Editor) copyNode(n Node) (Node, error) {
	data, err := e.registry.Clone(n.Data)
	if err != nil {
		return Node{}, err
	}
	return Node{ID: n.ID, Type: n.Type, Position: n.Position, Data: data, Selected: n.Selected}, nil
}

func (e *Editor) indexOfNode(id string) int {
	return slices.IndexFunc(e.nodes, func(n Node) bool { return n.ID == id })
}

func (e *Editor) hasStart() bool {
	return slices.ContainsFunc(e.nodes, func(n Node) bool { return n.Type == nodes.Start })
}
