// Package nodes defines the automation node types, their configuration
// payloads and the registry that produces default and duplicated payloads.
package nodes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Type is the tag of a node type.
type Type string

const (
	Start         Type = "start"
	Delay         Type = "delay"
	Goal          Type = "goal"
	AskQuestion   Type = "ask-question"
	MediaButton   Type = "media-button"
	TextButton    Type = "text-button"
	Template      Type = "template"
	List          Type = "list"
	SingleProduct Type = "single-product"
	MultiProduct  Type = "multi-product"
	Catalog       Type = "catalog"
	SetVariable   Type = "set-variable"
	Summary       Type = "summary"
)

var (
	ErrInvalidType    = errors.New("Invalid node type")
	ErrInvalidPayload = errors.New("invalid node data")
)

// Payload is the type-specific configuration carried by a node.
// Implementations are pointers to plain structs that round-trip through JSON.
type Payload interface {
	NodeType() Type
}

// HandleProvider is implemented by payloads that expose one named output
// handle per entry (button, list row).
type HandleProvider interface {
	Handles() []string
}

// Handles returns the named output handles of p, or nil if p has a single
// unnamed output.
func Handles(p Payload) []string {
	if hp, ok := p.(HandleProvider); ok {
		return hp.Handles()
	}
	return nil
}

// Factory describes one node type.
type Factory struct {
	// New returns a payload with every field at its safe default.
	New func() Payload
	// Duplicate returns the payload for a copy of a node whose data is prev.
	// Content is reset; only structural fields are carried over. A nil
	// Duplicate means a copy starts from New.
	Duplicate func(prev Payload) Payload
	// Schema is a JSON schema the serialized payload must satisfy.
	Schema []byte
}

// Registry maps type tags to factories. It is built once and then only read.
type Registry struct {
	factories map[Type]Factory
	schemas   map[Type]*gojsonschema.Schema
	order     []Type
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Type]Factory),
		schemas:   make(map[Type]*gojsonschema.Schema),
	}
}

// Register adds a node type. It fails on an empty tag, a missing New func,
// a tag registered twice or a schema that does not compile.
func (r *Registry) Register(t Type, f Factory) error {
	if t == "" {
		return fmt.Errorf("nodes: empty type tag")
	}
	if f.New == nil {
		return fmt.Errorf("nodes: type %q has no default factory", t)
	}
	if _, ok := r.factories[t]; ok {
		return fmt.Errorf("nodes: type %q already registered", t)
	}
	if len(f.Schema) > 0 {
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(f.Schema))
		if err != nil {
			return fmt.Errorf("nodes: compile schema for %q: %w", t, err)
		}
		r.schemas[t] = s
	}
	r.factories[t] = f
	r.order = append(r.order, t)
	return nil
}

// Has reports whether t is registered.
func (r *Registry) Has(t Type) bool {
	_, ok := r.factories[t]
	return ok
}

// Types returns the registered tags in registration order.
func (r *Registry) Types() []Type {
	return slices.Clone(r.order)
}

// CreateDefaultData returns the payload for a new node of type t.
func (r *Registry) CreateDefaultData(t Type) (Payload, error) {
	f, ok := r.factories[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
	return f.New(), nil
}

// EmptyDataFor returns the payload for a duplicate of a node of type t
// whose current data is prev. A prev of another type is ignored.
func (r *Registry) EmptyDataFor(t Type, prev Payload) (Payload, error) {
	f, ok := r.factories[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
	if f.Duplicate == nil || prev == nil || prev.NodeType() != t {
		return f.New(), nil
	}
	return f.Duplicate(prev), nil
}

// Decode validates raw against the schema of t and decodes it over the
// defaults of t, so absent fields keep their default values. Empty or null
// input yields the defaults.
func (r *Registry) Decode(t Type, raw []byte) (Payload, error) {
	p, err := r.CreateDefaultData(t)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return p, nil
	}
	if err := r.validate(t, raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, t, err)
	}
	return p, nil
}

// Validate checks an in-memory payload against the schema of t.
func (r *Registry) Validate(t Type, p Payload) error {
	if !r.Has(t) {
		return fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
	if p == nil || p.NodeType() != t {
		return fmt.Errorf("%w: payload is not a %s payload", ErrInvalidPayload, t)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return r.validate(t, raw)
}

// Clone returns a deep copy of p.
func (r *Registry) Clone(p Payload) (Payload, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("nodes: clone %s: %w", p.NodeType(), err)
	}
	fresh, ok := reflect.New(reflect.TypeOf(p).Elem()).Interface().(Payload)
	if !ok {
		return nil, fmt.Errorf("nodes: clone %s: payload is not a pointer", p.NodeType())
	}
	if err := json.Unmarshal(raw, fresh); err != nil {
		return nil, fmt.Errorf("nodes: clone %s: %w", p.NodeType(), err)
	}
	return fresh, nil
}

// Patch applies a shallow merge patch to p: every top-level key of patch
// replaces the matching field. The result is validated and returned as a
// new payload; p is left untouched.
func (r *Registry) Patch(p Payload, patch []byte) (Payload, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrInvalidPayload)
	}
	var changes map[string]json.RawMessage
	if err := json.Unmarshal(patch, &changes); err != nil {
		return nil, fmt.Errorf("%w: patch must be a JSON object: %v", ErrInvalidPayload, err)
	}
	cur, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(cur, &merged); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	for k, v := range changes {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return r.Decode(p.NodeType(), raw)
}

func (r *Registry) validate(t Type, raw []byte) error {
	s, ok := r.schemas[t]
	if !ok {
		return nil
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, t, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, desc := range res.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, t, strings.Join(msgs, "; "))
}
