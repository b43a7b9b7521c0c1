// Package server exposes flow editing sessions over HTTP.
//
// Each session is one Editor held in memory under a flow id. Sessions are
// written to and read from the Store only on explicit save and load.
package server

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/nodes"
)

var ErrNoStore = errors.New("flow: no store configured")

// Server holds the editing sessions and the store they save to.
type Server struct {
	registry   *nodes.Registry
	store      flow.Store
	logger     *slog.Logger
	editorOpts []flow.Option
	newIDs     func() flow.IDGenerator
	newFlowID  func() string

	mu       sync.RWMutex
	sessions map[string]*flow.Editor
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithEditorOptions adds options applied to every new session's Editor.
func WithEditorOptions(opts ...flow.Option) Option {
	return func(s *Server) { s.editorOpts = append(s.editorOpts, opts...) }
}

// WithIDGenerators sets how node and edge ids are minted per session.
func WithIDGenerators(f func() flow.IDGenerator) Option {
	return func(s *Server) { s.newIDs = f }
}

// WithFlowIDs sets how new flow ids are minted.
func WithFlowIDs(f func() string) Option {
	return func(s *Server) { s.newFlowID = f }
}

// New creates a Server. store may be nil, in which case save and load
// requests fail with 503.
func New(reg *nodes.Registry, store flow.Store, opts ...Option) *Server {
	s := &Server{
		registry: reg,
		store:    store,
		sessions: make(map[string]*flow.Editor),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.newIDs == nil {
		s.newIDs = func() flow.IDGenerator { return flow.NewUUIDGenerator() }
	}
	if s.newFlowID == nil {
		s.newFlowID = uuid.NewString
	}
	return s
}

// App returns a fiber app with every route registered.
func (s *Server) App() *fiber.App {
	app := fiber.New()
	s.Register(app)
	return app
}

// Register mounts the routes on app.
func (s *Server) Register(app fiber.Router) {
	app.Get("/node-types", s.listNodeTypes)

	// ── Sessions ──────────────────────────────────────────────────────
	app.Post("/flows", s.createFlow)
	app.Get("/flows/:id", s.getFlow)
	app.Delete("/flows/:id", s.closeFlow)
	app.Get("/flows/:id/export", s.exportFlow)
	app.Post("/flows/:id/import", s.importFlow)
	app.Put("/flows/:id/metadata", s.setMetadata)

	// ── Nodes ─────────────────────────────────────────────────────────
	app.Post("/flows/:id/nodes", s.addNode)
	app.Post("/flows/:id/nodes/:nodeId/duplicate", s.duplicateNode)
	app.Delete("/flows/:id/nodes/:nodeId", s.deleteNode)
	app.Patch("/flows/:id/nodes/:nodeId/data", s.updateNodeData)
	app.Put("/flows/:id/nodes/:nodeId/position", s.moveNode)

	// ── Edges ─────────────────────────────────────────────────────────
	app.Post("/flows/:id/edges", s.addEdge)
	app.Delete("/flows/:id/edges/:edgeId", s.deleteEdge)

	// ── Persistence ───────────────────────────────────────────────────
	app.Post("/flows/:id/save", s.saveFlow)
	app.Post("/flows/:id/load", s.loadFlow)
	app.Get("/saved", s.listSaved)
	app.Delete("/saved/:id", s.deleteSaved)
}

func (s *Server) newEditor(ids flow.IDGenerator) *flow.Editor {
	opts := []flow.Option{flow.WithIDGenerator(ids), flow.WithLogger(s.logger)}
	return flow.NewEditor(s.registry, append(opts, s.editorOpts...)...)
}

func (s *Server) session(id string) (*flow.Editor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ed, ok := s.sessions[id]
	return ed, ok
}

func (s *Server) putSession(id string, ed *flow.Editor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = ed
}

// loadSession opens doc as the session for id. An open session is reloaded
// in place, otherwise a new one is registered; concurrent loads of one id
// end up sharing a single editor.
func (s *Server) loadSession(id string, doc flow.Document) (*flow.Editor, error) {
	fresh := s.newEditor(s.newIDs())
	if err := fresh.Load(doc); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ed, ok := s.sessions[id]; ok {
		if err := ed.Load(doc); err != nil {
			return nil, err
		}
		return ed, nil
	}
	s.sessions[id] = fresh
	return fresh, nil
}

func (s *Server) dropSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}
