package server

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/nodes"
)

type nodeTypeResponse struct {
	Type     nodes.Type    `json:"type"`
	Defaults nodes.Payload `json:"defaults"`
}

type createFlowRequest struct {
	Title    string `json:"title"`
	Template bool   `json:"template"`
}

type flowResponse struct {
	ID       string        `json:"id"`
	Document flow.Document `json:"document"`
	Selected []string      `json:"selected"`
}

// addNodeRequest places a node by canvas position, by drop point in
// screen space, or at the centre of the viewport.
type addNodeRequest struct {
	Type     nodes.Type        `json:"type"`
	Position *flow.Position    `json:"position"`
	Screen   *flow.ScreenPoint `json:"screen"`
	Center   bool              `json:"center"`
	Viewport *flow.Transform   `json:"viewport"`
}

func (s *Server) listNodeTypes(c fiber.Ctx) error {
	out := []nodeTypeResponse{}
	for _, t := range s.registry.Types() {
		data, err := s.registry.CreateDefaultData(t)
		if err != nil {
			return s.fail(c, err)
		}
		out = append(out, nodeTypeResponse{Type: t, Defaults: data})
	}
	return c.JSON(out)
}

func (s *Server) createFlow(c fiber.Ctx) error {
	var req createFlowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
	}

	ids := s.newIDs()
	ed := s.newEditor(ids)
	if req.Template {
		doc, err := flow.NewTemplate(s.registry, req.Title, ids)
		if err != nil {
			return s.fail(c, err)
		}
		if err := ed.Load(doc); err != nil {
			return s.fail(c, err)
		}
	} else {
		ed.SetMetadata(flow.Metadata{Title: req.Title})
	}

	id := s.newFlowID()
	s.putSession(id, ed)
	s.logger.Info("flow session opened", "flow", id, "template", req.Template)
	return c.Status(201).JSON(flowResponse{ID: id, Document: ed.Snapshot(), Selected: []string{}})
}

func (s *Server) getFlow(c fiber.Ctx) error {
	ed, ok := s.session(c.Params("id"))
	if !ok {
		return flowNotFound(c)
	}
	selected := ed.Selected()
	if selected == nil {
		selected = []string{}
	}
	return c.JSON(flowResponse{ID: c.Params("id"), Document: ed.Snapshot(), Selected: selected})
}

func (s *Server) closeFlow(c fiber.Ctx) error {
	if !s.dropSession(c.Params("id")) {
		return flowNotFound(c)
	}
	return c.SendStatus(204)
}

func (s *Server) exportFlow(c fiber.Ctx) error {
	ed, ok := s.session(c.Params("id"))
	if !ok {
		return flowNotFound(c)
	}
	raw, err := ed.Export()
	if err != nil {
		return s.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}

func (s *Server) importFlow(c fiber.Ctx) error {
	ed, ok := s.session(c.Params("id"))
	if !ok {
		return flowNotFound(c)
	}
	if err := ed.Import(slices.Clone(c.Body())); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(ed.Snapshot())
}

func (s *Server) setMetadata(c fiber.Ctx) error {
	ed, ok := s.session(c.Params("id"))
	if !ok {
		return flowNotFound(c)
	}
	var meta flow.Metadata
	if err := c.Bind().JSON(&meta); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	ed.SetMetadata(meta)
	return c.SendStatus(204)
}

func (s *Server) addNode(c fiber.Ctx) error {
	ed, ok := s.session(c.Params("id"))
	if !ok {
		return flowNotFound(c)
	}
	var req addNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	var (
		id  string
		err error
	)
	switch {
	case req.Position != nil:
		id, err = ed.AddNode(req.Type, *req.Position)
	case req.Viewport != nil && req.Center:
		id, err = ed.PlaceNodeAtCenter(req.Type, *req.Viewport)
	case req.Viewport != nil && req.Screen != nil:
		id, err = ed.PlaceNode(req.Type, *req.Screen, *req.Viewport)
	default:
		return c.Status(400).JSON(fiber.Map{"error": "position, screen or center with a viewport is required"})
	}
	if err != nil {
		return s.fail(c, err)
	}
	n, _ := ed.Node(id)
	return c.Status(201).JSON(n)
}

func (s *Server) duplicateNode(c fiber.Ctx) error {
	ed, ok := s.session(c.Params("id"))
	if !ok {
		return flowNotFound(c)
	}
	id, err := ed.DuplicateNode(c.Params("nodeId"))
	if err != nil {
		return s.fail(c, err)
	}
	if id == "" {
		return c.Status(404).JSON(fiber.Map{"error": "node not found"})
	}
	n, _ := ed.Node(id)
	return c.Status(201).JSON(n)
}

func (s *Server) deleteNode(c fiber.Ctx) error {
	ed, ok := s.session(c.Params("id"))
	if !ok {
		return flowNotFound(c)
	}
	ed.DeleteNode(c.Params("nodeId"))
	return c.SendStatus(204)
}

func (s *Server) updateNodeData(c fiber.Ctx) error {
	ed, ok := s.session(c.Params("id"))
	if !ok {
		return flowNotFound(c)
	}
	nodeID := c.Params("nodeId")
	if err := ed.UpdateNodeData(nodeID, json.RawMessage(slices.Clone(c.Body()))); err != nil {
		return s.fail(c, err)
	}
	n, _ := ed.Node(nodeID)
	return c.JSON(n)
}

func (s *Server) moveNode(c fiber.Ctx) error {
	ed, ok := s.session(c.Params("id"))
	if !ok {
		return flowNotFound(c)
	}
	var pos flow.Position
	if err := c.Bind().JSON(&pos); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := ed.MoveNode(c.Params("nodeId"), pos); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(204)
}

func (s *Server) addEdge(c fiber.Ctx) error {
	ed, ok := s.session(c.Params("id"))
	if !ok {
		return flowNotFound(c)
	}
	var conn flow.Connection
	if err := c.Bind().JSON(&conn); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	id, err := ed.AddEdge(conn)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"id": id})
}

func (s *Server) deleteEdge(c fiber.Ctx) error {
	ed, ok := s.session(c.Params("id"))
	if !ok {
		return flowNotFound(c)
	}
	ed.DeleteEdge(c.Params("edgeId"))
	return c.SendStatus(204)
}

func (s *Server) saveFlow(c fiber.Ctx) error {
	if s.store == nil {
		return s.fail(c, ErrNoStore)
	}
	id := c.Params("id")
	ed, ok := s.session(id)
	if !ok {
		return flowNotFound(c)
	}
	if err := s.store.SaveFlow(c.Context(), id, ed.Snapshot()); err != nil {
		return s.fail(c, err)
	}
	s.logger.Info("flow saved", "flow", id)
	return c.SendStatus(204)
}

// loadFlow replaces the session's flow with the saved one, opening a
// session under that id if there is none.
func (s *Server) loadFlow(c fiber.Ctx) error {
	if s.store == nil {
		return s.fail(c, ErrNoStore)
	}
	id := c.Params("id")
	doc, err := s.store.GetFlow(c.Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	if doc == nil {
		return flowNotFound(c)
	}

	ed, err := s.loadSession(id, *doc)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(flowResponse{ID: id, Document: ed.Snapshot(), Selected: []string{}})
}

func (s *Server) listSaved(c fiber.Ctx) error {
	if s.store == nil {
		return s.fail(c, ErrNoStore)
	}
	list, err := s.store.ListFlows(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(list)
}

func (s *Server) deleteSaved(c fiber.Ctx) error {
	if s.store == nil {
		return s.fail(c, ErrNoStore)
	}
	if err := s.store.DeleteFlow(c.Context(), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(204)
}

func flowNotFound(c fiber.Ctx) error {
	return c.Status(404).JSON(fiber.Map{"error": "flow not found"})
}

// fail writes err with the status its kind maps to.
func (s *Server) fail(c fiber.Ctx, err error) error {
	code := statusFor(err)
	body := fiber.Map{"error": err.Error()}

	var pe *flow.ParseError
	var ce *flow.ConnectionError
	switch {
	case errors.As(err, &pe):
		body["path"] = pe.Path
	case errors.As(err, &ce):
		body["reason"] = ce.Reason
	}

	if code >= 500 {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	} else {
		s.logger.Warn("request rejected", "method", c.Method(), "path", c.Path(), "status", code, "error", err)
	}
	return c.Status(code).JSON(body)
}

func statusFor(err error) int {
	var ce *flow.ConnectionError
	switch {
	case flow.IsParseError(err):
		return 400
	case errors.As(err, &ce):
		return 422
	case errors.Is(err, flow.ErrStartExists):
		return 409
	case errors.Is(err, flow.ErrNodeNotFound), errors.Is(err, flow.ErrFlowNotFound):
		return 404
	case errors.Is(err, flow.ErrInvalidNodeType),
		errors.Is(err, flow.ErrInvalidPayload),
		errors.Is(err, flow.ErrInvalidDocument),
		errors.Is(err, flow.ErrViewportUnmeasured):
		return 400
	case errors.Is(err, ErrNoStore):
		return 503
	default:
		return 500
	}
}
