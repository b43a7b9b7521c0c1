package flow

import (
	"fmt"
	"slices"

	"github.com/meikuraledutech/flow/nodes"
)

// Rejection reasons reported by ValidateConnection.
const (
	ReasonSelfConnection = "self-connection"
	ReasonUnknownNode    = "unknown node"
	ReasonTargetIsStart  = "cannot target start"
	ReasonDuplicate      = "duplicate connection"
	ReasonStartEgress    = "start node allows only one outgoing connection"
	ReasonUnknownHandle  = "unknown source handle"
)

// ConnectionError is returned when a proposed edge is rejected.
type ConnectionError struct {
	Connection Connection
	Reason     string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("flow: invalid connection %s -> %s: %s", e.Connection.Source, e.Connection.Target, e.Reason)
}

// ValidateConnection decides whether c may be added to the graph made of
// ns and es. It returns nil or a *ConnectionError; the first failing
// check wins:
//
//  1. source and target are the same node
//  2. source or target is not in the graph
//  3. target is the start node
//  4. an edge source -> target already exists
//  5. source is the start node and it already has an outgoing edge
//  6. source has named handles and c.SourceHandle is set but not one of them
func ValidateConnection(ns []Node, es []Edge, c Connection) error {
	reject := func(reason string) error {
		return &ConnectionError{Connection: c, Reason: reason}
	}

	if c.Source == c.Target {
		return reject(ReasonSelfConnection)
	}

	var src, dst *Node
	for i := range ns {
		switch ns[i].ID {
		case c.Source:
			src = &ns[i]
		case c.Target:
			dst = &ns[i]
		}
	}
	if src == nil || dst == nil {
		return reject(ReasonUnknownNode)
	}

	if dst.Type == nodes.Start {
		return reject(ReasonTargetIsStart)
	}

	for _, e := range es {
		if e.Source == c.Source && e.Target == c.Target {
			return reject(ReasonDuplicate)
		}
	}

	if src.Type == nodes.Start {
		for _, e := range es {
			if e.Source == src.ID {
				return reject(ReasonStartEgress)
			}
		}
	}

	if _, named := src.Data.(nodes.HandleProvider); named && c.SourceHandle != "" {
		if !slices.Contains(nodes.Handles(src.Data), c.SourceHandle) {
			return reject(ReasonUnknownHandle)
		}
	}

	return nil
}
