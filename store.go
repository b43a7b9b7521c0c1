package flow

import (
	"context"
	"errors"
	"time"
)

var ErrFlowNotFound = errors.New("flow: flow not found")

// Summary is the list view of a saved flow.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Enabled   bool      `json:"enabled"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the contract for persisting flow documents.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// SaveFlow replaces the stored document for flowID in one transaction,
	// creating it if needed.
	SaveFlow(ctx context.Context, flowID string, doc Document) error
	// GetFlow returns nil, nil if flowID was never saved.
	GetFlow(ctx context.Context, flowID string) (*Document, error)
	// DeleteFlow removes a flow with its nodes and edges.
	// No error if the flow doesn't exist.
	DeleteFlow(ctx context.Context, flowID string) error
	ListFlows(ctx context.Context) ([]Summary, error)
}
