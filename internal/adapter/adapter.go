// Package adapter connects chat platforms to the conversation engine.
// Each adapter normalizes inbound traffic into convo.Incoming/convo.Action
// and renders convo.Reply with its native affordances.
package adapter

import (
	"context"

	"github.com/ergcontrols/sahabot/internal/convo"
)

// Handler is the conversation engine as the adapters see it.
type Handler interface {
	HandleTurn(ctx context.Context, in convo.Incoming) convo.Reply
	HandleAction(ctx context.Context, act convo.Action) convo.Reply
}

// Adapter is one platform connection.
type Adapter interface {
	// Name returns the adapter name (e.g. "slack", "telegram").
	Name() string

	// Start begins listening (server or long-poll). Must respect context
	// cancellation.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the adapter.
	Stop(ctx context.Context) error

	// Health checks connectivity to the platform.
	Health(ctx context.Context) error

	// Post sends a plain message to a channel, used by scheduled reports.
	Post(ctx context.Context, channel, text string) error
}
