// Package audit records every commit attempt: who asked for what, what was
// written, and how it ended. One record per attempt, terminal outcomes
// included, so the trail explains the workbook even when nothing was written.
package audit

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Outcome of a single attempt.
const (
	OutcomeCommitted = "committed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeSkipped   = "skipped"
)

// Record is one audit trail entry.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Operation string    `json:"operation"`
	Outcome   string    `json:"outcome"`
	SiteID    string    `json:"site_id,omitempty"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	RawInput  string    `json:"raw_input,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Sink receives audit records. Implementations must not lose records on
// concurrent writes.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// NewRecord stamps a record with a fresh ULID and the current time.
func NewRecord(actor, operation, outcome string) Record {
	return Record{
		ID:        ulid.Make().String(),
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Operation: operation,
		Outcome:   outcome,
	}
}
