package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// JSONLSink appends one JSON object per line to a trail file. Records are
// never rewritten.
type JSONLSink struct {
	path string
	mu   sync.Mutex
}

// NewJSONLSink opens (or creates) the trail file at path.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	return &JSONLSink{path: path}, nil
}

// Write appends the record. An fsync failure here must not abort the turn,
// so callers log Write errors instead of propagating them.
func (s *JSONLSink) Write(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit trail: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// LogSink writes records to the process log only. Used in tests and the
// local REPL where no trail file is wanted.
type LogSink struct{}

func (LogSink) Write(ctx context.Context, rec Record) error {
	slog.Info("audit",
		"id", rec.ID,
		"actor", rec.Actor,
		"operation", rec.Operation,
		"outcome", rec.Outcome,
		"site_id", rec.SiteID,
		"ticket_id", rec.TicketID,
	)
	return nil
}
