// Package logger configures the process-wide slog default and carries the
// per-turn identifiers through context. Every inbound message gets a trace
// ID (its delivery dedup token) and a conversation ID stamped by the
// adapters and the turn controller, so a failed commit can be tied back to
// the exact Slack or Telegram delivery that caused it.
package logger

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the tinted stderr handler as the slog default.
func Setup(level string) {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      parseLevel(level),
		TimeFormat: time.TimeOnly,
	})
	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type contextKey string

const (
	// TraceIDKey holds the transport delivery token of the current turn.
	TraceIDKey contextKey = "trace_id"
	// ConversationIDKey holds the conversation the turn belongs to.
	ConversationIDKey contextKey = "conversation_id"
)

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}

func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ConversationIDKey, id)
}

func GetConversationID(ctx context.Context) string {
	if id, ok := ctx.Value(ConversationIDKey).(string); ok {
		return id
	}
	return ""
}
