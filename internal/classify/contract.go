// Package classify wraps the language-model call that turns free text into
// a structured operation candidate. The model is treated as a fallible,
// non-deterministic collaborator: its missing-field list is advisory and
// the controller recomputes it from the registry.
package classify

import (
	"strconv"
	"strings"
	"time"

	"github.com/ergcontrols/sahabot/internal/registry"
)

// Message is one prior turn fed back to the model for multi-turn context.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request carries one classification call.
type Request struct {
	Text       string
	SenderName string
	History    []Message
	// SitesContext is a compact "Site ID | Customer" table so the model
	// prefers update_site over create_site for existing customers.
	SitesContext string
	Today        time.Time
}

// ExtraOperation is a follow-on operation bundled in the same message
// ("new site X, and it has 10 tags" fans out into a chain).
type ExtraOperation struct {
	Operation registry.Operation `json:"operation"`
	Data      map[string]any     `json:"data"`
}

// Blocking error tags. A future-dated event is rejected outright, never
// converted to a Scheduled status.
const (
	BlockingFutureDate = "future_date"
)

// Result is the structured classification of one message.
type Result struct {
	Operation registry.Operation `json:"operation"`
	Data      map[string]any     `json:"data"`
	// MissingSuggested is what the model thinks is missing. Advisory only.
	MissingSuggested   []string         `json:"missing_fields"`
	ClarifyingQuestion string           `json:"message,omitempty"`
	ChainExtension     []ExtraOperation `json:"extra_operations,omitempty"`
	Language           string           `json:"language"`
	Warnings           []string         `json:"warnings,omitempty"`
	BlockingError      string           `json:"error,omitempty"`
}

// StringField returns a data field coerced to string, or "".
func (r *Result) StringField(name string) string {
	if r.Data == nil {
		return ""
	}
	return Coerce(r.Data[name])
}

// Coerce flattens a decoded JSON value to its cell representation. Models
// emit quantities as numbers or strings interchangeably; the workbook only
// holds strings.
func Coerce(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
