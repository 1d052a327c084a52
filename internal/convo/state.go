// Package convo holds the conversation engine: per-conversation state
// accumulated across turns, the merge rules, and the controller that turns
// classified messages into prompts, confirmations and commits.
package convo

import (
	"time"

	"github.com/ergcontrols/sahabot/internal/classify"
	"github.com/ergcontrols/sahabot/internal/registry"
)

// Awaiting names what the conversation is blocked on.
type Awaiting int

const (
	AwaitingNothing Awaiting = iota
	AwaitingFields
	AwaitingConfirm
	AwaitingDisambiguation
	AwaitingSideQuestion
	AwaitingFeedbackNote
	AwaitingChainInput
)

// FieldMap is the typed accumulation of extracted data: scalar fields plus
// an optional list of per-device entries for bulk hardware updates.
type FieldMap struct {
	Scalars map[string]string
	Entries []map[string]string
}

func NewFieldMap() FieldMap {
	return FieldMap{Scalars: make(map[string]string)}
}

// Has reports whether field holds a non-empty value. A bulk entries list
// counts for device_type and qty.
func (f FieldMap) Has(field string) bool {
	if f.Scalars[field] != "" {
		return true
	}
	if len(f.Entries) > 0 && (field == "device_type" || field == "qty") {
		return true
	}
	return false
}

// Get returns the scalar value of field, empty when absent.
func (f FieldMap) Get(field string) string {
	return f.Scalars[field]
}

// Set stores a scalar value; empty values are dropped rather than stored.
func (f *FieldMap) Set(field, value string) {
	if f.Scalars == nil {
		f.Scalars = make(map[string]string)
	}
	if value == "" {
		delete(f.Scalars, field)
		return
	}
	f.Scalars[field] = value
}

// Clone deep-copies the map so snapshots given to the executor cannot be
// mutated by a later turn.
func (f FieldMap) Clone() FieldMap {
	out := NewFieldMap()
	for k, v := range f.Scalars {
		out.Scalars[k] = v
	}
	for _, e := range f.Entries {
		entry := make(map[string]string, len(e))
		for k, v := range e {
			entry[k] = v
		}
		out.Entries = append(out.Entries, entry)
	}
	return out
}

// State is everything remembered about one conversation between turns.
type State struct {
	ConversationID string
	Operation      registry.Operation
	Data           FieldMap
	Missing        []string

	// InitiatingUser gates confirm/cancel; nobody else may approve a write.
	InitiatingUser string
	SenderName     string
	Language       string
	RawMessage     string

	History []classify.Message

	Awaiting Awaiting
	Chain    *Chain

	// DuplicateOverride is set once the user has been warned about a
	// similar existing entry; the next confirmation writes anyway.
	DuplicateOverride bool
	// SideQuestionDone blocks a second stock side-question in one
	// conversation.
	SideQuestionDone bool
	// FeedbackOp remembers which operation a pending 👎 note refers to.
	FeedbackOp registry.Operation

	TicketID string

	CreatedAt   time.Time
	LastTouched time.Time
}

// NewState starts a conversation for the given id and first sender.
func NewState(conversationID, actorID, senderName string) *State {
	now := time.Now()
	return &State{
		ConversationID: conversationID,
		Operation:      registry.OpNone,
		Data:           NewFieldMap(),
		InitiatingUser: actorID,
		SenderName:     senderName,
		Language:       "tr",
		CreatedAt:      now,
		LastTouched:    now,
	}
}

// ResetOperation clears operation-scoped state while keeping the residual
// identifiers (site, ticket, language) that make follow-up messages cheap.
func (s *State) ResetOperation() {
	siteID := s.Data.Get("site_id")
	s.Operation = registry.OpNone
	s.Data = NewFieldMap()
	if siteID != "" {
		s.Data.Set("site_id", siteID)
	}
	s.Missing = nil
	s.Awaiting = AwaitingNothing
	s.DuplicateOverride = false
}

// Touch refreshes the TTL clock.
func (s *State) Touch() {
	s.LastTouched = time.Now()
}

// AppendHistory records a turn for the classifier context, trimming to
// limit messages.
func (s *State) AppendHistory(role, content string, limit int) {
	s.History = append(s.History, classify.Message{Role: role, Content: content})
	if limit > 0 && len(s.History) > limit {
		s.History = s.History[len(s.History)-limit:]
	}
}
