// Package idempotency deduplicates message deliveries. Chat platforms
// redeliver events on slow acks, so every inbound event carries a dedup
// token; a token seen within its TTL is answered with the cached reply
// instead of being processed again.
package idempotency

import (
	"bytes"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

type entry struct {
	Expiry int64  `json:"expiry"` // Unix timestamp
	Reply  string `json:"reply,omitempty"`
}

type processedTokens struct {
	Tokens map[string]entry `json:"tokens"`
}

// Store tracks processed dedup tokens with their replies. Persisted so a
// restart does not double-commit events Slack redelivers during the gap.
type Store struct {
	path  string
	state processedTokens
	mu    sync.RWMutex
}

// NewStore loads (or creates) the token file at path. Empty path keeps the
// store memory-only.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path: path,
		state: processedTokens{
			Tokens: make(map[string]entry),
		},
	}
	if path == "" {
		return s, nil
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s.save()
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return err
	}
	if s.state.Tokens == nil {
		s.state.Tokens = make(map[string]entry)
	}
	return nil
}

func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(data))
}

// Save flushes the current state to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// CheckAndMark reports whether token was already processed within its TTL.
// A fresh token is marked immediately so concurrent deliveries of the same
// event cannot both pass; the second caller gets seen=true with whatever
// reply has been recorded so far (possibly empty while the first is still
// in flight).
func (s *Store) CheckAndMark(token string, ttl time.Duration) (seen bool, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()

	if e, exists := s.state.Tokens[token]; exists {
		if e.Expiry > now {
			return true, e.Reply
		}
		delete(s.state.Tokens, token)
	}

	s.state.Tokens[token] = entry{Expiry: now + int64(ttl.Seconds())}
	return false, ""
}

// RecordReply attaches the outgoing reply to an already-marked token so a
// later redelivery can be answered verbatim.
func (s *Store) RecordReply(token, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.state.Tokens[token]
	if !exists {
		return
	}
	e.Reply = reply
	s.state.Tokens[token] = e
}

// Prune drops expired tokens and returns how many were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	count := 0
	for token, e := range s.state.Tokens {
		if e.Expiry < now {
			delete(s.state.Tokens, token)
			count++
		}
	}
	return count
}
