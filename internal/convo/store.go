package convo

import (
	"log/slog"
	"sync"
	"time"
)

// lockManager serializes per-conversation processing so two deliveries for
// the same channel never interleave mid-turn.
type lockManager struct {
	locks map[string]*sync.Mutex
	mu    sync.Mutex
}

func newLockManager() *lockManager {
	return &lockManager{locks: make(map[string]*sync.Mutex)}
}

func (m *lockManager) Lock(conversationID string) {
	m.mu.Lock()
	lock, ok := m.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[conversationID] = lock
	}
	m.mu.Unlock()
	lock.Lock()
}

func (m *lockManager) Unlock(conversationID string) {
	m.mu.Lock()
	lock, ok := m.locks[conversationID]
	if ok {
		lock.Unlock()
	}
	m.mu.Unlock()
}

// Store keeps live conversation states in memory. Conversations are not
// durable across restarts; the workbook and the audit trail are.
type Store struct {
	states map[string]*State
	locks  *lockManager
	ttl    time.Duration
	mu     sync.RWMutex
}

// NewStore creates a store that expires conversations idle longer than ttl.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		states: make(map[string]*State),
		locks:  newLockManager(),
		ttl:    ttl,
	}
}

// Acquire locks the conversation and returns its state, creating a fresh
// one when none exists or the previous one expired. Callers must Release.
func (s *Store) Acquire(conversationID, actorID, senderName string) *State {
	s.locks.Lock(conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[conversationID]
	if ok && s.ttl > 0 && time.Since(state.LastTouched) > s.ttl {
		slog.Debug("Conversation expired", "conversation_id", conversationID)
		ok = false
	}
	if !ok {
		state = NewState(conversationID, actorID, senderName)
		s.states[conversationID] = state
	}
	state.Touch()
	return state
}

// Release unlocks the conversation.
func (s *Store) Release(conversationID string) {
	s.locks.Unlock(conversationID)
}

// Drop removes a conversation outright.
func (s *Store) Drop(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, conversationID)
}

// Sweep removes expired conversations and returns how many were dropped.
// Wired to the cron scheduler.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, state := range s.states {
		if s.ttl > 0 && time.Since(state.LastTouched) > s.ttl {
			delete(s.states, id)
			count++
		}
	}
	if count > 0 {
		slog.Info("Swept expired conversations", "count", count)
	}
	return count
}

// Len reports live conversations, for logging and tests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
