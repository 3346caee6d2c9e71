// Package store provides storage backends for FuncBot conversation state.
//
// It includes an in-memory store (the default for a single-process bot) and
// persistent SQLite and PostgreSQL backends selected by DSN.
package store

import (
	"strings"
	"sync"

	"github.com/FuncStore/FuncBot/internal/models"
)

// Store persists per-conversation flow state. Implementations must be safe
// for concurrent use: background task workers write progress counters while
// the dispatcher's poller reads them.
type Store interface {
	// SaveConversation stores or replaces the state for a conversation.
	SaveConversation(state models.ConversationState) error

	// GetConversation retrieves the state for a conversation, or nil if the
	// conversation has no active flow.
	GetConversation(conversationID string) (*models.ConversationState, error)

	// DeleteConversation removes all state for a conversation.
	DeleteConversation(conversationID string) error

	// ListConversations returns all stored conversation states.
	ListConversations() ([]models.ConversationState, error)

	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports "postgres" for PostgreSQL-looking DSNs and "sqlite"
// otherwise (plain file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded in-memory conversation store.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[string]models.ConversationState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]models.ConversationState)}
}

// SaveConversation stores a deep copy of the state.
func (s *InMemoryStore) SaveConversation(state models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ConversationID] = copyState(state)
	return nil
}

// GetConversation returns a deep copy so callers never share the stored map.
func (s *InMemoryStore) GetConversation(conversationID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[conversationID]
	if !ok {
		return nil, nil
	}
	out := copyState(state)
	return &out, nil
}

// DeleteConversation removes the conversation's state.
func (s *InMemoryStore) DeleteConversation(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, conversationID)
	return nil
}

// ListConversations returns copies of all stored states.
func (s *InMemoryStore) ListConversations() ([]models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ConversationState, 0, len(s.states))
	for _, state := range s.states {
		out = append(out, copyState(state))
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

func copyState(state models.ConversationState) models.ConversationState {
	if state.StateData != nil {
		data := make(map[models.DataKey]string, len(state.StateData))
		for k, v := range state.StateData {
			data[k] = v
		}
		state.StateData = data
	}
	return state
}
