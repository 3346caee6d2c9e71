package scheduler

import (
	"log/slog"
	"time"

	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/store"
)

// DefaultIdleTTL is how long a conversation may sit mid-flow without input
// before the sweeper clears it.
const DefaultIdleTTL = 30 * time.Minute

// Sweeper clears conversations abandoned partway through a flow. Busy
// states are skipped; those belong to the recovery manager and the task
// coordinator's watchdog.
type Sweeper struct {
	store store.Store
	ttl   time.Duration

	skipStates map[models.StateType]bool

	// now is stubbed in tests.
	now func() time.Time
}

// NewSweeper creates a sweeper with the given idle TTL. A non-positive ttl
// falls back to DefaultIdleTTL.
func NewSweeper(st store.Store, ttl time.Duration) *Sweeper {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Sweeper{
		store:      st,
		ttl:        ttl,
		skipStates: make(map[models.StateType]bool),
		now:        time.Now,
	}
}

// Skip excludes states from sweeping, typically the busy and long-task
// states owned by live workers.
func (s *Sweeper) Skip(states ...models.StateType) {
	for _, st := range states {
		s.skipStates[st] = true
	}
}

// Sweep deletes every non-idle conversation whose last update is older than
// the TTL. It is safe to run concurrently with normal traffic: a racing
// update simply recreates the row.
func (s *Sweeper) Sweep() {
	conversations, err := s.store.ListConversations()
	if err != nil {
		slog.Error("Sweeper failed to list conversations", "error", err)
		return
	}

	cutoff := s.now().Add(-s.ttl)
	swept := 0
	for _, cs := range conversations {
		if cs.CurrentState == models.StateIdle || s.skipStates[cs.CurrentState] {
			continue
		}
		if cs.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.store.DeleteConversation(cs.ConversationID); err != nil {
			slog.Error("Sweeper failed to clear conversation", "error", err, "conversationID", cs.ConversationID)
			continue
		}
		slog.Info("Sweeper cleared abandoned conversation", "conversationID", cs.ConversationID, "flow", cs.FlowType, "state", cs.CurrentState, "updatedAt", cs.UpdatedAt)
		swept++
	}

	if swept > 0 {
		slog.Info("Sweep completed", "swept", swept)
	}
}
