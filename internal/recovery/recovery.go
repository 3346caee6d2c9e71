// Package recovery resets conversation state left behind by an unclean
// shutdown. A crash during an external call leaves the conversation parked
// in a busy state with no worker to move it on; on startup those
// conversations are returned to idle and told to retry.
package recovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/store"
)

// InterruptedMessage is sent to users whose in-flight operation was lost.
const InterruptedMessage = "The previous operation was interrupted by a restart, please try again."

// Manager scans stored conversations on startup and clears the ones stuck
// in a registered busy state.
type Manager struct {
	store  store.Store
	render flow.Renderer

	busyStates map[models.StateType]bool
}

// NewManager creates a recovery manager. The renderer may be nil when no
// user notification is wanted.
func NewManager(st store.Store, render flow.Renderer) *Manager {
	return &Manager{
		store:      st,
		render:     render,
		busyStates: make(map[models.StateType]bool),
	}
}

// MarkBusy registers states that indicate an in-flight operation. A
// conversation found in one of them at startup is considered orphaned.
func (m *Manager) MarkBusy(states ...models.StateType) {
	for _, s := range states {
		m.busyStates[s] = true
	}
}

// RecoverAll resets every orphaned conversation to idle.
func (m *Manager) RecoverAll(ctx context.Context) error {
	conversations, err := m.store.ListConversations()
	if err != nil {
		return fmt.Errorf("failed to list conversations for recovery: %w", err)
	}

	recovered := 0
	for _, cs := range conversations {
		if !m.busyStates[cs.CurrentState] {
			continue
		}
		if err := m.store.DeleteConversation(cs.ConversationID); err != nil {
			slog.Error("Recovery failed to clear conversation", "error", err, "conversationID", cs.ConversationID, "state", cs.CurrentState)
			continue
		}
		slog.Info("Recovery cleared orphaned conversation", "conversationID", cs.ConversationID, "flow", cs.FlowType, "state", cs.CurrentState)
		if m.render != nil {
			if _, err := m.render.SendMessage(ctx, cs.ConversationID, InterruptedMessage); err != nil {
				slog.Warn("Recovery notification failed", "error", err, "conversationID", cs.ConversationID)
			}
		}
		recovered++
	}

	slog.Info("Recovery completed", "scanned", len(conversations), "recovered", recovered)
	return nil
}
