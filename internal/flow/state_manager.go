// Package flow provides concrete implementations of state management.
package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/store"
)

// StoreBasedStateManager implements StateManager using a Store backend.
// All writes go through the store, so a worker goroutine's progress updates
// are visible to the next read made by the conversation's poller.
type StoreBasedStateManager struct {
	store store.Store
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st}
}

// GetCurrentState retrieves the current flow and state for a conversation.
func (sm *StoreBasedStateManager) GetCurrentState(ctx context.Context, conversationID string) (models.FlowType, models.StateType, error) {
	state, err := sm.store.GetConversation(conversationID)
	if err != nil {
		slog.Error("StateManager GetCurrentState error", "error", err, "conversationID", conversationID)
		return "", models.StateIdle, err
	}
	if state == nil {
		return "", models.StateIdle, nil
	}
	return state.FlowType, state.CurrentState, nil
}

// SetCurrentState updates the current state, creating the conversation entry
// on first transition into a flow.
func (sm *StoreBasedStateManager) SetCurrentState(ctx context.Context, conversationID string, flowType models.FlowType, state models.StateType) error {
	slog.Debug("StateManager SetCurrentState", "conversationID", conversationID, "flowType", flowType, "state", state)

	existing, err := sm.store.GetConversation(conversationID)
	if err != nil {
		slog.Error("StateManager SetCurrentState get error", "error", err, "conversationID", conversationID)
		return err
	}

	now := time.Now()
	if existing == nil {
		existing = &models.ConversationState{
			ConversationID: conversationID,
			FlowType:       flowType,
			CurrentState:   state,
			StateData:      make(map[models.DataKey]string),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	} else {
		existing.FlowType = flowType
		existing.CurrentState = state
		existing.UpdatedAt = now
	}

	if err := sm.store.SaveConversation(*existing); err != nil {
		slog.Error("StateManager SetCurrentState save error", "error", err, "conversationID", conversationID, "state", state)
		return err
	}
	return nil
}

// GetData retrieves one value from the conversation's data bag. A missing
// conversation or key yields an empty string.
func (sm *StoreBasedStateManager) GetData(ctx context.Context, conversationID string, key models.DataKey) (string, error) {
	state, err := sm.store.GetConversation(conversationID)
	if err != nil {
		slog.Error("StateManager GetData error", "error", err, "conversationID", conversationID, "key", key)
		return "", err
	}
	if state == nil || state.StateData == nil {
		return "", nil
	}
	return state.StateData[key], nil
}

// MergeData shallow-merges keys into the data bag, last write wins.
func (sm *StoreBasedStateManager) MergeData(ctx context.Context, conversationID string, partial map[models.DataKey]string) error {
	slog.Debug("StateManager MergeData", "conversationID", conversationID, "keys", len(partial))

	state, err := sm.store.GetConversation(conversationID)
	if err != nil {
		slog.Error("StateManager MergeData get error", "error", err, "conversationID", conversationID)
		return err
	}

	now := time.Now()
	if state == nil {
		state = &models.ConversationState{
			ConversationID: conversationID,
			StateData:      make(map[models.DataKey]string),
			CreatedAt:      now,
		}
	}
	if state.StateData == nil {
		state.StateData = make(map[models.DataKey]string)
	}
	for k, v := range partial {
		state.StateData[k] = v
	}
	state.UpdatedAt = now

	if err := sm.store.SaveConversation(*state); err != nil {
		slog.Error("StateManager MergeData save error", "error", err, "conversationID", conversationID)
		return err
	}
	return nil
}

// Clear resets the conversation to idle and empties its data bag. Both
// happen in one store delete, so no caller can observe a cleared state with
// leftover data.
func (sm *StoreBasedStateManager) Clear(ctx context.Context, conversationID string) error {
	slog.Debug("StateManager Clear", "conversationID", conversationID)

	if err := sm.store.DeleteConversation(conversationID); err != nil {
		slog.Error("StateManager Clear error", "error", err, "conversationID", conversationID)
		return err
	}
	slog.Info("StateManager Clear succeeded", "conversationID", conversationID)
	return nil
}
