// Package flow defines state management interfaces for stateful conversations.
package flow

import (
	"context"

	"github.com/FuncStore/FuncBot/internal/models"
)

// StateManager defines the interface for managing conversation state.
type StateManager interface {
	// GetCurrentState retrieves the current state for a conversation. Returns
	// the idle state (empty StateType) when no flow is active.
	GetCurrentState(ctx context.Context, conversationID string) (models.FlowType, models.StateType, error)

	// SetCurrentState updates the current state for a conversation, creating
	// the conversation entry on first use.
	SetCurrentState(ctx context.Context, conversationID string, flowType models.FlowType, state models.StateType) error

	// GetData retrieves one value from the conversation's data bag.
	GetData(ctx context.Context, conversationID string, key models.DataKey) (string, error)

	// MergeData shallow-merges keys into the conversation's data bag,
	// last write wins.
	MergeData(ctx context.Context, conversationID string, partial map[models.DataKey]string) error

	// Clear resets the conversation to idle and empties its data bag.
	Clear(ctx context.Context, conversationID string) error
}

// Renderer is the outbound collaborator used by handlers to reach the user.
// Implementations send and edit chat messages and deliver files; the engine
// never inspects their return values for control flow beyond error logging.
type Renderer interface {
	// SendMessage sends a new message and returns its identifier, which can
	// be passed to EditMessage for in-place updates (progress rendering).
	SendMessage(ctx context.Context, conversationID, text string) (string, error)

	// EditMessage replaces the text of a previously sent message.
	EditMessage(ctx context.Context, conversationID, messageID, text string) error

	// SendDocument delivers a file (archive, image, video) from a local path.
	SendDocument(ctx context.Context, conversationID, path, caption string) error
}
