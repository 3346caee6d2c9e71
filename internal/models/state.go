// Package models defines conversation state structures for FuncBot flows.
package models

import "time"

// ConversationState represents one user's position inside a flow, plus the
// free-form data bag accumulated along the way. An empty CurrentState means
// the conversation is idle with no active flow.
type ConversationState struct {
	ConversationID string             `json:"conversation_id"`
	FlowType       FlowType           `json:"flow_type"`
	CurrentState   StateType          `json:"current_state"`
	StateData      map[DataKey]string `json:"state_data,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Idle reports whether no flow is active for this conversation.
func (cs *ConversationState) Idle() bool {
	return cs == nil || cs.CurrentState == ""
}
