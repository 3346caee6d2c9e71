// Package models defines core data structures for FuncBot.
//
// It includes the result envelope returned by every external-call wrapper,
// inbound conversation events, and transport-level message types.
package models

// DecodeMode selects how an external call's response body is decoded.
type DecodeMode string

// Decode modes for webapi calls.
const (
	DecodeJSON  DecodeMode = "JSON"
	DecodeText  DecodeMode = "TEXT"
	DecodeBytes DecodeMode = "BYTES"
)

// Envelope is the uniform result-or-error value returned by every function
// that talks to an external system. Exactly one of Payload or Err is set.
// Status is 0 when the failure happened before or without a remote response
// (connect failure, timeout, client-side fault).
type Envelope struct {
	Payload any    `json:"payload,omitempty"`
	Err     string `json:"error,omitempty"`
	Status  int    `json:"status"`
	URL     string `json:"url,omitempty"`
	Method  string `json:"method,omitempty"`
}

// OK reports whether the envelope carries a success payload.
func (e Envelope) OK() bool {
	return e.Err == ""
}

// SuccessEnvelope builds a success envelope with the given payload.
func SuccessEnvelope(payload any, status int, url, method string) Envelope {
	return Envelope{Payload: payload, Status: status, URL: url, Method: method}
}

// ErrorEnvelope builds a failure envelope with the given message.
func ErrorEnvelope(errMsg string, status int, url, method string) Envelope {
	return Envelope{Err: errMsg, Status: status, URL: url, Method: method}
}

// String returns Payload as a string when it holds one, empty otherwise.
func (e Envelope) String() string {
	if s, ok := e.Payload.(string); ok {
		return s
	}
	return ""
}

// Bytes returns Payload as a byte slice when it holds one, nil otherwise.
func (e Envelope) Bytes() []byte {
	if b, ok := e.Payload.([]byte); ok {
		return b
	}
	return nil
}

// EventKind distinguishes plain text messages from structured button callbacks.
type EventKind string

// Event kinds delivered by the chat transport.
const (
	EventText     EventKind = "text"
	EventCallback EventKind = "callback"
)

// Event is an inbound conversation event as consumed by the dispatcher.
// Callback payloads use the "<verb> <argument>" form.
type Event struct {
	ConversationID string    `json:"conversation_id"`
	Kind           EventKind `json:"kind"`
	Payload        string    `json:"payload"`
	Time           int64     `json:"time"`
}

// Response represents an incoming message from the chat transport.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// Receipt represents a message delivery status event from the transport.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// MessageStatus represents the delivery status of a sent message.
type MessageStatus string

// Message status constants.
const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// TaskStatus tracks the lifecycle of one long-running background task handle.
type TaskStatus string

// Task statuses. Pending and Running are transient; the rest are terminal
// except Cancelling, which resolves to Cancelled once the worker exits.
const (
	TaskPending    TaskStatus = "pending"
	TaskRunning    TaskStatus = "running"
	TaskCancelling TaskStatus = "cancelling"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether the status is a terminal outcome.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskCancelled || s == TaskFailed
}
