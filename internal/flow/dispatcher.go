// Package flow implements the conversational state-machine dispatcher.
//
// The dispatcher routes each inbound event to the handler registered for the
// conversation's current state, layering two universal rules under the
// flow-specific routing: a cancel rule available from any active state, and
// a busy-state guard that suppresses stray input while an external call is
// in flight.
package flow

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/FuncStore/FuncBot/internal/models"
)

// HandlerFunc processes one event for a conversation. For prefix-matched
// callback routes, input is the argument after the verb; for exact routes it
// is the full payload.
type HandlerFunc func(ctx context.Context, conversationID, input string) error

// route binds one (flow, state, pattern) to a handler. Exact routes take
// priority over prefix routes; within a priority class the first registered
// match wins.
type route struct {
	flow    models.FlowType
	state   models.StateType
	pattern string
	prefix  bool
	handler HandlerFunc
}

// longTask describes a long-running busy state and its cancelling sub-state.
type longTask struct {
	busy       models.StateType
	cancelling models.StateType
}

// Dispatcher routes inbound events to per-state handlers. Events for the
// same conversation are handled one at a time; the busy guard's read of the
// stored state and the handler's transition out of it never interleave with
// another event for that conversation. Different conversations dispatch
// concurrently.
type Dispatcher struct {
	mu        sync.RWMutex
	routes    []route
	busy      map[models.StateType]bool
	longTasks map[models.StateType]longTask

	convMu    sync.Mutex
	convLocks map[string]*sync.Mutex

	states StateManager
	render Renderer

	// CancelToken is the literal payload that triggers the universal cancel
	// rule. BusyMessage, CancellingMessage, CancelledMessage, and MenuMessage
	// are the fixed acknowledgments around those rules.
	CancelToken       string
	BusyMessage       string
	CancellingMessage string
	CancelledMessage  string
	MenuMessage       string
	InternalErrorMsg  string
}

// NewDispatcher creates a dispatcher over the given state manager and renderer.
func NewDispatcher(states StateManager, render Renderer) *Dispatcher {
	return &Dispatcher{
		busy:              make(map[models.StateType]bool),
		longTasks:         make(map[models.StateType]longTask),
		convLocks:         make(map[string]*sync.Mutex),
		states:            states,
		render:            render,
		CancelToken:       "Cancel",
		BusyMessage:       "Your request is being processed, please wait...",
		CancellingMessage: "Cancelling, please wait...",
		CancelledMessage:  "Cancelled.",
		MenuMessage:       "Main menu",
		InternalErrorMsg:  "Server-side error, a fix is in progress.",
	}
}

// Handle registers a handler for an exact payload match in the given state.
// An empty pattern matches any payload in that state.
func (d *Dispatcher) Handle(flowType models.FlowType, state models.StateType, pattern string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = append(d.routes, route{flow: flowType, state: state, pattern: pattern, handler: h})
}

// HandlePrefix registers a handler for structured callback payloads of the
// form "<verb> <argument>". The handler receives the argument.
func (d *Dispatcher) HandlePrefix(flowType models.FlowType, state models.StateType, verb string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = append(d.routes, route{flow: flowType, state: state, pattern: verb + " ", prefix: true, handler: h})
}

// SetBusyState designates a state as a busy state: any event received there
// is answered with BusyMessage and performs no state mutation.
func (d *Dispatcher) SetBusyState(state models.StateType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy[state] = true
}

// SetLongTaskState designates a long-running busy state that additionally
// accepts the cancel token. Cancel there sets the cancel flag in the data bag
// and moves the conversation into the cancelling sub-state until the worker
// acknowledges termination.
func (d *Dispatcher) SetLongTaskState(busy, cancelling models.StateType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.longTasks[busy] = longTask{busy: busy, cancelling: cancelling}
	// The cancelling sub-state behaves like a plain busy state for all input.
	d.busy[cancelling] = true
}

// Dispatch routes one event. No internal fault propagates to the transport:
// panics are recovered, logged, and converted to a generic user-facing error
// with the conversation returned to idle.
//
// Dispatch holds the conversation's lock for the whole event, so handlers
// that run long-lived work must hand it off (the coordinator) rather than
// block here, or cancel events cannot reach the long-task guard.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.Event) {
	lock := d.conversationLock(ev.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Dispatcher recovered from handler panic", "panic", r, "conversationID", ev.ConversationID, "payload", ev.Payload)
			if err := d.states.Clear(ctx, ev.ConversationID); err != nil {
				slog.Error("Dispatcher failed to clear state after panic", "error", err, "conversationID", ev.ConversationID)
			}
			d.send(ctx, ev.ConversationID, d.InternalErrorMsg)
		}
	}()

	flowType, state, err := d.states.GetCurrentState(ctx, ev.ConversationID)
	if err != nil {
		slog.Error("Dispatcher failed to load state", "error", err, "conversationID", ev.ConversationID)
		d.send(ctx, ev.ConversationID, d.InternalErrorMsg)
		return
	}

	slog.Debug("Dispatcher event", "conversationID", ev.ConversationID, "kind", ev.Kind, "flow", flowType, "state", state)

	if state != models.StateIdle {
		if d.interceptBusy(ctx, ev, state) {
			return
		}
		// Universal cancel rule: takes priority over flow-specific handlers
		// bound to the same state.
		if ev.Payload == d.CancelToken {
			if err := d.states.Clear(ctx, ev.ConversationID); err != nil {
				slog.Error("Dispatcher cancel clear failed", "error", err, "conversationID", ev.ConversationID)
				d.send(ctx, ev.ConversationID, d.InternalErrorMsg)
				return
			}
			slog.Info("Dispatcher flow cancelled", "conversationID", ev.ConversationID, "flow", flowType)
			d.send(ctx, ev.ConversationID, d.CancelledMessage)
			d.send(ctx, ev.ConversationID, d.MenuMessage)
			return
		}
	}

	h, input := d.match(flowType, state, ev.Payload)
	if h == nil {
		// Unmatched events are silently ignored; no default handler fires.
		slog.Debug("Dispatcher no route for event", "conversationID", ev.ConversationID, "state", state, "payload", ev.Payload)
		return
	}

	if err := h(ctx, ev.ConversationID, input); err != nil {
		slog.Error("Dispatcher handler failed", "error", err, "conversationID", ev.ConversationID, "state", state)
		// Unrecoverable handler errors return the conversation to idle so it
		// cannot stay stuck in a busy or input state.
		if clearErr := d.states.Clear(ctx, ev.ConversationID); clearErr != nil {
			slog.Error("Dispatcher failed to clear state after handler error", "error", clearErr, "conversationID", ev.ConversationID)
		}
		d.send(ctx, ev.ConversationID, d.InternalErrorMsg)
	}
}

// conversationLock returns the mutex serializing events for one conversation.
func (d *Dispatcher) conversationLock(conversationID string) *sync.Mutex {
	d.convMu.Lock()
	defer d.convMu.Unlock()
	lock, ok := d.convLocks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		d.convLocks[conversationID] = lock
	}
	return lock
}

// interceptBusy applies the busy-state guard. Returns true when the event was
// consumed by the guard.
func (d *Dispatcher) interceptBusy(ctx context.Context, ev models.Event, state models.StateType) bool {
	d.mu.RLock()
	lt, isLongTask := d.longTasks[state]
	isBusy := d.busy[state]
	d.mu.RUnlock()

	if isLongTask {
		if ev.Payload == d.CancelToken {
			// Request cooperative cancellation; the worker observes the flag
			// at its next checkpoint.
			if err := d.states.MergeData(ctx, ev.ConversationID, map[models.DataKey]string{models.DataKeyCancel: "true"}); err != nil {
				slog.Error("Dispatcher cancel flag write failed", "error", err, "conversationID", ev.ConversationID)
				return true
			}
			flowType, _, err := d.states.GetCurrentState(ctx, ev.ConversationID)
			if err != nil {
				slog.Error("Dispatcher state read failed during cancel", "error", err, "conversationID", ev.ConversationID)
				return true
			}
			if err := d.states.SetCurrentState(ctx, ev.ConversationID, flowType, lt.cancelling); err != nil {
				slog.Error("Dispatcher cancelling transition failed", "error", err, "conversationID", ev.ConversationID)
			}
			slog.Info("Dispatcher long task cancel requested", "conversationID", ev.ConversationID)
			d.send(ctx, ev.ConversationID, d.CancellingMessage)
			return true
		}
		d.send(ctx, ev.ConversationID, d.BusyMessage)
		return true
	}

	if isBusy {
		d.send(ctx, ev.ConversationID, d.BusyMessage)
		return true
	}
	return false
}

// match resolves the handler for (flow, state, payload). Exact matches win
// over prefix matches, and a state's empty-pattern catch-all ranks below
// both; within each class, first registered wins. Idle-state routes match
// regardless of the stored flow type.
func (d *Dispatcher) match(flowType models.FlowType, state models.StateType, payload string) (HandlerFunc, string) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var catchAll HandlerFunc
	for _, r := range d.routes {
		if r.prefix || r.state != state {
			continue
		}
		if state != models.StateIdle && r.flow != flowType {
			continue
		}
		if r.pattern == payload {
			return r.handler, payload
		}
		if r.pattern == "" && catchAll == nil {
			catchAll = r.handler
		}
	}
	for _, r := range d.routes {
		if !r.prefix || r.state != state {
			continue
		}
		if state != models.StateIdle && r.flow != flowType {
			continue
		}
		if strings.HasPrefix(payload, r.pattern) {
			return r.handler, strings.TrimPrefix(payload, r.pattern)
		}
	}
	if catchAll != nil {
		return catchAll, payload
	}
	return nil, ""
}

// Reprompt implements the recoverable-error policy: the error text is
// prefixed to the original prompt and the conversation stays in the same
// input state, with earlier data bag entries untouched.
func (d *Dispatcher) Reprompt(ctx context.Context, conversationID, errText, prompt string) {
	d.send(ctx, conversationID, errText+"\n\n"+prompt)
}

// EnterFlow transitions an idle conversation into a flow's first state.
// Starting a new flow while one is active is rejected.
func (d *Dispatcher) EnterFlow(ctx context.Context, conversationID string, flowType models.FlowType, first models.StateType) error {
	_, current, err := d.states.GetCurrentState(ctx, conversationID)
	if err != nil {
		return err
	}
	if current != models.StateIdle {
		slog.Warn("Dispatcher EnterFlow refused, flow already active", "conversationID", conversationID, "current", current)
		d.send(ctx, conversationID, d.BusyMessage)
		return nil
	}
	return d.states.SetCurrentState(ctx, conversationID, flowType, first)
}

func (d *Dispatcher) send(ctx context.Context, conversationID, text string) {
	if _, err := d.render.SendMessage(ctx, conversationID, text); err != nil {
		slog.Error("Dispatcher send failed", "error", err, "conversationID", conversationID)
	}
}
