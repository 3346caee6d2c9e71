// Package task coordinates long-running background operations with the
// conversational event loop.
//
// An operation (for example browser-automation video generation) runs on its
// own goroutine because it performs blocking I/O. It communicates with the
// conversation only through the state store: a monotonic progress counter
// written at fixed checkpoints, and a cancel flag it reads between them.
// The coordinator's poller re-renders progress to the user and resolves the
// handle to a terminal outcome.
package task

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/render"
)

// ErrCancelled is returned by an operation that observed the cancel flag and
// terminated early.
var ErrCancelled = errors.New("task cancelled")

// Callbacks are injected into a running operation. ReportProgress advances
// the shared progress counter by one step; IsCancelled reads the shared
// cancel flag. Operations call ReportProgress at each fixed checkpoint and
// check IsCancelled between checkpoints.
type Callbacks struct {
	ReportProgress func()
	IsCancelled    func() bool
}

// Operation is one long-running unit of work. TotalSteps is the fixed
// checkpoint count known in advance; Run returns the result (a produced file
// path) or an error, ErrCancelled when it stopped at a cancel checkpoint.
// Run must release its own resources (browser instance, partial artifacts)
// on every path.
type Operation struct {
	Name       string
	TotalSteps int
	Run        func(ctx context.Context, cb Callbacks) (string, error)
}

// Outcome is the terminal result of one task handle.
type Outcome struct {
	Status models.TaskStatus
	Result string
	Err    string
}

// Handle represents one in-flight long-running operation.
type Handle struct {
	mu       sync.Mutex
	status   models.TaskStatus
	result   string
	err      error
	progress int64
	total    int
	done     chan struct{}
}

// Status returns the handle's current lifecycle status.
func (h *Handle) Status() models.TaskStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Done is closed when the worker goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) finish(result string, err error) {
	h.mu.Lock()
	switch {
	case errors.Is(err, ErrCancelled):
		h.status = models.TaskCancelled
	case err != nil:
		h.status = models.TaskFailed
		h.err = err
	default:
		h.status = models.TaskCompleted
		h.result = result
	}
	h.mu.Unlock()
	close(h.done)
}

func (h *Handle) outcome(generic string) Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := Outcome{Status: h.status, Result: h.result}
	if h.err != nil {
		// Unexpected worker faults surface as a generic message.
		out.Err = generic
	}
	return out
}

// Coordinator launches operations and bridges their progress into the
// conversation state store.
type Coordinator struct {
	states flow.StateManager
	render flow.Renderer

	// PollInterval is the progress re-read cadence. Watchdog bounds how long
	// the poller waits without any checkpoint advancing before declaring the
	// task failed; the hung worker is abandoned and its operation's own
	// scoped cleanup releases the environment.
	PollInterval time.Duration
	Watchdog     time.Duration
	GenericError string
}

// NewCoordinator creates a coordinator over the given state manager and renderer.
func NewCoordinator(states flow.StateManager, render flow.Renderer) *Coordinator {
	return &Coordinator{
		states:       states,
		render:       render,
		PollInterval: 500 * time.Millisecond,
		Watchdog:     8 * time.Minute,
		GenericError: "Something went wrong while processing the task.",
	}
}

// Start resets the shared progress counter and launches the operation on a
// worker goroutine. The returned handle moves pending → running immediately
// and reaches a terminal status when the worker exits.
func (c *Coordinator) Start(ctx context.Context, conversationID string, op Operation) *Handle {
	h := &Handle{status: models.TaskPending, total: op.TotalSteps, done: make(chan struct{})}

	if err := c.states.MergeData(ctx, conversationID, map[models.DataKey]string{
		models.DataKeyProgress: "0",
	}); err != nil {
		slog.Error("Coordinator failed to reset progress counter", "error", err, "conversationID", conversationID, "operation", op.Name)
	}

	cb := Callbacks{
		ReportProgress: func() {
			h.mu.Lock()
			h.progress++
			count := h.progress
			h.mu.Unlock()
			// Written through the state store so the poller's next read
			// observes it; the worker never touches dispatcher-owned memory.
			if err := c.states.MergeData(ctx, conversationID, map[models.DataKey]string{
				models.DataKeyProgress: strconv.FormatInt(count, 10),
			}); err != nil {
				slog.Error("Coordinator progress write failed", "error", err, "conversationID", conversationID)
			}
		},
		IsCancelled: func() bool {
			flag, err := c.states.GetData(ctx, conversationID, models.DataKeyCancel)
			if err != nil {
				slog.Error("Coordinator cancel flag read failed", "error", err, "conversationID", conversationID)
				return false
			}
			return flag == "true"
		},
	}

	h.mu.Lock()
	h.status = models.TaskRunning
	h.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Coordinator worker panicked", "panic", r, "operation", op.Name, "conversationID", conversationID)
				h.finish("", errors.New("worker panic"))
			}
		}()
		slog.Info("Coordinator worker started", "operation", op.Name, "conversationID", conversationID, "total_steps", op.TotalSteps)
		result, err := op.Run(ctx, cb)
		if err != nil && !errors.Is(err, ErrCancelled) {
			slog.Error("Coordinator worker failed", "error", err, "operation", op.Name, "conversationID", conversationID)
		}
		h.finish(result, err)
	}()

	return h
}

// Await polls the shared progress counter until the handle reaches a
// terminal status, re-rendering the progress message only when the counter
// changed since the previous render. progressMsgID identifies the message
// edited in place; renderText formats a clamped percentage. When the cancel
// flag appears, a distinct cancelling indicator is shown until the worker
// acknowledges termination.
func (c *Coordinator) Await(ctx context.Context, conversationID, progressMsgID string, h *Handle, renderText func(percent float64) string) Outcome {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	lastCounter := -1
	lastAdvance := time.Now()
	cancelling := false
	frame := 0

	for {
		select {
		case <-h.Done():
			return h.outcome(c.GenericError)
		case <-ticker.C:
		case <-ctx.Done():
			// Shutdown abandons the worker; its own scoped cleanup releases
			// the environment. The handle may still be running, so this
			// cannot come from h.outcome.
			return Outcome{Status: models.TaskFailed, Err: c.GenericError}
		}

		if !cancelling {
			flag, _ := c.states.GetData(ctx, conversationID, models.DataKeyCancel)
			if flag == "true" {
				cancelling = true
			}
		}

		if cancelling {
			// Distinct indicator while waiting for the worker to stop.
			frame++
			c.edit(ctx, conversationID, progressMsgID, render.Cancelling(frame))
			continue
		}

		counter := c.readProgress(ctx, conversationID)
		if counter != lastCounter {
			lastCounter = counter
			lastAdvance = time.Now()
			c.edit(ctx, conversationID, progressMsgID, renderText(percent(counter, h.total)))
			continue
		}

		if c.Watchdog > 0 && time.Since(lastAdvance) > c.Watchdog {
			slog.Error("Coordinator watchdog expired, abandoning worker", "conversationID", conversationID, "last_counter", lastCounter)
			return Outcome{Status: models.TaskFailed, Err: c.GenericError}
		}
	}
}

func (c *Coordinator) readProgress(ctx context.Context, conversationID string) int {
	raw, err := c.states.GetData(ctx, conversationID, models.DataKeyProgress)
	if err != nil || raw == "" {
		return 0
	}
	counter, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return counter
}

func (c *Coordinator) edit(ctx context.Context, conversationID, messageID, text string) {
	if err := c.render.EditMessage(ctx, conversationID, messageID, text); err != nil {
		slog.Debug("Coordinator progress edit failed", "error", err, "conversationID", conversationID)
	}
}

// percent computes counter/total*100 clamped to [0,100].
func percent(counter, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(counter) / float64(total) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
