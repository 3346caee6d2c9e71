package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/store"
)

type recordingRenderer struct {
	mu    sync.Mutex
	edits []string
}

func (r *recordingRenderer) SendMessage(ctx context.Context, to, body string) (string, error) {
	return "msg-1", nil
}

func (r *recordingRenderer) EditMessage(ctx context.Context, to, messageID, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, body)
	return nil
}

func (r *recordingRenderer) SendDocument(ctx context.Context, to, path, caption string) error {
	return nil
}

func (r *recordingRenderer) editTexts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.edits))
	copy(out, r.edits)
	return out
}

func newTestCoordinator(t *testing.T) (*Coordinator, flow.StateManager, *recordingRenderer) {
	t.Helper()
	states := flow.NewStoreBasedStateManager(store.NewInMemoryStore())
	render := &recordingRenderer{}
	c := NewCoordinator(states, render)
	c.PollInterval = 5 * time.Millisecond
	return c, states, render
}

func TestCoordinatorCompletesOperation(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	op := Operation{
		Name:       "fake",
		TotalSteps: 4,
		Run: func(ctx context.Context, cb Callbacks) (string, error) {
			for i := 0; i < 4; i++ {
				time.Sleep(10 * time.Millisecond)
				cb.ReportProgress()
			}
			return "/tmp/out.mp4", nil
		},
	}

	h := c.Start(ctx, "conv-1", op)
	if got := h.Status(); got != models.TaskRunning {
		t.Errorf("expected running status after start, got %s", got)
	}

	out := c.Await(ctx, "conv-1", "msg-1", h, func(p float64) string {
		return fmt.Sprintf("Progress: %.0f%%", p)
	})

	if out.Status != models.TaskCompleted {
		t.Fatalf("expected completed, got %s (err=%q)", out.Status, out.Err)
	}
	if out.Result != "/tmp/out.mp4" {
		t.Errorf("expected result path, got %q", out.Result)
	}
	if out.Err != "" {
		t.Errorf("expected no error text, got %q", out.Err)
	}
}

func TestCoordinatorProgressMonotonic(t *testing.T) {
	c, _, render := newTestCoordinator(t)
	ctx := context.Background()

	op := Operation{
		Name:       "fake",
		TotalSteps: 5,
		Run: func(ctx context.Context, cb Callbacks) (string, error) {
			for i := 0; i < 5; i++ {
				time.Sleep(15 * time.Millisecond)
				cb.ReportProgress()
			}
			return "done", nil
		},
	}

	h := c.Start(ctx, "conv-2", op)
	c.Await(ctx, "conv-2", "msg-1", h, func(p float64) string {
		return fmt.Sprintf("%.0f", p)
	})

	prev := -1.0
	for _, text := range render.editTexts() {
		var p float64
		if _, err := fmt.Sscanf(text, "%f", &p); err != nil {
			t.Fatalf("unexpected edit text %q", text)
		}
		if p < prev {
			t.Errorf("progress went backwards: %.0f after %.0f", p, prev)
		}
		if p > 100 {
			t.Errorf("progress above 100: %.0f", p)
		}
		prev = p
	}
}

func TestCoordinatorCancellation(t *testing.T) {
	c, states, render := newTestCoordinator(t)
	ctx := context.Background()

	cleaned := false
	op := Operation{
		Name:       "fake",
		TotalSteps: 10,
		Run: func(ctx context.Context, cb Callbacks) (string, error) {
			for i := 0; i < 10; i++ {
				time.Sleep(10 * time.Millisecond)
				if cb.IsCancelled() {
					cleaned = true
					return "", ErrCancelled
				}
				cb.ReportProgress()
			}
			return "done", nil
		},
	}

	h := c.Start(ctx, "conv-3", op)

	go func() {
		time.Sleep(25 * time.Millisecond)
		states.MergeData(ctx, "conv-3", map[models.DataKey]string{
			models.DataKeyCancel: "true",
		})
	}()

	out := c.Await(ctx, "conv-3", "msg-1", h, func(p float64) string {
		return fmt.Sprintf("%.0f", p)
	})

	if out.Status != models.TaskCancelled {
		t.Fatalf("expected cancelled, got %s", out.Status)
	}
	if !cleaned {
		t.Error("operation did not observe the cancel flag")
	}

	sawIndicator := false
	for _, text := range render.editTexts() {
		if strings.HasPrefix(text, "Cancelling") {
			sawIndicator = true
		}
	}
	if !sawIndicator {
		t.Error("expected a cancelling indicator edit while waiting for the worker")
	}
}

func TestCoordinatorWorkerFailure(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	op := Operation{
		Name:       "fake",
		TotalSteps: 3,
		Run: func(ctx context.Context, cb Callbacks) (string, error) {
			return "", errors.New("element not found")
		},
	}

	h := c.Start(ctx, "conv-4", op)
	out := c.Await(ctx, "conv-4", "msg-1", h, func(p float64) string { return "" })

	if out.Status != models.TaskFailed {
		t.Fatalf("expected failed, got %s", out.Status)
	}
	if out.Err != c.GenericError {
		t.Errorf("expected generic error text, got %q", out.Err)
	}
}

func TestCoordinatorShutdownResolvesAsFailed(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	block := make(chan struct{})
	defer close(block)
	op := Operation{
		Name:       "abandoned",
		TotalSteps: 3,
		Run: func(ctx context.Context, cb Callbacks) (string, error) {
			<-block
			return "", ErrCancelled
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := c.Start(ctx, "conv-6", op)
	cancel()

	// The worker is still running, so the outcome must come from the
	// shutdown path itself, terminal and carrying the generic error.
	out := c.Await(ctx, "conv-6", "msg-1", h, func(p float64) string { return "" })

	if out.Status != models.TaskFailed {
		t.Fatalf("expected failed on shutdown, got %s", out.Status)
	}
	if out.Err != c.GenericError {
		t.Errorf("expected generic error text, got %q", out.Err)
	}
}

func TestCoordinatorWatchdog(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	c.Watchdog = 30 * time.Millisecond
	ctx := context.Background()

	block := make(chan struct{})
	defer close(block)
	op := Operation{
		Name:       "hung",
		TotalSteps: 3,
		Run: func(ctx context.Context, cb Callbacks) (string, error) {
			<-block
			return "", ErrCancelled
		},
	}

	h := c.Start(ctx, "conv-5", op)
	out := c.Await(ctx, "conv-5", "msg-1", h, func(p float64) string { return "" })

	if out.Status != models.TaskFailed {
		t.Fatalf("expected watchdog failure, got %s", out.Status)
	}
}

func TestPercentClamp(t *testing.T) {
	if got := percent(0, 10); got != 0 {
		t.Errorf("percent(0,10) = %f", got)
	}
	if got := percent(5, 10); got != 50 {
		t.Errorf("percent(5,10) = %f", got)
	}
	if got := percent(15, 10); got != 100 {
		t.Errorf("percent(15,10) = %f", got)
	}
	if got := percent(3, 0); got != 0 {
		t.Errorf("percent(3,0) = %f", got)
	}
}
