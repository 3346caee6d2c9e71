package flow

import (
	"context"
	"testing"

	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/store"
)

func newTestStateManager() *StoreBasedStateManager {
	return NewStoreBasedStateManager(store.NewInMemoryStore())
}

func TestStateManagerIdleByDefault(t *testing.T) {
	sm := newTestStateManager()
	ctx := context.Background()

	_, state, err := sm.GetCurrentState(ctx, "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != models.StateIdle {
		t.Errorf("new conversation state = %q, want idle", state)
	}
}

func TestStateManagerSetAndGet(t *testing.T) {
	sm := newTestStateManager()
	ctx := context.Background()

	if err := sm.SetCurrentState(ctx, "c1", models.FlowWeather, models.StateWeatherCity); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	flowType, state, err := sm.GetCurrentState(ctx, "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flowType != models.FlowWeather || state != models.StateWeatherCity {
		t.Errorf("got (%q, %q), want (weather, WEATHER_CITY)", flowType, state)
	}
}

func TestStateManagerMergeData(t *testing.T) {
	sm := newTestStateManager()
	ctx := context.Background()

	if err := sm.MergeData(ctx, "c1", map[models.DataKey]string{models.DataKeyCity: "London"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sm.MergeData(ctx, "c1", map[models.DataKey]string{
		models.DataKeyMode: "forecast",
		models.DataKeyCity: "Paris", // last write wins
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	city, _ := sm.GetData(ctx, "c1", models.DataKeyCity)
	mode, _ := sm.GetData(ctx, "c1", models.DataKeyMode)
	if city != "Paris" || mode != "forecast" {
		t.Errorf("got city=%q mode=%q, want Paris/forecast", city, mode)
	}
}

func TestStateManagerClear(t *testing.T) {
	sm := newTestStateManager()
	ctx := context.Background()

	sm.SetCurrentState(ctx, "c1", models.FlowWeather, models.StateWeatherCity)
	sm.MergeData(ctx, "c1", map[models.DataKey]string{models.DataKeyCity: "London"})

	if err := sm.Clear(ctx, "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, state, _ := sm.GetCurrentState(ctx, "c1")
	if state != models.StateIdle {
		t.Error("Clear should reset state to idle")
	}
	city, _ := sm.GetData(ctx, "c1", models.DataKeyCity)
	if city != "" {
		t.Error("Clear should empty the data bag")
	}
}

func TestStateManagerCrossGoroutineVisibility(t *testing.T) {
	sm := newTestStateManager()
	ctx := context.Background()

	sm.SetCurrentState(ctx, "c1", models.FlowGenVideo, models.StateGenVideoProgress)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sm.MergeData(ctx, "c1", map[models.DataKey]string{models.DataKeyProgress: "3"})
	}()
	<-done

	progress, err := sm.GetData(ctx, "c1", models.DataKeyProgress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress != "3" {
		t.Errorf("progress = %q, want 3 (worker write must be visible to poller)", progress)
	}
}
