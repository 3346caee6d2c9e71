package store

import (
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/FuncStore/FuncBot/internal/models"
)

func sampleState(id string) models.ConversationState {
	now := time.Now().UTC().Truncate(time.Second)
	return models.ConversationState{
		ConversationID: id,
		FlowType:       models.FlowWeather,
		CurrentState:   models.StateWeatherCity,
		StateData:      map[models.DataKey]string{models.DataKeyCity: "London"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()

	if err := s.SaveConversation(sampleState("c1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetConversation("c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.CurrentState != models.StateWeatherCity {
		t.Fatal("conversation state not stored or retrieved correctly")
	}
	if got.StateData[models.DataKeyCity] != "London" {
		t.Error("state data not retrieved correctly")
	}

	// Mutating the returned copy must not affect the stored state.
	got.StateData[models.DataKeyCity] = "Paris"
	again, _ := s.GetConversation("c1")
	if again.StateData[models.DataKeyCity] != "London" {
		t.Error("store returned shared map instead of a copy")
	}

	if err := s.DeleteConversation("c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gone, _ := s.GetConversation("c1")
	if gone != nil {
		t.Error("conversation should be gone after delete")
	}
}

func TestInMemoryStoreMissingConversation(t *testing.T) {
	s := NewInMemoryStore()
	got, err := s.GetConversation("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("missing conversation should return nil, nil")
	}
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "funcbot.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	defer s.Close()

	state := sampleState("c2")
	if err := s.SaveConversation(state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetConversation("c2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.FlowType != models.FlowWeather || got.StateData[models.DataKeyCity] != "London" {
		t.Fatal("conversation state not round-tripped correctly")
	}

	// Overwrite with new state and data.
	state.CurrentState = models.StateWeatherBusy
	state.StateData[models.DataKeyMode] = "forecast"
	if err := s.SaveConversation(state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = s.GetConversation("c2")
	if got.CurrentState != models.StateWeatherBusy || got.StateData[models.DataKeyMode] != "forecast" {
		t.Error("conversation state not updated correctly")
	}

	states, err := s.ListConversations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(states) != 1 {
		t.Errorf("ListConversations returned %d states, want 1", len(states))
	}

	if err := s.DeleteConversation("c2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gone, _ := s.GetConversation("c2")
	if gone != nil {
		t.Error("conversation should be gone after delete")
	}
}

func TestPostgresStore(t *testing.T) {
	// This test requires a running PostgreSQL instance.
	// Set the DATABASE_URL environment variable for connection string.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	pgStore, err := NewPostgresStore(WithDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pgStore.Close()
	pgStore.db.Exec("DELETE FROM conversation_states")

	if err := pgStore.SaveConversation(sampleState("c3")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := pgStore.GetConversation("c3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.StateData[models.DataKeyCity] != "London" {
		t.Error("conversation state not stored or retrieved correctly in Postgres")
	}
}

func TestDetectDSNType(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost/db":   "postgres",
		"postgresql://u:p@localhost/db": "postgres",
		"host=localhost dbname=bot":     "postgres",
		"/var/lib/funcbot/funcbot.db":   "sqlite",
		"funcbot.db":                    "sqlite",
	}
	for dsn, want := range cases {
		if got := DetectDSNType(dsn); got != want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
