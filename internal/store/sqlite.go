// Package store provides storage backends for FuncBot conversation state.
//
// This file implements an SQLite-backed conversation store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/FuncStore/FuncBot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists conversation state in an SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveConversation stores or updates a conversation's state.
func (s *SQLiteStore) SaveConversation(state models.ConversationState) error {
	query := `
		INSERT OR REPLACE INTO conversation_states (conversation_id, flow_type, current_state, state_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	stateDataJSON, err := marshalStateData(state.StateData)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation JSON marshal failed", "error", err, "conversationID", state.ConversationID)
		return err
	}

	_, err = s.db.Exec(query, state.ConversationID, state.FlowType, state.CurrentState,
		stateDataJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation failed", "error", err, "conversationID", state.ConversationID, "flowType", state.FlowType)
		return err
	}
	slog.Debug("SQLiteStore SaveConversation succeeded", "conversationID", state.ConversationID, "state", state.CurrentState)
	return nil
}

// GetConversation retrieves a conversation's state, or nil when absent.
func (s *SQLiteStore) GetConversation(conversationID string) (*models.ConversationState, error) {
	query := `SELECT conversation_id, flow_type, current_state, state_data, created_at, updated_at
			  FROM conversation_states WHERE conversation_id = ?`

	var state models.ConversationState
	var stateDataJSON sql.NullString

	err := s.db.QueryRow(query, conversationID).Scan(
		&state.ConversationID, &state.FlowType, &state.CurrentState,
		&stateDataJSON, &state.CreatedAt, &state.UpdatedAt)

	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetConversation not found", "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation failed", "error", err, "conversationID", conversationID)
		return nil, err
	}

	state.StateData = unmarshalStateData(stateDataJSON.String, conversationID)
	return &state, nil
}

// DeleteConversation removes a conversation's state.
func (s *SQLiteStore) DeleteConversation(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE conversation_id = ?`, conversationID)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversation failed", "error", err, "conversationID", conversationID)
		return err
	}
	slog.Debug("SQLiteStore DeleteConversation succeeded", "conversationID", conversationID)
	return nil
}

// ListConversations returns all stored conversation states.
func (s *SQLiteStore) ListConversations() ([]models.ConversationState, error) {
	rows, err := s.db.Query(`SELECT conversation_id, flow_type, current_state, state_data, created_at, updated_at
		FROM conversation_states`)
	if err != nil {
		slog.Error("SQLiteStore ListConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversation states: %w", err)
	}
	defer rows.Close()

	var states []models.ConversationState
	for rows.Next() {
		var state models.ConversationState
		var stateDataJSON sql.NullString
		if err := rows.Scan(&state.ConversationID, &state.FlowType, &state.CurrentState,
			&stateDataJSON, &state.CreatedAt, &state.UpdatedAt); err != nil {
			slog.Error("SQLiteStore ListConversations scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan conversation state row: %w", err)
		}
		state.StateData = unmarshalStateData(stateDataJSON.String, state.ConversationID)
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListConversations rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate conversation state rows: %w", err)
	}
	return states, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

func marshalStateData(data map[models.DataKey]string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(jsonBytes), nil
}

func unmarshalStateData(raw, conversationID string) map[models.DataKey]string {
	if raw == "" {
		return nil
	}
	data := make(map[models.DataKey]string)
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		slog.Error("Store state data JSON unmarshal failed", "error", err, "conversationID", conversationID)
		// Continue with empty map rather than failing
		return make(map[models.DataKey]string)
	}
	return data
}
