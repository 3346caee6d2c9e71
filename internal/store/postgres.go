// Package store provides storage backends for FuncBot conversation state.
//
// This file implements a PostgreSQL-backed conversation store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/FuncStore/FuncBot/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists conversation state in a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// SaveConversation stores or updates a conversation's state.
func (s *PostgresStore) SaveConversation(state models.ConversationState) error {
	query := `
		INSERT INTO conversation_states (conversation_id, flow_type, current_state, state_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (conversation_id) DO UPDATE SET
			flow_type = EXCLUDED.flow_type,
			current_state = EXCLUDED.current_state,
			state_data = EXCLUDED.state_data,
			updated_at = EXCLUDED.updated_at`

	stateDataJSON, err := marshalStateData(state.StateData)
	if err != nil {
		slog.Error("PostgresStore SaveConversation JSON marshal failed", "error", err, "conversationID", state.ConversationID)
		return err
	}

	_, err = s.db.Exec(query, state.ConversationID, state.FlowType, state.CurrentState,
		stateDataJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversation failed", "error", err, "conversationID", state.ConversationID, "flowType", state.FlowType)
		return err
	}
	slog.Debug("PostgresStore SaveConversation succeeded", "conversationID", state.ConversationID, "state", state.CurrentState)
	return nil
}

// GetConversation retrieves a conversation's state, or nil when absent.
func (s *PostgresStore) GetConversation(conversationID string) (*models.ConversationState, error) {
	query := `SELECT conversation_id, flow_type, current_state, state_data, created_at, updated_at
			  FROM conversation_states WHERE conversation_id = $1`

	var state models.ConversationState
	var stateDataJSON sql.NullString

	err := s.db.QueryRow(query, conversationID).Scan(
		&state.ConversationID, &state.FlowType, &state.CurrentState,
		&stateDataJSON, &state.CreatedAt, &state.UpdatedAt)

	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetConversation not found", "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation failed", "error", err, "conversationID", conversationID)
		return nil, err
	}

	state.StateData = unmarshalStateData(stateDataJSON.String, conversationID)
	return &state, nil
}

// DeleteConversation removes a conversation's state.
func (s *PostgresStore) DeleteConversation(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE conversation_id = $1`, conversationID)
	if err != nil {
		slog.Error("PostgresStore DeleteConversation failed", "error", err, "conversationID", conversationID)
		return err
	}
	slog.Debug("PostgresStore DeleteConversation succeeded", "conversationID", conversationID)
	return nil
}

// ListConversations returns all stored conversation states.
func (s *PostgresStore) ListConversations() ([]models.ConversationState, error) {
	rows, err := s.db.Query(`SELECT conversation_id, flow_type, current_state, state_data, created_at, updated_at
		FROM conversation_states`)
	if err != nil {
		slog.Error("PostgresStore ListConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversation states: %w", err)
	}
	defer rows.Close()

	var states []models.ConversationState
	for rows.Next() {
		var state models.ConversationState
		var stateDataJSON sql.NullString
		if err := rows.Scan(&state.ConversationID, &state.FlowType, &state.CurrentState,
			&stateDataJSON, &state.CreatedAt, &state.UpdatedAt); err != nil {
			slog.Error("PostgresStore ListConversations scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan conversation state row: %w", err)
		}
		state.StateData = unmarshalStateData(stateDataJSON.String, state.ConversationID)
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListConversations rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate conversation state rows: %w", err)
	}
	return states, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
