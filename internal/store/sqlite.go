// Package store provides storage backends for FlightDesk.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/FlightDesk/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a local SQLite database file.
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

// GetConversationState retrieves the conversation state for a user, or
// (nil, nil) if the user has no active scenario.
func (s *SQLiteStore) GetConversationState(userID string) (*models.ConversationState, error) {
	query := `SELECT user_id, scenario_name, step_name, context_json, created_at, updated_at
			  FROM conversation_states WHERE user_id = ?`

	var state models.ConversationState
	err := s.db.QueryRow(query, userID).Scan(
		&state.UserID, &state.ScenarioName, &state.StepName,
		&state.ContextJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetConversationState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationState failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query conversation state for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore GetConversationState found", "userID", userID, "scenario", state.ScenarioName, "step", state.StepName)
	return &state, nil
}

// SaveConversationState stores or replaces the conversation state for a
// user. The user_id primary key enforces at most one state per user.
func (s *SQLiteStore) SaveConversationState(state models.ConversationState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	query := `
		INSERT OR REPLACE INTO conversation_states (user_id, scenario_name, step_name, context_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query, state.UserID, state.ScenarioName, state.StepName,
		state.ContextJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState failed", "error", err, "userID", state.UserID)
		return fmt.Errorf("failed to save conversation state for %s: %w", state.UserID, err)
	}
	slog.Debug("SQLiteStore SaveConversationState succeeded", "userID", state.UserID, "scenario", state.ScenarioName, "step", state.StepName)
	return nil
}

// DeleteConversationState removes the conversation state for a user.
func (s *SQLiteStore) DeleteConversationState(userID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversationState failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete conversation state for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore DeleteConversationState succeeded", "userID", userID)
	return nil
}

// CreateTicket inserts a finalized ticket.
func (s *SQLiteStore) CreateTicket(ticket models.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO tickets (id, user_id, departure_city, destination_city, date, ticket_count, commentary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ticket.ID, ticket.UserID, ticket.DepartureCity, ticket.DestinationCity,
		ticket.Date, ticket.TicketCount, ticket.Commentary, ticket.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateTicket failed", "error", err, "userID", ticket.UserID)
		return fmt.Errorf("failed to insert ticket for %s: %w", ticket.UserID, err)
	}
	slog.Debug("SQLiteStore CreateTicket succeeded", "id", ticket.ID, "userID", ticket.UserID)
	return nil
}

// ListTickets returns all tickets ordered by creation time.
func (s *SQLiteStore) ListTickets() ([]models.Ticket, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, departure_city, destination_city, date, ticket_count, commentary, created_at
		 FROM tickets ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListTickets query failed", "error", err)
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			slog.Error("SQLiteStore ListTickets scan failed", "error", err)
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListTickets rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate ticket rows: %w", err)
	}
	slog.Debug("SQLiteStore ListTickets succeeded", "count", len(tickets))
	return tickets, nil
}

// FinalizeBooking inserts the ticket and deletes the user's conversation
// state in a single transaction.
func (s *SQLiteStore) FinalizeBooking(userID string, ticket models.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("SQLiteStore FinalizeBooking begin failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to begin finalize transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO tickets (id, user_id, departure_city, destination_city, date, ticket_count, commentary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ticket.ID, ticket.UserID, ticket.DepartureCity, ticket.DestinationCity,
		ticket.Date, ticket.TicketCount, ticket.Commentary, ticket.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore FinalizeBooking insert failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to insert ticket for %s: %w", userID, err)
	}
	if _, err := tx.Exec(`DELETE FROM conversation_states WHERE user_id = ?`, userID); err != nil {
		slog.Error("SQLiteStore FinalizeBooking delete failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete conversation state for %s: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		slog.Error("SQLiteStore FinalizeBooking commit failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to commit finalize transaction: %w", err)
	}
	slog.Info("SQLiteStore FinalizeBooking succeeded", "id", ticket.ID, "userID", userID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
