// Package store provides storage backends for FlightDesk.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/BTreeMap/FlightDesk/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN and
// applies migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// GetConversationState retrieves the conversation state for a user, or
// (nil, nil) if the user has no active scenario.
func (s *PostgresStore) GetConversationState(userID string) (*models.ConversationState, error) {
	query := `SELECT user_id, scenario_name, step_name, context_json, created_at, updated_at
			  FROM conversation_states WHERE user_id = $1`

	var state models.ConversationState
	err := s.db.QueryRow(query, userID).Scan(
		&state.UserID, &state.ScenarioName, &state.StepName,
		&state.ContextJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetConversationState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationState failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query conversation state for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore GetConversationState found", "userID", userID, "scenario", state.ScenarioName, "step", state.StepName)
	return &state, nil
}

// SaveConversationState stores or replaces the conversation state for a
// user via an upsert on the user_id primary key.
func (s *PostgresStore) SaveConversationState(state models.ConversationState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO conversation_states (user_id, scenario_name, step_name, context_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			scenario_name = EXCLUDED.scenario_name,
			step_name = EXCLUDED.step_name,
			context_json = EXCLUDED.context_json,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.Exec(query, state.UserID, state.ScenarioName, state.StepName,
		state.ContextJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversationState failed", "error", err, "userID", state.UserID)
		return fmt.Errorf("failed to save conversation state for %s: %w", state.UserID, err)
	}
	slog.Debug("PostgresStore SaveConversationState succeeded", "userID", state.UserID, "scenario", state.ScenarioName, "step", state.StepName)
	return nil
}

// DeleteConversationState removes the conversation state for a user.
func (s *PostgresStore) DeleteConversationState(userID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteConversationState failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete conversation state for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore DeleteConversationState succeeded", "userID", userID)
	return nil
}

// CreateTicket inserts a finalized ticket.
func (s *PostgresStore) CreateTicket(ticket models.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO tickets (id, user_id, departure_city, destination_city, date, ticket_count, commentary, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ticket.ID, ticket.UserID, ticket.DepartureCity, ticket.DestinationCity,
		ticket.Date, ticket.TicketCount, ticket.Commentary, ticket.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateTicket failed", "error", err, "userID", ticket.UserID)
		return fmt.Errorf("failed to insert ticket for %s: %w", ticket.UserID, err)
	}
	slog.Debug("PostgresStore CreateTicket succeeded", "id", ticket.ID, "userID", ticket.UserID)
	return nil
}

// ListTickets returns all tickets ordered by creation time.
func (s *PostgresStore) ListTickets() ([]models.Ticket, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, departure_city, destination_city, date, ticket_count, commentary, created_at
		 FROM tickets ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListTickets query failed", "error", err)
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			slog.Error("PostgresStore ListTickets scan failed", "error", err)
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListTickets rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate ticket rows: %w", err)
	}
	slog.Debug("PostgresStore ListTickets succeeded", "count", len(tickets))
	return tickets, nil
}

// FinalizeBooking inserts the ticket and deletes the user's conversation
// state in a single transaction.
func (s *PostgresStore) FinalizeBooking(userID string, ticket models.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("PostgresStore FinalizeBooking begin failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to begin finalize transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO tickets (id, user_id, departure_city, destination_city, date, ticket_count, commentary, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ticket.ID, ticket.UserID, ticket.DepartureCity, ticket.DestinationCity,
		ticket.Date, ticket.TicketCount, ticket.Commentary, ticket.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore FinalizeBooking insert failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to insert ticket for %s: %w", userID, err)
	}
	if _, err := tx.Exec(`DELETE FROM conversation_states WHERE user_id = $1`, userID); err != nil {
		slog.Error("PostgresStore FinalizeBooking delete failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete conversation state for %s: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		slog.Error("PostgresStore FinalizeBooking commit failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to commit finalize transaction: %w", err)
	}
	slog.Info("PostgresStore FinalizeBooking succeeded", "id", ticket.ID, "userID", userID)
	return nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
