// Package store provides storage backends for FlightDesk.
//
// It includes an in-memory store for tests, SQLite and PostgreSQL backends
// for durable conversation state and tickets, and a Redis backend for
// conversation state in multi-worker deployments.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/BTreeMap/FlightDesk/internal/models"
)

// Opts holds configuration options for store backends.
type Opts struct {
	// DSN is the database connection string: a file path for SQLite, a
	// connection URL for PostgreSQL.
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN string as "postgres", "redis", or "sqlite".
// Anything that is not a PostgreSQL URL, key=value connection string, or a
// Redis URL is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return "postgres"
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return "redis"
	default:
		return "sqlite"
	}
}

// Store is the persistence contract the dialogue engine depends on.
//
// Conversation state is keyed by user id with at most one record per user;
// GetConversationState returns (nil, nil) when no record exists.
// FinalizeBooking must atomically insert the ticket and delete the user's
// conversation state, so a crash cannot produce one without the other.
type Store interface {
	GetConversationState(userID string) (*models.ConversationState, error)
	SaveConversationState(state models.ConversationState) error
	DeleteConversationState(userID string) error

	CreateTicket(ticket models.Ticket) error
	ListTickets() ([]models.Ticket, error)
	FinalizeBooking(userID string, ticket models.Ticket) error

	Close() error
}

// InMemoryStore is a mutex-guarded in-memory Store, used in tests and as a
// fallback when no DSN is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	states  map[string]models.ConversationState
	tickets []models.Ticket
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]models.ConversationState)}
}

// GetConversationState returns the state for a user, or (nil, nil) if absent.
func (s *InMemoryStore) GetConversationState(userID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[userID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// SaveConversationState inserts or replaces the state for a user.
func (s *InMemoryStore) SaveConversationState(state models.ConversationState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.UserID] = state
	return nil
}

// DeleteConversationState removes the state for a user, if any.
func (s *InMemoryStore) DeleteConversationState(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

// CreateTicket appends a finalized ticket.
func (s *InMemoryStore) CreateTicket(ticket models.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = append(s.tickets, ticket)
	return nil
}

// ListTickets returns all tickets ordered by creation time.
func (s *InMemoryStore) ListTickets() ([]models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Ticket, len(s.tickets))
	copy(out, s.tickets)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// FinalizeBooking inserts the ticket and deletes the user's state under one
// lock acquisition.
func (s *InMemoryStore) FinalizeBooking(userID string, ticket models.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = append(s.tickets, ticket)
	delete(s.states, userID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
