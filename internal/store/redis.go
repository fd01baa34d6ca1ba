// Package store provides storage backends for FlightDesk.
//
// This file implements a Redis-backed store for deployments that process
// events from multiple workers and want state reads/writes off the local
// disk.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/FlightDesk/internal/models"
	redis "github.com/redis/go-redis/v9"
)

const (
	redisStatePrefix = "flightdesk:state:"
	redisTicketsKey  = "flightdesk:tickets"
)

// RedisStore is a Store backed by Redis. Conversation states are stored as
// JSON strings keyed by user id; tickets are appended to a list.
type RedisStore struct {
	client *redis.Client
	// opTimeout bounds each Redis round trip. The Store interface is
	// context-free, so the timeout is applied internally.
	opTimeout time.Duration
}

// RedisOpts holds configuration options for the Redis store.
type RedisOpts struct {
	Addr     string
	Password string
	DB       int
}

// RedisOption defines a configuration option for the Redis store.
type RedisOption func(*RedisOpts)

// WithRedisAddr sets the Redis server address ("host:port").
func WithRedisAddr(addr string) RedisOption {
	return func(o *RedisOpts) { o.Addr = addr }
}

// WithRedisPassword sets the Redis password.
func WithRedisPassword(password string) RedisOption {
	return func(o *RedisOpts) { o.Password = password }
}

// WithRedisDB selects the Redis logical database.
func WithRedisDB(db int) RedisOption {
	return func(o *RedisOpts) { o.DB = db }
}

// NewRedisStore creates a Redis store and verifies connectivity.
func NewRedisStore(opts ...RedisOption) (*RedisStore, error) {
	var cfg RedisOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewRedisStore invoked", "addr", cfg.Addr, "db", cfg.DB)

	if cfg.Addr == "" {
		slog.Error("RedisStore address not set")
		return nil, fmt.Errorf("redis address not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	st := &RedisStore{client: client, opTimeout: 5 * time.Second}

	ctx, cancel := st.opContext()
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err, "addr", cfg.Addr)
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	return st, nil
}

// NewRedisStoreFromURL creates a Redis store from a redis:// URL and
// verifies connectivity.
func NewRedisStoreFromURL(rawURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	st := &RedisStore{client: redis.NewClient(opts), opTimeout: 5 * time.Second}

	ctx, cancel := st.opContext()
	defer cancel()
	if err := st.client.Ping(ctx).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err, "addr", opts.Addr)
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}
	return st, nil
}

// NewRedisStoreFromClient wraps an existing Redis client, used by tests.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, opTimeout: 5 * time.Second}
}

func (s *RedisStore) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.opTimeout)
}

func stateKey(userID string) string {
	return redisStatePrefix + userID
}

// GetConversationState retrieves the conversation state for a user, or
// (nil, nil) if the user has no active scenario.
func (s *RedisStore) GetConversationState(userID string) (*models.ConversationState, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	val, err := s.client.Get(ctx, stateKey(userID)).Result()
	if err == redis.Nil {
		slog.Debug("RedisStore GetConversationState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore GetConversationState failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get conversation state for %s: %w", userID, err)
	}

	var state models.ConversationState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		slog.Error("RedisStore GetConversationState unmarshal failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to unmarshal conversation state for %s: %w", userID, err)
	}
	slog.Debug("RedisStore GetConversationState found", "userID", userID, "scenario", state.ScenarioName, "step", state.StepName)
	return &state, nil
}

// SaveConversationState stores or replaces the conversation state for a user.
func (s *RedisStore) SaveConversationState(state models.ConversationState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		slog.Error("RedisStore SaveConversationState marshal failed", "error", err, "userID", state.UserID)
		return fmt.Errorf("failed to marshal conversation state: %w", err)
	}

	ctx, cancel := s.opContext()
	defer cancel()
	if err := s.client.Set(ctx, stateKey(state.UserID), data, 0).Err(); err != nil {
		slog.Error("RedisStore SaveConversationState failed", "error", err, "userID", state.UserID)
		return fmt.Errorf("failed to save conversation state for %s: %w", state.UserID, err)
	}
	slog.Debug("RedisStore SaveConversationState succeeded", "userID", state.UserID, "scenario", state.ScenarioName, "step", state.StepName)
	return nil
}

// DeleteConversationState removes the conversation state for a user.
func (s *RedisStore) DeleteConversationState(userID string) error {
	ctx, cancel := s.opContext()
	defer cancel()
	if err := s.client.Del(ctx, stateKey(userID)).Err(); err != nil {
		slog.Error("RedisStore DeleteConversationState failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete conversation state for %s: %w", userID, err)
	}
	slog.Debug("RedisStore DeleteConversationState succeeded", "userID", userID)
	return nil
}

// CreateTicket appends a finalized ticket to the ticket list.
func (s *RedisStore) CreateTicket(ticket models.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(ticket)
	if err != nil {
		slog.Error("RedisStore CreateTicket marshal failed", "error", err, "userID", ticket.UserID)
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}

	ctx, cancel := s.opContext()
	defer cancel()
	if err := s.client.RPush(ctx, redisTicketsKey, data).Err(); err != nil {
		slog.Error("RedisStore CreateTicket failed", "error", err, "userID", ticket.UserID)
		return fmt.Errorf("failed to append ticket for %s: %w", ticket.UserID, err)
	}
	slog.Debug("RedisStore CreateTicket succeeded", "id", ticket.ID, "userID", ticket.UserID)
	return nil
}

// ListTickets returns all tickets in insertion order.
func (s *RedisStore) ListTickets() ([]models.Ticket, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	vals, err := s.client.LRange(ctx, redisTicketsKey, 0, -1).Result()
	if err != nil {
		slog.Error("RedisStore ListTickets failed", "error", err)
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	var tickets []models.Ticket
	for i, val := range vals {
		var t models.Ticket
		if err := json.Unmarshal([]byte(val), &t); err != nil {
			slog.Error("RedisStore ListTickets unmarshal failed", "error", err, "index", i)
			return nil, fmt.Errorf("failed to unmarshal ticket %d: %w", i, err)
		}
		tickets = append(tickets, t)
	}
	slog.Debug("RedisStore ListTickets succeeded", "count", len(tickets))
	return tickets, nil
}

// FinalizeBooking appends the ticket and deletes the user's conversation
// state in one MULTI/EXEC pipeline so both apply together.
func (s *RedisStore) FinalizeBooking(userID string, ticket models.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(ticket)
	if err != nil {
		slog.Error("RedisStore FinalizeBooking marshal failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}

	ctx, cancel := s.opContext()
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, redisTicketsKey, data)
	pipe.Del(ctx, stateKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("RedisStore FinalizeBooking failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to finalize booking for %s: %w", userID, err)
	}
	slog.Info("RedisStore FinalizeBooking succeeded", "id", ticket.ID, "userID", userID)
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	slog.Debug("Closing Redis client")
	return s.client.Close()
}
