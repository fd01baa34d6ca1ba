// Package models defines the core data structures for FlightDesk.
//
// It includes conversation state, ticket records, and inbound message types,
// which are shared across modules.
package models

import (
	"errors"
	"time"
)

// Textual date/time layouts used across the whole system. All user-facing
// dates are rendered and parsed in this single fixed format.
const (
	// DateLayout is the day-level layout ("10-04-2021").
	DateLayout = "02-01-2006"
	// TimeLayout is the time-of-day layout ("09:30").
	TimeLayout = "15:04"
	// DateTimeLayout is the full departure timestamp layout ("10-04-2021 09:30").
	DateTimeLayout = "02-01-2006 15:04"
)

// Validation constants for input validation
const (
	// MaxCommentLength defines the maximum allowed length for a booking commentary
	MaxCommentLength = 40
	// MaxTicketCount defines the maximum number of tickets per booking
	MaxTicketCount = 5
	// DepartureLimit defines how many upcoming departures a resolution returns
	DepartureLimit = 5
)

// Error variables for better error handling and testability
var (
	ErrEmptyUserID        = errors.New("user id cannot be empty")
	ErrEmptyScenarioName  = errors.New("scenario name cannot be empty")
	ErrEmptyStepName      = errors.New("step name cannot be empty")
	ErrEmptyDepartureCity = errors.New("departure city cannot be empty")
	ErrEmptyDestination   = errors.New("destination city cannot be empty")
	ErrInvalidTicketCount = errors.New("ticket count must be between 1 and 5")
	ErrCommentTooLong     = errors.New("commentary exceeds maximum length")
)

// ConversationState is the durable per-user record of an in-progress
// scenario. At most one state exists per user; the store enforces
// uniqueness on UserID.
type ConversationState struct {
	UserID       string `json:"user_id"`
	ScenarioName string `json:"scenario_name"`
	StepName     string `json:"step_name"`
	// ContextJSON carries the serialized dialog context. The store treats
	// it as an opaque blob; the dialog package owns its shape.
	ContextJSON string    `json:"context_json"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks that the state record is storable.
func (s *ConversationState) Validate() error {
	if s.UserID == "" {
		return ErrEmptyUserID
	}
	if s.ScenarioName == "" {
		return ErrEmptyScenarioName
	}
	if s.StepName == "" {
		return ErrEmptyStepName
	}
	return nil
}

// Ticket is the finalization output of a completed booking scenario.
type Ticket struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	DepartureCity   string    `json:"departure_city"`
	DestinationCity string    `json:"destination_city"`
	Date            time.Time `json:"date"`
	TicketCount     int       `json:"ticket_count"`
	Commentary      string    `json:"commentary"`
	CreatedAt       time.Time `json:"created_at"`
}

// Validate performs validation on a Ticket before it is persisted.
func (t *Ticket) Validate() error {
	if t.UserID == "" {
		return ErrEmptyUserID
	}
	if t.DepartureCity == "" {
		return ErrEmptyDepartureCity
	}
	if t.DestinationCity == "" {
		return ErrEmptyDestination
	}
	if t.TicketCount < 1 || t.TicketCount > MaxTicketCount {
		return ErrInvalidTicketCount
	}
	if len([]rune(t.Commentary)) > MaxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}

// Response represents one inbound message from a user, as delivered by a
// messaging transport.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// UserProfile carries the transport-provided display information for a user.
type UserProfile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}
