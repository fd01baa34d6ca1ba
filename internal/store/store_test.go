package store

import (
	"testing"
	"time"

	"github.com/BTreeMap/FlightDesk/internal/models"
)

// testState builds a minimal valid conversation state for a user.
func testState(userID string) models.ConversationState {
	now := time.Date(2021, 5, 2, 10, 0, 0, 0, time.UTC)
	return models.ConversationState{
		UserID:       userID,
		ScenarioName: "ticket_buy",
		StepName:     "step1",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// runStoreContract exercises the Store behaviors every backend must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()

	// Absent state reads as (nil, nil).
	state, err := s.GetConversationState("42")
	if err != nil {
		t.Fatalf("GetConversationState failed: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state for unknown user, got %+v", state)
	}

	now := time.Date(2021, 5, 2, 10, 0, 0, 0, time.UTC)
	first := models.ConversationState{
		UserID:       "42",
		ScenarioName: "ticket_buy",
		StepName:     "step1",
		ContextJSON:  `{"can_continue":true}`,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.SaveConversationState(first); err != nil {
		t.Fatalf("SaveConversationState failed: %v", err)
	}

	// Saving again replaces, never duplicates: one state per user.
	second := first
	second.StepName = "step2"
	second.UpdatedAt = now.Add(time.Minute)
	if err := s.SaveConversationState(second); err != nil {
		t.Fatalf("SaveConversationState replace failed: %v", err)
	}

	got, err := s.GetConversationState("42")
	if err != nil {
		t.Fatalf("GetConversationState failed: %v", err)
	}
	if got == nil || got.StepName != "step2" {
		t.Fatalf("expected replaced state step2, got %+v", got)
	}
	if got.ContextJSON != first.ContextJSON {
		t.Errorf("context blob not round-tripped: %q", got.ContextJSON)
	}

	// Finalization inserts the ticket and clears the state together.
	ticket := models.Ticket{
		ID:              "t-1",
		UserID:          "42",
		DepartureCity:   "Москва",
		DestinationCity: "Берлин",
		Date:            time.Date(2021, 5, 10, 8, 0, 0, 0, time.UTC),
		TicketCount:     2,
		Commentary:      "Комментарий пропущен",
		CreatedAt:       now,
	}
	if err := s.FinalizeBooking("42", ticket); err != nil {
		t.Fatalf("FinalizeBooking failed: %v", err)
	}
	got, err = s.GetConversationState("42")
	if err != nil {
		t.Fatalf("GetConversationState after finalize failed: %v", err)
	}
	if got != nil {
		t.Errorf("state survived finalization: %+v", got)
	}
	tickets, err := s.ListTickets()
	if err != nil {
		t.Fatalf("ListTickets failed: %v", err)
	}
	if len(tickets) != 1 || tickets[0].ID != "t-1" {
		t.Fatalf("expected one finalized ticket, got %+v", tickets)
	}
	if tickets[0].DepartureCity != "Москва" || tickets[0].TicketCount != 2 {
		t.Errorf("ticket fields not round-tripped: %+v", tickets[0])
	}

	// Deleting an absent state is not an error.
	if err := s.DeleteConversationState("42"); err != nil {
		t.Errorf("DeleteConversationState on absent state failed: %v", err)
	}
}

func TestInMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewInMemoryStore())
}

func TestInMemoryStoreValidation(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.SaveConversationState(models.ConversationState{UserID: "1"}); err == nil {
		t.Error("expected validation error for incomplete state")
	}
	if err := s.CreateTicket(models.Ticket{UserID: "1"}); err == nil {
		t.Error("expected validation error for incomplete ticket")
	}
}
