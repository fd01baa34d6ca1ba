package models

import (
	"testing"
	"time"
)

func TestConversationStateValidate(t *testing.T) {
	tests := []struct {
		name    string
		state   ConversationState
		wantErr error
	}{
		{"valid", ConversationState{UserID: "42", ScenarioName: "ticket_buy", StepName: "step1"}, nil},
		{"missing user", ConversationState{ScenarioName: "ticket_buy", StepName: "step1"}, ErrEmptyUserID},
		{"missing scenario", ConversationState{UserID: "42", StepName: "step1"}, ErrEmptyScenarioName},
		{"missing step", ConversationState{UserID: "42", ScenarioName: "ticket_buy"}, ErrEmptyStepName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.state.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTicketValidate(t *testing.T) {
	valid := Ticket{
		UserID:          "42",
		DepartureCity:   "Москва",
		DestinationCity: "Берлин",
		Date:            time.Date(2021, 8, 10, 7, 54, 0, 0, time.UTC),
		TicketCount:     1,
		Commentary:      "окно, пожалуйста",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid ticket rejected: %v", err)
	}

	for _, count := range []int{0, 6, -1} {
		tk := valid
		tk.TicketCount = count
		if err := tk.Validate(); err != ErrInvalidTicketCount {
			t.Errorf("count %d: expected ErrInvalidTicketCount, got %v", count, err)
		}
	}

	long := valid
	for len([]rune(long.Commentary)) <= MaxCommentLength {
		long.Commentary += "ы"
	}
	if err := long.Validate(); err != ErrCommentTooLong {
		t.Errorf("expected ErrCommentTooLong, got %v", err)
	}
}
