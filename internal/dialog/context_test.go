package dialog

import (
	"testing"
)

func TestNewContextCanContinue(t *testing.T) {
	ctx := NewContext()
	if !ctx.CanContinue {
		t.Error("fresh context should allow continuation")
	}
	if ctx.Restart != nil {
		t.Error("fresh context should carry no restart directive")
	}
}

func TestContextRoundTrip(t *testing.T) {
	original := &Context{
		UserName:        "Иван",
		CanContinue:     false,
		Restart:         &RestartDirective{Decline: true},
		DepartureCity:   "Москва",
		DestinationCity: "Берлин",
		Destinations:    []string{"Берлин", "Прага"},
		DepartureDate:   "10-05-2021",
		SuitableFlights: []string{"10-05-2021 08:00"},
		FlightsToPrint:  "1) 10-05-2021 08:00",
		Date:            "10-05-2021 08:00",
		TicketCount:     2,
		Commentary:      "у окна",
		Phone:           "8-999-123-45-67",
	}

	blob, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := ParseContext(blob)
	if err != nil {
		t.Fatalf("ParseContext failed: %v", err)
	}

	if decoded.UserName != original.UserName {
		t.Errorf("UserName: expected %q, got %q", original.UserName, decoded.UserName)
	}
	if decoded.CanContinue != original.CanContinue {
		t.Errorf("CanContinue: expected %v, got %v", original.CanContinue, decoded.CanContinue)
	}
	if decoded.Restart == nil || !decoded.Restart.Decline {
		t.Errorf("Restart directive lost: %+v", decoded.Restart)
	}
	if len(decoded.Destinations) != 2 || decoded.Destinations[0] != "Берлин" {
		t.Errorf("Destinations: expected %v, got %v", original.Destinations, decoded.Destinations)
	}
	if decoded.TicketCount != 2 || decoded.Phone != original.Phone {
		t.Errorf("scalar fields lost: %+v", decoded)
	}
}

func TestParseContextEmptyBlob(t *testing.T) {
	ctx, err := ParseContext("")
	if err != nil {
		t.Fatalf("ParseContext failed: %v", err)
	}
	if !ctx.CanContinue {
		t.Error("empty blob should yield a fresh context")
	}
}

func TestParseContextBadJSON(t *testing.T) {
	if _, err := ParseContext("{not json"); err == nil {
		t.Error("expected error for malformed blob")
	}
}

func TestPlaceholdersOmitsZeroValues(t *testing.T) {
	ctx := NewContext()
	ctx.DepartureCity = "Москва"
	ctx.TicketCount = 3

	values := ctx.Placeholders()
	if values["departure_city"] != "Москва" {
		t.Errorf("expected departure_city, got %v", values)
	}
	if values["ticket_count"] != "3" {
		t.Errorf("expected ticket_count 3, got %v", values)
	}
	for _, absent := range []string{"destination_city", "commentary", "telephone_number", "user_name"} {
		if _, ok := values[absent]; ok {
			t.Errorf("placeholder %q should be absent for zero field", absent)
		}
	}
}
