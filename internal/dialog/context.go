// Package dialog implements the FlightDesk dialogue engine: the per-user
// conversation state machine, the step handler registry, and template
// rendering for step prompts.
package dialog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RestartDirective is an explicit control-flow signal a handler can leave in
// the context. A zero Scenario means "restart the scenario the user is in";
// Decline abandons the conversation instead.
type RestartDirective struct {
	Scenario string `json:"scenario,omitempty"`
	Decline  bool   `json:"decline,omitempty"`
}

// Context is the typed per-conversation data accumulated between steps. It
// is serialized to JSON as the opaque state blob the store persists, so
// every field must round-trip through encoding/json.
type Context struct {
	// UserName is the display name captured from the transport profile at
	// scenario start.
	UserName string `json:"user_name,omitempty"`
	// CanContinue reports whether the last confirmation allowed the
	// scenario to proceed along next_step instead of the fallback step.
	CanContinue bool `json:"can_continue"`
	// Restart, when set, overrides normal step transition resolution.
	Restart *RestartDirective `json:"restart,omitempty"`

	DepartureCity   string `json:"departure_city,omitempty"`
	DestinationCity string `json:"destination_city,omitempty"`
	// Destinations lists the cities reachable from DepartureCity, for the
	// destination prompt and its failure template.
	Destinations []string `json:"destination,omitempty"`
	// DepartureDate is the user-entered travel date (date-only layout).
	DepartureDate string `json:"departure_date,omitempty"`
	// SuitableFlights holds the resolved upcoming departures as formatted
	// timestamps, in resolver order.
	SuitableFlights []string `json:"suitable_flights,omitempty"`
	// FlightsToPrint is the numbered human-readable rendering of
	// SuitableFlights.
	FlightsToPrint string `json:"flights_to_print,omitempty"`
	// Date is the chosen departure timestamp (full layout).
	Date        string `json:"date,omitempty"`
	TicketCount int    `json:"ticket_count,omitempty"`
	Commentary  string `json:"commentary,omitempty"`
	Phone       string `json:"telephone_number,omitempty"`
}

// NewContext returns a fresh context for a newly started scenario.
func NewContext() *Context {
	return &Context{CanContinue: true}
}

// ParseContext decodes a persisted context blob. An empty blob yields a
// fresh context.
func ParseContext(blob string) (*Context, error) {
	if blob == "" {
		return NewContext(), nil
	}
	var ctx Context
	if err := json.Unmarshal([]byte(blob), &ctx); err != nil {
		return nil, fmt.Errorf("failed to decode context blob: %w", err)
	}
	return &ctx, nil
}

// Encode serializes the context for persistence.
func (c *Context) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode context: %w", err)
	}
	return string(data), nil
}

// Placeholders exposes the context fields under the names step templates
// use. Zero-valued fields are omitted so that a template referencing data
// its step cannot have yet fails loudly instead of printing blanks.
func (c *Context) Placeholders() map[string]string {
	values := make(map[string]string)
	if c.UserName != "" {
		values["user_name"] = c.UserName
	}
	if c.DepartureCity != "" {
		values["departure_city"] = c.DepartureCity
	}
	if c.DestinationCity != "" {
		values["destination_city"] = c.DestinationCity
	}
	if len(c.Destinations) > 0 {
		values["destination"] = strings.Join(c.Destinations, ", ")
	}
	if c.DepartureDate != "" {
		values["departure_date"] = c.DepartureDate
	}
	if c.FlightsToPrint != "" {
		values["flights_to_print"] = c.FlightsToPrint
	}
	if c.Date != "" {
		values["date"] = c.Date
	}
	if c.TicketCount > 0 {
		values["ticket_count"] = strconv.Itoa(c.TicketCount)
	}
	if c.Commentary != "" {
		values["commentary"] = c.Commentary
	}
	if c.Phone != "" {
		values["telephone_number"] = c.Phone
	}
	return values
}
