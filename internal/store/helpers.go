package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/FlightDesk/internal/models"
)

// scanTicket scans a Ticket from sql.Rows.
func scanTicket(rows *sql.Rows) (models.Ticket, error) {
	var t models.Ticket
	err := rows.Scan(
		&t.ID, &t.UserID, &t.DepartureCity, &t.DestinationCity,
		&t.Date, &t.TicketCount, &t.Commentary, &t.CreatedAt,
	)
	if err != nil {
		return t, fmt.Errorf("scan ticket failed: %w", err)
	}
	return t, nil
}
