// Package ticket builds and renders boarding passes for completed bookings.
//
// A Pass is assembled from the finished booking data (seats, flight code,
// boarding times are generated here) and rendered into a PNG that the
// messaging transport delivers as an image attachment.
package ticket

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/BTreeMap/FlightDesk/internal/models"
)

// Boarding time offsets relative to departure.
const (
	boardingOffset = 40 * time.Minute
	lastCallOffset = 20 * time.Minute
)

// seatPoolSize is the number of seats on the aircraft.
const seatPoolSize = 54

// flightCodes is the fixed pool the flight number is drawn from.
var flightCodes = []string{"SU9", "RI11", "JS08", "BY3", "KO5", "CV11"}

// Pass holds every field printed on a boarding pass.
type Pass struct {
	PassengerName   string
	DepartureCity   string
	DestinationCity string
	Date            string
	Time            string
	Seats           string
	Flight          string
	Board           string
	LastCall        string
}

// BuildPass assembles a boarding pass for a completed booking. Seats and the
// flight code are drawn from rng, which callers seed for reproducible tests.
func BuildPass(name, departureCity, destinationCity string, departure time.Time, count int, rng *rand.Rand) (Pass, error) {
	if count < 1 || count > models.MaxTicketCount {
		return Pass{}, models.ErrInvalidTicketCount
	}

	seats := make([]string, count)
	for i, seat := range rng.Perm(seatPoolSize)[:count] {
		seats[i] = fmt.Sprintf("%d", seat+1)
	}

	pass := Pass{
		PassengerName:   name,
		DepartureCity:   departureCity,
		DestinationCity: destinationCity,
		Date:            departure.Format(models.DateLayout),
		Time:            departure.Format(models.TimeLayout),
		Seats:           strings.Join(seats, ", "),
		Flight:          flightCodes[rng.IntN(len(flightCodes))],
		Board:           departure.Add(-boardingOffset).Format(models.TimeLayout),
		LastCall:        departure.Add(-lastCallOffset).Format(models.TimeLayout),
	}
	slog.Debug("BuildPass succeeded", "flight", pass.Flight, "seats", pass.Seats, "board", pass.Board)
	return pass, nil
}
