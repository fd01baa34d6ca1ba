// Package timetable generates synthetic flight schedule datasets in the
// CSV format the schedule package reads. It backs the timetablegen tool
// used to seed development and test environments.
package timetable

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/BTreeMap/FlightDesk/internal/models"
)

// Per-pair rule mix. One-off departures avoid the weekdays taken by the
// weekly rules so the generated data exercises all three rule kinds
// distinctly.
const (
	weeklyPerPair  = 2
	monthlyPerPair = 2
	fixedPerPair   = 5
)

// Entry is one schedule row in dataset CSV form.
type Entry struct {
	Origin      string
	Destination string
	Date        string
	Frequency   string
}

// Opts holds configuration options for the generator.
type Opts struct {
	Seed  uint64
	Start time.Time
	Days  int
}

// Option defines a configuration option for the generator.
type Option func(*Opts)

// WithSeed fixes the random seed for reproducible datasets.
func WithSeed(seed uint64) Option {
	return func(o *Opts) { o.Seed = seed }
}

// WithStart sets the first day one-off departures are placed on.
func WithStart(start time.Time) Option {
	return func(o *Opts) { o.Start = start }
}

// WithDays sets the span one-off departures are spread over.
func WithDays(days int) Option {
	return func(o *Opts) { o.Days = days }
}

// Generator produces schedule entries for city pairs.
type Generator struct {
	rng   *rand.Rand
	start time.Time
	days  int
}

// NewGenerator builds a generator. Without options it seeds randomly and
// spreads one-off departures over the 60 days following today.
func NewGenerator(opts ...Option) *Generator {
	cfg := Opts{
		Seed: rand.Uint64(),
		Days: 60,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Start.IsZero() {
		now := time.Now()
		cfg.Start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	}
	return &Generator{
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		start: cfg.Start,
		days:  cfg.Days,
	}
}

// Generate produces entries for every ordered pair of distinct cities.
func (g *Generator) Generate(cities []string) []Entry {
	var entries []Entry
	for _, origin := range cities {
		for _, destination := range cities {
			if origin == destination {
				continue
			}
			entries = append(entries, g.generatePair(origin, destination)...)
		}
	}
	return entries
}

func (g *Generator) generatePair(origin, destination string) []Entry {
	entries := make([]Entry, 0, weeklyPerPair+monthlyPerPair+fixedPerPair)

	weekdays := g.rng.Perm(7)[:weeklyPerPair]
	taken := make(map[time.Weekday]bool, weeklyPerPair)
	for _, wd := range weekdays {
		weekday := time.Weekday(wd)
		taken[weekday] = true
		entries = append(entries, Entry{
			Origin:      origin,
			Destination: destination,
			Date:        g.randomTime().Format(models.TimeLayout),
			Frequency:   weekday.String(),
		})
	}

	for i := 0; i < monthlyPerPair; i++ {
		day := g.rng.IntN(28) + 1
		entries = append(entries, Entry{
			Origin:      origin,
			Destination: destination,
			Date:        g.randomTime().Format(models.TimeLayout),
			Frequency:   fmt.Sprintf("%d", day),
		})
	}

	for i := 0; i < fixedPerPair; i++ {
		entries = append(entries, Entry{
			Origin:      origin,
			Destination: destination,
			Date:        g.randomFixedDeparture(taken).Format(models.DateTimeLayout),
		})
	}
	return entries
}

// randomFixedDeparture picks a day inside the generation span whose weekday
// is not already covered by a weekly rule for the pair.
func (g *Generator) randomFixedDeparture(taken map[time.Weekday]bool) time.Time {
	for {
		day := g.start.AddDate(0, 0, g.rng.IntN(g.days))
		if taken[day.Weekday()] {
			continue
		}
		t := g.randomTime()
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.Local)
	}
}

func (g *Generator) randomTime() time.Time {
	// Departures land on a 5-minute grid between 06:00 and 23:55.
	hour := 6 + g.rng.IntN(18)
	minute := g.rng.IntN(12) * 5
	return time.Date(2000, 1, 1, hour, minute, 0, 0, time.Local)
}

// WriteCSV writes entries in the dataset format, header included.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"departure_city", "destination_city", "date", "frequency"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.Origin, e.Destination, e.Date, e.Frequency}); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush dataset: %w", err)
	}
	return nil
}

// WriteFile generates entries for the cities and writes them to path.
func WriteFile(path string, cities []string, opts ...Option) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	defer f.Close()

	g := NewGenerator(opts...)
	if err := WriteCSV(f, g.Generate(cities)); err != nil {
		return err
	}
	return f.Close()
}
