// Package schedule provides the flight schedule dataset, the recurring-rule
// resolver, and city name matching for FlightDesk.
//
// The dataset is loaded once at startup from a CSV file and is read-only
// afterwards, so it is safe to share across concurrent workers.
package schedule

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/BTreeMap/FlightDesk/internal/models"
)

// RuleKind discriminates the schedule of a flight rule.
type RuleKind int

const (
	// RuleFixed is a one-off departure at a specific timestamp.
	RuleFixed RuleKind = iota
	// RuleWeekly repeats every week on a fixed weekday.
	RuleWeekly
	// RuleMonthly repeats every month on a fixed day number.
	RuleMonthly
)

// FlightRule is one immutable schedule record for a city pair.
type FlightRule struct {
	Origin      string
	Destination string
	Kind        RuleKind

	// Departure is set for RuleFixed rules only.
	Departure time.Time
	// Weekday is set for RuleWeekly rules only.
	Weekday time.Weekday
	// MonthDay is set for RuleMonthly rules only.
	MonthDay int
	// Hour and Minute hold the time of day for recurring rules.
	Hour   int
	Minute int
}

var weekdayNames = map[string]time.Weekday{
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
	"Sunday":    time.Sunday,
}

// Dataset is the read-only collection of flight rules. Row order from the
// source file is preserved; city lists keep first-appearance order so that
// matching precedence stays stable between runs.
type Dataset struct {
	rules        []FlightRule
	departures   []string
	destinations []string
}

// Load reads a schedule dataset from a CSV file on disk.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("Dataset Load failed to open file", "error", err, "path", path)
		return nil, fmt.Errorf("failed to open schedule file %s: %w", path, err)
	}
	defer f.Close()

	ds, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file %s: %w", path, err)
	}
	slog.Info("Dataset loaded", "path", path, "rules", len(ds.rules))
	return ds, nil
}

// Read parses a schedule dataset from CSV content. The expected columns are
// (departure_city, destination_city, date, frequency): an empty frequency
// marks a one-off flight with a full timestamp in the date column, a weekday
// name marks weekly recurrence, and a numeric string marks monthly
// recurrence, both with a time of day in the date column.
func Read(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		slog.Error("Dataset Read CSV parse failed", "error", err)
		return nil, fmt.Errorf("failed to parse schedule CSV: %w", err)
	}

	ds := &Dataset{}
	seenDep := make(map[string]bool)
	seenDest := make(map[string]bool)

	for i, rec := range records {
		if i == 0 {
			// Header row.
			continue
		}
		if len(rec) < 4 {
			return nil, fmt.Errorf("schedule row %d: expected 4 columns, got %d", i+1, len(rec))
		}
		rule, err := parseRule(rec[0], rec[1], rec[2], rec[3])
		if err != nil {
			slog.Error("Dataset Read row rejected", "error", err, "row", i+1)
			return nil, fmt.Errorf("schedule row %d: %w", i+1, err)
		}
		ds.rules = append(ds.rules, rule)
		if !seenDep[rule.Origin] {
			seenDep[rule.Origin] = true
			ds.departures = append(ds.departures, rule.Origin)
		}
		if !seenDest[rule.Destination] {
			seenDest[rule.Destination] = true
			ds.destinations = append(ds.destinations, rule.Destination)
		}
	}

	slog.Debug("Dataset Read succeeded", "rules", len(ds.rules), "departure_cities", len(ds.departures))
	return ds, nil
}

// parseRule converts one CSV record into a FlightRule.
func parseRule(origin, destination, value, frequency string) (FlightRule, error) {
	rule := FlightRule{Origin: origin, Destination: destination}
	if origin == "" || destination == "" {
		return rule, fmt.Errorf("origin and destination are required")
	}

	switch {
	case frequency == "":
		ts, err := time.ParseInLocation(models.DateTimeLayout, value, time.Local)
		if err != nil {
			return rule, fmt.Errorf("invalid fixed departure %q: %w", value, err)
		}
		rule.Kind = RuleFixed
		rule.Departure = ts

	case isWeekday(frequency):
		tod, err := time.Parse(models.TimeLayout, value)
		if err != nil {
			return rule, fmt.Errorf("invalid departure time %q: %w", value, err)
		}
		rule.Kind = RuleWeekly
		rule.Weekday = weekdayNames[frequency]
		rule.Hour, rule.Minute = tod.Hour(), tod.Minute()

	default:
		day, err := strconv.Atoi(frequency)
		if err != nil || day < 1 || day > 31 {
			return rule, fmt.Errorf("invalid frequency marker %q", frequency)
		}
		tod, err := time.Parse(models.TimeLayout, value)
		if err != nil {
			return rule, fmt.Errorf("invalid departure time %q: %w", value, err)
		}
		rule.Kind = RuleMonthly
		rule.MonthDay = day
		rule.Hour, rule.Minute = tod.Hour(), tod.Minute()
	}

	return rule, nil
}

func isWeekday(name string) bool {
	_, ok := weekdayNames[name]
	return ok
}

// DepartureCities returns every origin city in stable first-appearance order.
func (d *Dataset) DepartureCities() []string {
	out := make([]string, len(d.departures))
	copy(out, d.departures)
	return out
}

// DestinationCities returns every destination city in stable
// first-appearance order.
func (d *Dataset) DestinationCities() []string {
	out := make([]string, len(d.destinations))
	copy(out, d.destinations)
	return out
}

// DestinationsFrom returns the cities reachable from the given origin, in
// stable first-appearance order.
func (d *Dataset) DestinationsFrom(origin string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, rule := range d.rules {
		if rule.Origin == origin && !seen[rule.Destination] {
			seen[rule.Destination] = true
			out = append(out, rule.Destination)
		}
	}
	return out
}

// Rules returns all flight rules for the given city pair in dataset order.
func (d *Dataset) Rules(origin, destination string) []FlightRule {
	var out []FlightRule
	for _, rule := range d.rules {
		if rule.Origin == origin && rule.Destination == destination {
			out = append(out, rule)
		}
	}
	return out
}

// Len returns the total number of rules in the dataset.
func (d *Dataset) Len() int {
	return len(d.rules)
}
