package schedule

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BTreeMap/FlightDesk/internal/models"
)

// ResolutionWindowDays is the span over which recurring rules are expanded
// into concrete candidate departures.
const ResolutionWindowDays = 30

// Resolver answers "next N departures" queries against a Dataset. It holds
// no mutable state and is safe for concurrent use.
type Resolver struct {
	dataset *Dataset
}

// NewResolver creates a Resolver over the given dataset.
func NewResolver(dataset *Dataset) *Resolver {
	return &Resolver{dataset: dataset}
}

// Resolve returns up to models.DepartureLimit departure timestamps for the
// city pair, all at or after ref, in non-decreasing order. Fixed rules
// contribute their own timestamp; weekly and monthly rules are expanded over
// a 30-day window starting at ref. An empty result means no matching
// flights and is a normal, displayable outcome.
func (r *Resolver) Resolve(origin, destination string, ref time.Time) []time.Time {
	rules := r.dataset.Rules(origin, destination)
	slog.Debug("Resolver Resolve invoked", "origin", origin, "destination", destination, "ref", ref.Format(models.DateTimeLayout), "rules", len(rules))

	var candidates []time.Time
	var recurring []FlightRule
	for _, rule := range rules {
		switch rule.Kind {
		case RuleFixed:
			if !rule.Departure.Before(ref) {
				candidates = append(candidates, rule.Departure)
			}
		default:
			recurring = append(recurring, rule)
		}
	}

	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	last := day.AddDate(0, 0, ResolutionWindowDays)
	for ; !day.After(last); day = day.AddDate(0, 0, 1) {
		for _, rule := range recurring {
			if !rule.matchesDay(day) {
				continue
			}
			candidate := time.Date(day.Year(), day.Month(), day.Day(), rule.Hour, rule.Minute, 0, 0, day.Location())
			if candidate.Before(ref) {
				continue
			}
			candidates = append(candidates, candidate)
		}
	}

	// Stable sort keeps discovery order for identical timestamps, so output
	// is reproducible for a fixed dataset.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Before(candidates[j])
	})
	if len(candidates) > models.DepartureLimit {
		candidates = candidates[:models.DepartureLimit]
	}

	slog.Debug("Resolver Resolve succeeded", "origin", origin, "destination", destination, "count", len(candidates))
	return candidates
}

// matchesDay reports whether a recurring rule fires on the given calendar
// day. Weekly rules compare weekdays; monthly rules compare the day-of-month
// number. The two predicates are deliberately separate.
func (rule FlightRule) matchesDay(day time.Time) bool {
	switch rule.Kind {
	case RuleWeekly:
		return day.Weekday() == rule.Weekday
	case RuleMonthly:
		return day.Day() == rule.MonthDay
	default:
		return false
	}
}

// FormatDepartures renders timestamps as a numbered list, one per line:
//
//	1) 10-11-2021 23:10
//	2) 12-11-2021 08:40
func FormatDepartures(departures []time.Time) string {
	lines := make([]string, len(departures))
	for i, d := range departures {
		lines[i] = fmt.Sprintf("%d) %s", i+1, d.Format(models.DateTimeLayout))
	}
	return strings.Join(lines, "\n")
}
