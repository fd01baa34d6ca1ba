package dialog

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/FlightDesk/internal/models"
	"github.com/BTreeMap/FlightDesk/internal/schedule"
	"github.com/BTreeMap/FlightDesk/internal/ticket"
)

// Handler texts that are data, not configuration: they are written into the
// context and later persisted on the ticket.
const (
	// SkipCommand lets the user skip the commentary step.
	SkipCommand = "/skip"
	// SkippedCommentText is stored when the commentary step is skipped.
	SkippedCommentText = "Комментарий пропущен"
	// NoFlightsText is shown in place of the departure list when the
	// resolver finds nothing for the requested pair and date.
	NoFlightsText = "Подходящих рейсов не найдено"

	yesWord = "да"
	noWord  = "нет"
)

var (
	countPattern = regexp.MustCompile(`\b[1-5]\b`)
	datePattern  = regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`)
	phonePattern = regexp.MustCompile(`\+?[78][-(]?\d{3}\)?-?\d{3}-?\d{2}-?\d{2}\b`)
)

// HandlerFunc validates one user message against the current step. On
// success it commits derived data into the context and returns true; on
// failure the context is left untouched and it returns false.
type HandlerFunc func(input string, ctx *Context) bool

// ImageHandlerFunc renders an image attachment for a step from the
// completed context.
type ImageHandlerFunc func(ctx *Context) ([]byte, error)

// Registry maps handler identifiers from the scenario configuration to
// typed functions. It is built once at startup and validated against the
// loaded configuration, replacing any runtime name-based dispatch.
type Registry struct {
	dataset  *schedule.Dataset
	matcher  *schedule.Matcher
	resolver *schedule.Resolver
	now      func() time.Time
	rng      *rand.Rand

	handlers map[string]HandlerFunc
	images   map[string]ImageHandlerFunc
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithNow overrides the clock, used by tests.
func WithNow(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithRand overrides the random source used for boarding pass generation,
// used by tests.
func WithRand(rng *rand.Rand) RegistryOption {
	return func(r *Registry) { r.rng = rng }
}

// NewRegistry builds the full built-in handler set over the given schedule
// dataset.
func NewRegistry(dataset *schedule.Dataset, opts ...RegistryOption) *Registry {
	r := &Registry{
		dataset:  dataset,
		matcher:  schedule.NewMatcher(),
		resolver: schedule.NewResolver(dataset),
		now:      time.Now,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.handlers = map[string]HandlerFunc{
		"phone":                r.handlePhone,
		"ticket_count":         r.handleTicketCount,
		"departure_city":       r.handleDepartureCity,
		"destination_city":     r.handleDestinationCity,
		"date":                 r.handleDate,
		"flight_selection":     r.handleFlightSelection,
		"confirmation":         r.handleConfirmation,
		"restart_confirmation": r.handleRestartConfirmation,
		"comment":              r.handleComment,
	}
	r.images = map[string]ImageHandlerFunc{
		"ticket": r.renderTicketImage,
	}
	slog.Debug("Handler registry built", "handlers", len(r.handlers), "image_handlers", len(r.images))
	return r
}

// Handler returns the named step handler.
func (r *Registry) Handler(name string) (HandlerFunc, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// ImageHandler returns the named image handler.
func (r *Registry) ImageHandler(name string) (ImageHandlerFunc, bool) {
	h, ok := r.images[name]
	return h, ok
}

// Has reports whether a step handler with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// HasImage reports whether an image handler with the given name is
// registered.
func (r *Registry) HasImage(name string) bool {
	_, ok := r.images[name]
	return ok
}

// handlePhone accepts a message containing a country-prefixed phone number.
// A bare 10-digit local number is normalized by prefixing the trunk digit.
func (r *Registry) handlePhone(input string, ctx *Context) bool {
	if len(input) == 10 {
		input = "8" + input
	}
	phone := phonePattern.FindString(input)
	if phone == "" {
		return false
	}
	ctx.Phone = phone
	return true
}

// handleTicketCount accepts a single digit 1..5.
func (r *Registry) handleTicketCount(input string, ctx *Context) bool {
	match := countPattern.FindString(input)
	if match == "" {
		return false
	}
	count, err := strconv.Atoi(match)
	if err != nil || count < 1 || count > models.MaxTicketCount {
		return false
	}
	ctx.TicketCount = count
	return true
}

// handleDepartureCity matches an origin city in the message and records the
// destinations reachable from it.
func (r *Registry) handleDepartureCity(input string, ctx *Context) bool {
	city, ok := r.matcher.Match(input, r.dataset.DepartureCities())
	if !ok {
		return false
	}
	ctx.DepartureCity = city
	ctx.Destinations = r.dataset.DestinationsFrom(city)
	return true
}

// handleDestinationCity matches a destination city reachable from the
// chosen origin.
func (r *Registry) handleDestinationCity(input string, ctx *Context) bool {
	city, ok := r.matcher.Match(input, ctx.Destinations)
	if !ok {
		return false
	}
	ctx.DestinationCity = city
	return true
}

// handleDate accepts a travel date not in the past, then resolves the
// upcoming departures for the chosen pair. An empty resolution is still a
// success; it renders as an explicit no-flights notice.
func (r *Registry) handleDate(input string, ctx *Context) bool {
	parts := datePattern.FindStringSubmatch(input)
	if parts == nil {
		return false
	}
	day, _ := strconv.Atoi(parts[1])
	month, _ := strconv.Atoi(parts[2])
	year, _ := strconv.Atoi(parts[3])
	normalized := fmt.Sprintf("%02d-%02d-%04d", day, month, year)
	date, err := time.ParseInLocation(models.DateLayout, normalized, time.Local)
	if err != nil {
		return false
	}

	now := r.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	if date.Before(today) {
		return false
	}

	departures := r.resolver.Resolve(ctx.DepartureCity, ctx.DestinationCity, date)
	flights := make([]string, len(departures))
	for i, d := range departures {
		flights[i] = d.Format(models.DateTimeLayout)
	}

	ctx.DepartureDate = normalized
	ctx.SuitableFlights = flights
	if len(departures) == 0 {
		ctx.FlightsToPrint = NoFlightsText
	} else {
		ctx.FlightsToPrint = schedule.FormatDepartures(departures)
	}
	return true
}

// handleFlightSelection accepts a digit indexing into the previously
// resolved departure list.
func (r *Registry) handleFlightSelection(input string, ctx *Context) bool {
	match := countPattern.FindString(input)
	if match == "" {
		return false
	}
	index, err := strconv.Atoi(match)
	if err != nil || index < 1 || index > len(ctx.SuitableFlights) {
		return false
	}
	ctx.Date = ctx.SuitableFlights[index-1]
	return true
}

// handleConfirmation accepts a case-insensitive yes/no and records it as
// the continuation flag.
func (r *Registry) handleConfirmation(input string, ctx *Context) bool {
	switch strings.ToLower(input) {
	case yesWord:
		ctx.CanContinue = true
	case noWord:
		ctx.CanContinue = false
	default:
		return false
	}
	return true
}

// handleRestartConfirmation accepts an exact yes/no answer to the restart
// prompt. Yes restarts the current scenario fresh; no abandons it. The
// continuation flag is forced true either way so the engine resolves the
// restart directive instead of falling back again.
func (r *Registry) handleRestartConfirmation(input string, ctx *Context) bool {
	switch input {
	case yesWord:
		ctx.Restart = &RestartDirective{}
	case noWord:
		ctx.Restart = &RestartDirective{Decline: true}
	default:
		return false
	}
	ctx.CanContinue = true
	return true
}

// handleComment accepts a commentary of bounded length, or the skip command.
func (r *Registry) handleComment(input string, ctx *Context) bool {
	if len([]rune(input)) > models.MaxCommentLength {
		return false
	}
	if input == SkipCommand {
		ctx.Commentary = SkippedCommentText
	} else {
		ctx.Commentary = input
	}
	return true
}

// renderTicketImage builds the boarding pass PNG from the completed booking
// context.
func (r *Registry) renderTicketImage(ctx *Context) ([]byte, error) {
	departure, err := time.ParseInLocation(models.DateTimeLayout, ctx.Date, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid departure timestamp %q in context: %w", ctx.Date, err)
	}
	pass, err := ticket.BuildPass(ctx.UserName, ctx.DepartureCity, ctx.DestinationCity, departure, ctx.TicketCount, r.rng)
	if err != nil {
		return nil, fmt.Errorf("failed to build boarding pass: %w", err)
	}
	return pass.Render()
}
