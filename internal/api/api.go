// Package api exposes a small read-only HTTP surface for operators:
// health, booked tickets, and schedule lookups.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BTreeMap/FlightDesk/internal/models"
	"github.com/BTreeMap/FlightDesk/internal/schedule"
	"github.com/BTreeMap/FlightDesk/internal/store"
)

// Server serves the admin endpoints.
type Server struct {
	store    store.Store
	dataset  *schedule.Dataset
	resolver *schedule.Resolver
	now      func() time.Time
}

// Opts holds configuration options for the admin server.
type Opts struct {
	Now func() time.Time
}

// Option defines a configuration option for the admin server.
type Option func(*Opts)

// WithNow overrides the clock, used by tests.
func WithNow(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// NewServer builds the admin server over the given store and dataset.
func NewServer(st store.Store, dataset *schedule.Dataset, opts ...Option) *Server {
	cfg := Opts{Now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		store:    st,
		dataset:  dataset,
		resolver: schedule.NewResolver(dataset),
		now:      cfg.Now,
	}
}

// Router builds the chi router with all admin routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Get("/tickets", s.handleTickets)
	r.Get("/schedule/cities", s.handleCities)
	r.Get("/schedule/departures", s.handleDepartures)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTickets lists all booked tickets.
func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.store.ListTickets()
	if err != nil {
		slog.Error("API ListTickets failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tickets"})
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

type citiesResponse struct {
	Departures   []string `json:"departures"`
	Destinations []string `json:"destinations"`
}

// handleCities lists the cities known to the schedule dataset.
func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, citiesResponse{
		Departures:   s.dataset.DepartureCities(),
		Destinations: s.dataset.DestinationCities(),
	})
}

type departuresResponse struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	Date       string   `json:"date"`
	Departures []string `json:"departures"`
}

// handleDepartures resolves upcoming departures for a city pair. The
// optional date query parameter defaults to the current day.
func (s *Server) handleDepartures(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from and to query parameters are required"})
		return
	}

	ref := s.now()
	dateParam := r.URL.Query().Get("date")
	if dateParam != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, dateParam, time.Local)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must use the DD-MM-YYYY format"})
			return
		}
		ref = parsed
	}

	departures := s.resolver.Resolve(from, to, ref)
	formatted := make([]string, len(departures))
	for i, d := range departures {
		formatted[i] = d.Format(models.DateTimeLayout)
	}
	writeJSON(w, http.StatusOK, departuresResponse{
		From:       from,
		To:         to,
		Date:       ref.Format(models.DateLayout),
		Departures: formatted,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("API response encoding failed", "error", err)
	}
}
