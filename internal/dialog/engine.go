package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/FlightDesk/internal/messaging"
	"github.com/BTreeMap/FlightDesk/internal/models"
	"github.com/BTreeMap/FlightDesk/internal/scenario"
	"github.com/BTreeMap/FlightDesk/internal/store"
)

// Engine drives the conversation state machine: it routes each inbound
// message through the exit command, intent triggers, and the active step
// handler, and keeps per-user state in the store across restarts.
type Engine struct {
	cfg      *scenario.Config
	registry *Registry
	store    store.Store
	msgs     messaging.Service
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineNow overrides the clock, used by tests.
func WithEngineNow(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine over the given configuration, handler
// registry, store, and transport. The registry is validated against the
// configuration so unresolvable handler names fail at startup.
func NewEngine(cfg *scenario.Config, registry *Registry, st store.Store, msgs messaging.Service, opts ...EngineOption) (*Engine, error) {
	if err := cfg.ValidateHandlers(registry.Has, registry.HasImage); err != nil {
		return nil, fmt.Errorf("scenario configuration references unknown handlers: %w", err)
	}
	e := &Engine{
		cfg:      cfg,
		registry: registry,
		store:    st,
		msgs:     msgs,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// userLock returns the mutex serializing all processing for one user.
func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[userID] = lock
	}
	return lock
}

// HandleMessage processes one inbound message end to end. Messages from
// the same user are serialized; different users proceed concurrently.
func (e *Engine) HandleMessage(ctx context.Context, resp models.Response) error {
	if resp.From == "" {
		return models.ErrEmptyUserID
	}
	lock := e.userLock(resp.From)
	lock.Lock()
	defer lock.Unlock()

	input := strings.TrimSpace(resp.Body)
	slog.Debug("Engine handling message", "user", resp.From, "len", len(input))

	state, err := e.store.GetConversationState(resp.From)
	if err != nil {
		return fmt.Errorf("failed to load conversation state for %s: %w", resp.From, err)
	}

	if input == e.cfg.ExitCommand {
		return e.handleExit(ctx, resp.From, state)
	}
	if handled, err := e.handleIntents(ctx, resp.From, input); handled || err != nil {
		return err
	}
	if state == nil {
		return e.send(ctx, resp.From, e.cfg.DefaultAnswer)
	}
	return e.continueScenario(ctx, resp.From, state, input)
}

// handleExit aborts the active scenario, or reports that none is active.
func (e *Engine) handleExit(ctx context.Context, userID string, state *models.ConversationState) error {
	if state == nil {
		return e.send(ctx, userID, e.cfg.NotInScenarioText)
	}
	if err := e.store.DeleteConversationState(userID); err != nil {
		return fmt.Errorf("failed to delete conversation state for %s: %w", userID, err)
	}
	slog.Debug("Engine scenario aborted by exit command", "user", userID, "scenario", state.ScenarioName)
	return e.send(ctx, userID, e.cfg.ExitText)
}

// handleIntents checks the message against global intent tokens. A match
// either sends a canned answer or starts the intent's scenario fresh,
// discarding any in-progress state.
func (e *Engine) handleIntents(ctx context.Context, userID, input string) (bool, error) {
	lowered := strings.ToLower(input)
	for _, intent := range e.cfg.Intents {
		for _, token := range intent.Tokens {
			if !strings.Contains(lowered, strings.ToLower(token)) {
				continue
			}
			slog.Debug("Engine intent matched", "user", userID, "intent", intent.Name, "token", token)
			if intent.Scenario != "" {
				return true, e.startScenario(ctx, userID, intent.Scenario)
			}
			return true, e.send(ctx, userID, intent.Answer)
		}
	}
	return false, nil
}

// startScenario begins the named scenario with a fresh context and sends
// the first step's prompt.
func (e *Engine) startScenario(ctx context.Context, userID, name string) error {
	sc, ok := e.cfg.Scenario(name)
	if !ok {
		return fmt.Errorf("unknown scenario %q", name)
	}
	firstStep, ok := sc.Steps[sc.FirstStep]
	if !ok {
		return fmt.Errorf("scenario %q first step %q not found", name, sc.FirstStep)
	}

	dctx := NewContext()
	dctx.UserName = e.displayName(ctx, userID)

	text, err := e.render(firstStep.Text, dctx)
	if err != nil {
		return fmt.Errorf("failed to render first step of %q: %w", name, err)
	}

	blob, err := dctx.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode context for %s: %w", userID, err)
	}
	now := e.now()
	state := models.ConversationState{
		UserID:       userID,
		ScenarioName: name,
		StepName:     sc.FirstStep,
		ContextJSON:  blob,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.SaveConversationState(state); err != nil {
		return fmt.Errorf("failed to save conversation state for %s: %w", userID, err)
	}
	slog.Debug("Engine scenario started", "user", userID, "scenario", name, "step", sc.FirstStep)
	return e.send(ctx, userID, text)
}

// continueScenario runs the active step's handler against the message and
// advances, falls back, restarts, or finalizes accordingly.
func (e *Engine) continueScenario(ctx context.Context, userID string, state *models.ConversationState, input string) error {
	sc, ok := e.cfg.Scenario(state.ScenarioName)
	if !ok {
		return fmt.Errorf("stored state references unknown scenario %q", state.ScenarioName)
	}
	step, ok := sc.Steps[state.StepName]
	if !ok {
		return fmt.Errorf("stored state references unknown step %q in scenario %q", state.StepName, state.ScenarioName)
	}
	handler, ok := e.registry.Handler(step.Handler)
	if !ok {
		return fmt.Errorf("step %q references unknown handler %q", state.StepName, step.Handler)
	}

	dctx, err := ParseContext(state.ContextJSON)
	if err != nil {
		return fmt.Errorf("failed to decode context for %s: %w", userID, err)
	}

	if !handler(input, dctx) {
		text, err := e.render(step.FailureText, dctx)
		if err != nil {
			return fmt.Errorf("failed to render failure text of step %q: %w", state.StepName, err)
		}
		slog.Debug("Engine step input rejected", "user", userID, "scenario", state.ScenarioName, "step", state.StepName)
		return e.send(ctx, userID, text)
	}

	if dctx.Restart != nil {
		return e.applyRestart(ctx, userID, state, dctx.Restart)
	}

	nextName := step.NextStep
	if !dctx.CanContinue {
		nextName = scenario.FallbackStepName
	}
	nextStep, ok := sc.Steps[nextName]
	if !ok {
		return fmt.Errorf("step %q advances to unknown step %q", state.StepName, nextName)
	}

	text, err := e.render(nextStep.Text, dctx)
	if err != nil {
		return fmt.Errorf("failed to render step %q: %w", nextName, err)
	}
	var image []byte
	if nextStep.Image != "" {
		imageHandler, ok := e.registry.ImageHandler(nextStep.Image)
		if !ok {
			return fmt.Errorf("step %q references unknown image handler %q", nextName, nextStep.Image)
		}
		image, err = imageHandler(dctx)
		if err != nil {
			return fmt.Errorf("failed to render image for step %q: %w", nextName, err)
		}
	}

	if nextStep.NextStep != "" || !dctx.CanContinue {
		blob, err := dctx.Encode()
		if err != nil {
			return fmt.Errorf("failed to encode context for %s: %w", userID, err)
		}
		state.StepName = nextName
		state.ContextJSON = blob
		state.UpdatedAt = e.now()
		if err := e.store.SaveConversationState(*state); err != nil {
			return fmt.Errorf("failed to save conversation state for %s: %w", userID, err)
		}
		slog.Debug("Engine step advanced", "user", userID, "scenario", state.ScenarioName, "step", nextName)
	} else {
		if err := e.finalize(userID, dctx); err != nil {
			return err
		}
		slog.Debug("Engine scenario completed", "user", userID, "scenario", state.ScenarioName)
	}

	if image != nil {
		return e.sendImage(ctx, userID, text, image)
	}
	return e.send(ctx, userID, text)
}

// applyRestart resolves a restart directive: decline abandons the scenario,
// otherwise the target scenario starts over with a fresh context.
func (e *Engine) applyRestart(ctx context.Context, userID string, state *models.ConversationState, directive *RestartDirective) error {
	if err := e.store.DeleteConversationState(userID); err != nil {
		return fmt.Errorf("failed to delete conversation state for %s: %w", userID, err)
	}
	if directive.Decline {
		slog.Debug("Engine restart declined", "user", userID, "scenario", state.ScenarioName)
		return e.send(ctx, userID, e.cfg.ExitText)
	}
	target := directive.Scenario
	if target == "" {
		target = state.ScenarioName
	}
	slog.Debug("Engine scenario restarting", "user", userID, "scenario", target)
	return e.startScenario(ctx, userID, target)
}

// finalize atomically records the booked ticket and clears the state.
func (e *Engine) finalize(userID string, dctx *Context) error {
	departure, err := time.ParseInLocation(models.DateTimeLayout, dctx.Date, time.Local)
	if err != nil {
		return fmt.Errorf("invalid departure timestamp %q at finalization: %w", dctx.Date, err)
	}
	ticket := models.Ticket{
		ID:              uuid.NewString(),
		UserID:          userID,
		DepartureCity:   dctx.DepartureCity,
		DestinationCity: dctx.DestinationCity,
		Date:            departure,
		TicketCount:     dctx.TicketCount,
		Commentary:      dctx.Commentary,
		CreatedAt:       e.now(),
	}
	if err := e.store.FinalizeBooking(userID, ticket); err != nil {
		return fmt.Errorf("failed to finalize booking for %s: %w", userID, err)
	}
	return nil
}

// render expands a template against the context placeholders plus the
// engine-provided departure city list.
func (e *Engine) render(template string, dctx *Context) (string, error) {
	values := dctx.Placeholders()
	values["departure"] = strings.Join(e.registry.dataset.DepartureCities(), ", ")
	return RenderTemplate(template, values)
}

// displayName resolves the user's display name from the transport, falling
// back to the raw user identifier.
func (e *Engine) displayName(ctx context.Context, userID string) string {
	profile, err := e.msgs.Profile(ctx, userID)
	if err != nil {
		slog.Error("Engine profile lookup failed", "user", userID, "error", err)
		return userID
	}
	if profile == nil || profile.DisplayName == "" {
		return userID
	}
	return profile.DisplayName
}

func (e *Engine) send(ctx context.Context, to, body string) error {
	if err := e.msgs.SendMessage(ctx, to, body); err != nil {
		slog.Error("Engine send failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	return nil
}

func (e *Engine) sendImage(ctx context.Context, to, caption string, image []byte) error {
	if err := e.msgs.SendImage(ctx, to, caption, image); err != nil {
		slog.Error("Engine image send failed", "to", to, "error", err)
		return fmt.Errorf("failed to send image to %s: %w", to, err)
	}
	return nil
}
