package dialog

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/FlightDesk/internal/messaging"
	"github.com/BTreeMap/FlightDesk/internal/models"
	"github.com/BTreeMap/FlightDesk/internal/scenario"
	"github.com/BTreeMap/FlightDesk/internal/schedule"
	"github.com/BTreeMap/FlightDesk/internal/store"
)

const testUserID = "u1"

func newTestEngine(t *testing.T, st store.Store) (*Engine, *messaging.MockService) {
	t.Helper()
	cfg, err := scenario.DefaultConfig()
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}
	ds, err := schedule.Read(strings.NewReader(handlersCSV))
	if err != nil {
		t.Fatalf("failed to read dataset: %v", err)
	}
	registry := NewRegistry(ds,
		WithNow(func() time.Time { return fixedNow }),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	)
	msgs := messaging.NewMockService()
	msgs.Profiles[testUserID] = "Иван"

	engine, err := NewEngine(cfg, registry, st, msgs, WithEngineNow(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return engine, msgs
}

// say delivers one message and returns the bot's latest text reply.
func say(t *testing.T, e *Engine, msgs *messaging.MockService, body string) string {
	t.Helper()
	err := e.HandleMessage(context.Background(), models.Response{From: testUserID, Body: body, Time: fixedNow.Unix()})
	if err != nil {
		t.Fatalf("HandleMessage(%q) failed: %v", body, err)
	}
	last := msgs.LastMessage()
	if last == nil {
		return ""
	}
	return last.Body
}

func TestEngineIntentAnswers(t *testing.T) {
	st := store.NewInMemoryStore()
	e, msgs := newTestEngine(t, st)

	reply := say(t, e, msgs, "Привет!")
	if !strings.Contains(reply, "бот авиакомпании") {
		t.Errorf("greeting intent not answered: %q", reply)
	}

	reply = say(t, e, msgs, "помощь")
	if !strings.Contains(reply, "оформляю авиабилеты") {
		t.Errorf("help intent not answered: %q", reply)
	}

	// Intent answers must not create scenario state.
	state, err := st.GetConversationState(testUserID)
	if err != nil || state != nil {
		t.Errorf("expected no state after intent answers, got %v, %v", state, err)
	}
}

func TestEngineDefaultAnswerWhenIdle(t *testing.T) {
	st := store.NewInMemoryStore()
	e, msgs := newTestEngine(t, st)

	reply := say(t, e, msgs, "что-то непонятное")
	if !strings.Contains(reply, "Не понимаю") {
		t.Errorf("expected default answer, got %q", reply)
	}
}

func TestEngineExitCommand(t *testing.T) {
	st := store.NewInMemoryStore()
	e, msgs := newTestEngine(t, st)

	reply := say(t, e, msgs, "/exit")
	if !strings.Contains(reply, "не находитесь") {
		t.Errorf("expected not-in-scenario notice, got %q", reply)
	}

	say(t, e, msgs, "купить")
	reply = say(t, e, msgs, "/exit")
	if !strings.Contains(reply, "вышли из сценария") {
		t.Errorf("expected exit confirmation, got %q", reply)
	}
	state, err := st.GetConversationState(testUserID)
	if err != nil || state != nil {
		t.Errorf("expected state cleared after exit, got %v, %v", state, err)
	}
}

func TestEngineScenarioHappyPath(t *testing.T) {
	st := store.NewInMemoryStore()
	e, msgs := newTestEngine(t, st)

	reply := say(t, e, msgs, "хочу купить билет")
	if !strings.Contains(reply, "город отправления") {
		t.Fatalf("scenario did not start: %q", reply)
	}

	reply = say(t, e, msgs, "Москва")
	if !strings.Contains(reply, "Берлин, Прага") {
		t.Fatalf("destinations not offered: %q", reply)
	}

	reply = say(t, e, msgs, "Берлин")
	if !strings.Contains(reply, "дату вылета") {
		t.Fatalf("date not requested: %q", reply)
	}

	reply = say(t, e, msgs, "02-05-2021")
	if !strings.Contains(reply, "1) 03-05-2021 09:00") {
		t.Fatalf("flights not listed: %q", reply)
	}

	reply = say(t, e, msgs, "1")
	if !strings.Contains(reply, "Сколько") {
		t.Fatalf("count not requested: %q", reply)
	}

	reply = say(t, e, msgs, "2")
	if !strings.Contains(reply, "комментарий") {
		t.Fatalf("comment not requested: %q", reply)
	}

	reply = say(t, e, msgs, "место у окна")
	if !strings.Contains(reply, "место у окна") || !strings.Contains(reply, "03-05-2021 09:00") {
		t.Fatalf("order summary incomplete: %q", reply)
	}

	reply = say(t, e, msgs, "да")
	if !strings.Contains(reply, "номер телефона") {
		t.Fatalf("phone not requested: %q", reply)
	}

	say(t, e, msgs, "89161234567")

	if len(msgs.Images) != 1 {
		t.Fatalf("expected one boarding pass attachment, got %d", len(msgs.Images))
	}
	if !strings.Contains(msgs.Images[0].Caption, "Иван") {
		t.Errorf("final caption missing display name: %q", msgs.Images[0].Caption)
	}

	state, err := st.GetConversationState(testUserID)
	if err != nil || state != nil {
		t.Errorf("expected state cleared after completion, got %v, %v", state, err)
	}

	tickets, err := st.ListTickets()
	if err != nil {
		t.Fatalf("ListTickets failed: %v", err)
	}
	if len(tickets) != 1 {
		t.Fatalf("expected one ticket, got %d", len(tickets))
	}
	tk := tickets[0]
	if tk.ID == "" || tk.UserID != testUserID {
		t.Errorf("ticket identity wrong: %+v", tk)
	}
	if tk.DepartureCity != "Москва" || tk.DestinationCity != "Берлин" {
		t.Errorf("ticket route wrong: %+v", tk)
	}
	want := time.Date(2021, 5, 3, 9, 0, 0, 0, time.Local)
	if !tk.Date.Equal(want) {
		t.Errorf("ticket date: expected %v, got %v", want, tk.Date)
	}
	if tk.TicketCount != 2 || tk.Commentary != "место у окна" {
		t.Errorf("ticket details wrong: %+v", tk)
	}
}

func TestEngineFailureLeavesStateUntouched(t *testing.T) {
	st := store.NewInMemoryStore()
	e, msgs := newTestEngine(t, st)

	say(t, e, msgs, "купить")
	before, err := st.GetConversationState(testUserID)
	if err != nil || before == nil {
		t.Fatalf("expected active state, got %v, %v", before, err)
	}

	reply := say(t, e, msgs, "из Лондона")
	if !strings.Contains(reply, "Москва, Тверь") {
		t.Errorf("failure reply should list departure cities: %q", reply)
	}

	after, err := st.GetConversationState(testUserID)
	if err != nil || after == nil {
		t.Fatalf("expected state preserved, got %v, %v", after, err)
	}
	if after.StepName != before.StepName || after.ContextJSON != before.ContextJSON {
		t.Errorf("rejected input mutated state: before=%+v after=%+v", before, after)
	}
}

func TestEngineRestartFlow(t *testing.T) {
	st := store.NewInMemoryStore()
	e, msgs := newTestEngine(t, st)

	say(t, e, msgs, "купить")
	say(t, e, msgs, "Москва")
	say(t, e, msgs, "Берлин")
	say(t, e, msgs, "02-05-2021")
	say(t, e, msgs, "1")
	say(t, e, msgs, "1")
	say(t, e, msgs, "/skip")

	reply := say(t, e, msgs, "нет")
	if !strings.Contains(reply, "заново") {
		t.Fatalf("expected restart prompt, got %q", reply)
	}

	reply = say(t, e, msgs, "да")
	if !strings.Contains(reply, "город отправления") {
		t.Fatalf("expected scenario to restart from the first step, got %q", reply)
	}
	state, err := st.GetConversationState(testUserID)
	if err != nil || state == nil {
		t.Fatalf("expected fresh state, got %v, %v", state, err)
	}
	ctx, err := ParseContext(state.ContextJSON)
	if err != nil {
		t.Fatalf("failed to parse restarted context: %v", err)
	}
	if ctx.DepartureCity != "" || ctx.TicketCount != 0 {
		t.Errorf("restart must discard accumulated data: %+v", ctx)
	}
}

func TestEngineRestartDecline(t *testing.T) {
	st := store.NewInMemoryStore()
	e, msgs := newTestEngine(t, st)

	say(t, e, msgs, "купить")
	say(t, e, msgs, "Москва")
	say(t, e, msgs, "Берлин")
	say(t, e, msgs, "02-05-2021")
	say(t, e, msgs, "1")
	say(t, e, msgs, "1")
	say(t, e, msgs, "/skip")
	say(t, e, msgs, "нет")

	reply := say(t, e, msgs, "нет")
	if !strings.Contains(reply, "вышли из сценария") {
		t.Errorf("expected exit confirmation, got %q", reply)
	}

	state, err := st.GetConversationState(testUserID)
	if err != nil || state != nil {
		t.Errorf("expected state cleared, got %v, %v", state, err)
	}
	tickets, err := st.ListTickets()
	if err != nil || len(tickets) != 0 {
		t.Errorf("declined booking must not create a ticket: %v, %v", tickets, err)
	}
}

func TestEngineResumesAcrossRestarts(t *testing.T) {
	st := store.NewInMemoryStore()
	e, msgs := newTestEngine(t, st)

	say(t, e, msgs, "купить")
	say(t, e, msgs, "Москва")

	// A new engine over the same store picks up mid-scenario.
	e2, msgs2 := newTestEngine(t, st)
	reply := say(t, e2, msgs2, "Прага")
	if !strings.Contains(reply, "дату вылета") {
		t.Errorf("resumed engine did not continue the scenario: %q", reply)
	}
}

func TestEngineIntentInterruptsScenario(t *testing.T) {
	st := store.NewInMemoryStore()
	e, msgs := newTestEngine(t, st)

	say(t, e, msgs, "купить")
	say(t, e, msgs, "Москва")

	reply := say(t, e, msgs, "купить билет заново")
	if !strings.Contains(reply, "город отправления") {
		t.Fatalf("expected scenario restarted by intent, got %q", reply)
	}
	state, err := st.GetConversationState(testUserID)
	if err != nil || state == nil {
		t.Fatalf("expected state, got %v, %v", state, err)
	}
	ctx, err := ParseContext(state.ContextJSON)
	if err != nil {
		t.Fatalf("failed to parse context: %v", err)
	}
	if ctx.DepartureCity != "" {
		t.Errorf("intent restart must discard previous answers: %+v", ctx)
	}
}

func TestEngineEmptyUserRejected(t *testing.T) {
	st := store.NewInMemoryStore()
	e, _ := newTestEngine(t, st)

	err := e.HandleMessage(context.Background(), models.Response{Body: "привет"})
	if err == nil {
		t.Error("expected error for empty user identifier")
	}
}
