package scenario

import (
	"strings"
	"testing"
)

func TestDefaultConfigLoads(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	if cfg.ExitCommand != "/exit" {
		t.Errorf("unexpected exit command %q", cfg.ExitCommand)
	}
	sc, ok := cfg.Scenario("ticket_buy")
	if !ok {
		t.Fatal("ticket_buy scenario missing")
	}
	if sc.FirstStep != "step1" {
		t.Errorf("unexpected first step %q", sc.FirstStep)
	}
	if _, ok := sc.Steps[FallbackStepName]; !ok {
		t.Error("fallback restart step missing")
	}

	var scenarioIntent bool
	for _, intent := range cfg.Intents {
		if intent.Scenario != "" {
			scenarioIntent = true
		}
	}
	if !scenarioIntent {
		t.Error("no intent starts a scenario")
	}
}

func TestParseRejectsBrokenReferences(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"missing first step",
			`
exit_command: /exit
default_answer: ...
scenarios:
  s:
    first_step: nope
    steps:
      step1: {handler: comment, text: a, failure_text: b}
`,
			"first_step nope does not exist",
		},
		{
			"dangling next_step",
			`
exit_command: /exit
default_answer: ...
scenarios:
  s:
    first_step: step1
    steps:
      step1: {handler: comment, next_step: nope, text: a, failure_text: b}
`,
			"next_step nope does not exist",
		},
		{
			"intent without target",
			`
exit_command: /exit
default_answer: ...
intents:
  - tokens: [hi]
`,
			"either answer or scenario is required",
		},
		{
			"intent with unknown scenario",
			`
exit_command: /exit
default_answer: ...
intents:
  - tokens: [hi]
    scenario: nope
`,
			"scenario nope does not exist",
		},
		{
			"waiting step without handler",
			`
exit_command: /exit
default_answer: ...
scenarios:
  s:
    first_step: step1
    steps:
      step1: {next_step: step2, text: a, failure_text: b}
      step2: {handler: comment, text: a, failure_text: b}
`,
			"handler is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestValidateHandlers(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}

	all := func(string) bool { return true }
	none := func(string) bool { return false }

	if err := cfg.ValidateHandlers(all, all); err != nil {
		t.Errorf("expected valid config to pass, got %v", err)
	}
	if err := cfg.ValidateHandlers(none, all); err == nil {
		t.Error("expected missing text handler to fail")
	}
	if err := cfg.ValidateHandlers(all, none); err == nil {
		t.Error("expected missing image handler to fail")
	}
}
