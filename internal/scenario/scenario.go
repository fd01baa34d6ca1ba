// Package scenario loads and validates the immutable dialogue configuration:
// scenarios with their steps, and the global intents that can interrupt any
// scenario. The configuration is read once at startup and never mutated, so
// it is safe to share across concurrent workers.
package scenario

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var defaultConfigYAML []byte

// FallbackStepName is the designated retry/confirm step a scenario falls
// back to when a step finishes with the continuation flag cleared.
const FallbackStepName = "restart"

// Step is one prompt/validation unit within a scenario.
type Step struct {
	// Handler names the step handler that validates user input.
	Handler string `yaml:"handler"`
	// NextStep names the step to advance to on success. Empty on the
	// terminal step.
	NextStep string `yaml:"next_step,omitempty"`
	// Text is the success-side prompt template with {placeholder} fields.
	Text string `yaml:"text"`
	// FailureText is the re-prompt template shown when the handler rejects
	// the input.
	FailureText string `yaml:"failure_text"`
	// Image optionally names an image handler that renders an attachment
	// for this step.
	Image string `yaml:"image,omitempty"`
}

// Scenario is a named multi-step dialogue flow with an entry step.
type Scenario struct {
	FirstStep string          `yaml:"first_step"`
	Steps     map[string]Step `yaml:"steps"`
}

// Intent is a global keyword trigger. Either Answer or Scenario is set:
// Answer replies without touching scenario state, Scenario starts the named
// scenario fresh.
type Intent struct {
	Name     string   `yaml:"name,omitempty"`
	Tokens   []string `yaml:"tokens"`
	Answer   string   `yaml:"answer,omitempty"`
	Scenario string   `yaml:"scenario,omitempty"`
}

// Config is the full dialogue configuration.
type Config struct {
	// ExitCommand is the message that aborts any in-progress scenario.
	ExitCommand string `yaml:"exit_command"`
	// DefaultAnswer is the fallback reply when no intent matches and no
	// scenario is active.
	DefaultAnswer string `yaml:"default_answer"`
	// ExitText confirms a successful scenario exit.
	ExitText string `yaml:"exit_text"`
	// NotInScenarioText is the notice for an exit command sent while idle.
	NotInScenarioText string `yaml:"not_in_scenario_text"`

	Scenarios map[string]Scenario `yaml:"scenarios"`
	Intents   []Intent            `yaml:"intents"`
}

// DefaultConfig returns the built-in ticket booking configuration.
func DefaultConfig() (*Config, error) {
	return parse(defaultConfigYAML)
}

// LoadFile reads and validates a configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("Scenario LoadFile failed to read file", "error", err, "path", path)
		return nil, fmt.Errorf("failed to read scenario config %s: %w", path, err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario config %s: %w", path, err)
	}
	slog.Info("Scenario config loaded", "path", path, "scenarios", len(cfg.Scenarios), "intents", len(cfg.Intents))
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		slog.Error("Scenario config YAML parse failed", "error", err)
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	if err := cfg.validateStructure(); err != nil {
		slog.Error("Scenario config structure invalid", "error", err)
		return nil, err
	}
	return &cfg, nil
}

// validateStructure checks internal references: entry steps, next_step
// targets, and intent shape. Handler references are checked separately via
// ValidateHandlers once the handler registry exists.
func (c *Config) validateStructure() error {
	if c.ExitCommand == "" {
		return fmt.Errorf("exit_command is required")
	}
	if c.DefaultAnswer == "" {
		return fmt.Errorf("default_answer is required")
	}
	for name, sc := range c.Scenarios {
		if sc.FirstStep == "" {
			return fmt.Errorf("scenario %s: first_step is required", name)
		}
		if _, ok := sc.Steps[sc.FirstStep]; !ok {
			return fmt.Errorf("scenario %s: first_step %s does not exist", name, sc.FirstStep)
		}
		for stepName, step := range sc.Steps {
			// A step without a handler can only be a terminal display step:
			// it is never persisted as the current step, so no input ever
			// reaches it. Any step the engine can wait on needs a handler.
			if step.Handler == "" && (step.NextStep != "" || stepName == FallbackStepName) {
				return fmt.Errorf("scenario %s step %s: handler is required", name, stepName)
			}
			if step.NextStep != "" {
				if _, ok := sc.Steps[step.NextStep]; !ok {
					return fmt.Errorf("scenario %s step %s: next_step %s does not exist", name, stepName, step.NextStep)
				}
			}
		}
	}
	for i, intent := range c.Intents {
		if len(intent.Tokens) == 0 {
			return fmt.Errorf("intent %d: tokens are required", i)
		}
		if intent.Answer == "" && intent.Scenario == "" {
			return fmt.Errorf("intent %d: either answer or scenario is required", i)
		}
		if intent.Scenario != "" {
			if _, ok := c.Scenarios[intent.Scenario]; !ok {
				return fmt.Errorf("intent %d: scenario %s does not exist", i, intent.Scenario)
			}
		}
	}
	return nil
}

// ValidateHandlers fails fast when a step references a handler that is not
// registered. The two lookup functions report whether a text or image
// handler with the given name exists.
func (c *Config) ValidateHandlers(hasHandler, hasImageHandler func(name string) bool) error {
	for name, sc := range c.Scenarios {
		for stepName, step := range sc.Steps {
			if step.Handler != "" && !hasHandler(step.Handler) {
				return fmt.Errorf("scenario %s step %s: handler %s is not registered", name, stepName, step.Handler)
			}
			if step.Image != "" && !hasImageHandler(step.Image) {
				return fmt.Errorf("scenario %s step %s: image handler %s is not registered", name, stepName, step.Image)
			}
		}
	}
	slog.Debug("Scenario handler references validated", "scenarios", len(c.Scenarios))
	return nil
}

// Scenario returns the named scenario definition.
func (c *Config) Scenario(name string) (Scenario, bool) {
	sc, ok := c.Scenarios[name]
	return sc, ok
}
