package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/FlightDesk/internal/api"
	"github.com/BTreeMap/FlightDesk/internal/dialog"
	"github.com/BTreeMap/FlightDesk/internal/messaging"
	"github.com/BTreeMap/FlightDesk/internal/scenario"
	"github.com/BTreeMap/FlightDesk/internal/schedule"
	"github.com/BTreeMap/FlightDesk/internal/store"
	"github.com/BTreeMap/FlightDesk/internal/timetable"
	"github.com/BTreeMap/FlightDesk/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for FlightDesk state data
	DefaultStateDir = "/var/lib/flightdesk"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "flightdesk.db"
	// DefaultScheduleFileName is the default flight schedule dataset filename
	DefaultScheduleFileName = "schedule.csv"
)

// defaultCities seeds a generated dataset when no schedule file exists yet.
var defaultCities = []string{"Москва", "Санкт-Петербург", "Тверь", "Берлин", "Прага", "Хельсинки"}

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping FlightDesk")
	if err := run(flags); err != nil {
		slog.Error("FlightDesk failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("FlightDesk exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	DatabaseURL   string
	SchedulePath  string
	ScenarioPath  string
	Transport     string
	APIAddr       string
	WebhookAddr   string
	PublicBaseURL string
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	schedulePath  *string
	scenarioPath  *string
	transport     *string
	apiAddr       *string
	webhookAddr   *string
	publicBaseURL *string
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("FLIGHTDESK_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:      os.Getenv("FLIGHTDESK_STATE_DIR"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SchedulePath:  os.Getenv("FLIGHTDESK_SCHEDULE"),
		ScenarioPath:  os.Getenv("FLIGHTDESK_SCENARIOS"),
		Transport:     util.EnvOrDefault("FLIGHTDESK_TRANSPORT", "console"),
		APIAddr:       os.Getenv("API_ADDR"),
		WebhookAddr:   os.Getenv("WEBHOOK_ADDR"),
		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No FLIGHTDESK_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.SchedulePath == "" {
		config.SchedulePath = filepath.Join(config.StateDir, DefaultScheduleFileName)
	}

	slog.Debug("environment variables loaded",
		"FLIGHTDESK_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"FLIGHTDESK_SCHEDULE", config.SchedulePath,
		"FLIGHTDESK_SCENARIOS", config.ScenarioPath,
		"FLIGHTDESK_TRANSPORT", config.Transport,
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for FlightDesk data (overrides $FLIGHTDESK_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN: SQLite path, postgres:// URL, or redis:// URL (overrides $DATABASE_URL)"),
		schedulePath:  flag.String("schedule", config.SchedulePath, "flight schedule CSV path (overrides $FLIGHTDESK_SCHEDULE)"),
		scenarioPath:  flag.String("scenarios", config.ScenarioPath, "scenario configuration YAML path, empty for built-in (overrides $FLIGHTDESK_SCENARIOS)"),
		transport:     flag.String("transport", config.Transport, "message transport: console or twilio (overrides $FLIGHTDESK_TRANSPORT)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "admin API server address, empty to disable (overrides $API_ADDR)"),
		webhookAddr:   flag.String("webhook-addr", config.WebhookAddr, "Twilio webhook listen address (overrides $WEBHOOK_ADDR)"),
		publicBaseURL: flag.String("public-base-url", config.PublicBaseURL, "externally reachable base URL for media links (overrides $PUBLIC_BASE_URL)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"schedule", *flags.schedulePath,
		"scenarios", *flags.scenarioPath,
		"transport", *flags.transport,
		"apiAddr", *flags.apiAddr)

	// Follow an overridden state directory for the default-derived paths.
	if *flags.stateDir != config.StateDir {
		if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) {
			*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		}
		if *flags.schedulePath == filepath.Join(config.StateDir, DefaultScheduleFileName) {
			*flags.schedulePath = filepath.Join(*flags.stateDir, DefaultScheduleFileName)
		}
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(*flags.schedulePath), 0755); err != nil {
		return err
	}
	return nil
}

// buildStore selects a storage backend from the DSN.
func buildStore(dsn string) (store.Store, error) {
	switch store.DetectDSNType(dsn) {
	case "postgres":
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	case "redis":
		slog.Debug("Detected Redis DSN, configuring Redis store")
		return store.NewRedisStoreFromURL(dsn)
	default:
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
		return store.NewSQLiteStore(store.WithDSN(dsn))
	}
}

// loadDataset reads the schedule CSV, generating a starter dataset on first
// run when the file does not exist yet.
func loadDataset(path string) (*schedule.Dataset, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Info("Schedule dataset missing, generating starter data", "path", path)
		if err := timetable.WriteFile(path, defaultCities); err != nil {
			return nil, err
		}
	}
	return schedule.Load(path)
}

// loadScenarios loads the scenario configuration, preferring an external
// file over the built-in one.
func loadScenarios(path string) (*scenario.Config, error) {
	if path != "" {
		return scenario.LoadFile(path)
	}
	return scenario.DefaultConfig()
}

// buildTransport selects and configures the message transport.
func buildTransport(flags Flags) (messaging.Service, error) {
	if *flags.transport == "twilio" {
		client, err := messaging.NewTwilioClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client,
			messaging.WithWebhookAddr(*flags.webhookAddr),
			messaging.WithPublicBaseURL(*flags.publicBaseURL),
			messaging.WithMediaDir(filepath.Join(*flags.stateDir, "media")),
		)
	}
	return messaging.NewConsoleService(
		messaging.WithConsoleMediaDir(filepath.Join(*flags.stateDir, "media")),
	), nil
}

func run(flags Flags) error {
	st, err := buildStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	dataset, err := loadDataset(*flags.schedulePath)
	if err != nil {
		return err
	}
	slog.Info("Schedule dataset loaded", "path", *flags.schedulePath, "rules", dataset.Len())

	cfg, err := loadScenarios(*flags.scenarioPath)
	if err != nil {
		return err
	}

	msgs, err := buildTransport(flags)
	if err != nil {
		return err
	}

	registry := dialog.NewRegistry(dataset)
	engine, err := dialog.NewEngine(cfg, registry, st, msgs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *flags.apiAddr != "" {
		admin := api.NewServer(st, dataset)
		go func() {
			slog.Info("Admin API listening", "addr", *flags.apiAddr)
			if err := http.ListenAndServe(*flags.apiAddr, admin.Router()); err != nil {
				slog.Error("Admin API server failed", "error", err)
			}
		}()
	}

	if err := msgs.Start(ctx); err != nil {
		return err
	}
	defer msgs.Stop()

	slog.Info("FlightDesk ready", "transport", *flags.transport)
	runEventLoop(ctx, engine, msgs)
	return nil
}

// runEventLoop dispatches inbound messages to the engine until the context
// is cancelled or the transport closes its response channel. A panic while
// handling one message is logged and does not take the process down.
func runEventLoop(ctx context.Context, engine *dialog.Engine, msgs messaging.Service) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received")
			return
		case resp, ok := <-msgs.Responses():
			if !ok {
				slog.Info("Transport response channel closed")
				return
			}
			go func() {
				defer func() {
					if r := recover(); r != nil {
						slog.Error("Panic while handling message", "user", resp.From, "panic", r)
					}
				}()
				if err := engine.HandleMessage(ctx, resp); err != nil {
					slog.Error("Failed to handle message", "user", resp.From, "error", err)
				}
			}()
		}
	}
}
