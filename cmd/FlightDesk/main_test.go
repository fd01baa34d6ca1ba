package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BTreeMap/FlightDesk/internal/store"
)

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	os.Unsetenv("FLIGHTDESK_STATE_DIR")
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("FLIGHTDESK_SCHEDULE")
	os.Unsetenv("FLIGHTDESK_TRANSPORT")

	config := loadEnvironmentConfig()

	if config.StateDir != DefaultStateDir {
		t.Errorf("Expected default state dir %q, got %q", DefaultStateDir, config.StateDir)
	}
	expectedDSN := filepath.Join(DefaultStateDir, DefaultDBFileName)
	if config.DatabaseURL != expectedDSN {
		t.Errorf("Expected default DSN %q, got %q", expectedDSN, config.DatabaseURL)
	}
	expectedSchedule := filepath.Join(DefaultStateDir, DefaultScheduleFileName)
	if config.SchedulePath != expectedSchedule {
		t.Errorf("Expected default schedule path %q, got %q", expectedSchedule, config.SchedulePath)
	}
	if config.Transport != "console" {
		t.Errorf("Expected console transport by default, got %q", config.Transport)
	}
}

func TestLoadEnvironmentConfigOverrides(t *testing.T) {
	t.Setenv("FLIGHTDESK_STATE_DIR", "/tmp/fd-test")
	t.Setenv("DATABASE_URL", "postgres://localhost/flightdesk")
	t.Setenv("FLIGHTDESK_TRANSPORT", "twilio")

	config := loadEnvironmentConfig()

	if config.StateDir != "/tmp/fd-test" {
		t.Errorf("state dir override ignored: %q", config.StateDir)
	}
	if config.DatabaseURL != "postgres://localhost/flightdesk" {
		t.Errorf("database URL override ignored: %q", config.DatabaseURL)
	}
	if config.Transport != "twilio" {
		t.Errorf("transport override ignored: %q", config.Transport)
	}
}

func TestDetectDSNType(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://localhost/db", "postgres"},
		{"postgresql://localhost/db", "postgres"},
		{"host=localhost user=fd dbname=fd", "postgres"},
		{"redis://localhost:6379/0", "redis"},
		{"rediss://localhost:6380", "redis"},
		{"/var/lib/flightdesk/flightdesk.db", "sqlite"},
		{"flightdesk.db", "sqlite"},
	}
	for _, tc := range tests {
		if got := store.DetectDSNType(tc.dsn); got != tc.want {
			t.Errorf("DetectDSNType(%q): expected %q, got %q", tc.dsn, tc.want, got)
		}
	}
}

func TestLoadDatasetGeneratesStarterData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.csv")

	ds, err := loadDataset(path)
	if err != nil {
		t.Fatalf("loadDataset failed: %v", err)
	}
	if ds.Len() == 0 {
		t.Error("generated dataset is empty")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("dataset file not written: %v", err)
	}

	// A second load must read the file, not regenerate it.
	again, err := loadDataset(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if again.Len() != ds.Len() {
		t.Errorf("reload changed dataset: %d vs %d rules", again.Len(), ds.Len())
	}
}

func TestLoadScenariosDefault(t *testing.T) {
	cfg, err := loadScenarios("")
	if err != nil {
		t.Fatalf("loadScenarios failed: %v", err)
	}
	if cfg.ExitCommand != "/exit" {
		t.Errorf("unexpected exit command %q", cfg.ExitCommand)
	}
}
