package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"wagate/internal/logging"
)

func TestMain(m *testing.M) {
	logging.ConfigureTests()
	os.Exit(m.Run())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServiceConfigOverlaysDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
listen_addr = "127.0.0.1:8080"
engine = "loopback"
sessions_dir = "/var/lib/wagate/sessions"
cors_origins = ["http://localhost:3000"]
reconnect_max_attempts = 5
backoff_initial_ms = 250
backoff_multiplier = 1.5
backoff_max_ms = 10000
backoff_jitter = false
	`)

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:8080" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.SessionsDir != "/var/lib/wagate/sessions" {
		t.Fatalf("unexpected sessions dir: %q", cfg.SessionsDir)
	}
	if cfg.MediaDir != "media" {
		t.Fatalf("media dir default not preserved: %q", cfg.MediaDir)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORSOrigins)
	}
	if cfg.Reconnect.MaxAttempts != 5 {
		t.Fatalf("unexpected max attempts: %d", cfg.Reconnect.MaxAttempts)
	}
	if cfg.Reconnect.Backoff.InitialDelay != 250*time.Millisecond {
		t.Fatalf("unexpected initial delay: %v", cfg.Reconnect.Backoff.InitialDelay)
	}
	if cfg.Reconnect.Backoff.Multiplier != 1.5 {
		t.Fatalf("unexpected multiplier: %v", cfg.Reconnect.Backoff.Multiplier)
	}
	if cfg.Reconnect.Backoff.MaxDelay != 10*time.Second {
		t.Fatalf("unexpected max delay: %v", cfg.Reconnect.Backoff.MaxDelay)
	}
	if cfg.Reconnect.Backoff.Jitter {
		t.Fatalf("expected jitter disabled")
	}
}

func TestLoadServiceConfigKeepsDefaultsForUndefinedKeys(t *testing.T) {
	path := writeConfig(t, `
listen_addr = ":9090"
	`)

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.EngineName != "loopback" {
		t.Fatalf("unexpected engine default: %q", cfg.EngineName)
	}
	if cfg.Reconnect.MaxAttempts != 0 {
		t.Fatalf("expected unbounded reconnect default, got %d", cfg.Reconnect.MaxAttempts)
	}
	if !cfg.Reconnect.Backoff.Jitter {
		t.Fatalf("expected jitter enabled by default")
	}
}

func TestLoadServiceConfigRejectsInvalidBackoff(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"negative attempts", "reconnect_max_attempts = -1"},
		{"zero initial", "backoff_initial_ms = 0"},
		{"multiplier below one", "backoff_multiplier = 0.5"},
		{"zero max", "backoff_max_ms = 0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := loadServiceConfig(path); err == nil {
				t.Fatalf("expected error for %q", tc.content)
			}
		})
	}
}

func TestLoadServiceConfigMissingFile(t *testing.T) {
	if _, err := loadServiceConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
