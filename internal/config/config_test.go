package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wagate/internal/testutil/testlog"
)

func TestTemplateRoundTripsThroughValidation(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteTemplate(path, "wagated", false); err != nil {
		t.Fatalf("write template: %v", err)
	}

	cfg, err := LoadServiceFileConfig(path)
	if err != nil {
		t.Fatalf("template must validate: %v", err)
	}
	if cfg.ListenAddr != ":3001" || cfg.Engine != "loopback" {
		t.Fatalf("unexpected template values: %+v", cfg)
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteTemplate(path, "wagated", false); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteTemplate(path, "wagated", false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if err := WriteTemplate(path, "wagated", true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
}

func TestTemplateUnknownKind(t *testing.T) {
	testlog.Start(t)
	if _, err := Template("bogus"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestLoadServiceFileConfigRejectsUnknownKeys(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("listn_addr = \":3001\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadServiceFileConfig(path); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("expected strict decode failure, got %v", err)
	}
}

func TestValidateServiceFileConfig(t *testing.T) {
	testlog.Start(t)
	bad := []ServiceFileConfig{
		{ReconnectMaxAttempt: -1},
		{BackoffInitialMS: -5},
		{BackoffMaxMS: -1},
		{BackoffMultiplier: 0.2},
		{BackoffInitialMS: 60000, BackoffMaxMS: 1000},
	}
	for i, cfg := range bad {
		if err := ValidateServiceFileConfig(cfg); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, cfg)
		}
	}
	if err := ValidateServiceFileConfig(ServiceFileConfig{}); err != nil {
		t.Fatalf("zero config must validate: %v", err)
	}
}
