// Package config owns the wagated config file schema: template generation
// and standalone validation, used by the configgen tool.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ServiceFileConfig is the on-disk schema for wagated's config.toml.
type ServiceFileConfig struct {
	ListenAddr          string   `toml:"listen_addr"`
	Engine              string   `toml:"engine"`
	SessionsDir         string   `toml:"sessions_dir"`
	MediaDir            string   `toml:"media_dir"`
	CORSOrigins         []string `toml:"cors_origins"`
	AuthToken           string   `toml:"auth_token"`
	ReconnectMaxAttempt int      `toml:"reconnect_max_attempts"`
	BackoffInitialMS    int64    `toml:"backoff_initial_ms"`
	BackoffMultiplier   float64  `toml:"backoff_multiplier"`
	BackoffMaxMS        int64    `toml:"backoff_max_ms"`
	BackoffJitter       *bool    `toml:"backoff_jitter"`
}

// LoadServiceFileConfig decodes a config file strictly: unknown keys are an
// error, so typos surface at validation time instead of silently falling
// back to defaults.
func LoadServiceFileConfig(path string) (ServiceFileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ServiceFileConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var cfg ServiceFileConfig
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return ServiceFileConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := ValidateServiceFileConfig(cfg); err != nil {
		return ServiceFileConfig{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func ValidateServiceFileConfig(cfg ServiceFileConfig) error {
	if cfg.ListenAddr != "" && strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("listen_addr must not be blank")
	}
	if cfg.ReconnectMaxAttempt < 0 {
		return fmt.Errorf("reconnect_max_attempts must be >= 0")
	}
	if cfg.BackoffInitialMS < 0 {
		return fmt.Errorf("backoff_initial_ms must be >= 0")
	}
	if cfg.BackoffMaxMS < 0 {
		return fmt.Errorf("backoff_max_ms must be >= 0")
	}
	if cfg.BackoffMultiplier != 0 && cfg.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be >= 1")
	}
	if cfg.BackoffInitialMS > 0 && cfg.BackoffMaxMS > 0 && cfg.BackoffInitialMS > cfg.BackoffMaxMS {
		return fmt.Errorf("backoff_initial_ms must not exceed backoff_max_ms")
	}
	return nil
}
