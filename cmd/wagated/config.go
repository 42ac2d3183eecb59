package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"wagate/internal/gateway"
)

// wagated config.toml key mapping to gateway runtime settings.
type fileConfig struct {
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

// wagated loader for TOML config with default overlay.
func loadServiceConfig(path string) (gateway.ServiceConfig, error) {
	cfg := gateway.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return gateway.ServiceConfig{}, fmt.Errorf("load wagated config: %w", err)
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("engine") {
		cfg.EngineName = strings.TrimSpace(raw.Engine)
	}
	if meta.IsDefined("sessions_dir") {
		cfg.SessionsDir = strings.TrimSpace(raw.SessionsDir)
	}
	if meta.IsDefined("media_dir") {
		cfg.MediaDir = strings.TrimSpace(raw.MediaDir)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = raw.CORSOrigins
	}
	if meta.IsDefined("auth_token") {
		cfg.AuthToken = strings.TrimSpace(raw.AuthToken)
	}
	if meta.IsDefined("reconnect_max_attempts") {
		if raw.ReconnectMaxAttempt < 0 {
			return gateway.ServiceConfig{}, fmt.Errorf("load wagated config: reconnect_max_attempts must be >= 0")
		}
		cfg.Reconnect.MaxAttempts = raw.ReconnectMaxAttempt
	}
	if meta.IsDefined("backoff_initial_ms") {
		if raw.BackoffInitialMS <= 0 {
			return gateway.ServiceConfig{}, fmt.Errorf("load wagated config: backoff_initial_ms must be > 0")
		}
		cfg.Reconnect.Backoff.InitialDelay = time.Duration(raw.BackoffInitialMS) * time.Millisecond
	}
	if meta.IsDefined("backoff_multiplier") {
		if raw.BackoffMultiplier < 1 {
			return gateway.ServiceConfig{}, fmt.Errorf("load wagated config: backoff_multiplier must be >= 1")
		}
		cfg.Reconnect.Backoff.Multiplier = raw.BackoffMultiplier
	}
	if meta.IsDefined("backoff_max_ms") {
		if raw.BackoffMaxMS <= 0 {
			return gateway.ServiceConfig{}, fmt.Errorf("load wagated config: backoff_max_ms must be > 0")
		}
		cfg.Reconnect.Backoff.MaxDelay = time.Duration(raw.BackoffMaxMS) * time.Millisecond
	}
	if meta.IsDefined("backoff_jitter") && raw.BackoffJitter != nil {
		cfg.Reconnect.Backoff.Jitter = *raw.BackoffJitter
	}

	return cfg, nil
}
