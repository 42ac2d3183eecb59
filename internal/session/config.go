package session

import (
	"time"

	"wagate/internal/credstore"
	"wagate/internal/engine"
)

// BackoffConfig defines reconnect backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// ReconnectConfig bounds the automatic reconnect loop. MaxAttempts == 0
// keeps the original unbounded behavior; a positive value moves the session
// to the errored state once consecutive attempts are exhausted.
type ReconnectConfig struct {
	MaxAttempts int
	Backoff     BackoffConfig
}

func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts: 0,
		Backoff: BackoffConfig{
			InitialDelay: 500 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     30 * time.Second,
			Jitter:       true,
		},
	}
}

func (c ReconnectConfig) WithDefaults() ReconnectConfig {
	def := DefaultReconnectConfig()
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff.InitialDelay = def.Backoff.InitialDelay
	}
	if c.Backoff.Multiplier < 1.0 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	if c.Backoff.MaxDelay <= 0 {
		c.Backoff.MaxDelay = def.Backoff.MaxDelay
	}
	if c.MaxAttempts < 0 {
		c.MaxAttempts = 0
	}
	return c
}

// Config wires one session's collaborators.
type Config struct {
	DeviceID    string
	Dialer      engine.Dialer
	Credentials credstore.Store
	Reconnect   ReconnectConfig
}
