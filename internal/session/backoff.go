package session

import (
	"math/rand"
	"time"
)

// NextBackoffDelay computes how long the supervisor sleeps before redial
// attempt N (1-based). The first attempt waits InitialDelay; later attempts
// grow geometrically up to MaxDelay. With Jitter set the result is scaled by
// a random factor in [0.5, 1.5) so a fleet of devices does not redial in
// lockstep.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}

	growth := cfg.Multiplier
	if growth < 1.0 {
		growth = 1.0
	}
	delay := float64(cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= growth
		if cfg.MaxDelay > 0 && delay >= float64(cfg.MaxDelay) {
			delay = float64(cfg.MaxDelay)
			break
		}
	}

	if cfg.Jitter {
		scale := 0.5
		if rng != nil {
			scale += rng.Float64()
		}
		delay *= scale
	}
	return time.Duration(delay)
}
