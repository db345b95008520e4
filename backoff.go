package steam

import (
	"math"
	"math/rand"
	"time"
)

// backoffConfig bounds the delay between reconnect attempts.
type backoffConfig struct {
	// initialDelay is the delay after the first failure.
	initialDelay time.Duration

	// multiplier grows the delay after each consecutive failure.
	multiplier float64

	// maxDelay caps the delay.
	maxDelay time.Duration

	// jitter randomizes each delay between 50% and 150% of its value so
	// clients disconnected together do not redial together.
	jitter bool
}

// nextBackoffDelay returns the reconnect delay for attempt N (1-based).
// Attempts reset after every session that reaches the connected state.
func nextBackoffDelay(cfg backoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.initialDelay
	}
	if cfg.initialDelay <= 0 {
		return 0
	}
	if cfg.multiplier < 1.0 {
		cfg.multiplier = 1.0
	}
	delay := float64(cfg.initialDelay) * math.Pow(cfg.multiplier, float64(attempt-1))
	if cfg.maxDelay > 0 && delay > float64(cfg.maxDelay) {
		delay = float64(cfg.maxDelay)
	}
	if cfg.jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}
