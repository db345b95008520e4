package steam

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffGrowsUpToCap(t *testing.T) {
	requireT := require.New(t)

	cfg := backoffConfig{
		initialDelay: time.Second,
		multiplier:   2,
		maxDelay:     10 * time.Second,
	}

	requireT.Equal(time.Second, nextBackoffDelay(cfg, 1, nil))
	requireT.Equal(2*time.Second, nextBackoffDelay(cfg, 2, nil))
	requireT.Equal(4*time.Second, nextBackoffDelay(cfg, 3, nil))
	requireT.Equal(8*time.Second, nextBackoffDelay(cfg, 4, nil))
	requireT.Equal(10*time.Second, nextBackoffDelay(cfg, 5, nil))
	requireT.Equal(10*time.Second, nextBackoffDelay(cfg, 50, nil))
}

func TestBackoffFirstAttemptIsNotJittered(t *testing.T) {
	requireT := require.New(t)

	cfg := backoffConfig{
		initialDelay: time.Second,
		multiplier:   2,
		maxDelay:     time.Minute,
		jitter:       true,
	}
	rng := rand.New(rand.NewSource(1))

	requireT.Equal(time.Second, nextBackoffDelay(cfg, 1, rng))
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	requireT := require.New(t)

	base := backoffConfig{
		initialDelay: time.Second,
		multiplier:   2,
		maxDelay:     time.Minute,
	}
	jittered := base
	jittered.jitter = true
	rng := rand.New(rand.NewSource(42))

	for attempt := 2; attempt <= 6; attempt++ {
		exact := nextBackoffDelay(base, attempt, nil)
		for i := 0; i < 20; i++ {
			delay := nextBackoffDelay(jittered, attempt, rng)
			requireT.GreaterOrEqual(delay, exact/2)
			requireT.Less(delay, exact*3/2+time.Nanosecond)
		}
	}
}

func TestBackoffZeroInitialDisablesDelay(t *testing.T) {
	requireT := require.New(t)

	requireT.Zero(nextBackoffDelay(backoffConfig{}, 5, nil))
}

func TestBackoffMultiplierBelowOneIsClamped(t *testing.T) {
	requireT := require.New(t)

	cfg := backoffConfig{
		initialDelay: time.Second,
		multiplier:   0.5,
		maxDelay:     time.Minute,
	}

	requireT.Equal(time.Second, nextBackoffDelay(cfg, 3, nil))
}
