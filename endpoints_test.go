package steam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olifog/steam.py/transport"
)

func newTestPool(t *testing.T, cooldown time.Duration, addrs ...string) *endpointPool {
	endpoints, err := transport.ParseEndpoints(addrs)
	require.NoError(t, err)
	return newEndpointPool(endpoints, cooldown)
}

func TestEndpointPoolRotates(t *testing.T) {
	requireT := require.New(t)

	pool := newTestPool(t, time.Minute, "a:1", "b:2", "c:3")
	now := time.Now()

	for _, expected := range []string{"a:1", "b:2", "c:3", "a:1"} {
		endpoint, wait := pool.Pick(now)
		requireT.Zero(wait)
		requireT.Equal(expected, endpoint.Addr)
	}
}

func TestEndpointPoolSkipsCooling(t *testing.T) {
	requireT := require.New(t)

	pool := newTestPool(t, time.Minute, "a:1", "b:2", "c:3")
	now := time.Now()

	endpoint, _ := pool.Pick(now)
	requireT.Equal("a:1", endpoint.Addr)
	pool.MarkFailed(endpoint, now)

	for _, expected := range []string{"b:2", "c:3", "b:2", "c:3"} {
		endpoint, wait := pool.Pick(now)
		requireT.Zero(wait)
		requireT.Equal(expected, endpoint.Addr)
	}
}

func TestEndpointPoolCooldownExpires(t *testing.T) {
	requireT := require.New(t)

	pool := newTestPool(t, time.Minute, "a:1", "b:2")
	now := time.Now()

	endpoint, _ := pool.Pick(now)
	pool.MarkFailed(endpoint, now)

	later := now.Add(time.Minute + time.Second)
	seen := map[string]struct{}{}
	for i := 0; i < 2; i++ {
		endpoint, wait := pool.Pick(later)
		requireT.Zero(wait)
		seen[endpoint.Addr] = struct{}{}
	}
	requireT.Len(seen, 2)
}

func TestEndpointPoolMarkHealthy(t *testing.T) {
	requireT := require.New(t)

	pool := newTestPool(t, time.Minute, "a:1", "b:2")
	now := time.Now()

	endpoint, _ := pool.Pick(now)
	requireT.Equal("a:1", endpoint.Addr)
	pool.MarkFailed(endpoint, now)
	pool.MarkHealthy(endpoint)

	seen := map[string]struct{}{}
	for i := 0; i < 2; i++ {
		endpoint, wait := pool.Pick(now)
		requireT.Zero(wait)
		seen[endpoint.Addr] = struct{}{}
	}
	requireT.Len(seen, 2)
}

func TestEndpointPoolAddSkipsDuplicates(t *testing.T) {
	requireT := require.New(t)

	pool := newTestPool(t, time.Minute, "a:1", "b:2")
	added, err := transport.ParseEndpoints([]string{"b:2", "c:3"})
	requireT.NoError(err)
	pool.Add(added)

	now := time.Now()
	for _, expected := range []string{"a:1", "b:2", "c:3", "a:1"} {
		endpoint, wait := pool.Pick(now)
		requireT.Zero(wait)
		requireT.Equal(expected, endpoint.Addr)
	}
}

func TestEndpointPoolAllCooling(t *testing.T) {
	requireT := require.New(t)

	pool := newTestPool(t, time.Minute, "a:1", "b:2")
	now := time.Now()

	a, _ := pool.Pick(now)
	b, _ := pool.Pick(now)
	pool.MarkFailed(a, now)
	pool.MarkFailed(b, now.Add(-30*time.Second))

	// Both are cooling down, the one expiring first wins.
	endpoint, wait := pool.Pick(now)
	requireT.Equal(b.Addr, endpoint.Addr)
	requireT.Equal(30*time.Second, wait)
}
