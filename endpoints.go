package steam

import (
	"sync"
	"time"

	"github.com/olifog/steam.py/transport"
)

// endpointPool rotates over the configured servers and keeps recently
// failed ones on cooldown.
type endpointPool struct {
	cooldown time.Duration

	mu        sync.Mutex
	endpoints []transport.Endpoint
	next      int
	cooling   map[string]time.Time
}

func newEndpointPool(endpoints []transport.Endpoint, cooldown time.Duration) *endpointPool {
	return &endpointPool{
		cooldown:  cooldown,
		endpoints: endpoints,
		cooling:   map[string]time.Time{},
	}
}

// Add appends endpoints not yet in the rotation.
func (p *endpointPool) Add(endpoints []transport.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	known := make(map[string]bool, len(p.endpoints))
	for _, endpoint := range p.endpoints {
		known[endpoint.String()] = true
	}
	for _, endpoint := range endpoints {
		if known[endpoint.String()] {
			continue
		}
		known[endpoint.String()] = true
		p.endpoints = append(p.endpoints, endpoint)
	}
}

// Pick returns the endpoint to dial next and how long to wait before
// dialing it. The wait is zero unless every endpoint is cooling down, in
// which case the endpoint whose cooldown expires first is returned.
func (p *endpointPool) Pick(now time.Time) (transport.Endpoint, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var soonest transport.Endpoint
	var soonestExpiry time.Time
	for i := range p.endpoints {
		endpoint := p.endpoints[(p.next+i)%len(p.endpoints)]
		expiry, cooling := p.cooling[endpoint.String()]
		if !cooling || !expiry.After(now) {
			p.next = (p.next + i + 1) % len(p.endpoints)
			return endpoint, 0
		}
		if soonestExpiry.IsZero() || expiry.Before(soonestExpiry) {
			soonest = endpoint
			soonestExpiry = expiry
		}
	}
	return soonest, soonestExpiry.Sub(now)
}

// MarkFailed puts the endpoint on cooldown.
func (p *endpointPool) MarkFailed(endpoint transport.Endpoint, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cooling[endpoint.String()] = now.Add(p.cooldown)
}

// MarkHealthy takes the endpoint off cooldown after a session reached the
// connected state on it.
func (p *endpointPool) MarkHealthy(endpoint transport.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.cooling, endpoint.String())
}
