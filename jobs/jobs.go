package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/olifog/steam.py/wire"
)

// ErrTimeout is returned by Handle.Wait when the response does not arrive
// within the job timeout.
var ErrTimeout = errors.New("jobs: timed out")

// Defaults used when the corresponding option is left zero.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultSweepInterval = time.Second
)

// Mux correlates request jobs with their responses. Job ids are unique for
// the lifetime of the mux, which spans reconnects.
type Mux struct {
	defaultTimeout time.Duration
	sweepInterval  time.Duration

	mu      sync.Mutex
	next    uint64
	pending map[wire.JobID]*pendingJob
}

type pendingJob struct {
	ch       chan outcome
	deadline time.Time
}

type outcome struct {
	env *wire.Envelope
	err error
}

// New creates a mux. Zero durations select the defaults.
func New(defaultTimeout, sweepInterval time.Duration) *Mux {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Mux{
		defaultTimeout: defaultTimeout,
		sweepInterval:  sweepInterval,
		pending:        map[wire.JobID]*pendingJob{},
	}
}

// Run expires pending jobs whose deadline passed. It returns when ctx is
// closed.
func (m *Mux) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-ticker.C:
			m.expire(time.Now())
		}
	}
}

// Register allocates a job id and starts waiting for its response. A zero
// timeout selects the default.
func (m *Mux) Register(timeout time.Duration) *Handle {
	if timeout <= 0 {
		timeout = m.defaultTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		m.next++
		// Zero is the null job id. Skip it on wraparound, together with
		// any id still pending from before the wrap.
		if m.next == 0 {
			continue
		}
		if _, taken := m.pending[wire.JobID(m.next)]; !taken {
			break
		}
	}
	id := wire.JobID(m.next)
	p := &pendingJob{
		ch:       make(chan outcome, 1),
		deadline: time.Now().Add(timeout),
	}
	m.pending[id] = p

	return &Handle{id: id, mux: m, ch: p.ch}
}

// Resolve completes the job the envelope responds to. It reports false when
// no job is waiting, which covers responses arriving after their timeout.
func (m *Mux) Resolve(id wire.JobID, env *wire.Envelope) bool {
	p := m.take(id)
	if p == nil {
		return false
	}
	p.ch <- outcome{env: env}
	return true
}

// FailAll completes every pending job with err. Called on connection loss
// so that no waiter is left hanging.
func (m *Mux) FailAll(err error) {
	m.mu.Lock()
	expired := make([]*pendingJob, 0, len(m.pending))
	for id, p := range m.pending {
		delete(m.pending, id)
		expired = append(expired, p)
	}
	m.mu.Unlock()

	for _, p := range expired {
		p.ch <- outcome{err: err}
	}
}

// Len returns the number of jobs still waiting.
func (m *Mux) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Mux) take(id wire.JobID) *pendingJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[id]
	if !ok {
		return nil
	}
	delete(m.pending, id)
	return p
}

func (m *Mux) expire(now time.Time) {
	m.mu.Lock()
	var expired []*pendingJob
	for id, p := range m.pending {
		if p.deadline.Before(now) {
			delete(m.pending, id)
			expired = append(expired, p)
		}
	}
	m.mu.Unlock()

	for _, p := range expired {
		p.ch <- outcome{err: errors.WithStack(ErrTimeout)}
	}
}

// Handle is one in-flight job.
type Handle struct {
	id  wire.JobID
	mux *Mux
	ch  <-chan outcome
}

// ID returns the job id to stamp on the outgoing envelope.
func (h *Handle) ID() wire.JobID {
	return h.id
}

// Cancel abandons the job. A response arriving later is dropped.
func (h *Handle) Cancel() {
	h.mux.take(h.id)
}

// Wait blocks until the response arrives, the job times out, the connection
// is lost or ctx closes.
func (h *Handle) Wait(ctx context.Context) (*wire.Envelope, error) {
	select {
	case <-ctx.Done():
		h.mux.take(h.id)
		return nil, errors.WithStack(ctx.Err())
	case out := <-h.ch:
		if out.err != nil {
			return nil, out.err
		}
		return out.env, nil
	}
}
