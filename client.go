package steam

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"

	"github.com/olifog/steam.py/crypt"
	"github.com/olifog/steam.py/jobs"
	"github.com/olifog/steam.py/transport"
	"github.com/olifog/steam.py/wire"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultDialTimeout       = 10 * time.Second
	DefaultJobTimeout        = 10 * time.Second
	DefaultEndpointCooldown  = 5 * time.Minute
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultBackoffInitial    = time.Second
	DefaultBackoffMax        = time.Minute
	DefaultCompressThreshold = 1024
	DefaultQueueSize         = 64

	sendQueueSize = 64
)

// Credentials identify the account to log on as. An empty AccountName
// requests an anonymous session. RefreshToken takes precedence over
// Password.
type Credentials struct {
	AccountName   string
	Password      string
	RefreshToken  string
	TwoFactorCode string
}

// TokenStore persists refresh tokens between sessions. Load returns an
// empty token when none is stored.
type TokenStore interface {
	Load(ctx context.Context, accountName string) (string, error)
	Store(ctx context.Context, accountName, refreshToken string) error
}

// Config is the config of the client.
type Config struct {
	// Endpoints lists the servers to rotate over: "tcp://host:port",
	// "ws://host/path", "quic://host:port" or bare host:port pairs.
	Endpoints []string

	// Universe the client expects to join. Defaults to the public one.
	Universe wire.Universe

	// ServerKeys pins the server public keys the client trusts. Required.
	ServerKeys *crypt.KeySet

	Credentials Credentials

	// TokenStore, when set, supplies the refresh token before the first
	// logon and persists tokens granted by the server.
	TokenStore TokenStore

	// Dialer overrides the transport dialer.
	Dialer transport.Dialer

	ClientVersion uint64

	DialTimeout      time.Duration
	JobTimeout       time.Duration
	SweepInterval    time.Duration
	EndpointCooldown time.Duration

	// BackoffInitial and BackoffMax bound the reconnect delay.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// MaxReconnects caps consecutive failed connection attempts. Zero
	// retries forever.
	MaxReconnects int

	// MaxFrameSize bounds frames in both directions.
	MaxFrameSize uint32

	// Compress enables compression of outbound bodies at least
	// CompressThreshold bytes long.
	Compress          bool
	CompressThreshold int

	// QueueSize is the channel buffer of each subscription.
	QueueSize int

	// OnStateChange observes lifecycle transitions. Called synchronously,
	// keep it fast.
	OnStateChange func(from, to State)
}

// Client maintains one logical session against the configured servers:
// it dials, negotiates the encrypted channel, logs on, heartbeats and
// reconnects until its Run context closes or logon fails terminally.
type Client struct {
	config    Config
	limits    wire.Limits
	backoff   backoffConfig
	dialer    transport.Dialer
	endpoints *endpointPool
	jobs      *jobs.Mux
	events    *dispatcher
	stats     *statsCollector

	// lastRecv is the unix nanosecond timestamp of the last inbound
	// message, used by the heartbeat loop to detect stale connections.
	lastRecv atomic.Int64

	// writeMu serializes frame writes on the live connection. The sender
	// task owns the write path, the shutdown logoff is the one other
	// writer.
	writeMu sync.Mutex

	mu           sync.Mutex
	state        State
	connectedCh  chan struct{}
	sendCh       chan *wire.Envelope
	steamID      wire.SteamID
	cellID       uint64
	refreshToken string
}

// New creates a new client.
func New(config Config) (*Client, error) {
	if len(config.Endpoints) == 0 {
		return nil, errors.New("no endpoints specified")
	}
	if config.ServerKeys == nil {
		return nil, errors.New("no server keys pinned")
	}
	endpoints, err := transport.ParseEndpoints(config.Endpoints)
	if err != nil {
		return nil, err
	}

	if config.Universe == wire.UniverseInvalid {
		config.Universe = wire.UniversePublic
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultDialTimeout
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultJobTimeout
	}
	if config.EndpointCooldown <= 0 {
		config.EndpointCooldown = DefaultEndpointCooldown
	}
	if config.BackoffInitial <= 0 {
		config.BackoffInitial = DefaultBackoffInitial
	}
	if config.BackoffMax <= 0 {
		config.BackoffMax = DefaultBackoffMax
	}
	if config.CompressThreshold <= 0 {
		config.CompressThreshold = DefaultCompressThreshold
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}

	dialer := config.Dialer
	if dialer == nil {
		dialer = transport.NetDialer{Timeout: config.DialTimeout}
	}

	return &Client{
		config:  config,
		limits:  wire.Limits{MaxFrameSize: config.MaxFrameSize},
		backoff: backoffConfig{
			initialDelay: config.BackoffInitial,
			multiplier:   2,
			maxDelay:     config.BackoffMax,
			jitter:       true,
		},
		dialer:       dialer,
		endpoints:    newEndpointPool(endpoints, config.EndpointCooldown),
		jobs:         jobs.New(config.JobTimeout, config.SweepInterval),
		events:       newDispatcher(config.QueueSize),
		stats:        &statsCollector{},
		state:        StateDisconnected,
		connectedCh:  make(chan struct{}),
		refreshToken: config.Credentials.RefreshToken,
	}, nil
}

// Run runs the client. It returns when ctx closes or when logon fails with
// a terminal result.
func (client *Client) Run(ctx context.Context) error {
	defer client.events.closeAll()
	defer client.jobs.FailAll(ErrConnectionLost)
	defer client.setState(StateDisconnected)

	if err := client.loadToken(ctx); err != nil {
		logger.Get(ctx).Warn("Loading refresh token failed", zap.Error(err))
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("jobs", parallel.Fail, client.jobs.Run)
		spawn("conn", parallel.Fail, client.runLoop)
		return nil
	})
}

func (client *Client) runLoop(ctx context.Context) error {
	log := logger.Get(ctx)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	attempt := 0
	for {
		endpoint, wait := client.endpoints.Pick(time.Now())
		if wait > 0 {
			log.Info("All endpoints cooling down", zap.Duration("wait", wait))
			select {
			case <-ctx.Done():
				client.setState(StateShuttingDown)
				return errors.WithStack(ctx.Err())
			case <-time.After(wait):
			}
		}

		established, err := client.runConn(ctx, endpoint)

		if ctx.Err() != nil {
			client.setState(StateShuttingDown)
			return errors.WithStack(ctx.Err())
		}

		var logonErr *LogonError
		if errors.As(err, &logonErr) && logonErr.Terminal() {
			log.Error("Logon failed", zap.Stringer("endpoint", endpoint), zap.Error(err))
			return err
		}
		if errors.Is(err, ErrUntrustedServer) {
			log.Error("Untrusted server", zap.Stringer("endpoint", endpoint), zap.Error(err))
			return err
		}

		if established {
			attempt = 0
			client.endpoints.MarkHealthy(endpoint)
			client.stats.reconnects.Add(1)
		} else {
			client.endpoints.MarkFailed(endpoint, time.Now())
			attempt++
		}

		client.setState(StateReconnecting)

		if client.config.MaxReconnects > 0 && attempt >= client.config.MaxReconnects {
			log.Error("Reconnect attempts exhausted", zap.Stringer("endpoint", endpoint),
				zap.Error(err), zap.Int("attempts", attempt))
			return errors.WithStack(ErrReconnectExhausted)
		}

		delay := nextBackoffDelay(client.backoff, attempt, rng)
		log.Error("Connection failed", zap.Stringer("endpoint", endpoint),
			zap.Error(err), zap.Duration("backoff", delay))
		select {
		case <-ctx.Done():
			client.setState(StateShuttingDown)
			return errors.WithStack(ctx.Err())
		case <-time.After(delay):
		}
	}
}

// Send queues a message on the current connection. It fails with
// ErrConnectionLost when no connection is up.
func (client *Client) Send(ctx context.Context, env *wire.Envelope) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	if client.state != StateConnected || client.sendCh == nil {
		return errors.WithStack(ErrConnectionLost)
	}

	select {
	case client.sendCh <- env:
		return nil
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

// SendMsg marshals a control-message body and sends it under the given
// type. Fire and forget, like Send.
func (client *Client) SendMsg(ctx context.Context, msgType wire.EMsg, msg any) error {
	body, err := wire.MarshalBody(msg)
	if err != nil {
		return err
	}
	return client.Send(ctx, &wire.Envelope{Type: msgType, Proto: true, Body: body})
}

// SendAndWait stamps the envelope with a fresh job id, sends it and waits
// for the matching response. The configured job timeout applies.
func (client *Client) SendAndWait(ctx context.Context, env *wire.Envelope) (*wire.Envelope, error) {
	return client.SendAndWaitTimeout(ctx, env, 0)
}

// SendAndWaitTimeout is SendAndWait with a per-request timeout.
func (client *Client) SendAndWaitTimeout(
	ctx context.Context,
	env *wire.Envelope,
	timeout time.Duration,
) (*wire.Envelope, error) {
	handle := client.jobs.Register(timeout)
	env.SourceJobID = handle.ID()

	if err := client.Send(ctx, env); err != nil {
		handle.Cancel()
		return nil, err
	}
	return handle.Wait(ctx)
}

// Subscribe delivers every unsolicited inbound message of the given type.
// Subscriptions survive reconnects.
func (client *Client) Subscribe(msgType wire.EMsg) *Subscription {
	return client.events.Subscribe(msgType)
}

// AddServers adds endpoints to the rotation, typically fed from an
// out-of-band server directory. Endpoints already known are ignored.
func (client *Client) AddServers(addrs ...string) error {
	endpoints, err := transport.ParseEndpoints(addrs)
	if err != nil {
		return err
	}
	client.endpoints.Add(endpoints)
	return nil
}

// WaitConnected blocks until the client reaches the connected state.
func (client *Client) WaitConnected(ctx context.Context) error {
	for {
		client.mu.Lock()
		if client.state == StateConnected {
			client.mu.Unlock()
			return nil
		}
		ch := client.connectedCh
		client.mu.Unlock()

		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-ch:
		}
	}
}

// State returns the current lifecycle state.
func (client *Client) State() State {
	client.mu.Lock()
	defer client.mu.Unlock()
	return client.state
}

// SteamID returns the identity granted by the most recent logon.
func (client *Client) SteamID() wire.SteamID {
	client.mu.Lock()
	defer client.mu.Unlock()
	return client.steamID
}

// CellID returns the cell assigned by the most recent logon.
func (client *Client) CellID() uint64 {
	client.mu.Lock()
	defer client.mu.Unlock()
	return client.cellID
}

// Stats returns a snapshot of the client counters.
func (client *Client) Stats() Stats {
	return client.stats.snapshot()
}

func (client *Client) setState(to State) {
	client.mu.Lock()
	from := client.state
	if from == to {
		client.mu.Unlock()
		return
	}
	client.state = to
	if to == StateConnected {
		close(client.connectedCh)
	} else if from == StateConnected {
		client.connectedCh = make(chan struct{})
	}
	client.mu.Unlock()

	if client.config.OnStateChange != nil {
		client.config.OnStateChange(from, to)
	}
}

func (client *Client) loadToken(ctx context.Context) error {
	if client.config.TokenStore == nil || client.config.Credentials.AccountName == "" {
		return nil
	}

	client.mu.Lock()
	loaded := client.refreshToken != ""
	client.mu.Unlock()
	if loaded {
		return nil
	}

	token, err := client.config.TokenStore.Load(ctx, client.config.Credentials.AccountName)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	client.mu.Lock()
	client.refreshToken = token
	client.mu.Unlock()
	return nil
}

func (client *Client) storeToken(ctx context.Context, accountName, token string) {
	if token == "" {
		return
	}

	client.mu.Lock()
	client.refreshToken = token
	client.mu.Unlock()

	if client.config.TokenStore == nil || accountName == "" {
		return
	}
	if err := client.config.TokenStore.Store(ctx, accountName, token); err != nil {
		logger.Get(ctx).Warn("Storing refresh token failed", zap.Error(err))
	}
}
