package steam

import (
	"bytes"
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"

	"github.com/olifog/steam.py/crypt"
	"github.com/olifog/steam.py/transport"
	"github.com/olifog/steam.py/wire"
)

// handshakeVersion is the channel-encryption handshake version the client
// speaks.
const handshakeVersion = 1

var errStaleConnection = errors.New("steam: connection stale")

// runConn dials one endpoint and drives a full session on it: plaintext
// handshake, logon, then the connected message loops. It reports whether
// the session reached the connected state.
func (client *Client) runConn(ctx context.Context, endpoint transport.Endpoint) (established bool, retErr error) {
	log := logger.Get(ctx)

	client.setState(StateConnecting)
	log.Info("Connecting", zap.Stringer("endpoint", endpoint))

	conn, err := client.dialer.Dial(ctx, endpoint)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	client.setState(StateHandshaking)
	cipher, err := client.handshake(conn)
	if err != nil {
		return false, err
	}

	client.setState(StateAuthenticating)
	logon, err := client.logon(ctx, conn, cipher)
	if err != nil {
		return false, err
	}

	interval := time.Duration(logon.HeartbeatSeconds) * time.Second
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	sendCh := make(chan *wire.Envelope, sendQueueSize)
	client.attach(sendCh, logon)
	log.Info("Connected", zap.Stringer("endpoint", endpoint),
		zap.Stringer("steam_id", logon.SteamID), zap.Uint64("cell_id", logon.CellID))

	err = parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("receiver", parallel.Fail, func(ctx context.Context) error {
			defer client.detach(sendCh)

			return client.receiveLoop(ctx, conn, cipher)
		})
		spawn("sender", parallel.Fail, func(ctx context.Context) error {
			return client.sendLoop(conn, cipher, sendCh)
		})
		spawn("heartbeat", parallel.Fail, func(ctx context.Context) error {
			return client.heartbeatLoop(ctx, interval)
		})
		spawn("closer", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			client.sendLogoff(conn, cipher)
			_ = conn.Close()
			return errors.WithStack(ctx.Err())
		})
		return nil
	})
	return true, err
}

// handshake runs the plaintext channel-encryption exchange and returns the
// cipher protecting everything after it. The session key lives on only
// inside the cipher state.
func (client *Client) handshake(conn net.Conn) (*crypt.Cipher, error) {
	if err := conn.SetDeadline(time.Now().Add(client.config.DialTimeout)); err != nil {
		return nil, errors.WithStack(err)
	}
	defer func() {
		_ = conn.SetDeadline(time.Time{})
	}()

	env, err := client.readEnvelope(conn, nil)
	if err != nil {
		return nil, err
	}
	if env.Type != wire.EMsgChannelEncryptRequest {
		return nil, errors.Errorf("unexpected message %s during handshake", env.Type)
	}
	msg, err := wire.UnmarshalBody(env.Type, env.Body)
	if err != nil {
		return nil, err
	}
	hello := msg.(*wire.ChannelHello)

	if hello.Version != handshakeVersion {
		return nil, errors.Errorf("unsupported channel version %d", hello.Version)
	}
	if hello.Universe != client.config.Universe {
		return nil, errors.Wrapf(ErrUntrustedServer, "universe %s", hello.Universe)
	}
	serverKey, trusted := client.config.ServerKeys.Lookup(hello.Universe, hello.Fingerprint)
	if !trusted {
		return nil, errors.Wrap(ErrUntrustedServer, "unknown server key")
	}

	sessionKey, err := crypt.NewSessionKey()
	if err != nil {
		return nil, err
	}
	cipher, err := crypt.NewCipher(sessionKey)
	if err != nil {
		return nil, err
	}

	response := &wire.ChannelKey{}
	encapsulated, err := crypt.Encapsulate(serverKey, sessionKey)
	if err != nil {
		return nil, err
	}
	copy(response.Key[:], encapsulated)
	copy(response.MAC[:], crypt.KeyMAC(hello.Nonce[:], sessionKey))

	for i := range sessionKey {
		sessionKey[i] = 0
	}

	body, err := wire.MarshalBody(response)
	if err != nil {
		return nil, err
	}
	err = client.writeEnvelope(conn, nil, &wire.Envelope{
		Type:  wire.EMsgChannelEncryptResponse,
		Proto: true,
		Body:  body,
	})
	if err != nil {
		return nil, err
	}

	env, err = client.readEnvelope(conn, nil)
	if err != nil {
		return nil, err
	}
	if env.Type != wire.EMsgChannelEncryptResult {
		return nil, errors.Errorf("unexpected message %s during handshake", env.Type)
	}
	msg, err = wire.UnmarshalBody(env.Type, env.Body)
	if err != nil {
		return nil, err
	}
	if result := msg.(*wire.ChannelAccept).Result; !result.OK() {
		return nil, errors.Wrapf(ErrHandshakeRejected, "result %s", result)
	}

	return cipher, nil
}

// logon authenticates on the freshly encrypted channel. Messages other than
// the logon response are ignored until it arrives.
func (client *Client) logon(ctx context.Context, conn net.Conn, cipher *crypt.Cipher) (*wire.LogonResult, error) {
	log := logger.Get(ctx)

	creds := client.config.Credentials
	client.mu.Lock()
	refreshToken := client.refreshToken
	client.mu.Unlock()

	request := &wire.Logon{
		AccountName:   creds.AccountName,
		ClientVersion: client.config.ClientVersion,
	}
	if refreshToken != "" {
		request.RefreshToken = refreshToken
	} else {
		request.Password = creds.Password
		request.TwoFactorCode = creds.TwoFactorCode
	}

	body, err := wire.MarshalBody(request)
	if err != nil {
		return nil, err
	}

	handle := client.jobs.Register(0)
	defer handle.Cancel()

	if err := conn.SetDeadline(time.Now().Add(client.config.JobTimeout)); err != nil {
		return nil, errors.WithStack(err)
	}
	defer func() {
		_ = conn.SetDeadline(time.Time{})
	}()

	err = client.writeEnvelope(conn, cipher, &wire.Envelope{
		Type:        wire.EMsgClientLogOn,
		Proto:       true,
		SourceJobID: handle.ID(),
		Body:        body,
	})
	if err != nil {
		return nil, err
	}

	for {
		reply, err := client.readEnvelope(conn, cipher)
		if err != nil {
			return nil, err
		}
		if reply.Type != wire.EMsgClientLogOnResponse || reply.TargetJobID != handle.ID() {
			log.Info("Ignoring message received before logon completed", zap.Stringer("type", reply.Type))
			continue
		}

		msg, err := wire.UnmarshalBody(reply.Type, reply.Body)
		if err != nil {
			return nil, err
		}
		result := msg.(*wire.LogonResult)
		if !result.Result.OK() {
			return nil, &LogonError{Result: result.Result}
		}

		client.storeToken(ctx, creds.AccountName, result.RefreshToken)
		return result, nil
	}
}

// attach publishes the connection so that Send reaches it.
func (client *Client) attach(sendCh chan *wire.Envelope, logon *wire.LogonResult) {
	client.lastRecv.Store(time.Now().UnixNano())

	client.mu.Lock()
	client.sendCh = sendCh
	client.steamID = logon.SteamID
	client.cellID = logon.CellID
	client.mu.Unlock()

	client.setState(StateConnected)
}

// detach unpublishes the connection and fails every job still waiting on
// it. Owned by the receiver, which is the last task to observe inbound
// traffic.
func (client *Client) detach(sendCh chan *wire.Envelope) {
	client.mu.Lock()
	if client.sendCh == sendCh {
		client.sendCh = nil
	}
	client.mu.Unlock()

	close(sendCh)
	client.jobs.FailAll(ErrConnectionLost)
}

func (client *Client) receiveLoop(ctx context.Context, conn net.Conn, cipher *crypt.Cipher) error {
	for {
		env, err := client.readEnvelope(conn, cipher)
		if err != nil {
			if ctx.Err() != nil {
				return errors.WithStack(ctx.Err())
			}
			return err
		}
		client.lastRecv.Store(time.Now().UnixNano())

		if err := client.route(ctx, env); err != nil {
			return err
		}
	}
}

// route hands one inbound envelope to whoever is waiting for it: the job
// waiter it responds to, otherwise the subscribers of its type.
func (client *Client) route(ctx context.Context, env *wire.Envelope) error {
	log := logger.Get(ctx)

	if env.Type == wire.EMsgMulti {
		return client.routeMulti(ctx, env)
	}

	if env.TargetJobID != 0 {
		if !client.jobs.Resolve(env.TargetJobID, env) {
			client.stats.responsesDropped.Add(1)
			log.Info("Dropped response for expired job",
				zap.Stringer("type", env.Type), zap.Uint64("job_id", uint64(env.TargetJobID)))
		}
		return nil
	}

	_, dropped := client.events.dispatch(env)
	if dropped > 0 {
		client.stats.eventsDropped.Add(uint64(dropped))
		log.Info("Dropped messages for slow subscribers",
			zap.Stringer("type", env.Type), zap.Int("dropped", dropped))
	}

	if env.Type == wire.EMsgClientLoggedOff {
		msg, err := wire.UnmarshalBody(env.Type, env.Body)
		if err != nil {
			return err
		}
		result := msg.(*wire.LoggedOff).Result
		if result == wire.ResultLogonSessionReplaced {
			return &LogonError{Result: result}
		}
		return errors.Errorf("steam: logged off by server: %s", result)
	}

	return nil
}

// routeMulti unpacks a batch container. Each item is a length-framed
// envelope; nested containers are refused.
func (client *Client) routeMulti(ctx context.Context, env *wire.Envelope) error {
	r := bytes.NewReader(env.Body)
	for r.Len() > 0 {
		payload, err := wire.ReadFrame(r, client.limits)
		if err != nil {
			return err
		}
		sub, err := wire.ParseEnvelope(payload)
		if err != nil {
			return err
		}
		if sub.Type == wire.EMsgMulti {
			return errors.WithStack(wire.ErrMalformedEnvelope)
		}
		client.stats.messagesReceived.Add(1)

		if err := client.route(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

func (client *Client) sendLoop(conn net.Conn, cipher *crypt.Cipher, sendCh chan *wire.Envelope) error {
	defer func() {
		for range sendCh {
		}
	}()
	defer conn.Close()

	for env := range sendCh {
		if err := client.writeEnvelope(conn, cipher, env); err != nil {
			return err
		}
	}

	return nil
}

// heartbeatLoop keeps the session alive at the interval granted by logon
// and fails it when the server goes quiet for two intervals.
func (client *Client) heartbeatLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var sequence uint64
	for {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-ticker.C:
			if time.Since(time.Unix(0, client.lastRecv.Load())) > 2*interval {
				return errors.WithStack(errStaleConnection)
			}

			sequence++
			err := client.SendMsg(ctx, wire.EMsgClientHeartBeat, &wire.Heartbeat{Sequence: sequence})
			if err != nil {
				return err
			}
		}
	}
}

// sendLogoff tells the server the session ends on purpose. Best effort, the
// connection is about to close either way.
func (client *Client) sendLogoff(conn net.Conn, cipher *crypt.Cipher) {
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = client.writeEnvelope(conn, cipher, &wire.Envelope{Type: wire.EMsgClientLogOff, Proto: true})
}

func (client *Client) writeEnvelope(conn net.Conn, cipher *crypt.Cipher, env *wire.Envelope) error {
	payload, err := wire.EncodeBody(env.Encode(), client.config.Compress, client.config.CompressThreshold)
	if err != nil {
		return err
	}
	if cipher != nil {
		payload, err = cipher.Seal(payload)
		if err != nil {
			return err
		}
	}
	frame, err := wire.EncodeFrame(payload, client.limits)
	if err != nil {
		return err
	}
	client.writeMu.Lock()
	_, err = conn.Write(frame)
	client.writeMu.Unlock()
	if err != nil {
		return errors.WithStack(err)
	}

	client.stats.messagesSent.Add(1)
	client.stats.bytesSent.Add(uint64(len(frame)))
	return nil
}

func (client *Client) readEnvelope(conn net.Conn, cipher *crypt.Cipher) (*wire.Envelope, error) {
	payload, err := wire.ReadFrame(conn, client.limits)
	if err != nil {
		return nil, err
	}
	client.stats.bytesReceived.Add(uint64(wire.FrameHeaderSize + len(payload)))

	if cipher != nil {
		payload, err = cipher.Open(payload)
		if err != nil {
			return nil, err
		}
	}
	body, err := wire.DecodeBody(payload, client.limits)
	if err != nil {
		return nil, err
	}
	env, err := wire.ParseEnvelope(body)
	if err != nil {
		return nil, err
	}

	client.stats.messagesReceived.Add(1)
	return env, nil
}
