// Package cmtest runs an in-process server speaking the real wire protocol,
// so the client can be exercised end to end without network access.
package cmtest

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"

	"github.com/olifog/steam.py/crypt"
	"github.com/olifog/steam.py/wire"
)

const sendQueueSize = 10

// Config defines server behavior. The zero value accepts every logon.
type Config struct {
	// Universe announced in the channel hello.
	Universe wire.Universe

	// Key is the server keypair. Generated when nil.
	Key *rsa.PrivateKey

	// HeartbeatSeconds granted to clients at logon. Zero leaves the
	// client on its default interval.
	HeartbeatSeconds uint64

	// Logon decides the outcome of each logon request. Nil accepts
	// everyone as the same individual account.
	Logon func(req *wire.Logon) *wire.LogonResult

	// Handle builds the response to a job-stamped request. Nil echoes the
	// request body back under the same message type. Returning nil drops
	// the request, leaving the client to time out.
	Handle func(env *wire.Envelope) *wire.Envelope

	// RejectChannel refuses the session key at the end of the handshake.
	RejectChannel bool

	// Compress enables compression of outbound bodies of at least 1024
	// bytes.
	Compress bool

	// MaxFrameSize bounds frames in both directions.
	MaxFrameSize uint32
}

// Server is the in-process server.
type Server struct {
	config Config
	key    *rsa.PrivateKey
	limits wire.Limits

	logons     atomic.Uint64
	heartbeats atomic.Uint64
	corrupt    atomic.Bool

	mu        sync.Mutex
	conns     map[<-chan *wire.Envelope]chan<- *wire.Envelope
	lastLogon *wire.Logon
}

// New creates a new server.
func New(config Config) (*Server, error) {
	key := config.Key
	if key == nil {
		var err error
		key, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if config.Universe == wire.UniverseInvalid {
		config.Universe = wire.UniversePublic
	}

	return &Server{
		config: config,
		key:    key,
		limits: wire.Limits{MaxFrameSize: config.MaxFrameSize},
		conns:  map[<-chan *wire.Envelope]chan<- *wire.Envelope{},
	}, nil
}

// PublicKey returns the key clients must pin to trust this server.
func (s *Server) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

// Logons returns the number of logons accepted so far.
func (s *Server) Logons() uint64 {
	return s.logons.Load()
}

// Heartbeats returns the number of heartbeats received so far.
func (s *Server) Heartbeats() uint64 {
	return s.heartbeats.Load()
}

// LastLogon returns the most recent logon request.
func (s *Server) LastLogon() *wire.Logon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLogon
}

// Push delivers the envelope to every connected client.
func (s *Server) Push(env *wire.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.conns {
		ch <- env
	}
}

// PushMulti packs the envelopes into one batch container and delivers it to
// every connected client.
func (s *Server) PushMulti(envs ...*wire.Envelope) error {
	var body []byte
	for _, env := range envs {
		frame, err := wire.EncodeFrame(env.Encode(), s.limits)
		if err != nil {
			return err
		}
		body = append(body, frame...)
	}

	s.Push(&wire.Envelope{Type: wire.EMsgMulti, Body: body})
	return nil
}

// Kick logs every connected client off with the given result and drops
// their connections.
func (s *Server) Kick(result wire.Result) error {
	body, err := wire.MarshalBody(&wire.LoggedOff{Result: result})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Closing the channel after the logoff makes the sender drop the
	// connection once the message is out.
	for ch, ch2 := range s.conns {
		ch2 <- &wire.Envelope{Type: wire.EMsgClientLoggedOff, Proto: true, Body: body}
		delete(s.conns, ch)
		close(ch2)
	}
	return nil
}

// Drop closes every connection without logging anybody off, like a network
// failure would.
func (s *Server) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch, ch2 := range s.conns {
		delete(s.conns, ch)
		close(ch2)
	}
}

// CorruptNext flips a byte of the next sealed frame, so the receiving
// client fails to authenticate it.
func (s *Server) CorruptNext() {
	s.corrupt.Store(true)
}

// Run serves connections accepted from ls until ctx closes.
func (s *Server) Run(ctx context.Context, ls net.Listener) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("listener", parallel.Fail, func(ctx context.Context) error {
			log := logger.Get(ctx)

			for {
				conn, err := ls.Accept()
				if err != nil {
					if ctx.Err() != nil {
						return errors.WithStack(ctx.Err())
					}
					return errors.WithStack(err)
				}

				spawn("conn", parallel.Continue, func(ctx context.Context) error {
					if err := s.serveConn(ctx, conn); err != nil && ctx.Err() == nil {
						log.Info("Connection ended", zap.Error(err))
					}
					return nil
				})
			}
		})
		spawn("closer", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			_ = ls.Close()
			return errors.WithStack(ctx.Err())
		})
		return nil
	})
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	cipher, err := s.handshake(conn)
	if err != nil {
		return err
	}

	if err := s.logon(conn, cipher); err != nil {
		return err
	}

	sendCh := s.addConn()

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("receiver", parallel.Fail, func(ctx context.Context) error {
			defer s.removeConn(sendCh)

			return s.receiveLoop(conn, cipher, sendCh)
		})
		spawn("sender", parallel.Fail, func(ctx context.Context) error {
			defer func() {
				for range sendCh {
				}
			}()
			defer conn.Close()

			for env := range sendCh {
				if err := s.writeEnvelope(conn, cipher, env); err != nil {
					return err
				}
			}

			return nil
		})
		spawn("closer", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			_ = conn.Close()
			return errors.WithStack(ctx.Err())
		})
		return nil
	})
}

// handshake drives the server side of the channel-encryption exchange.
func (s *Server) handshake(conn net.Conn) (*crypt.Cipher, error) {
	fingerprint, err := crypt.Fingerprint(&s.key.PublicKey)
	if err != nil {
		return nil, err
	}

	hello := &wire.ChannelHello{
		Version:     1,
		Universe:    s.config.Universe,
		Fingerprint: fingerprint,
	}
	if _, err := rand.Read(hello.Nonce[:]); err != nil {
		return nil, errors.WithStack(err)
	}

	body, err := wire.MarshalBody(hello)
	if err != nil {
		return nil, err
	}
	err = s.writeEnvelope(conn, nil, &wire.Envelope{
		Type:  wire.EMsgChannelEncryptRequest,
		Proto: true,
		Body:  body,
	})
	if err != nil {
		return nil, err
	}

	env, err := s.readEnvelope(conn, nil)
	if err != nil {
		return nil, err
	}
	if env.Type != wire.EMsgChannelEncryptResponse {
		return nil, errors.Errorf("unexpected message %s during handshake", env.Type)
	}
	msg, err := wire.UnmarshalBody(env.Type, env.Body)
	if err != nil {
		return nil, err
	}
	response := msg.(*wire.ChannelKey)

	key, err := crypt.Decapsulate(s.key, response.Key[:])
	if err != nil {
		return nil, err
	}
	if !crypt.VerifyKeyMAC(hello.Nonce[:], key, response.MAC[:]) {
		return nil, errors.New("session key does not match handshake nonce")
	}

	result := wire.ResultOK
	if s.config.RejectChannel {
		result = wire.ResultAccessDenied
	}
	body, err = wire.MarshalBody(&wire.ChannelAccept{Result: result})
	if err != nil {
		return nil, err
	}
	err = s.writeEnvelope(conn, nil, &wire.Envelope{
		Type:  wire.EMsgChannelEncryptResult,
		Proto: true,
		Body:  body,
	})
	if err != nil {
		return nil, err
	}
	if s.config.RejectChannel {
		return nil, errors.New("channel rejected")
	}

	cipher, err := crypt.NewCipher(key)
	if err != nil {
		return nil, err
	}
	for i := range key {
		key[i] = 0
	}

	return cipher, nil
}

func (s *Server) logon(conn net.Conn, cipher *crypt.Cipher) error {
	env, err := s.readEnvelope(conn, cipher)
	if err != nil {
		return err
	}
	if env.Type != wire.EMsgClientLogOn {
		return errors.Errorf("unexpected message %s before logon", env.Type)
	}
	msg, err := wire.UnmarshalBody(env.Type, env.Body)
	if err != nil {
		return err
	}
	request := msg.(*wire.Logon)

	s.mu.Lock()
	s.lastLogon = request
	s.mu.Unlock()

	result := s.logonResult(request)
	if result.Result.OK() {
		s.logons.Add(1)
	}

	body, err := wire.MarshalBody(result)
	if err != nil {
		return err
	}
	err = s.writeEnvelope(conn, cipher, &wire.Envelope{
		Type:        wire.EMsgClientLogOnResponse,
		Proto:       true,
		TargetJobID: env.SourceJobID,
		Body:        body,
	})
	if err != nil {
		return err
	}

	if !result.Result.OK() {
		return errors.Errorf("logon refused: %s", result.Result)
	}
	return nil
}

func (s *Server) logonResult(request *wire.Logon) *wire.LogonResult {
	if s.config.Logon != nil {
		return s.config.Logon(request)
	}

	accountType := wire.AccountTypeIndividual
	if request.AccountName == "" {
		accountType = wire.AccountTypeAnonUser
	}
	return &wire.LogonResult{
		Result:           wire.ResultOK,
		SteamID:          wire.NewSteamID(1, 1, accountType, s.config.Universe),
		HeartbeatSeconds: s.config.HeartbeatSeconds,
		CellID:           1,
	}
}

func (s *Server) receiveLoop(conn net.Conn, cipher *crypt.Cipher, sendCh chan<- *wire.Envelope) error {
	for {
		env, err := s.readEnvelope(conn, cipher)
		if err != nil {
			return err
		}

		switch env.Type {
		case wire.EMsgClientHeartBeat:
			s.heartbeats.Add(1)
		case wire.EMsgClientLogOff:
			return nil
		default:
			if env.SourceJobID == 0 {
				continue
			}
			response := s.handleJob(env)
			if response == nil {
				continue
			}
			response.TargetJobID = env.SourceJobID
			sendCh <- response
		}
	}
}

func (s *Server) handleJob(env *wire.Envelope) *wire.Envelope {
	if s.config.Handle != nil {
		return s.config.Handle(env)
	}
	return &wire.Envelope{Type: env.Type, Proto: env.Proto, Body: env.Body}
}

func (s *Server) addConn() chan *wire.Envelope {
	ch := make(chan *wire.Envelope, sendQueueSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conns[ch] = ch
	return ch
}

func (s *Server) removeConn(ch chan *wire.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch2, exists := s.conns[ch]; exists {
		delete(s.conns, ch)
		close(ch2)
	}
}

func (s *Server) writeEnvelope(conn net.Conn, cipher *crypt.Cipher, env *wire.Envelope) error {
	payload, err := wire.EncodeBody(env.Encode(), s.config.Compress, 1024)
	if err != nil {
		return err
	}
	if cipher != nil {
		payload, err = cipher.Seal(payload)
		if err != nil {
			return err
		}
		if s.corrupt.CompareAndSwap(true, false) {
			payload[len(payload)-1] ^= 0xff
		}
	}
	frame, err := wire.EncodeFrame(payload, s.limits)
	if err != nil {
		return err
	}
	if _, err := conn.Write(frame); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (s *Server) readEnvelope(conn net.Conn, cipher *crypt.Cipher) (*wire.Envelope, error) {
	payload, err := wire.ReadFrame(conn, s.limits)
	if err != nil {
		return nil, err
	}
	if cipher != nil {
		payload, err = cipher.Open(payload)
		if err != nil {
			return nil, err
		}
	}
	body, err := wire.DecodeBody(payload, s.limits)
	if err != nil {
		return nil, err
	}
	return wire.ParseEnvelope(body)
}
