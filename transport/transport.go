package transport

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Kind selects the dial mechanism for an endpoint.
type Kind string

// Endpoint kinds.
const (
	KindTCP       Kind = "tcp"
	KindWebSocket Kind = "ws"
	KindQUIC      Kind = "quic"
)

// Endpoint is one server the client may connect to. Addr is host:port for
// tcp and quic endpoints and a full URL for websocket endpoints.
type Endpoint struct {
	Kind Kind
	Addr string
}

// String renders the endpoint the way ParseEndpoint accepts it.
func (e Endpoint) String() string {
	if e.Kind == KindWebSocket {
		return e.Addr
	}
	return string(e.Kind) + "://" + e.Addr
}

// ParseEndpoint parses "tcp://host:port", "quic://host:port", websocket
// URLs and bare host:port pairs, which default to tcp.
func ParseEndpoint(s string) (Endpoint, error) {
	scheme, rest, found := strings.Cut(s, "://")
	if !found {
		if s == "" {
			return Endpoint{}, errors.Errorf("transport: empty endpoint")
		}
		return Endpoint{Kind: KindTCP, Addr: s}, nil
	}
	if rest == "" {
		return Endpoint{}, errors.Errorf("transport: invalid endpoint %q", s)
	}
	switch scheme {
	case "tcp":
		return Endpoint{Kind: KindTCP, Addr: rest}, nil
	case "quic":
		return Endpoint{Kind: KindQUIC, Addr: rest}, nil
	case "ws", "wss":
		return Endpoint{Kind: KindWebSocket, Addr: s}, nil
	default:
		return Endpoint{}, errors.Errorf("transport: unknown endpoint scheme %q", scheme)
	}
}

// ParseEndpoints parses a list, rejecting the whole list on the first bad
// entry.
func ParseEndpoints(addrs []string) ([]Endpoint, error) {
	endpoints := make([]Endpoint, 0, len(addrs))
	for _, addr := range addrs {
		e, err := ParseEndpoint(addr)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, nil
}

// Dialer opens a raw connection to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint Endpoint) (net.Conn, error)
}

// NetDialer dials every endpoint kind. The zero value is usable.
type NetDialer struct {
	// Timeout bounds a single dial attempt. Zero means no extra bound
	// beyond ctx.
	Timeout time.Duration

	// TLS overrides the client TLS configuration for quic and wss
	// endpoints.
	TLS *tls.Config
}

// Dial opens a connection to the endpoint.
func (d NetDialer) Dial(ctx context.Context, endpoint Endpoint) (net.Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	switch endpoint.Kind {
	case KindTCP:
		var nd net.Dialer
		conn, err := nd.DialContext(ctx, "tcp", endpoint.Addr)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return conn, nil
	case KindWebSocket:
		dialer := websocket.Dialer{
			HandshakeTimeout: d.Timeout,
			TLSClientConfig:  d.TLS,
		}
		ws, _, err := dialer.DialContext(ctx, endpoint.Addr, nil)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return NewWebSocketConn(ws), nil
	case KindQUIC:
		return dialQUIC(ctx, endpoint.Addr, d.TLS)
	default:
		return nil, errors.Errorf("transport: unknown endpoint kind %q", endpoint.Kind)
	}
}
