package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
)

// ALPN is the protocol name announced on QUIC connections.
const ALPN = "steam-cm"

const quicIdleTimeout = 30 * time.Second

// streamConn wraps a single quic stream as net.Conn.
type streamConn struct {
	*quic.Stream
	conn *quic.Conn
}

func (c *streamConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *streamConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Close closes the connection carrying the stream, not just the stream's
// send side. Cancelling the read side unblocks a pending Read.
func (c *streamConn) Close() error {
	c.Stream.CancelRead(0)
	err := c.Stream.Close()
	_ = c.conn.CloseWithError(0, "")
	return errors.WithStack(err)
}

// WrapQUICStream exposes an accepted stream as net.Conn. Servers use it,
// the client side goes through the dialer.
func WrapQUICStream(conn *quic.Conn, stream *quic.Stream) net.Conn {
	return &streamConn{Stream: stream, conn: conn}
}

// DefaultQUICClientTLS returns the client TLS configuration used when the
// dialer has none. Server identity is not taken from TLS, the channel
// handshake pins the server key, so certificate verification stays off.
func DefaultQUICClientTLS() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
		NextProtos:         []string{ALPN},
	}
}

func dialQUIC(ctx context.Context, addr string, tlsConfig *tls.Config) (net.Conn, error) {
	if tlsConfig == nil {
		tlsConfig = DefaultQUICClientTLS()
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, &quic.Config{
		MaxIdleTimeout: quicIdleTimeout,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	// The server speaks first in the channel handshake, so it is the one
	// opening the stream.
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, errors.WithStack(err)
	}
	return &streamConn{Stream: stream, conn: conn}, nil
}

// ListenQUIC opens a QUIC listener. tlsConfig must carry the server
// certificate and the ALPN protocol.
func ListenQUIC(addr string, tlsConfig *tls.Config) (*quic.Listener, error) {
	ls, err := quic.ListenAddr(addr, tlsConfig, &quic.Config{
		MaxIdleTimeout: quicIdleTimeout,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ls, nil
}
