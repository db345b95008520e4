package transport_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/outofforest/qa"
	"github.com/stretchr/testify/require"

	"github.com/olifog/steam.py/transport"
)

func TestParseEndpoint(t *testing.T) {
	requireT := require.New(t)

	for _, tc := range []struct {
		in       string
		expected transport.Endpoint
	}{
		{"tcp://162.254.197.39:27017", transport.Endpoint{Kind: transport.KindTCP, Addr: "162.254.197.39:27017"}},
		{"quic://cm1.example.net:27019", transport.Endpoint{Kind: transport.KindQUIC, Addr: "cm1.example.net:27019"}},
		{"ws://cm1.example.net/cmsocket", transport.Endpoint{Kind: transport.KindWebSocket, Addr: "ws://cm1.example.net/cmsocket"}},
		{"wss://cm1.example.net/cmsocket", transport.Endpoint{Kind: transport.KindWebSocket, Addr: "wss://cm1.example.net/cmsocket"}},
		{"162.254.197.39:27017", transport.Endpoint{Kind: transport.KindTCP, Addr: "162.254.197.39:27017"}},
	} {
		e, err := transport.ParseEndpoint(tc.in)
		requireT.NoError(err, tc.in)
		requireT.Equal(tc.expected, e, tc.in)
	}

	for _, in := range []string{"", "tcp://", "ftp://host:1"} {
		_, err := transport.ParseEndpoint(in)
		requireT.Error(err, in)
	}
}

func TestParseEndpoints(t *testing.T) {
	requireT := require.New(t)

	endpoints, err := transport.ParseEndpoints([]string{"host1:27017", "ws://host2/cmsocket"})
	requireT.NoError(err)
	requireT.Len(endpoints, 2)

	_, err = transport.ParseEndpoints([]string{"host1:27017", "ftp://nope"})
	requireT.Error(err)
}

func TestDialTCP(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	ls, err := net.Listen("tcp", "localhost:0")
	requireT.NoError(err)
	defer ls.Close()

	go func() {
		conn, err := ls.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(conn, conn)
	}()

	conn, err := transport.NetDialer{}.Dial(ctx, transport.Endpoint{Kind: transport.KindTCP, Addr: ls.Addr().String()})
	requireT.NoError(err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	requireT.NoError(err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	requireT.NoError(err)
	requireT.Equal("ping", string(buf))
}

func TestDialWebSocket(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := transport.NewWebSocketConn(ws)
		defer conn.Close()
		_, _ = io.Copy(conn, conn)
	}))
	defer srv.Close()

	addr := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := transport.NetDialer{}.Dial(ctx, transport.Endpoint{Kind: transport.KindWebSocket, Addr: addr})
	requireT.NoError(err)
	defer conn.Close()

	// Two writes become two messages, reads see one byte stream.
	_, err = conn.Write([]byte("hello "))
	requireT.NoError(err)
	_, err = conn.Write([]byte("world"))
	requireT.NoError(err)

	buf := make([]byte, 11)
	_, err = io.ReadFull(conn, buf)
	requireT.NoError(err)
	requireT.Equal("hello world", string(buf))
}

func TestDialQUIC(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	ls, err := transport.ListenQUIC("localhost:0", serverTLSConfig(t))
	requireT.NoError(err)
	defer ls.Close()

	go func() {
		conn, err := ls.Accept(ctx)
		if err != nil {
			return
		}
		stream, err := conn.OpenStreamSync(ctx)
		if err != nil {
			return
		}
		sc := transport.WrapQUICStream(conn, stream)
		defer sc.Close()
		if _, err := sc.Write([]byte("greetings")); err != nil {
			return
		}
		_, _ = io.Copy(sc, sc)
	}()

	conn, err := transport.NetDialer{}.Dial(ctx, transport.Endpoint{Kind: transport.KindQUIC, Addr: ls.Addr().String()})
	requireT.NoError(err)
	defer conn.Close()

	buf := make([]byte, 9)
	_, err = io.ReadFull(conn, buf)
	requireT.NoError(err)
	requireT.Equal("greetings", string(buf))

	_, err = conn.Write([]byte("ping"))
	requireT.NoError(err)

	buf = buf[:4]
	_, err = io.ReadFull(conn, buf)
	requireT.NoError(err)
	requireT.Equal("ping", string(buf))
}

func TestQUICCloseUnblocksRead(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	ls, err := transport.ListenQUIC("localhost:0", serverTLSConfig(t))
	requireT.NoError(err)
	defer ls.Close()

	serverConn := make(chan net.Conn, 1)
	go func() {
		conn, err := ls.Accept(ctx)
		if err != nil {
			return
		}
		stream, err := conn.OpenStreamSync(ctx)
		if err != nil {
			return
		}
		sc := transport.WrapQUICStream(conn, stream)
		if _, err := sc.Write([]byte{1}); err != nil {
			return
		}
		serverConn <- sc
	}()

	conn, err := transport.NetDialer{}.Dial(ctx, transport.Endpoint{Kind: transport.KindQUIC, Addr: ls.Addr().String()})
	requireT.NoError(err)

	_, err = io.ReadFull(conn, make([]byte, 1))
	requireT.NoError(err)

	sc := <-serverConn
	defer sc.Close()

	readErr := make(chan error, 1)
	go func() {
		_, err := conn.Read(make([]byte, 1))
		readErr <- err
	}()

	requireT.NoError(conn.Close())

	select {
	case err := <-readErr:
		requireT.Error(err)
	case <-time.After(5 * time.Second):
		requireT.Fail("read still blocked after close")
	}
}

func serverTLSConfig(t *testing.T) *tls.Config {
	requireT := require.New(t)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	requireT.NoError(err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	requireT.NoError(err)

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{transport.ALPN},
		MinVersion:   tls.VersionTLS12,
	}
}
