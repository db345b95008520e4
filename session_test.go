package steam

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olifog/steam.py/wire"
)

// gateConn keeps every Write blocked until released, so a test can hold one
// writer inside the connection and watch what the other one does.
type gateConn struct {
	entered chan struct{}
	release chan struct{}
}

func (c *gateConn) Write(b []byte) (int, error) {
	c.entered <- struct{}{}
	<-c.release
	return len(b), nil
}

func (c *gateConn) Read([]byte) (int, error)         { return 0, io.EOF }
func (c *gateConn) Close() error                     { return nil }
func (c *gateConn) LocalAddr() net.Addr              { return nil }
func (c *gateConn) RemoteAddr() net.Addr             { return nil }
func (c *gateConn) SetDeadline(time.Time) error      { return nil }
func (c *gateConn) SetReadDeadline(time.Time) error  { return nil }
func (c *gateConn) SetWriteDeadline(time.Time) error { return nil }

func TestLogoffWaitsForWriteInFlight(t *testing.T) {
	requireT := require.New(t)

	client := &Client{stats: &statsCollector{}}
	conn := &gateConn{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	senderErr := make(chan error, 1)
	go func() {
		senderErr <- client.writeEnvelope(conn, nil, &wire.Envelope{
			Type:  wire.EMsgClientHeartBeat,
			Proto: true,
			Body:  []byte{1},
		})
	}()
	select {
	case <-conn.entered:
	case <-time.After(5 * time.Second):
		requireT.Fail("timeout waiting for the first write")
	}

	logoffDone := make(chan struct{})
	go func() {
		client.sendLogoff(conn, nil)
		close(logoffDone)
	}()

	// The logoff must queue behind the write in flight, never run inside
	// the connection alongside it.
	select {
	case <-conn.entered:
		requireT.Fail("second write entered the connection concurrently")
	case <-time.After(100 * time.Millisecond):
	}

	conn.release <- struct{}{}
	requireT.NoError(<-senderErr)

	select {
	case <-conn.entered:
	case <-time.After(5 * time.Second):
		requireT.Fail("timeout waiting for the logoff write")
	}
	conn.release <- struct{}{}

	select {
	case <-logoffDone:
	case <-time.After(5 * time.Second):
		requireT.Fail("timeout waiting for the logoff to finish")
	}
}
