package steam

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/olifog/steam.py/wire"
)

// Errors surfaced by the client. Pending jobs observe ErrConnectionLost
// when the connection drops before their response arrives.
var (
	ErrConnectionLost     = errors.New("steam: connection lost")
	ErrUntrustedServer    = errors.New("steam: untrusted server")
	ErrHandshakeRejected  = errors.New("steam: handshake rejected")
	ErrReconnectExhausted = errors.New("steam: reconnect attempts exhausted")
)

// LogonError reports a logon the server refused.
type LogonError struct {
	Result wire.Result
}

func (e *LogonError) Error() string {
	return fmt.Sprintf("steam: logon failed: %s", e.Result)
}

// Terminal reports whether retrying with the same credentials is pointless.
// Run stops reconnecting on terminal logon errors and returns them.
func (e *LogonError) Terminal() bool {
	switch e.Result {
	case wire.ResultInvalidPassword,
		wire.ResultAccessDenied,
		wire.ResultAccountLogonDenied,
		wire.ResultLoginDeniedNeedTwoFactor,
		wire.ResultLogonSessionReplaced:
		return true
	default:
		return false
	}
}
