package steam

// State is the lifecycle state of the client.
type State uint32

// Client lifecycle states. The client moves Disconnected -> Connecting ->
// Handshaking -> Authenticating -> Connected, drops back to Reconnecting
// when the session is lost, and passes through ShuttingDown on the way out.
const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateAuthenticating
	StateConnected
	StateReconnecting
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateHandshaking:
		return "Handshaking"
	case StateAuthenticating:
		return "Authenticating"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateShuttingDown:
		return "ShuttingDown"
	default:
		return "Unknown"
	}
}
