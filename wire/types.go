package wire

type (
	// JobID correlates a request message with its response.
	JobID uint64

	// Universe identifies the server universe a session belongs to.
	Universe uint64
)

// Universes used by the network.
const (
	UniverseInvalid  Universe = 0
	UniversePublic   Universe = 1
	UniverseBeta     Universe = 2
	UniverseInternal Universe = 3
	UniverseDev      Universe = 4
)

// String returns the universe name.
func (u Universe) String() string {
	switch u {
	case UniverseInvalid:
		return "Invalid"
	case UniversePublic:
		return "Public"
	case UniverseBeta:
		return "Beta"
	case UniverseInternal:
		return "Internal"
	case UniverseDev:
		return "Dev"
	default:
		return "Unknown"
	}
}

// ChannelHello is sent by the server to open the channel-encryption
// handshake. Fingerprint is the SHA-256 of the server's public key in PKIX
// DER form; the client refuses servers whose fingerprint is not pinned.
type ChannelHello struct {
	Version     uint64
	Universe    Universe
	Nonce       [16]byte
	Fingerprint [32]byte
}

// ChannelKey answers ChannelHello. Key is the fresh 32-byte session key
// encrypted with RSA-OAEP under the server's public key; MAC authenticates
// the plaintext key to the server (HMAC-SHA256 keyed with the hello nonce).
type ChannelKey struct {
	Key [256]byte
	MAC [32]byte
}

// ChannelAccept closes the handshake. Result is OK when the server accepted
// the session key; anything else rejects the channel.
type ChannelAccept struct {
	Result Result
}

// Logon requests authentication on an encrypted channel. An empty
// AccountName requests an anonymous logon. RefreshToken, when present, is
// preferred over Password.
type Logon struct {
	AccountName   string
	Password      string
	RefreshToken  string
	TwoFactorCode string
	ClientVersion uint64
}

// LogonResult reports the outcome of a Logon. HeartbeatSeconds is the
// keep-alive interval the client must honor while connected. A non-empty
// RefreshToken replaces the one the client presented.
type LogonResult struct {
	Result           Result
	SteamID          SteamID
	HeartbeatSeconds uint64
	RefreshToken     string
	CellID           uint64
}

// Heartbeat is the periodic keep-alive sent while connected.
type Heartbeat struct {
	Sequence uint64
}

// LoggedOff is pushed by the server when it terminates the logon session.
// Result carries the reason, e.g. LogonSessionReplaced.
type LoggedOff struct {
	Result Result
}
