package wire

// EMsg identifies the type of a message carried in an envelope.
type EMsg uint32

// protoMask flags the envelope type field of messages whose body uses the
// protobuf-derived encoding. It never appears in an EMsg value.
const protoMask uint32 = 0x80000000

// Message types understood by the engine. Values outside this list still
// travel through the dispatcher untouched.
const (
	EMsgInvalid EMsg = 0
	EMsgMulti   EMsg = 1

	EMsgClientHeartBeat     EMsg = 703
	EMsgClientLogOff        EMsg = 706
	EMsgClientLogOnResponse EMsg = 751
	EMsgClientLoggedOff     EMsg = 757
	EMsgClientPersonaState  EMsg = 766
	EMsgClientFriendsList   EMsg = 767

	EMsgChannelEncryptRequest  EMsg = 1303
	EMsgChannelEncryptResponse EMsg = 1304
	EMsgChannelEncryptResult   EMsg = 1305

	EMsgClientLogOn EMsg = 5514
)

// SplitEMsg strips the protobuf flag from a raw envelope type field.
func SplitEMsg(raw uint32) (EMsg, bool) {
	return EMsg(raw &^ protoMask), raw&protoMask != 0
}

// JoinEMsg rebuilds the raw envelope type field.
func JoinEMsg(t EMsg, proto bool) uint32 {
	raw := uint32(t)
	if proto {
		raw |= protoMask
	}
	return raw
}

// String returns the message type name.
func (t EMsg) String() string {
	switch t {
	case EMsgInvalid:
		return "Invalid"
	case EMsgMulti:
		return "Multi"
	case EMsgClientHeartBeat:
		return "ClientHeartBeat"
	case EMsgClientLogOff:
		return "ClientLogOff"
	case EMsgClientLogOnResponse:
		return "ClientLogOnResponse"
	case EMsgClientLoggedOff:
		return "ClientLoggedOff"
	case EMsgClientPersonaState:
		return "ClientPersonaState"
	case EMsgClientFriendsList:
		return "ClientFriendsList"
	case EMsgChannelEncryptRequest:
		return "ChannelEncryptRequest"
	case EMsgChannelEncryptResponse:
		return "ChannelEncryptResponse"
	case EMsgChannelEncryptResult:
		return "ChannelEncryptResult"
	case EMsgClientLogOn:
		return "ClientLogOn"
	default:
		return "Unknown"
	}
}
