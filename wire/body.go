package wire

import (
	"github.com/pkg/errors"
)

// ErrUnknownBody is returned when a message type has no registered body.
var ErrUnknownBody = errors.New("wire: unknown body type")

// marshaller is stateless, one shared instance is enough.
var marshaller = NewMarshaller()

// emsgBodies maps message types to prototypes of their bodies.
var emsgBodies = map[EMsg]any{
	EMsgChannelEncryptRequest:  &ChannelHello{},
	EMsgChannelEncryptResponse: &ChannelKey{},
	EMsgChannelEncryptResult:   &ChannelAccept{},
	EMsgClientLogOn:            &Logon{},
	EMsgClientLogOnResponse:    &LogonResult{},
	EMsgClientHeartBeat:        &Heartbeat{},
	EMsgClientLoggedOff:        &LoggedOff{},
}

// MarshalBody renders the body of a control message.
func MarshalBody(msg any) ([]byte, error) {
	size, err := marshaller.Size(msg)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, _, err := marshaller.Marshal(msg, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// UnmarshalBody decodes the body of a control message of the given type.
// Truncated bodies surface as errors, not panics.
func UnmarshalBody(msgType EMsg, body []byte) (any, error) {
	prototype, ok := emsgBodies[msgType]
	if !ok {
		return nil, errors.WithStack(ErrUnknownBody)
	}
	id, err := marshaller.ID(prototype)
	if err != nil {
		return nil, err
	}
	msg, _, err := marshaller.Unmarshal(id, body)
	if err != nil {
		return nil, err
	}
	return msg, nil
}
