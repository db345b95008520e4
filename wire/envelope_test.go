package wire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTripNoJob(t *testing.T) {
	requireT := require.New(t)

	e := &Envelope{
		Type: EMsgClientHeartBeat,
		Body: []byte{0x01, 0x02, 0x03},
	}
	b := e.Encode()
	requireT.Len(b, envelopeFixedSize+3)

	got, err := ParseEnvelope(b)
	requireT.NoError(err)
	requireT.Equal(e, got)
	requireT.False(got.HasJob())
}

func TestEnvelopeRoundTripWithJob(t *testing.T) {
	requireT := require.New(t)

	e := &Envelope{
		Type:        EMsgClientLogOnResponse,
		Proto:       true,
		SourceJobID: 42,
		TargetJobID: 7,
		Body:        []byte("response"),
	}
	b := e.Encode()
	requireT.Len(b, envelopeFixedSize+jobFieldsSize+len(e.Body))

	got, err := ParseEnvelope(b)
	requireT.NoError(err)
	requireT.Equal(e, got)
	requireT.True(got.HasJob())
}

func TestEnvelopeProtoBit(t *testing.T) {
	requireT := require.New(t)

	e := &Envelope{Type: EMsgClientLogOn, Proto: true}
	b := e.Encode()

	raw := binary.LittleEndian.Uint32(b)
	requireT.NotZero(raw & protoMask)
	requireT.Equal(uint32(EMsgClientLogOn), raw&^protoMask)

	got, err := ParseEnvelope(b)
	requireT.NoError(err)
	requireT.Equal(EMsgClientLogOn, got.Type)
	requireT.True(got.Proto)
}

func TestEnvelopeEmptyBody(t *testing.T) {
	requireT := require.New(t)

	e := &Envelope{Type: EMsgClientLogOff}
	got, err := ParseEnvelope(e.Encode())
	requireT.NoError(err)
	requireT.Equal(EMsgClientLogOff, got.Type)
	requireT.Nil(got.Body)
}

func TestEnvelopeMalformed(t *testing.T) {
	requireT := require.New(t)

	_, err := ParseEnvelope([]byte{0x01, 0x02, 0x03})
	requireT.ErrorIs(err, ErrMalformedEnvelope)

	withJob := (&Envelope{Type: EMsgMulti, SourceJobID: 1}).Encode()
	_, err = ParseEnvelope(withJob[:envelopeFixedSize+5])
	requireT.ErrorIs(err, ErrMalformedEnvelope)
}

func TestEnvelopeUnknownFlagBitsIgnored(t *testing.T) {
	requireT := require.New(t)

	b := (&Envelope{Type: EMsgClientHeartBeat, Body: []byte{0xAA}}).Encode()
	b[4] |= 0x80

	got, err := ParseEnvelope(b)
	requireT.NoError(err)
	requireT.Equal(EMsgClientHeartBeat, got.Type)
	requireT.False(got.HasJob())
	requireT.Equal([]byte{0xAA}, got.Body)
}

func TestSplitJoinEMsg(t *testing.T) {
	requireT := require.New(t)

	raw := JoinEMsg(EMsgClientLogOn, true)
	requireT.Equal(uint32(5514)|protoMask, raw)

	msgType, proto := SplitEMsg(raw)
	requireT.Equal(EMsgClientLogOn, msgType)
	requireT.True(proto)

	msgType, proto = SplitEMsg(uint32(EMsgChannelEncryptRequest))
	requireT.Equal(EMsgChannelEncryptRequest, msgType)
	requireT.False(proto)
}
