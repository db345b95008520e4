package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	requireT := require.New(t)

	payload := []byte("hello over the wire")
	frame, err := EncodeFrame(payload, Limits{})
	requireT.NoError(err)
	requireT.Len(frame, FrameHeaderSize+len(payload))

	got, err := ReadFrame(bytes.NewReader(frame), Limits{})
	requireT.NoError(err)
	requireT.Equal(payload, got)
}

func TestFrameEmptyPayload(t *testing.T) {
	requireT := require.New(t)

	frame, err := EncodeFrame(nil, Limits{})
	requireT.NoError(err)

	got, err := ReadFrame(bytes.NewReader(frame), Limits{})
	requireT.NoError(err)
	requireT.Empty(got)
}

func TestFrameSequence(t *testing.T) {
	requireT := require.New(t)

	var buf bytes.Buffer
	for _, payload := range [][]byte{[]byte("one"), []byte("two"), []byte("three")} {
		frame, err := EncodeFrame(payload, Limits{})
		requireT.NoError(err)
		buf.Write(frame)
	}

	for _, expected := range []string{"one", "two", "three"} {
		payload, err := ReadFrame(&buf, Limits{})
		requireT.NoError(err)
		requireT.Equal(expected, string(payload))
	}

	_, err := ReadFrame(&buf, Limits{})
	requireT.ErrorIs(err, io.EOF)
}

func TestFrameTooLargeEncode(t *testing.T) {
	requireT := require.New(t)

	_, err := EncodeFrame(make([]byte, 100), Limits{MaxFrameSize: 99})
	requireT.ErrorIs(err, ErrFrameTooLarge)
}

func TestFrameTooLargeRead(t *testing.T) {
	requireT := require.New(t)

	var header [FrameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:], 1000)
	_, err := ReadFrame(bytes.NewReader(header[:]), Limits{MaxFrameSize: 999})
	requireT.ErrorIs(err, ErrFrameTooLarge)
}

func TestFrameTruncated(t *testing.T) {
	requireT := require.New(t)

	frame, err := EncodeFrame([]byte("truncate me"), Limits{})
	requireT.NoError(err)

	_, err = ReadFrame(bytes.NewReader(frame[:FrameHeaderSize+3]), Limits{})
	requireT.ErrorIs(err, ErrTruncated)

	_, err = ReadFrame(bytes.NewReader(frame[:2]), Limits{})
	requireT.ErrorIs(err, ErrTruncated)
}

func TestFrameCleanClose(t *testing.T) {
	requireT := require.New(t)

	_, err := ReadFrame(bytes.NewReader(nil), Limits{})
	requireT.ErrorIs(err, io.EOF)
}

func TestBodyPlain(t *testing.T) {
	requireT := require.New(t)

	body := []byte("plain body")
	payload, err := EncodeBody(body, false, 0)
	requireT.NoError(err)
	requireT.EqualValues(flagPlain, payload[0])
	requireT.Len(payload, len(body)+1)

	got, err := DecodeBody(payload, Limits{})
	requireT.NoError(err)
	requireT.Equal(body, got)
}

func TestBodyCompressed(t *testing.T) {
	requireT := require.New(t)

	body := bytes.Repeat([]byte("repetitive content "), 200)
	payload, err := EncodeBody(body, true, 64)
	requireT.NoError(err)
	requireT.EqualValues(flagCompressed, payload[0])
	requireT.Less(len(payload), len(body))

	got, err := DecodeBody(payload, Limits{})
	requireT.NoError(err)
	requireT.Equal(body, got)
}

func TestBodyBelowThreshold(t *testing.T) {
	requireT := require.New(t)

	body := []byte("short")
	payload, err := EncodeBody(body, true, 64)
	requireT.NoError(err)
	requireT.EqualValues(flagPlain, payload[0])
}

func TestBodyMalformed(t *testing.T) {
	requireT := require.New(t)

	_, err := DecodeBody(nil, Limits{})
	requireT.ErrorIs(err, ErrMalformedPayload)

	_, err = DecodeBody([]byte{0x02, 0x01}, Limits{})
	requireT.ErrorIs(err, ErrMalformedPayload)

	_, err = DecodeBody([]byte{flagCompressed, 0xDE, 0xAD}, Limits{})
	requireT.ErrorIs(err, ErrMalformedPayload)
}

func TestBodyInflationBounded(t *testing.T) {
	requireT := require.New(t)

	payload, err := EncodeBody(make([]byte, 10000), true, 1)
	requireT.NoError(err)
	requireT.EqualValues(flagCompressed, payload[0])

	_, err = DecodeBody(payload, Limits{MaxFrameSize: 100})
	requireT.ErrorIs(err, ErrFrameTooLarge)
}
