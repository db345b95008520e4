package wire

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Codec errors. They are returned wrapped, test with errors.Is.
var (
	ErrFrameTooLarge    = errors.New("wire: frame too large")
	ErrTruncated        = errors.New("wire: truncated frame")
	ErrMalformedPayload = errors.New("wire: malformed payload")
)

const (
	// FrameHeaderSize is the length prefix preceding every frame.
	FrameHeaderSize = 4

	// DefaultMaxFrameSize bounds frames when the configuration leaves the
	// limit zero.
	DefaultMaxFrameSize = 1 << 20

	flagPlain      = 0x00
	flagCompressed = 0x01
)

// Limits bounds what the codec accepts from the wire.
type Limits struct {
	MaxFrameSize uint32
}

func (l Limits) maxFrameSize() uint32 {
	if l.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return l.MaxFrameSize
}

// EncodeFrame prefixes payload with its little-endian length.
func EncodeFrame(payload []byte, limits Limits) ([]byte, error) {
	if len(payload) > int(limits.maxFrameSize()) {
		return nil, errors.WithStack(ErrFrameTooLarge)
	}
	frame := make([]byte, FrameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[FrameHeaderSize:], payload)
	return frame, nil
}

// ReadFrame reads one frame from r and returns its payload. A clean
// connection close before the first header byte surfaces as io.EOF; closing
// mid-frame surfaces as ErrTruncated.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.WithStack(ErrTruncated)
		}
		return nil, errors.WithStack(err)
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > limits.maxFrameSize() {
		return nil, errors.WithStack(ErrFrameTooLarge)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.WithStack(ErrTruncated)
		}
		return nil, errors.WithStack(err)
	}
	return payload, nil
}

// EncodeBody prefixes body with the compression flag, compressing it when
// compress is set and the body is at least threshold bytes long.
func EncodeBody(body []byte, compress bool, threshold int) ([]byte, error) {
	if !compress || len(body) < threshold {
		payload := make([]byte, len(body)+1)
		payload[0] = flagPlain
		copy(payload[1:], body)
		return payload, nil
	}

	var buf bytes.Buffer
	buf.WriteByte(flagCompressed)
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(body); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := gz.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

// DecodeBody strips the compression flag and inflates the body when it is
// compressed. Inflated bodies are bounded by the frame limit.
func DecodeBody(payload []byte, limits Limits) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errors.WithStack(ErrMalformedPayload)
	}
	switch payload[0] {
	case flagPlain:
		return payload[1:], nil
	case flagCompressed:
		gz, err := gzip.NewReader(bytes.NewReader(payload[1:]))
		if err != nil {
			return nil, errors.WithStack(ErrMalformedPayload)
		}
		maxSize := int64(limits.maxFrameSize())
		body, err := io.ReadAll(io.LimitReader(gz, maxSize+1))
		if err != nil {
			return nil, errors.WithStack(ErrMalformedPayload)
		}
		if int64(len(body)) > maxSize {
			return nil, errors.WithStack(ErrFrameTooLarge)
		}
		return body, nil
	default:
		return nil, errors.WithStack(ErrMalformedPayload)
	}
}
