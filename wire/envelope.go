package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrMalformedEnvelope is returned when an envelope header declares more
// bytes than the payload holds.
var ErrMalformedEnvelope = errors.New("wire: malformed envelope")

const (
	envelopeFixedSize = 5
	jobFieldsSize     = 16

	flagHasJob = 0x01
)

// Envelope is the typed unit every decrypted payload decodes to: a message
// type, the protobuf-encoding flag, optional job routing and an opaque body.
type Envelope struct {
	Type        EMsg
	Proto       bool
	SourceJobID JobID
	TargetJobID JobID
	Body        []byte
}

// HasJob reports whether the envelope carries job routing.
func (e *Envelope) HasJob() bool {
	return e.SourceJobID != 0 || e.TargetJobID != 0
}

// Encode renders the envelope. The job fields are written only when either
// job id is set.
func (e *Envelope) Encode() []byte {
	size := envelopeFixedSize + len(e.Body)
	if e.HasJob() {
		size += jobFieldsSize
	}
	b := make([]byte, size)
	binary.LittleEndian.PutUint32(b, JoinEMsg(e.Type, e.Proto))
	o := envelopeFixedSize
	if e.HasJob() {
		b[4] = flagHasJob
		binary.LittleEndian.PutUint64(b[o:], uint64(e.SourceJobID))
		binary.LittleEndian.PutUint64(b[o+8:], uint64(e.TargetJobID))
		o += jobFieldsSize
	}
	copy(b[o:], e.Body)
	return b
}

// ParseEnvelope decodes one envelope. Unknown flag bits are ignored so that
// newer servers stay readable. The returned body aliases b.
func ParseEnvelope(b []byte) (*Envelope, error) {
	if len(b) < envelopeFixedSize {
		return nil, errors.WithStack(ErrMalformedEnvelope)
	}
	msgType, proto := SplitEMsg(binary.LittleEndian.Uint32(b))
	e := &Envelope{Type: msgType, Proto: proto}
	o := envelopeFixedSize
	if b[4]&flagHasJob != 0 {
		if len(b) < envelopeFixedSize+jobFieldsSize {
			return nil, errors.WithStack(ErrMalformedEnvelope)
		}
		e.SourceJobID = JobID(binary.LittleEndian.Uint64(b[o:]))
		e.TargetJobID = JobID(binary.LittleEndian.Uint64(b[o+8:]))
		o += jobFieldsSize
	}
	if o < len(b) {
		e.Body = b[o:]
	}
	return e, nil
}
