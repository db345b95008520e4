package wire

import (
	"reflect"
	"unsafe"

	"github.com/outofforest/proton"
	"github.com/outofforest/proton/helpers"
	"github.com/pkg/errors"
)

const (
	id6 uint64 = iota + 1
	id5
	id4
	id3
	id2
	id1
	id0
)

var _ proton.Marshaller = Marshaller{}

// NewMarshaller creates marshaller.
func NewMarshaller() Marshaller {
	return Marshaller{}
}

// Marshaller marshals and unmarshals messages.
type Marshaller struct {
}

// Messages returns list of the message types supported by marshaller.
func (m Marshaller) Messages() []any {
	return []any {
		ChannelHello{},
		ChannelKey{},
		ChannelAccept{},
		Logon{},
		LogonResult{},
		Heartbeat{},
		LoggedOff{},
	}
}

// ID returns ID of message type.
func (m Marshaller) ID(msg any) (uint64, error) {
	switch msg.(type) {
	case *ChannelHello:
		return id6, nil
	case *ChannelKey:
		return id5, nil
	case *ChannelAccept:
		return id4, nil
	case *Logon:
		return id3, nil
	case *LogonResult:
		return id2, nil
	case *Heartbeat:
		return id1, nil
	case *LoggedOff:
		return id0, nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Size computes the size of marshalled message.
func (m Marshaller) Size(msg any) (uint64, error) {
	switch msg2 := msg.(type) {
	case *ChannelHello:
		return size6(msg2), nil
	case *ChannelKey:
		return size5(msg2), nil
	case *ChannelAccept:
		return size4(msg2), nil
	case *Logon:
		return size3(msg2), nil
	case *LogonResult:
		return size2(msg2), nil
	case *Heartbeat:
		return size1(msg2), nil
	case *LoggedOff:
		return size0(msg2), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Marshal marshals message.
func (m Marshaller) Marshal(msg any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMarshal(&retErr)

	switch msg2 := msg.(type) {
	case *ChannelHello:
		return id6, marshal6(msg2, buf), nil
	case *ChannelKey:
		return id5, marshal5(msg2, buf), nil
	case *ChannelAccept:
		return id4, marshal4(msg2, buf), nil
	case *Logon:
		return id3, marshal3(msg2, buf), nil
	case *LogonResult:
		return id2, marshal2(msg2, buf), nil
	case *Heartbeat:
		return id1, marshal1(msg2, buf), nil
	case *LoggedOff:
		return id0, marshal0(msg2, buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Unmarshal unmarshals message.
func (m Marshaller) Unmarshal(id uint64, buf []byte) (retMsg any, retSize uint64, retErr error) {
	defer helpers.RecoverUnmarshal(&retErr)

	switch id {
	case id6:
		msg := &ChannelHello{}
		return msg, unmarshal6(msg, buf), nil
	case id5:
		msg := &ChannelKey{}
		return msg, unmarshal5(msg, buf), nil
	case id4:
		msg := &ChannelAccept{}
		return msg, unmarshal4(msg, buf), nil
	case id3:
		msg := &Logon{}
		return msg, unmarshal3(msg, buf), nil
	case id2:
		msg := &LogonResult{}
		return msg, unmarshal2(msg, buf), nil
	case id1:
		msg := &Heartbeat{}
		return msg, unmarshal1(msg, buf), nil
	case id0:
		msg := &LoggedOff{}
		return msg, unmarshal0(msg, buf), nil
	default:
		return nil, 0, errors.Errorf("unknown ID %d", id)
	}
}

// MakePatch creates a patch.
func (m Marshaller) MakePatch(msgDst, msgSrc any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMakePatch(&retErr)

	switch msg2 := msgDst.(type) {
	case *ChannelHello:
		return id6, makePatch6(msg2, msgSrc.(*ChannelHello), buf), nil
	case *ChannelKey:
		return id5, makePatch5(msg2, msgSrc.(*ChannelKey), buf), nil
	case *ChannelAccept:
		return id4, makePatch4(msg2, msgSrc.(*ChannelAccept), buf), nil
	case *Logon:
		return id3, makePatch3(msg2, msgSrc.(*Logon), buf), nil
	case *LogonResult:
		return id2, makePatch2(msg2, msgSrc.(*LogonResult), buf), nil
	case *Heartbeat:
		return id1, makePatch1(msg2, msgSrc.(*Heartbeat), buf), nil
	case *LoggedOff:
		return id0, makePatch0(msg2, msgSrc.(*LoggedOff), buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msgDst)
	}
}

// ApplyPatch applies patch.
func (m Marshaller) ApplyPatch(msg any, buf []byte) (retSize uint64, retErr error) {
	defer helpers.RecoverApplyPatch(&retErr)

	switch msg2 := msg.(type) {
	case *ChannelHello:
		return applyPatch6(msg2, buf), nil
	case *ChannelKey:
		return applyPatch5(msg2, buf), nil
	case *ChannelAccept:
		return applyPatch4(msg2, buf), nil
	case *Logon:
		return applyPatch3(msg2, buf), nil
	case *LogonResult:
		return applyPatch2(msg2, buf), nil
	case *Heartbeat:
		return applyPatch1(msg2, buf), nil
	case *LoggedOff:
		return applyPatch0(msg2, buf), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

func size0(m *LoggedOff) uint64 {
	var n uint64 = 1
	{
		// Result

		helpers.UInt64Size(m.Result, &n)
	}
	return n
}

func marshal0(m *LoggedOff, b []byte) uint64 {
	var o uint64
	{
		// Result

		helpers.UInt64Marshal(m.Result, b, &o)
	}

	return o
}

func unmarshal0(m *LoggedOff, b []byte) uint64 {
	var o uint64
	{
		// Result

		helpers.UInt64Unmarshal(&m.Result, b, &o)
	}

	return o
}

func makePatch0(m, mSrc *LoggedOff, b []byte) uint64 {
	var o uint64 = 1
	{
		// Result

		if m.Result == mSrc.Result {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(m.Result, b, &o)
		}
	}

	return o
}

func applyPatch0(m *LoggedOff, b []byte) uint64 {
	var o uint64 = 1
	{
		// Result

		if b[0]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.Result, b, &o)
		}
	}

	return o
}

func size1(m *Heartbeat) uint64 {
	var n uint64 = 1
	{
		// Sequence

		helpers.UInt64Size(m.Sequence, &n)
	}
	return n
}

func marshal1(m *Heartbeat, b []byte) uint64 {
	var o uint64
	{
		// Sequence

		helpers.UInt64Marshal(m.Sequence, b, &o)
	}

	return o
}

func unmarshal1(m *Heartbeat, b []byte) uint64 {
	var o uint64
	{
		// Sequence

		helpers.UInt64Unmarshal(&m.Sequence, b, &o)
	}

	return o
}

func makePatch1(m, mSrc *Heartbeat, b []byte) uint64 {
	var o uint64 = 1
	{
		// Sequence

		if m.Sequence == mSrc.Sequence {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(m.Sequence, b, &o)
		}
	}

	return o
}

func applyPatch1(m *Heartbeat, b []byte) uint64 {
	var o uint64 = 1
	{
		// Sequence

		if b[0]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.Sequence, b, &o)
		}
	}

	return o
}

func size2(m *LogonResult) uint64 {
	var n uint64 = 5
	{
		// Result

		helpers.UInt64Size(m.Result, &n)
	}
	{
		// SteamID

		helpers.UInt64Size(m.SteamID, &n)
	}
	{
		// HeartbeatSeconds

		helpers.UInt64Size(m.HeartbeatSeconds, &n)
	}
	{
		// RefreshToken

		{
			l := uint64(len(m.RefreshToken))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// CellID

		helpers.UInt64Size(m.CellID, &n)
	}
	return n
}

func marshal2(m *LogonResult, b []byte) uint64 {
	var o uint64
	{
		// Result

		helpers.UInt64Marshal(m.Result, b, &o)
	}
	{
		// SteamID

		helpers.UInt64Marshal(m.SteamID, b, &o)
	}
	{
		// HeartbeatSeconds

		helpers.UInt64Marshal(m.HeartbeatSeconds, b, &o)
	}
	{
		// RefreshToken

		{
			l := uint64(len(m.RefreshToken))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.RefreshToken)
			o += l
		}
	}
	{
		// CellID

		helpers.UInt64Marshal(m.CellID, b, &o)
	}

	return o
}

func unmarshal2(m *LogonResult, b []byte) uint64 {
	var o uint64
	{
		// Result

		helpers.UInt64Unmarshal(&m.Result, b, &o)
	}
	{
		// SteamID

		helpers.UInt64Unmarshal(&m.SteamID, b, &o)
	}
	{
		// HeartbeatSeconds

		helpers.UInt64Unmarshal(&m.HeartbeatSeconds, b, &o)
	}
	{
		// RefreshToken

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.RefreshToken = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// CellID

		helpers.UInt64Unmarshal(&m.CellID, b, &o)
	}

	return o
}

func makePatch2(m, mSrc *LogonResult, b []byte) uint64 {
	var o uint64 = 1
	{
		// Result

		if m.Result == mSrc.Result {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(m.Result, b, &o)
		}
	}
	{
		// SteamID

		if m.SteamID == mSrc.SteamID {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			helpers.UInt64Marshal(m.SteamID, b, &o)
		}
	}
	{
		// HeartbeatSeconds

		if m.HeartbeatSeconds == mSrc.HeartbeatSeconds {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			helpers.UInt64Marshal(m.HeartbeatSeconds, b, &o)
		}
	}
	{
		// RefreshToken

		if m.RefreshToken == mSrc.RefreshToken {
			b[0] &= 0xF7
		} else {
			b[0] |= 0x08
			{
				l := uint64(len(m.RefreshToken))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.RefreshToken)
				o += l
			}
		}
	}
	{
		// CellID

		if m.CellID == mSrc.CellID {
			b[0] &= 0xEF
		} else {
			b[0] |= 0x10
			helpers.UInt64Marshal(m.CellID, b, &o)
		}
	}

	return o
}

func applyPatch2(m *LogonResult, b []byte) uint64 {
	var o uint64 = 1
	{
		// Result

		if b[0]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.Result, b, &o)
		}
	}
	{
		// SteamID

		if b[0]&0x02 != 0 {
			helpers.UInt64Unmarshal(&m.SteamID, b, &o)
		}
	}
	{
		// HeartbeatSeconds

		if b[0]&0x04 != 0 {
			helpers.UInt64Unmarshal(&m.HeartbeatSeconds, b, &o)
		}
	}
	{
		// RefreshToken

		if b[0]&0x08 != 0 {
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.RefreshToken = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// CellID

		if b[0]&0x10 != 0 {
			helpers.UInt64Unmarshal(&m.CellID, b, &o)
		}
	}

	return o
}

func size3(m *Logon) uint64 {
	var n uint64 = 5
	{
		// AccountName

		{
			l := uint64(len(m.AccountName))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Password

		{
			l := uint64(len(m.Password))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// RefreshToken

		{
			l := uint64(len(m.RefreshToken))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// TwoFactorCode

		{
			l := uint64(len(m.TwoFactorCode))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// ClientVersion

		helpers.UInt64Size(m.ClientVersion, &n)
	}
	return n
}

func marshal3(m *Logon, b []byte) uint64 {
	var o uint64
	{
		// AccountName

		{
			l := uint64(len(m.AccountName))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.AccountName)
			o += l
		}
	}
	{
		// Password

		{
			l := uint64(len(m.Password))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Password)
			o += l
		}
	}
	{
		// RefreshToken

		{
			l := uint64(len(m.RefreshToken))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.RefreshToken)
			o += l
		}
	}
	{
		// TwoFactorCode

		{
			l := uint64(len(m.TwoFactorCode))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.TwoFactorCode)
			o += l
		}
	}
	{
		// ClientVersion

		helpers.UInt64Marshal(m.ClientVersion, b, &o)
	}

	return o
}

func unmarshal3(m *Logon, b []byte) uint64 {
	var o uint64
	{
		// AccountName

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.AccountName = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Password

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Password = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// RefreshToken

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.RefreshToken = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// TwoFactorCode

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.TwoFactorCode = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// ClientVersion

		helpers.UInt64Unmarshal(&m.ClientVersion, b, &o)
	}

	return o
}

func makePatch3(m, mSrc *Logon, b []byte) uint64 {
	var o uint64 = 1
	{
		// AccountName

		if m.AccountName == mSrc.AccountName {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			{
				l := uint64(len(m.AccountName))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.AccountName)
				o += l
			}
		}
	}
	{
		// Password

		if m.Password == mSrc.Password {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			{
				l := uint64(len(m.Password))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Password)
				o += l
			}
		}
	}
	{
		// RefreshToken

		if m.RefreshToken == mSrc.RefreshToken {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			{
				l := uint64(len(m.RefreshToken))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.RefreshToken)
				o += l
			}
		}
	}
	{
		// TwoFactorCode

		if m.TwoFactorCode == mSrc.TwoFactorCode {
			b[0] &= 0xF7
		} else {
			b[0] |= 0x08
			{
				l := uint64(len(m.TwoFactorCode))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.TwoFactorCode)
				o += l
			}
		}
	}
	{
		// ClientVersion

		if m.ClientVersion == mSrc.ClientVersion {
			b[0] &= 0xEF
		} else {
			b[0] |= 0x10
			helpers.UInt64Marshal(m.ClientVersion, b, &o)
		}
	}

	return o
}

func applyPatch3(m *Logon, b []byte) uint64 {
	var o uint64 = 1
	{
		// AccountName

		if b[0]&0x01 != 0 {
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.AccountName = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Password

		if b[0]&0x02 != 0 {
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Password = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// RefreshToken

		if b[0]&0x04 != 0 {
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.RefreshToken = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// TwoFactorCode

		if b[0]&0x08 != 0 {
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.TwoFactorCode = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// ClientVersion

		if b[0]&0x10 != 0 {
			helpers.UInt64Unmarshal(&m.ClientVersion, b, &o)
		}
	}

	return o
}

func size4(m *ChannelAccept) uint64 {
	var n uint64 = 1
	{
		// Result

		helpers.UInt64Size(m.Result, &n)
	}
	return n
}

func marshal4(m *ChannelAccept, b []byte) uint64 {
	var o uint64
	{
		// Result

		helpers.UInt64Marshal(m.Result, b, &o)
	}

	return o
}

func unmarshal4(m *ChannelAccept, b []byte) uint64 {
	var o uint64
	{
		// Result

		helpers.UInt64Unmarshal(&m.Result, b, &o)
	}

	return o
}

func makePatch4(m, mSrc *ChannelAccept, b []byte) uint64 {
	var o uint64 = 1
	{
		// Result

		if m.Result == mSrc.Result {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(m.Result, b, &o)
		}
	}

	return o
}

func applyPatch4(m *ChannelAccept, b []byte) uint64 {
	var o uint64 = 1
	{
		// Result

		if b[0]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.Result, b, &o)
		}
	}

	return o
}

func size5(m *ChannelKey) uint64 {
	var n uint64 = 288
	return n
}

func marshal5(m *ChannelKey, b []byte) uint64 {
	var o uint64
	{
		// Key

		copy(b[o:o+256], unsafe.Slice(&m.Key[0], 256))
		o += 256
	}
	{
		// MAC

		copy(b[o:o+32], unsafe.Slice(&m.MAC[0], 32))
		o += 32
	}

	return o
}

func unmarshal5(m *ChannelKey, b []byte) uint64 {
	var o uint64
	{
		// Key

		copy(unsafe.Slice(&m.Key[0], 256), b[o:o+256])
		o += 256
	}
	{
		// MAC

		copy(unsafe.Slice(&m.MAC[0], 32), b[o:o+32])
		o += 32
	}

	return o
}

func makePatch5(m, mSrc *ChannelKey, b []byte) uint64 {
	var o uint64 = 1
	{
		// Key

		if reflect.DeepEqual(m.Key, mSrc.Key) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			copy(b[o:o+256], unsafe.Slice(&m.Key[0], 256))
			o += 256
		}
	}
	{
		// MAC

		if reflect.DeepEqual(m.MAC, mSrc.MAC) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			copy(b[o:o+32], unsafe.Slice(&m.MAC[0], 32))
			o += 32
		}
	}

	return o
}

func applyPatch5(m *ChannelKey, b []byte) uint64 {
	var o uint64 = 1
	{
		// Key

		if b[0]&0x01 != 0 {
			copy(unsafe.Slice(&m.Key[0], 256), b[o:o+256])
			o += 256
		}
	}
	{
		// MAC

		if b[0]&0x02 != 0 {
			copy(unsafe.Slice(&m.MAC[0], 32), b[o:o+32])
			o += 32
		}
	}

	return o
}

func size6(m *ChannelHello) uint64 {
	var n uint64 = 50
	{
		// Version

		helpers.UInt64Size(m.Version, &n)
	}
	{
		// Universe

		helpers.UInt64Size(m.Universe, &n)
	}
	return n
}

func marshal6(m *ChannelHello, b []byte) uint64 {
	var o uint64
	{
		// Version

		helpers.UInt64Marshal(m.Version, b, &o)
	}
	{
		// Universe

		helpers.UInt64Marshal(m.Universe, b, &o)
	}
	{
		// Nonce

		copy(b[o:o+16], unsafe.Slice(&m.Nonce[0], 16))
		o += 16
	}
	{
		// Fingerprint

		copy(b[o:o+32], unsafe.Slice(&m.Fingerprint[0], 32))
		o += 32
	}

	return o
}

func unmarshal6(m *ChannelHello, b []byte) uint64 {
	var o uint64
	{
		// Version

		helpers.UInt64Unmarshal(&m.Version, b, &o)
	}
	{
		// Universe

		helpers.UInt64Unmarshal(&m.Universe, b, &o)
	}
	{
		// Nonce

		copy(unsafe.Slice(&m.Nonce[0], 16), b[o:o+16])
		o += 16
	}
	{
		// Fingerprint

		copy(unsafe.Slice(&m.Fingerprint[0], 32), b[o:o+32])
		o += 32
	}

	return o
}

func makePatch6(m, mSrc *ChannelHello, b []byte) uint64 {
	var o uint64 = 1
	{
		// Version

		if m.Version == mSrc.Version {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(m.Version, b, &o)
		}
	}
	{
		// Universe

		if m.Universe == mSrc.Universe {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			helpers.UInt64Marshal(m.Universe, b, &o)
		}
	}
	{
		// Nonce

		if reflect.DeepEqual(m.Nonce, mSrc.Nonce) {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			copy(b[o:o+16], unsafe.Slice(&m.Nonce[0], 16))
			o += 16
		}
	}
	{
		// Fingerprint

		if reflect.DeepEqual(m.Fingerprint, mSrc.Fingerprint) {
			b[0] &= 0xF7
		} else {
			b[0] |= 0x08
			copy(b[o:o+32], unsafe.Slice(&m.Fingerprint[0], 32))
			o += 32
		}
	}

	return o
}

func applyPatch6(m *ChannelHello, b []byte) uint64 {
	var o uint64 = 1
	{
		// Version

		if b[0]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.Version, b, &o)
		}
	}
	{
		// Universe

		if b[0]&0x02 != 0 {
			helpers.UInt64Unmarshal(&m.Universe, b, &o)
		}
	}
	{
		// Nonce

		if b[0]&0x04 != 0 {
			copy(unsafe.Slice(&m.Nonce[0], 16), b[o:o+16])
			o += 16
		}
	}
	{
		// Fingerprint

		if b[0]&0x08 != 0 {
			copy(unsafe.Slice(&m.Fingerprint[0], 32), b[o:o+32])
			o += 32
		}
	}

	return o
}
