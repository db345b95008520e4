package crypt

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"

	"github.com/pkg/errors"

	"github.com/olifog/steam.py/wire"
)

// Fingerprint hashes a server public key in PKIX DER form. Servers announce
// this value in their handshake hello.
func Fingerprint(pub *rsa.PublicKey) ([32]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return [32]byte{}, errors.WithStack(err)
	}
	return sha256.Sum256(der), nil
}

// KeySet holds the pinned server public keys, one per universe. A server is
// trusted only if the fingerprint it announces matches the pinned key of
// the universe it claims.
type KeySet struct {
	keys map[wire.Universe]pinnedKey
}

type pinnedKey struct {
	pub         *rsa.PublicKey
	fingerprint [32]byte
}

// NewKeySet returns an empty key set.
func NewKeySet() *KeySet {
	return &KeySet{
		keys: map[wire.Universe]pinnedKey{},
	}
}

// Add pins the key for a universe, replacing any previous pin.
func (s *KeySet) Add(universe wire.Universe, pub *rsa.PublicKey) error {
	fingerprint, err := Fingerprint(pub)
	if err != nil {
		return err
	}
	s.keys[universe] = pinnedKey{pub: pub, fingerprint: fingerprint}
	return nil
}

// Lookup returns the pinned key for the universe if the announced
// fingerprint matches it.
func (s *KeySet) Lookup(universe wire.Universe, fingerprint [32]byte) (*rsa.PublicKey, bool) {
	pinned, ok := s.keys[universe]
	if !ok || pinned.fingerprint != fingerprint {
		return nil, false
	}
	return pinned.pub, true
}
