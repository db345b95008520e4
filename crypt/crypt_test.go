package crypt

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olifog/steam.py/wire"
)

func TestCipherRoundTrip(t *testing.T) {
	requireT := require.New(t)

	key, err := NewSessionKey()
	requireT.NoError(err)
	requireT.Len(key, KeySize)

	c, err := NewCipher(key)
	requireT.NoError(err)

	plaintext := []byte("the quick brown fox")
	sealed, err := c.Seal(plaintext)
	requireT.NoError(err)
	requireT.NotEqual(plaintext, sealed)

	opened, err := c.Open(sealed)
	requireT.NoError(err)
	requireT.Equal(plaintext, opened)
}

func TestCipherNonceFresh(t *testing.T) {
	requireT := require.New(t)

	key, err := NewSessionKey()
	requireT.NoError(err)
	c, err := NewCipher(key)
	requireT.NoError(err)

	first, err := c.Seal([]byte("same plaintext"))
	requireT.NoError(err)
	second, err := c.Seal([]byte("same plaintext"))
	requireT.NoError(err)
	requireT.NotEqual(first, second)
}

func TestCipherTamper(t *testing.T) {
	requireT := require.New(t)

	key, err := NewSessionKey()
	requireT.NoError(err)
	c, err := NewCipher(key)
	requireT.NoError(err)

	sealed, err := c.Seal([]byte("payload"))
	requireT.NoError(err)

	// One flipped bit in the nonce, the ciphertext or the tag fails the
	// authentication check.
	for _, idx := range []int{0, c.aead.NonceSize(), len(sealed) - 1} {
		tampered := append([]byte{}, sealed...)
		tampered[idx] ^= 0x01
		_, err = c.Open(tampered)
		requireT.ErrorIs(err, ErrDecryptFailed, "byte %d", idx)
	}
}

func TestCipherWrongKey(t *testing.T) {
	requireT := require.New(t)

	key1, err := NewSessionKey()
	requireT.NoError(err)
	key2, err := NewSessionKey()
	requireT.NoError(err)

	c1, err := NewCipher(key1)
	requireT.NoError(err)
	c2, err := NewCipher(key2)
	requireT.NoError(err)

	sealed, err := c1.Seal([]byte("secret"))
	requireT.NoError(err)
	_, err = c2.Open(sealed)
	requireT.ErrorIs(err, ErrDecryptFailed)
}

func TestCipherShortInput(t *testing.T) {
	requireT := require.New(t)

	key, err := NewSessionKey()
	requireT.NoError(err)
	c, err := NewCipher(key)
	requireT.NoError(err)

	_, err = c.Open([]byte{0x01, 0x02, 0x03})
	requireT.ErrorIs(err, ErrDecryptFailed)
}

func TestCipherKeySize(t *testing.T) {
	requireT := require.New(t)

	_, err := NewCipher(make([]byte, 16))
	requireT.ErrorIs(err, ErrInvalidKeySize)
}

func TestEncapsulation(t *testing.T) {
	requireT := require.New(t)

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	requireT.NoError(err)

	key, err := NewSessionKey()
	requireT.NoError(err)

	encapsulated, err := Encapsulate(&priv.PublicKey, key)
	requireT.NoError(err)
	requireT.Len(encapsulated, EncapsulatedKeySize)

	recovered, err := Decapsulate(priv, encapsulated)
	requireT.NoError(err)
	requireT.Equal(key, recovered)
}

func TestKeyMAC(t *testing.T) {
	requireT := require.New(t)

	nonce := []byte("0123456789abcdef")
	key, err := NewSessionKey()
	requireT.NoError(err)

	mac := KeyMAC(nonce, key)
	requireT.True(VerifyKeyMAC(nonce, key, mac))
	requireT.False(VerifyKeyMAC([]byte("another nonce 16"), key, mac))

	mac[0] ^= 0x01
	requireT.False(VerifyKeyMAC(nonce, key, mac))
}

func TestKeySet(t *testing.T) {
	requireT := require.New(t)

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	requireT.NoError(err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	requireT.NoError(err)

	keys := NewKeySet()
	requireT.NoError(keys.Add(wire.UniversePublic, &priv.PublicKey))

	fingerprint, err := Fingerprint(&priv.PublicKey)
	requireT.NoError(err)

	pub, ok := keys.Lookup(wire.UniversePublic, fingerprint)
	requireT.True(ok)
	requireT.Equal(&priv.PublicKey, pub)

	otherFingerprint, err := Fingerprint(&other.PublicKey)
	requireT.NoError(err)
	_, ok = keys.Lookup(wire.UniversePublic, otherFingerprint)
	requireT.False(ok)

	_, ok = keys.Lookup(wire.UniverseBeta, fingerprint)
	requireT.False(ok)
}
