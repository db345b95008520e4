package crypt

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of a channel session key.
const KeySize = 32

// EncapsulatedKeySize is the length of a session key encrypted with
// RSA-OAEP under a 2048-bit server key.
const EncapsulatedKeySize = 256

// Errors returned by the channel cipher.
var (
	ErrInvalidKeySize = errors.New("crypt: invalid key size")
	ErrDecryptFailed  = errors.New("crypt: decrypt failed")
)

// NewSessionKey returns a fresh random session key.
func NewSessionKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.WithStack(err)
	}
	return key, nil
}

// Cipher seals and opens frame payloads with the channel session key.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher wraps a session key. The key is not retained beyond the AEAD
// state derived from it.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, errors.WithStack(ErrInvalidKeySize)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext and prepends the random nonce, so the result is
// self-contained.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.WithStack(err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a payload produced by Seal.
func (c *Cipher) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < c.aead.NonceSize()+c.aead.Overhead() {
		return nil, errors.WithStack(ErrDecryptFailed)
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.WithStack(ErrDecryptFailed)
	}
	return plaintext, nil
}

// Encapsulate encrypts the session key for the server holding the private
// half of pub.
func Encapsulate(pub *rsa.PublicKey, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, errors.WithStack(ErrInvalidKeySize)
	}
	out, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return out, nil
}

// Decapsulate recovers a session key encrypted with Encapsulate. Servers
// use it, the client never holds the private key.
func Decapsulate(priv *rsa.PrivateKey, encapsulated []byte) ([]byte, error) {
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, encapsulated, nil)
	if err != nil {
		return nil, errors.WithStack(ErrDecryptFailed)
	}
	if len(key) != KeySize {
		return nil, errors.WithStack(ErrInvalidKeySize)
	}
	return key, nil
}

// KeyMAC authenticates the session key against the handshake nonce.
func KeyMAC(nonce, key []byte) []byte {
	mac := hmac.New(sha256.New, nonce)
	mac.Write(key)
	return mac.Sum(nil)
}

// VerifyKeyMAC reports whether mac matches KeyMAC(nonce, key) in constant
// time.
func VerifyKeyMAC(nonce, key, mac []byte) bool {
	return hmac.Equal(mac, KeyMAC(nonce, key))
}
