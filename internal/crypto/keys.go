package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinSecretLen is the minimum accepted length for the master key and the
// server secret (256 bits).
const MinSecretLen = 32

// HKDF info labels. Changing one invalidates every ticket issued before.
const (
	aeadKeyInfo    = "qrticket/aead/v1"
	bindingKeyInfo = "qrticket/binding/v1"
	bindingLabel   = "qrticket/binding/v1"
)

// ErrInvalidKeyLength is returned when the provided key length is invalid.
var ErrInvalidKeyLength = errors.New("invalid key length")

// deriveKey expands a long-lived secret into an independent 32-byte sub-key
// using HKDF-SHA256.
func deriveKey(secret []byte, info string) ([]byte, error) {
	h := hkdf.New(sha256.New, secret, nil, []byte(info))
	out := make([]byte, 32)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, err
	}
	return out, nil
}

// RandomBytes returns n bytes from crypto/rand. Safe for concurrent use.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// MustRandom returns n random bytes or panics.
func MustRandom(n int) []byte {
	b, err := RandomBytes(n)
	if err != nil {
		panic(err)
	}
	return b
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
