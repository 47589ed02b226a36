package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrAuthentication is the single failure returned by every decrypt path.
// It does not say which check failed.
var ErrAuthentication = errors.New("message authentication failed")

var errSameSecrets = errors.New("master key and server secret must differ")

type Algorithm string

const (
	AESGCM            Algorithm = "aes-256-gcm"
	XChaCha20Poly1305 Algorithm = "xchacha20-poly1305"
)

// ParseAlgorithm accepts the config spelling of an AEAD algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(s); a {
	case AESGCM, XChaCha20Poly1305:
		return a, nil
	case "":
		return AESGCM, nil
	default:
		return "", fmt.Errorf("unsupported aead algorithm %q", s)
	}
}

// ID is the one-byte tag written into payload headers.
func (a Algorithm) ID() byte {
	switch a {
	case AESGCM:
		return 1
	case XChaCha20Poly1305:
		return 2
	default:
		return 0
	}
}

// Engine holds the AEAD sub-key derived from the master key and the binding
// sub-key derived from the server secret. It is immutable after NewEngine
// and safe for concurrent use.
type Engine struct {
	alg        Algorithm
	aead       cipher.AEAD
	bindingKey []byte
}

// NewEngine derives the working keys. The caller keeps ownership of
// masterKey and serverSecret; the engine only retains derived sub-keys.
func NewEngine(masterKey, serverSecret []byte, alg Algorithm) (*Engine, error) {
	if len(masterKey) < MinSecretLen || len(serverSecret) < MinSecretLen {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrInvalidKeyLength, MinSecretLen)
	}
	if subtle.ConstantTimeCompare(masterKey, serverSecret) == 1 {
		return nil, errSameSecrets
	}
	if alg == "" {
		alg = AESGCM
	}

	aeadKey, err := deriveKey(masterKey, aeadKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("derive aead key: %w", err)
	}
	defer wipe(aeadKey)

	var aead cipher.AEAD
	switch alg {
	case AESGCM:
		block, err := aes.NewCipher(aeadKey)
		if err != nil {
			return nil, err
		}
		if aead, err = cipher.NewGCM(block); err != nil {
			return nil, err
		}
	case XChaCha20Poly1305:
		if aead, err = chacha20poly1305.NewX(aeadKey); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported aead algorithm %q", alg)
	}

	bindingKey, err := deriveKey(serverSecret, bindingKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("derive binding key: %w", err)
	}

	return &Engine{alg: alg, aead: aead, bindingKey: bindingKey}, nil
}

func (e *Engine) Algorithm() Algorithm { return e.alg }

// NonceSize is the AEAD nonce length for the configured algorithm.
func (e *Engine) NonceSize() int { return e.aead.NonceSize() }

// Overhead is the authentication tag length.
func (e *Engine) Overhead() int { return e.aead.Overhead() }

// NewNonce draws a fresh AEAD nonce.
func (e *Engine) NewNonce() ([]byte, error) {
	return RandomBytes(e.aead.NonceSize())
}

// Encrypt seals plaintext under the master-derived key. The nonce must be
// NonceSize bytes and must never repeat; use NewNonce.
func (e *Engine) Encrypt(nonce, plaintext, aad []byte) ([]byte, error) {
	if len(nonce) != e.aead.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes", e.aead.NonceSize())
	}
	return e.aead.Seal(nil, nonce, plaintext, aad), nil
}

// Decrypt opens ciphertext produced by Encrypt. Every failure is
// ErrAuthentication.
func (e *Engine) Decrypt(nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(nonce) != e.aead.NonceSize() || len(ciphertext) < e.aead.Overhead() {
		return nil, ErrAuthentication
	}
	pt, err := e.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return pt, nil
}

// Seal is Encrypt with an internally generated nonce prepended to the output.
func (e *Engine) Seal(plaintext, aad []byte) ([]byte, error) {
	nonce, err := e.NewNonce()
	if err != nil {
		return nil, err
	}
	ct, err := e.Encrypt(nonce, plaintext, aad)
	if err != nil {
		return nil, err
	}
	return append(nonce, ct...), nil
}

// Open reverses Seal.
func (e *Engine) Open(blob, aad []byte) ([]byte, error) {
	ns := e.aead.NonceSize()
	if len(blob) < ns {
		return nil, ErrAuthentication
	}
	return e.Decrypt(blob[:ns], blob[ns:], aad)
}

// DeriveBinding computes the server-side commitment for a ticket nonce:
// HMAC-SHA256(bindingKey, label || nonce). Deterministic per nonce.
func (e *Engine) DeriveBinding(nonce []byte) []byte {
	mac := hmac.New(sha256.New, e.bindingKey)
	mac.Write([]byte(bindingLabel))
	mac.Write(nonce)
	return mac.Sum(nil)
}

// EqualBinding compares two commitments in constant time.
func EqualBinding(a, b []byte) bool {
	return hmac.Equal(a, b)
}

func (e *Engine) String() string { return fmt.Sprintf("crypto.Engine{alg: %s}", e.alg) }

func (e *Engine) GoString() string { return e.String() }
