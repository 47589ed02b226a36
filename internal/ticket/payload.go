// Package ticket issues bound ticket payload pairs and verifies them.
//
// A public payload is base64url (no padding) of
//
//	version(1) || aead id(1) || aead nonce || AEAD(envelope, aad = first two bytes)
//
// and the matching server payload is base64url of the HMAC binding of the
// ticket nonce carried inside the envelope.
package ticket

import (
	"encoding/base64"
	"regexp"
	"time"

	"github.com/harrylevesque/qrticket/internal/crypto"
	"github.com/harrylevesque/qrticket/internal/logging"
)

const (
	payloadVersion byte = 1
	headerLen           = 2

	// NonceSize is the length of the per-ticket nonce bound to the server payload.
	NonceSize = 32
)

// Strict so that a changed trailing character never decodes to the same bytes.
var b64 = base64.RawURLEncoding.Strict()

// Cipher is the part of crypto.Engine the issuer and verifier need.
type Cipher interface {
	Algorithm() crypto.Algorithm
	Seal(plaintext, aad []byte) ([]byte, error)
	Open(blob, aad []byte) ([]byte, error)
	DeriveBinding(nonce []byte) []byte
}

func header(alg crypto.Algorithm) []byte {
	return []byte{payloadVersion, alg.ID()}
}

func sealPayload(c Cipher, plaintext []byte) (string, error) {
	hdr := header(c.Algorithm())
	blob, err := c.Seal(plaintext, hdr)
	if err != nil {
		return "", err
	}
	return b64.EncodeToString(append(hdr, blob...)), nil
}

// openPayload returns crypto.ErrAuthentication for anything that is not an
// intact payload sealed by the same master key and algorithm.
func openPayload(c Cipher, payload string) ([]byte, error) {
	raw, err := b64.DecodeString(payload)
	if err != nil || len(raw) < headerLen {
		return nil, crypto.ErrAuthentication
	}
	hdr := header(c.Algorithm())
	if raw[0] != hdr[0] || raw[1] != hdr[1] {
		return nil, crypto.ErrAuthentication
	}
	return c.Open(raw[headerLen:], hdr)
}

type options struct {
	now            func() time.Time
	random         func(int) ([]byte, error)
	citizenID      *regexp.Regexp
	validityWindow time.Duration
	log            logging.Logger
}

func defaultOptions() options {
	return options{
		now:       time.Now,
		random:    crypto.RandomBytes,
		citizenID: regexp.MustCompile(DefaultCitizenIDPattern),
		log:       logging.Nop(),
	}
}

// Option configures an Issuer or a Verifier.
type Option func(*options)

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithCitizenIDPattern replaces the default 13-digit citizen id rule.
func WithCitizenIDPattern(re *regexp.Regexp) Option {
	return func(o *options) {
		if re != nil {
			o.citizenID = re
		}
	}
}

// WithValidityWindow makes tickets older than d fail with EXPIRED.
// Zero disables the check.
func WithValidityWindow(d time.Duration) Option {
	return func(o *options) { o.validityWindow = d }
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func withRandom(r func(int) ([]byte, error)) Option {
	return func(o *options) { o.random = r }
}
