package ticket

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/harrylevesque/qrticket/internal/codec"
	"github.com/harrylevesque/qrticket/internal/crypto"
	"github.com/harrylevesque/qrticket/internal/models"
)

var (
	ErrBindingMismatch = errors.New("server payload does not match ticket")
	ErrExpired         = errors.New("ticket expired")
)

// Verifier checks a public payload against the server payload stored at
// issuance. It keeps no state between calls.
type Verifier struct {
	cipher Cipher
	opts   options
}

func NewVerifier(c Cipher, opts ...Option) *Verifier {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Verifier{cipher: c, opts: o}
}

// Verify reports whether the pair came from the same issuance. The result
// carries the decoded fields only when Valid is true.
func (v *Verifier) Verify(ctx context.Context, qrPayload, serverPayload string) models.VerificationResult {
	f, err := v.check(ctx, qrPayload, serverPayload)
	if err != nil {
		return models.VerificationResult{Reason: reasonFor(err)}
	}
	return models.VerificationResult{Valid: true, Fields: &f}
}

// Check is Verify returning crypto.ErrAuthentication, ErrBindingMismatch or
// ErrExpired instead of a result.
func (v *Verifier) Check(ctx context.Context, qrPayload, serverPayload string) error {
	_, err := v.check(ctx, qrPayload, serverPayload)
	return err
}

// Decrypt opens a public payload for display. It proves the payload was
// sealed with the master key but says nothing about the server binding;
// use Verify to admit a holder.
func (v *Verifier) Decrypt(qrPayload string) (models.TicketFields, error) {
	env, err := v.open(qrPayload)
	if err != nil {
		return models.TicketFields{}, err
	}
	f, err := codec.DecodeFields(env.Fields)
	if err != nil {
		return models.TicketFields{}, crypto.ErrAuthentication
	}
	return f, nil
}

func (v *Verifier) check(ctx context.Context, qrPayload, serverPayload string) (models.TicketFields, error) {
	fail := func(err error) (models.TicketFields, error) {
		v.opts.log.Warn(ctx, "ticket verification failed",
			"reason", string(reasonFor(err)),
			"payload_fp", fingerprint(qrPayload))
		return models.TicketFields{}, err
	}

	env, err := v.open(qrPayload)
	if err != nil {
		return fail(err)
	}

	got, err := b64.DecodeString(serverPayload)
	if err != nil || !crypto.EqualBinding(v.cipher.DeriveBinding(env.Nonce), got) {
		return fail(ErrBindingMismatch)
	}

	if w := v.opts.validityWindow; w > 0 && v.opts.now().Sub(env.IssuedAt) > w {
		return fail(ErrExpired)
	}

	f, err := codec.DecodeFields(env.Fields)
	if err != nil {
		return fail(crypto.ErrAuthentication)
	}
	return f, nil
}

// open authenticates the payload and decodes the envelope. An envelope that
// authenticates but does not decode was sealed by something other than an
// Issuer and is treated the same as a forgery.
func (v *Verifier) open(qrPayload string) (codec.Envelope, error) {
	pt, err := openPayload(v.cipher, qrPayload)
	if err != nil {
		return codec.Envelope{}, crypto.ErrAuthentication
	}
	env, err := codec.DecodeEnvelope(pt)
	if err != nil || len(env.Nonce) != NonceSize {
		return codec.Envelope{}, crypto.ErrAuthentication
	}
	return env, nil
}

func reasonFor(err error) models.Reason {
	switch {
	case err == nil:
		return models.ReasonNone
	case errors.Is(err, ErrBindingMismatch):
		return models.ReasonBindingMismatch
	case errors.Is(err, ErrExpired):
		return models.ReasonExpired
	default:
		return models.ReasonTamperedOrForged
	}
}

// fingerprint is a short, non-reversible tag for correlating log lines.
func fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}
