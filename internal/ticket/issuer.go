package ticket

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harrylevesque/qrticket/internal/codec"
	"github.com/harrylevesque/qrticket/internal/models"
	"github.com/harrylevesque/qrticket/internal/qr"
)

type Issuer struct {
	cipher Cipher
	sink   qr.ImageSink
	opts   options
}

// NewIssuer builds an issuer. sink may be nil, in which case no image is
// rendered and IssuedTicket.QRImage stays empty.
func NewIssuer(c Cipher, sink qr.ImageSink, opts ...Option) *Issuer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Issuer{cipher: c, sink: sink, opts: o}
}

// Issue validates f and produces a bound public/server payload pair.
// A *ValidationError is returned before any key or randomness is touched.
func (i *Issuer) Issue(ctx context.Context, f models.TicketFields) (*models.IssuedTicket, error) {
	now := i.opts.now()
	f = trimFields(f)
	if err := validate(f, i.opts.citizenID, now); err != nil {
		return nil, err
	}

	nonce, err := i.opts.random(NonceSize)
	if err != nil {
		return nil, fmt.Errorf("ticket nonce: %w", err)
	}
	issuedAt := now.UTC().Truncate(time.Second)

	plaintext := codec.EncodeEnvelope(codec.Envelope{
		Nonce:    nonce,
		IssuedAt: issuedAt,
		Fields:   codec.EncodeFields(f),
	})
	public, err := sealPayload(i.cipher, plaintext)
	if err != nil {
		return nil, fmt.Errorf("seal payload: %w", err)
	}

	t := &models.IssuedTicket{
		Ref:           newRef(),
		QRPayload:     public,
		ServerPayload: b64.EncodeToString(i.cipher.DeriveBinding(nonce)),
		IssuedAt:      issuedAt,
	}

	if i.sink != nil {
		img, err := i.sink.Render(ctx, t.Ref, t.QRPayload)
		if err != nil {
			return nil, fmt.Errorf("render qr: %w", err)
		}
		t.QRImage = img.Path
	}

	i.opts.log.Info(ctx, "ticket issued", "ticket_ref", t.Ref)
	return t, nil
}

// newRef returns a filename-safe ticket reference.
func newRef() string {
	return "t-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
