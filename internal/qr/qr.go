// Package qr turns a public ticket payload into a scannable PNG image and
// normalizes payload strings read back from a scanner.
package qr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// MaxPayloadLen is the byte capacity of a version 40 symbol at the Medium
// recovery level in byte mode.
const MaxPayloadLen = 2953

const DefaultSize = 256

var (
	ErrPayloadTooLarge = errors.New("payload exceeds qr capacity")
	ErrEmptyPayload    = errors.New("empty qr payload")
	ErrInvalidRef      = errors.New("invalid ticket reference")
)

// ImageRef locates a rendered image.
type ImageRef struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// ImageSink renders a payload and stores the image under ref.
type ImageSink interface {
	Render(ctx context.Context, ref, payload string) (ImageRef, error)
}

// PNGSink writes <Dir>/<ref>.png and reports it as <URLPrefix>/<ref>.png.
type PNGSink struct {
	Dir       string
	URLPrefix string
	Size      int
}

func NewPNGSink(dir, urlPrefix string, size int) (*PNGSink, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create qr dir: %w", err)
	}
	if size <= 0 {
		size = DefaultSize
	}
	return &PNGSink{Dir: dir, URLPrefix: strings.TrimSuffix(urlPrefix, "/"), Size: size}, nil
}

func (s *PNGSink) Render(ctx context.Context, ref, payload string) (ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return ImageRef{}, err
	}
	if !validRef(ref) {
		return ImageRef{}, ErrInvalidRef
	}
	png, err := Encode(payload, s.Size)
	if err != nil {
		return ImageRef{}, err
	}
	name := ref + ".png"
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return ImageRef{}, fmt.Errorf("write qr image: %w", err)
	}
	return ImageRef{Path: path, URL: s.URLPrefix + "/" + name}, nil
}

// Path returns where Render stores the image for ref.
func (s *PNGSink) Path(ref string) (string, error) {
	if !validRef(ref) {
		return "", ErrInvalidRef
	}
	return filepath.Join(s.Dir, ref+".png"), nil
}

// Encode renders payload as PNG bytes with Medium error correction.
func Encode(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

var refPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

func validRef(ref string) bool { return refPattern.MatchString(ref) }

// Normalize trims whitespace a scanner may add around the payload and checks
// that what remains is base64url text. It does not authenticate anything.
func Normalize(scanned string) (string, error) {
	s := strings.TrimSpace(scanned)
	if s == "" {
		return "", ErrEmptyPayload
	}
	if len(s) > MaxPayloadLen {
		return "", ErrPayloadTooLarge
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return "", fmt.Errorf("unexpected character at offset %d", i)
		}
	}
	return s, nil
}
