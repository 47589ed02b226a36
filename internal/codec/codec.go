// Package codec serializes ticket fields and the sealed envelope into a
// compact, length-prefixed binary form. Every value is written as
// uvarint(len) || bytes, so free text never needs escaping.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/harrylevesque/qrticket/internal/models"
)

const (
	fieldsVersion   byte = 1
	envelopeVersion byte = 1

	// maxValueLen bounds a single length prefix so a corrupted prefix cannot
	// ask for an absurd allocation.
	maxValueLen = 4096
)

// ErrDecode is returned for any input that was not produced by this package.
var ErrDecode = errors.New("codec: malformed input")

// Envelope is the plaintext sealed into a public payload.
type Envelope struct {
	Nonce    []byte
	IssuedAt time.Time
	Fields   []byte
}

// EncodeFields returns the deterministic encoding of f. Values are written
// as given; callers trim before encoding.
func EncodeFields(f models.TicketFields) []byte {
	w := &writer{}
	w.putByte(fieldsVersion)
	for _, v := range fieldValues(f) {
		w.putBytes([]byte(v))
	}
	return w.buf
}

// DecodeFields is the inverse of EncodeFields.
func DecodeFields(b []byte) (models.TicketFields, error) {
	r := &reader{data: b}
	v, err := r.readByte()
	if err != nil {
		return models.TicketFields{}, err
	}
	if v != fieldsVersion {
		return models.TicketFields{}, fmt.Errorf("%w: unknown fields version %d", ErrDecode, v)
	}

	var vals [7]string
	for i := range vals {
		raw, err := r.readBytes()
		if err != nil {
			return models.TicketFields{}, err
		}
		if !utf8.Valid(raw) {
			return models.TicketFields{}, fmt.Errorf("%w: field %d is not valid utf-8", ErrDecode, i)
		}
		vals[i] = string(raw)
	}
	if err := r.done(); err != nil {
		return models.TicketFields{}, err
	}

	return models.TicketFields{
		FullName:  vals[0],
		Email:     vals[1],
		CitizenID: vals[2],
		BirthDate: vals[3],
		Gender:    vals[4],
		District:  vals[5],
		City:      vals[6],
	}, nil
}

// EncodeEnvelope writes the nonce, the issuance time at second precision,
// and the already-encoded fields.
func EncodeEnvelope(e Envelope) []byte {
	w := &writer{}
	w.putByte(envelopeVersion)
	w.putBytes(e.Nonce)
	w.putVarint(e.IssuedAt.Unix())
	w.putBytes(e.Fields)
	return w.buf
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	r := &reader{data: b}
	v, err := r.readByte()
	if err != nil {
		return Envelope{}, err
	}
	if v != envelopeVersion {
		return Envelope{}, fmt.Errorf("%w: unknown envelope version %d", ErrDecode, v)
	}
	nonce, err := r.readBytes()
	if err != nil {
		return Envelope{}, err
	}
	if len(nonce) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty nonce", ErrDecode)
	}
	issued, err := r.readVarint()
	if err != nil {
		return Envelope{}, err
	}
	fields, err := r.readBytes()
	if err != nil {
		return Envelope{}, err
	}
	if err := r.done(); err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Nonce:    nonce,
		IssuedAt: time.Unix(issued, 0).UTC(),
		Fields:   fields,
	}, nil
}

func fieldValues(f models.TicketFields) [7]string {
	return [7]string{f.FullName, f.Email, f.CitizenID, f.BirthDate, f.Gender, f.District, f.City}
}

type writer struct {
	buf []byte
}

func (w *writer) putByte(b byte) { w.buf = append(w.buf, b) }

func (w *writer) putBytes(b []byte) {
	w.buf = binary.AppendUvarint(w.buf, uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) putVarint(n int64) { w.buf = binary.AppendVarint(w.buf, n) }

type reader struct {
	data []byte
	pos  int
}

func (r *reader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("%w: read past end of data", ErrDecode)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readBytes() ([]byte, error) {
	n, size := binary.Uvarint(r.data[r.pos:])
	if size <= 0 {
		return nil, fmt.Errorf("%w: bad length prefix", ErrDecode)
	}
	r.pos += size
	if n > maxValueLen || n > uint64(len(r.data)-r.pos) {
		return nil, fmt.Errorf("%w: length %d out of range", ErrDecode, n)
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

func (r *reader) readVarint() (int64, error) {
	n, size := binary.Varint(r.data[r.pos:])
	if size <= 0 {
		return 0, fmt.Errorf("%w: bad varint", ErrDecode)
	}
	r.pos += size
	return n, nil
}

func (r *reader) done() error {
	if r.pos != len(r.data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrDecode, len(r.data)-r.pos)
	}
	return nil
}
