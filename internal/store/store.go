// Package store keeps the server payload of every issued ticket under its
// ticket reference, so a gate only needs the scanned QR and the reference.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound      = errors.New("ticket not found")
	ErrAlreadyExists = errors.New("ticket already exists")
)

// Record is what the issuer keeps after handing the QR payload to the holder.
type Record struct {
	Ref           string    `json:"ticket_ref"`
	ServerPayload string    `json:"server_payload"`
	QRImage       string    `json:"qr_image,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Store interface {
	Save(ctx context.Context, r Record) error
	Get(ctx context.Context, ref string) (Record, error)
	Delete(ctx context.Context, ref string) error
	List(ctx context.Context) ([]Record, error)
	Close() error
}

// Open returns the store for backend ("json" or "sqlite") at path.
func Open(ctx context.Context, backend, path string) (Store, error) {
	switch backend {
	case "json":
		s, err := NewJSONStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
