package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DBTX is the subset of database/sql used here; *sql.DB and *sql.Tx both
// satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
  ref            TEXT PRIMARY KEY,
  server_payload TEXT NOT NULL,
  qr_image       TEXT NOT NULL DEFAULT '',
  created_at     INTEGER NOT NULL
);`

type SQLiteStore struct {
	db     DBTX
	closer func() error
	now    func() time.Time
}

// NewSQLiteStore wraps an open handle. The tickets table must exist; see
// CreateSchema.
func NewSQLiteStore(db DBTX) *SQLiteStore {
	return &SQLiteStore{db: db, closer: func() error { return nil }, now: time.Now}
}

// OpenSQLite opens (or creates) the database file at path and ensures the
// schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)
	if err := CreateSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := NewSQLiteStore(db)
	s.closer = db.Close
	return s, nil
}

func CreateSchema(ctx context.Context, db DBTX) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, r Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (ref, server_payload, qr_image, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(ref) DO NOTHING
	`, r.Ref, r.ServerPayload, r.QRImage, r.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save ticket[%s]: %w", r.Ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save ticket[%s]: %w", r.Ref, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, r.Ref)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, ref string) (Record, error) {
	r := Record{Ref: ref}
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT server_payload, qr_image, created_at FROM tickets WHERE ref = ?`, ref,
	).Scan(&r.ServerPayload, &r.QRImage, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get ticket[%s]: %w", ref, err)
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	return r, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ref string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE ref = ?`, ref)
	if err != nil {
		return fmt.Errorf("failed to delete ticket[%s]: %w", ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete ticket[%s]: %w", ref, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ref, server_payload, qr_image, created_at FROM tickets ORDER BY created_at, ref`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			created int64
		)
		if err := rows.Scan(&r.Ref, &r.ServerPayload, &r.QRImage, &created); err != nil {
			return nil, fmt.Errorf("failed to scan ticket row: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ticket rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error { return s.closer() }
