package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// JSONStore keeps every record in a single JSON file.
type JSONStore struct {
	filePath string
	mu       sync.RWMutex
	now      func() time.Time
}

// NewJSONStore opens path, creating its directory. An existing file must
// hold a valid record list.
func NewJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &JSONStore{filePath: path, now: time.Now}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) Save(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return err
	}
	for _, v := range recs {
		if v.Ref == r.Ref {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, r.Ref)
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	return s.write(append(recs, r))
}

func (s *JSONStore) Get(ctx context.Context, ref string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, err := s.load()
	if err != nil {
		return Record{}, err
	}
	for _, v := range recs {
		if v.Ref == ref {
			return v, nil
		}
	}
	return Record{}, ErrNotFound
}

func (s *JSONStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return err
	}
	for i, v := range recs {
		if v.Ref == ref {
			return s.write(append(recs[:i], recs[i+1:]...))
		}
	}
	return ErrNotFound
}

// List returns records oldest first.
func (s *JSONStore) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].CreatedAt.Before(recs[j].CreatedAt) })
	return recs, nil
}

func (s *JSONStore) Close() error { return nil }

// load reads the file; a missing file is an empty store.
func (s *JSONStore) load() ([]Record, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	return recs, nil
}

// write replaces the file through a rename so readers never see a partial list.
func (s *JSONStore) write(recs []Record) error {
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}
