package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"apgrhost/internal/domain"
)

// fileStore persists visitors as one JSON object keyed by visitor key.
// The whole map is held in memory and rewritten on every upsert.
type fileStore struct {
	mu       sync.RWMutex
	path     string
	visitors map[string]*domain.VisitRecord
}

// NewFileStore loads path if it exists and returns a store backed by it
func NewFileStore(path string) (VisitorStore, error) {
	s := &fileStore{
		path:     path,
		visitors: make(map[string]*domain.VisitRecord),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, unavailable("read visitors file", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.visitors); err != nil {
			return nil, unavailable("decode visitors file", err)
		}
	}

	for key, record := range s.visitors {
		if record == nil {
			delete(s.visitors, key)
			continue
		}
		if record.VisitorKey == "" {
			record.VisitorKey = key
		}
	}

	return s, nil
}

func (s *fileStore) Lookup(ctx context.Context, key string) (*domain.VisitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.visitors[key]
	if !ok {
		return nil, nil
	}
	return record.Clone(), nil
}

// Upsert updates the in-memory map and rewrites the file. When the write
// fails the in-memory entry is kept and the error is returned.
func (s *fileStore) Upsert(ctx context.Context, key string, record *domain.VisitRecord) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.visitors[key] = record.Clone()
	return s.flush()
}

func (s *fileStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.visitors)), nil
}

func (s *fileStore) All(ctx context.Context) ([]*domain.VisitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*domain.VisitRecord, 0, len(s.visitors))
	for _, record := range s.visitors {
		records = append(records, record.Clone())
	}
	return records, nil
}

func (s *fileStore) Close() error {
	return nil
}

// flush writes to a temp file in the same directory and renames it over the target
func (s *fileStore) flush() error {
	data, err := json.MarshalIndent(s.visitors, "", "  ")
	if err != nil {
		return unavailable("encode visitors", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".visitors-*.json")
	if err != nil {
		return unavailable("create temp visitors file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return unavailable("write visitors file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return unavailable("close visitors file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return unavailable(fmt.Sprintf("replace %s", s.path), err)
	}
	return nil
}
