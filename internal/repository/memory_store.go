package repository

import (
	"context"
	"sync"

	"apgrhost/internal/domain"
)

// memoryStore keeps visitors in process memory
type memoryStore struct {
	mu       sync.RWMutex
	visitors map[string]*domain.VisitRecord
}

// NewMemoryStore creates an empty in-memory visitor store
func NewMemoryStore() VisitorStore {
	return &memoryStore{
		visitors: make(map[string]*domain.VisitRecord),
	}
}

func (s *memoryStore) Lookup(ctx context.Context, key string) (*domain.VisitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.visitors[key]
	if !ok {
		return nil, nil
	}
	return record.Clone(), nil
}

func (s *memoryStore) Upsert(ctx context.Context, key string, record *domain.VisitRecord) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.visitors[key] = record.Clone()
	return nil
}

func (s *memoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.visitors)), nil
}

func (s *memoryStore) All(ctx context.Context) ([]*domain.VisitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*domain.VisitRecord, 0, len(s.visitors))
	for _, record := range s.visitors {
		records = append(records, record.Clone())
	}
	return records, nil
}

func (s *memoryStore) Close() error {
	return nil
}
