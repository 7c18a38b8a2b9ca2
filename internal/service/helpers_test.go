package service

import (
	"context"
	"errors"
	"sync"

	"apgrhost/internal/domain"
	"apgrhost/internal/repository"
	"apgrhost/internal/service/notifier"
)

// spyStore wraps a store and counts calls; failLookup/failUpsert inject backend errors
type spyStore struct {
	repository.VisitorStore
	mu         sync.Mutex
	lookups    int
	upserts    int
	failLookup bool
	failUpsert bool
}

func newSpyStore() *spyStore {
	return &spyStore{VisitorStore: repository.NewMemoryStore()}
}

var errBackend = errors.New("connection refused")

func (s *spyStore) Lookup(ctx context.Context, key string) (*domain.VisitRecord, error) {
	s.mu.Lock()
	s.lookups++
	fail := s.failLookup
	s.mu.Unlock()
	if fail {
		return nil, errors.Join(repository.ErrStoreUnavailable, errBackend)
	}
	return s.VisitorStore.Lookup(ctx, key)
}

func (s *spyStore) Upsert(ctx context.Context, key string, record *domain.VisitRecord) error {
	s.mu.Lock()
	s.upserts++
	fail := s.failUpsert
	s.mu.Unlock()
	if fail {
		return errors.Join(repository.ErrStoreUnavailable, errBackend)
	}
	return s.VisitorStore.Upsert(ctx, key, record)
}

type stubGeo struct {
	info *domain.IPInfo
	err  error
}

func (g *stubGeo) Lookup(ctx context.Context, ip string) (*domain.IPInfo, error) {
	if g.err != nil {
		return nil, g.err
	}
	info := *g.info
	info.IP = ip
	return &info, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []notifier.Report
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, report notifier.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, report)
	return n.err
}
