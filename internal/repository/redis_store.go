package repository

import (
	"context"
	"encoding/json"
	"errors"

	"apgrhost/internal/domain"
	"apgrhost/pkg/redis"
)

// redisStore keeps visitors in a single hash: field = visitor key, value = record JSON
type redisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a visitor store on the environment-prefixed visitors hash
func NewRedisStore(client *redis.Client) VisitorStore {
	return &redisStore{
		client: client,
		key:    client.KeyBuilder.KeyVisitors(),
	}
}

func (s *redisStore) Lookup(ctx context.Context, key string) (*domain.VisitRecord, error) {
	raw, err := s.client.HGet(ctx, s.key, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, unavailable("lookup visitor", err)
	}

	record := &domain.VisitRecord{}
	if err := json.Unmarshal([]byte(raw), record); err != nil {
		return nil, unavailable("decode visitor", err)
	}
	return record, nil
}

func (s *redisStore) Upsert(ctx context.Context, key string, record *domain.VisitRecord) error {
	if key == "" {
		return ErrEmptyKey
	}

	data, err := json.Marshal(record)
	if err != nil {
		return unavailable("encode visitor", err)
	}

	if err := s.client.HSet(ctx, s.key, key, string(data)); err != nil {
		return unavailable("upsert visitor", err)
	}
	return nil
}

func (s *redisStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.HLen(ctx, s.key)
	if err != nil {
		return 0, unavailable("count visitors", err)
	}
	return n, nil
}

func (s *redisStore) All(ctx context.Context) ([]*domain.VisitRecord, error) {
	m, err := s.client.HGetAll(ctx, s.key)
	if err != nil {
		return nil, unavailable("list visitors", err)
	}

	records := make([]*domain.VisitRecord, 0, len(m))
	for field, raw := range m {
		record := &domain.VisitRecord{}
		if err := json.Unmarshal([]byte(raw), record); err != nil {
			return nil, unavailable("decode visitor "+field, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Close is a no-op; the shared client is closed by its owner
func (s *redisStore) Close() error {
	return nil
}
