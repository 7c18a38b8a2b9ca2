package repository

import (
	"context"
	"encoding/json"
	"errors"

	"apgrhost/internal/domain"
	"apgrhost/pkg/database"
	"github.com/jackc/pgx/v5"
)

// postgresStore keeps visitors in the visitors table as JSONB documents
type postgresStore struct {
	db *database.PostgresDB
}

// NewPostgresStore creates a visitor store on an existing pool.
// The visitors table is created by cmd/migrate or EnsureSchema.
func NewPostgresStore(db *database.PostgresDB) VisitorStore {
	return &postgresStore{
		db: db,
	}
}

func (s *postgresStore) Lookup(ctx context.Context, key string) (*domain.VisitRecord, error) {
	query := `SELECT data FROM visitors WHERE visit_id = $1`

	var data []byte
	err := s.db.Pool.QueryRow(ctx, query, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("lookup visitor", err)
	}

	record := &domain.VisitRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, unavailable("decode visitor", err)
	}
	return record, nil
}

func (s *postgresStore) Upsert(ctx context.Context, key string, record *domain.VisitRecord) error {
	if key == "" {
		return ErrEmptyKey
	}

	data, err := json.Marshal(record)
	if err != nil {
		return unavailable("encode visitor", err)
	}

	query := `
		INSERT INTO visitors (visit_id, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (visit_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.Pool.Exec(ctx, query, key, data); err != nil {
		return unavailable("upsert visitor", err)
	}
	return nil
}

func (s *postgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM visitors`).Scan(&count); err != nil {
		return 0, unavailable("count visitors", err)
	}
	return count, nil
}

func (s *postgresStore) All(ctx context.Context) ([]*domain.VisitRecord, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT data FROM visitors ORDER BY updated_at DESC`)
	if err != nil {
		return nil, unavailable("list visitors", err)
	}
	defer rows.Close()

	var records []*domain.VisitRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, unavailable("scan visitor", err)
		}
		record := &domain.VisitRecord{}
		if err := json.Unmarshal(data, record); err != nil {
			return nil, unavailable("decode visitor", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate visitors", err)
	}

	return records, nil
}

// Close is a no-op; the pool is closed by its owner
func (s *postgresStore) Close() error {
	return nil
}
