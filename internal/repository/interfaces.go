package repository

import (
	"context"
	"errors"
	"fmt"

	"apgrhost/internal/domain"
)

var (
	// ErrStoreUnavailable wraps every backend failure (I/O, network, serialization)
	ErrStoreUnavailable = errors.New("visitor store unavailable")

	// ErrEmptyKey is returned when upserting without a visitor key
	ErrEmptyKey = errors.New("visitor key is empty")
)

// VisitorStore maps a visitor key to the last-known visit record.
// Writes are upserts; at most one record exists per key.
type VisitorStore interface {
	// Lookup returns the record for key, or (nil, nil) when absent
	Lookup(ctx context.Context, key string) (*domain.VisitRecord, error)

	// Upsert replaces the record at key unconditionally
	Upsert(ctx context.Context, key string, record *domain.VisitRecord) error

	// Count returns the number of distinct keys
	Count(ctx context.Context) (int64, error)

	// All returns a snapshot of every record, in no particular order
	All(ctx context.Context) ([]*domain.VisitRecord, error)

	// Close releases backend resources
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrStoreUnavailable, op, err)
}
