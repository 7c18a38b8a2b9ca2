package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgx.Conn and *pgxpool.Pool
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS visitors (
		visit_id   TEXT PRIMARY KEY,
		data       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_visitors_updated_at ON visitors (updated_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_visitors_ip ON visitors ((data->>'ip'))`,
}

var dropStatements = []string{
	`DROP TABLE IF EXISTS visitors CASCADE`,
}

// EnsureSchema creates the visitors table and its indexes if missing
func EnsureSchema(ctx context.Context, db Execer) error {
	return execAll(ctx, db, createStatements)
}

// DropSchema removes the visitors table
func DropSchema(ctx context.Context, db Execer) error {
	return execAll(ctx, db, dropStatements)
}

func execAll(ctx context.Context, db Execer, statements []string) error {
	for i, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement %d: %w", i+1, err)
		}
	}
	return nil
}
