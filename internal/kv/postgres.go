package kv

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Store backed by a two-column table.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres creates the kv table if it is missing.
func NewPostgres(ctx context.Context, db *pgxpool.Pool) (*Postgres, error) {
	const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

	if _, err := db.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("postgres: init schema: %w", err)
	}

	return &Postgres{db: db}, nil
}

func (s *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1;`, key).Scan(&v)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres: get %s: %w", key, err)
	}

	return v, true, nil
}

func (s *Postgres) Set(ctx context.Context, key, value string) error {
	const stmt = `
INSERT INTO kv (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value;`

	if _, err := s.db.Exec(ctx, stmt, key, value); err != nil {
		return fmt.Errorf("postgres: set %s: %w", key, err)
	}

	return nil
}
