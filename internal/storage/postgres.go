// Package storage is the Repository Layer (C9): the sole point of
// contact with Postgres, wrapping every multi-row write in a transaction
// with row-level locks on the affected Image/Person rows.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/photovault/internal/config"
)

// Store is the Repository Layer. All package-level operations are
// methods on Store; it holds nothing but a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and verifies connectivity.
func New(cfg config.DatabaseConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// IsUniqueViolation reports whether err is a unique-constraint violation
// (Postgres error code 23505) — the one RepositoryError condition that is
// NOT transient: it means a legitimate duplicate, not a connectivity blip.
func IsUniqueViolation(err error) bool {
	return hasPgCode(err, "23505")
}
