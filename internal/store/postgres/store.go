package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kennydoit/fin-trade-extract/internal/store"
)

// Compile-time interface satisfaction check.
var _ store.Store = (*Store)(nil)

// Store is a Postgres-backed watermark store.
type Store struct {
	pool *pgxpool.Pool

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// New creates a new Postgres Store and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{pool: pool, Now: time.Now}, nil
}

// Migrate runs the schema DDL to create the watermark table and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Start migrates the schema and verifies connectivity.
func (s *Store) Start(ctx context.Context) error {
	return s.Migrate(ctx)
}

// Stop closes the connection pool.
func (s *Store) Stop(_ context.Context) error {
	s.pool.Close()
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
