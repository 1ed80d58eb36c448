package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bank-api/internal/config"
)

// Store wraps a pgxpool.Pool with the ledger's data-access methods. One
// Store is shared process-wide; callers never hold a connection across a
// request, matching the teacher's pool-per-repository shape.
type Store struct {
	pool *pgxpool.Pool
}

// Open creates the connection pool and, if cfg.DB.Migrate is set, applies
// the embedded schema before returning.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DB.MaxConns)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.DB.Migrate {
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return s, nil
}

// NewStore wraps an already-open pool, for callers (tests, alternate
// entrypoints) that manage pool lifecycle themselves instead of going
// through Open.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pgxpool.Pool for callers (e.g. the
// integration tests) that need raw read access without going through a
// dedicated method.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// WithTx runs fn inside a single database transaction, committing on a nil
// return and rolling back otherwise. Workers use this to make an entire
// create/update_transaction or create/update_account projection atomic:
// account balance writes, entry inserts, the journal event, and the queue
// item status transition all land or none do.
func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
