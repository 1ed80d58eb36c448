package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// testDSN starts the shared Postgres testcontainer once per test binary run
// and returns its connection string, following the teacher's
// sync.Once-guarded container idiom.
func testDSN(t *testing.T) string {
	t.Helper()
	containerOnce.Do(func() {
		ctx := context.Background()
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("ledger"),
			tcpostgres.WithUsername("ledger"),
			tcpostgres.WithPassword("ledger_test_pass"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			containerErr = err
			return
		}
		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			containerErr = err
			return
		}
		containerDSN = dsn
	})
	require.NoError(t, containerErr, "failed to start postgres testcontainer")
	return containerDSN
}

// newTestStore opens a pool against the shared container, applies the
// embedded schema, and truncates every table so the test starts from an
// empty database regardless of what earlier tests left behind.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, testDSN(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE journal_event_links, journal_events, command_queue_items, commands,
		balance_history_entries, entries, pending_transaction_lookup, transactions, accounts, instances
		RESTART IDENTITY CASCADE
	`)
	require.NoError(t, err)

	return &Store{pool: pool}
}
