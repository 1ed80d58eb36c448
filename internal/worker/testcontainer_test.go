package worker_test

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

	"bank-api/internal/store/postgres"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// newTestStoreForWorker starts (once per test binary run) the same shared
// Postgres testcontainer idiom used by the store package's own tests, since
// unexported test helpers can't be shared across packages.
func newTestStoreForWorker(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()

	containerOnce.Do(func() {
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

	pool, err := pgxpool.New(ctx, containerDSN)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE journal_event_links, journal_events, command_queue_items, commands,
		balance_history_entries, entries, pending_transaction_lookup, transactions, accounts, instances
		RESTART IDENTITY CASCADE
	`)
	require.NoError(t, err)

	return postgres.NewStore(pool)
}
