package worker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-api/internal/config"
	"bank-api/internal/domain"
	"bank-api/internal/linkfanout"
	"bank-api/internal/pkg/idempotency"
	"bank-api/internal/store/postgres"
	"bank-api/internal/worker"
)

const testSecret = "integration-test-secret"

func testCfg() config.LedgerConfig {
	return config.LedgerConfig{
		IdempotencySecret: testSecret,
		MaxRetries:        3,
		BaseRetryDelay:    time.Millisecond,
		MaxRetryDelay:     10 * time.Millisecond,
		ProcessorName:     "test",
	}
}

func ingestAndDispatch(t *testing.T, s *postgres.Store, d *worker.Dispatcher, cmd domain.Command) worker.Result {
	t.Helper()
	ctx := context.Background()

	ingested, err := s.IngestCommand(ctx, cmd)
	require.NoError(t, err)

	claimed, item, ok, err := s.ClaimNext(ctx, cmd.InstanceID, "test-processor")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ingested.ID, claimed.ID)

	result, err := d.Dispatch(ctx, claimed, item)
	require.NoError(t, err)
	return result
}

// Scenario A: create_transaction with status=posted applies directly to
// posted balances, and every touched entity (the command, the transaction,
// and both accounts) gets a journal link row (Comment 4's fix).
func TestCreateTransactionWorker_PostsImmediately(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreForWorker(t)
	publisher := &linkfanout.NoopPublisher{Store: s}
	d := worker.NewDispatcher(s, testCfg(), publisher)

	inst, err := s.CreateInstance(ctx, domain.Instance{Address: "instance-" + uuid.NewString()})
	require.NoError(t, err)

	cash, err := s.CreateAccount(ctx, domain.Account{InstanceID: inst.ID, Address: "cash", Type: domain.AccountAsset, NormalSide: domain.NormalSideForType(domain.AccountAsset), Currency: "USD"})
	require.NoError(t, err)
	revenue, err := s.CreateAccount(ctx, domain.Account{InstanceID: inst.ID, Address: "revenue", Type: domain.AccountRevenue, NormalSide: domain.NormalSideForType(domain.AccountRevenue), Currency: "USD"})
	require.NoError(t, err)

	payload := domain.TransactionPayload{
		Status: domain.TransactionPosted,
		Entries: []domain.EntryDraft{
			{AccountAddress: cash.Address, SignedAmount: 1000, Currency: "USD"},
			{AccountAddress: revenue.Address, SignedAmount: 1000, Currency: "USD"},
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	cmd := domain.Command{
		InstanceID:   inst.ID,
		Action:       domain.ActionCreateTransaction,
		Source:       "svc-orders",
		SourceIdempk: "order-1",
		Payload:      raw,
		IdempotencyHash: idempotency.Fingerprint([]byte(testSecret), string(domain.ActionCreateTransaction),
			inst.Address, "svc-orders", "order-1", "", ""),
	}

	result := ingestAndDispatch(t, s, d, cmd)
	require.NotNil(t, result.Transaction)
	assert.Equal(t, domain.TransactionPosted, result.Transaction.Status)

	cashAfter, err := s.GetAccountByAddress(ctx, inst.ID, "cash")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), cashAfter.Posted.Amount)

	revenueAfter, err := s.GetAccountByAddress(ctx, inst.ID, "revenue")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), revenueAfter.Posted.Amount)

	links, err := s.Pool().Query(ctx, `
		SELECT kind FROM journal_event_links jel
		JOIN journal_events je ON je.id = jel.journal_event_id
		WHERE je.command_id = (SELECT id FROM commands WHERE instance_id = $1 AND source_idempk = $2)
	`, inst.ID, "order-1")
	require.NoError(t, err)
	defer links.Close()
	kinds := map[domain.JournalLinkKind]int{}
	for links.Next() {
		var k domain.JournalLinkKind
		require.NoError(t, links.Scan(&k))
		kinds[k]++
	}
	assert.Equal(t, 1, kinds[domain.LinkCommand])
	assert.Equal(t, 1, kinds[domain.LinkTransaction])
	assert.Equal(t, 2, kinds[domain.LinkAccount])
}

// Scenario B: a create_transaction that leaves a transaction pending, then
// an update_transaction reusing the SAME (source, source_idempk) with a new
// update_idempk, finalizes it. This is the exact path Comments 1 and 2
// broke: resolving the target by parsing source_idempk as a UUID, and
// matching existing entries' accounts by address instead of id.
func TestUpdateTransactionWorker_FinalizesPendingTransactionByCreateSource(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreForWorker(t)
	publisher := &linkfanout.NoopPublisher{Store: s}
	d := worker.NewDispatcher(s, testCfg(), publisher)

	inst, err := s.CreateInstance(ctx, domain.Instance{Address: "instance-" + uuid.NewString()})
	require.NoError(t, err)

	cash, err := s.CreateAccount(ctx, domain.Account{InstanceID: inst.ID, Address: "cash", Type: domain.AccountAsset, NormalSide: domain.NormalSideForType(domain.AccountAsset), Currency: "USD"})
	require.NoError(t, err)
	revenue, err := s.CreateAccount(ctx, domain.Account{InstanceID: inst.ID, Address: "revenue", Type: domain.AccountRevenue, NormalSide: domain.NormalSideForType(domain.AccountRevenue), Currency: "USD"})
	require.NoError(t, err)

	createPayload := domain.TransactionPayload{
		Status: domain.TransactionPending,
		Entries: []domain.EntryDraft{
			{AccountAddress: cash.Address, SignedAmount: 500, Currency: "USD"},
			{AccountAddress: revenue.Address, SignedAmount: 500, Currency: "USD"},
		},
	}
	createRaw, err := json.Marshal(createPayload)
	require.NoError(t, err)

	const source, sourceIdempk = "svc-orders", "order-arbitrary-client-key"

	createCmd := domain.Command{
		InstanceID:   inst.ID,
		Action:       domain.ActionCreateTransaction,
		Source:       source,
		SourceIdempk: sourceIdempk,
		Payload:      createRaw,
		IdempotencyHash: idempotency.Fingerprint([]byte(testSecret), string(domain.ActionCreateTransaction),
			inst.Address, source, sourceIdempk, "", ""),
	}
	createResult := ingestAndDispatch(t, s, d, createCmd)
	require.NotNil(t, createResult.Transaction)
	assert.Equal(t, domain.TransactionPending, createResult.Transaction.Status)

	cashPending, err := s.GetAccountByAddress(ctx, inst.ID, "cash")
	require.NoError(t, err)
	assert.Equal(t, int64(500), cashPending.Pending.Amount)
	assert.Equal(t, int64(0), cashPending.Posted.Amount)

	updateSource, updateIdempk := "svc-orders", "order-finalize-1"
	updatePayload := domain.TransactionPayload{Status: domain.TransactionPosted}
	updateRaw, err := json.Marshal(updatePayload)
	require.NoError(t, err)

	updateCmd := domain.Command{
		InstanceID:   inst.ID,
		Action:       domain.ActionUpdateTransaction,
		Source:       source,       // same source as the create call
		SourceIdempk: sourceIdempk, // same client idempotency key as the create call
		UpdateSource: &updateSource,
		UpdateIdempk: &updateIdempk,
		Payload:      updateRaw,
		IdempotencyHash: idempotency.Fingerprint([]byte(testSecret), string(domain.ActionUpdateTransaction),
			inst.Address, source, sourceIdempk, updateSource, updateIdempk),
	}
	updateResult := ingestAndDispatch(t, s, d, updateCmd)
	require.NotNil(t, updateResult.Transaction)
	assert.Equal(t, domain.TransactionPosted, updateResult.Transaction.Status)
	assert.Equal(t, createResult.Transaction.ID, updateResult.Transaction.ID)

	cashAfter, err := s.GetAccountByAddress(ctx, inst.ID, "cash")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cashAfter.Pending.Amount, "pending hold must be reversed")
	assert.Equal(t, int64(500), cashAfter.Posted.Amount, "real account must be posted, not a zero-value default")

	revenueAfter, err := s.GetAccountByAddress(ctx, inst.ID, "revenue")
	require.NoError(t, err)
	assert.Equal(t, int64(0), revenueAfter.Pending.Amount)
	assert.Equal(t, int64(500), revenueAfter.Posted.Amount)
}
