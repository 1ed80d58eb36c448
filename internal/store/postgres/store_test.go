package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-api/internal/domain"
	"bank-api/internal/pkg/idempotency"
)

func seedInstance(t *testing.T, s *Store) domain.Instance {
	t.Helper()
	inst, err := s.CreateInstance(context.Background(), domain.Instance{Address: "instance-" + uuid.NewString()})
	require.NoError(t, err)
	return inst
}

func seedAccount(t *testing.T, s *Store, instanceID uuid.UUID, address string, typ domain.AccountType) domain.Account {
	t.Helper()
	acc, err := s.CreateAccount(context.Background(), domain.Account{
		InstanceID: instanceID,
		Address:    address,
		Type:       typ,
		NormalSide: domain.NormalSideForType(typ),
		Currency:   "USD",
	})
	require.NoError(t, err)
	return acc
}

func fingerprint(action domain.CommandAction, instanceAddress, source, sourceIdempk, updateSource, updateIdempk string) string {
	return idempotency.Fingerprint([]byte("test-secret"), string(action), instanceAddress, source, sourceIdempk, updateSource, updateIdempk)
}

// Invariant 2 (idempotency): a second command with the same identity tuple
// never creates a second row; it is rejected as a DuplicateCommand carrying
// the original's ID.
func TestIngestCommand_DuplicateIsRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inst := seedInstance(t, s)

	hash := fingerprint(domain.ActionCreateAccount, inst.Address, "svc-a", "idem-1", "", "")
	cmd := domain.Command{
		InstanceID:      inst.ID,
		Action:          domain.ActionCreateAccount,
		Source:          "svc-a",
		SourceIdempk:    "idem-1",
		Payload:         []byte(`{}`),
		IdempotencyHash: hash,
	}

	first, err := s.IngestCommand(ctx, cmd)
	require.NoError(t, err)

	cmd.ID = uuid.New() // a distinct physical ID, same logical identity
	_, err = s.IngestCommand(ctx, cmd)
	require.Error(t, err)

	var dup *domain.DuplicateCommand
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID.String(), dup.ExistingCommandID)
}

// Comment 1's fix: update_transaction must resolve its target by the
// create_transaction command's (source, source_idempk), not by parsing
// source_idempk as a UUID.
func TestFindTransactionIDByCreateSource(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inst := seedInstance(t, s)

	_, err := s.FindTransactionIDByCreateSource(ctx, nil, inst.ID, "svc-a", "order-42")
	require.ErrorIs(t, err, domain.ErrUpdateTargetMissing)

	createCmd := domain.Command{
		ID:              uuid.New(),
		InstanceID:      inst.ID,
		Action:          domain.ActionCreateTransaction,
		Source:          "svc-a",
		SourceIdempk:    "order-42",
		Payload:         []byte(`{}`),
		IdempotencyHash: fingerprint(domain.ActionCreateTransaction, inst.Address, "svc-a", "order-42", "", ""),
	}
	_, err = s.IngestCommand(ctx, createCmd)
	require.NoError(t, err)

	txnID := uuid.New()
	err = s.WithTx(ctx, func(tx pgx.Tx) error {
		ev, err := s.InsertJournalEvent(ctx, tx, domain.JournalEvent{
			CommandID:  createCmd.ID,
			InstanceID: inst.ID,
			Kind:       domain.ActionCreateTransaction,
		})
		if err != nil {
			return err
		}
		if err := s.InsertJournalLink(ctx, domain.JournalLink{JournalEventID: ev.ID, Kind: domain.LinkCommand, EntityID: createCmd.ID}); err != nil {
			return err
		}
		return s.InsertJournalLink(ctx, domain.JournalLink{JournalEventID: ev.ID, Kind: domain.LinkTransaction, EntityID: txnID})
	})
	require.NoError(t, err)

	found, err := s.FindTransactionIDByCreateSource(ctx, nil, inst.ID, "svc-a", "order-42")
	require.NoError(t, err)
	assert.Equal(t, txnID, found)

	// A different (source, source_idempk) pair never resolves to it.
	_, err = s.FindTransactionIDByCreateSource(ctx, nil, inst.ID, "svc-a", "order-43")
	require.ErrorIs(t, err, domain.ErrUpdateTargetMissing)
}

// Comment 2's fix: existing entries only carry an account ID, so the
// account batch-fetch for an update_transaction's existing entries must key
// on id, not address.
func TestGetAccountsByIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inst := seedInstance(t, s)

	a1 := seedAccount(t, s, inst.ID, "checking-1", domain.AccountAsset)
	a2 := seedAccount(t, s, inst.ID, "checking-2", domain.AccountAsset)

	byID, err := s.GetAccountsByIDs(ctx, nil, inst.ID, []uuid.UUID{a1.ID, a2.ID})
	require.NoError(t, err)
	require.Len(t, byID, 2)
	assert.Equal(t, a1.Address, byID[a1.ID].Address)
	assert.Equal(t, a2.Address, byID[a2.ID].Address)

	empty, err := s.GetAccountsByIDs(ctx, nil, inst.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// Invariant 5 (single open update): a second update_transaction against the
// same pending transaction while one is already in flight is rejected, not
// raced.
func TestClaimPendingUpdate_RejectsConcurrentClaim(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inst := seedInstance(t, s)
	txnID := uuid.New()

	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		return s.ClaimPendingUpdate(ctx, tx, inst.ID, txnID)
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx pgx.Tx) error {
		return s.ClaimPendingUpdate(ctx, tx, inst.ID, txnID)
	})
	require.ErrorIs(t, err, domain.ErrPendingUpdateInFlight)

	require.NoError(t, s.WithTx(ctx, func(tx pgx.Tx) error {
		return s.ReleasePendingUpdate(ctx, tx, inst.ID, txnID)
	}))

	err = s.WithTx(ctx, func(tx pgx.Tx) error {
		return s.ClaimPendingUpdate(ctx, tx, inst.ID, txnID)
	})
	require.NoError(t, err)
}

// Invariant 4 (OCC): a write against a stale lock_version is rejected
// rather than silently overwriting a concurrent writer's update.
func TestUpdateAccountOCC_RejectsStaleRow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inst := seedInstance(t, s)
	acc := seedAccount(t, s, inst.ID, "vault", domain.AccountAsset)

	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := s.UpdateAccountOCC(ctx, tx, acc)
		return err
	})
	require.NoError(t, err)

	// acc.LockVersion is now stale; writing it again must fail.
	err = s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := s.UpdateAccountOCC(ctx, tx, acc)
		return err
	})
	require.ErrorIs(t, err, domain.ErrStaleRow)
}

// Invariant 6 (at-most-once commit): MarkProcessed is itself OCC-guarded by
// row_version, so a claimed item can only be settled once.
func TestClaimNext_ThenMarkProcessed_IsAtMostOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inst := seedInstance(t, s)

	cmd := domain.Command{
		InstanceID:      inst.ID,
		Action:          domain.ActionCreateAccount,
		Source:          "svc-a",
		SourceIdempk:    "idem-1",
		Payload:         []byte(`{}`),
		IdempotencyHash: fingerprint(domain.ActionCreateAccount, inst.Address, "svc-a", "idem-1", "", ""),
	}
	cmd, err := s.IngestCommand(ctx, cmd)
	require.NoError(t, err)

	claimed, item, ok, err := s.ClaimNext(ctx, inst.ID, "test-processor")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cmd.ID, claimed.ID)

	// A second claim attempt finds nothing: the item is already processing.
	_, _, ok, err = s.ClaimNext(ctx, inst.ID, "test-processor-2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.WithTx(ctx, func(tx pgx.Tx) error {
		return s.MarkProcessed(ctx, tx, cmd.ID, item.RowVersion)
	}))

	// Marking it processed again with the same (now stale) row_version fails.
	err = s.WithTx(ctx, func(tx pgx.Tx) error {
		return s.MarkProcessed(ctx, tx, cmd.ID, item.RowVersion)
	})
	require.ErrorIs(t, err, domain.ErrStaleRow)
}

// Invariant 7 (audit completeness): a successful projection leaves behind a
// journal event and link rows for every entity kind it touched.
func TestJournalEventAndLinks_RecordEveryTouchedEntity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inst := seedInstance(t, s)
	acc := seedAccount(t, s, inst.ID, "vault", domain.AccountAsset)
	cmdID := uuid.New()

	var ev domain.JournalEvent
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		ev, err = s.InsertJournalEvent(ctx, tx, domain.JournalEvent{
			CommandID:  cmdID,
			InstanceID: inst.ID,
			Kind:       domain.ActionCreateAccount,
		})
		return err
	})
	require.NoError(t, err)

	require.NoError(t, s.InsertJournalLink(ctx, domain.JournalLink{JournalEventID: ev.ID, Kind: domain.LinkCommand, EntityID: cmdID}))
	require.NoError(t, s.InsertJournalLink(ctx, domain.JournalLink{JournalEventID: ev.ID, Kind: domain.LinkAccount, EntityID: acc.ID}))

	rows, err := s.Pool().Query(ctx, `SELECT kind, entity_id FROM journal_event_links WHERE journal_event_id = $1 ORDER BY kind`, ev.ID)
	require.NoError(t, err)
	defer rows.Close()

	seen := map[domain.JournalLinkKind]uuid.UUID{}
	for rows.Next() {
		var kind domain.JournalLinkKind
		var entityID uuid.UUID
		require.NoError(t, rows.Scan(&kind, &entityID))
		seen[kind] = entityID
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, cmdID, seen[domain.LinkCommand])
	assert.Equal(t, acc.ID, seen[domain.LinkAccount])
}
