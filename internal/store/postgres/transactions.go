package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bank-api/internal/domain"
)

// InsertTransaction writes the transaction header row inside tx. Entries are
// inserted separately via InsertEntry once each is resolved against its
// account's normal side.
func (s *Store) InsertTransaction(ctx context.Context, tx pgx.Tx, t domain.Transaction) (domain.Transaction, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	metaJSON, err := json.Marshal(t.Metadata)
	if err != nil {
		return domain.Transaction{}, err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (id, instance_id, status, effective_at, posted_at, metadata, lock_version, inserted_at)
		VALUES ($1,$2,$3,$4,$5,$6,0,$7)
	`, t.ID, t.InstanceID, t.Status, t.EffectiveAt, t.PostedAt, metaJSON, time.Now().Unix())
	if err != nil {
		return domain.Transaction{}, translateErr(err)
	}
	return t, nil
}

// InsertEntry writes one resolved entry row.
func (s *Store) InsertEntry(ctx context.Context, tx pgx.Tx, e domain.Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO entries (id, transaction_id, account_id, type, amount, currency)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, e.ID, e.TransactionID, e.AccountID, e.Type, e.AmountValue, e.Currency)
	return err
}

// GetTransactionByID loads a transaction header and its entries, used by
// update_transaction to fetch the current state before validating the
// requested status transition.
func (s *Store) GetTransactionByID(ctx context.Context, db querier, instanceID, id uuid.UUID) (domain.Transaction, error) {
	if db == nil {
		db = s.pool
	}
	var t domain.Transaction
	var metaJSON []byte
	err := db.QueryRow(ctx, `
		SELECT id, instance_id, status, effective_at, posted_at, metadata, lock_version
		FROM transactions WHERE id = $1 AND instance_id = $2
	`, id, instanceID).Scan(&t.ID, &t.InstanceID, &t.Status, &t.EffectiveAt, &t.PostedAt, &metaJSON, &t.LockVersion)
	if err != nil {
		return domain.Transaction{}, translateTransactionErr(err)
	}
	if err := json.Unmarshal(metaJSON, &t.Metadata); err != nil {
		return domain.Transaction{}, err
	}

	rows, err := db.Query(ctx, `
		SELECT id, transaction_id, account_id, type, amount, currency FROM entries WHERE transaction_id = $1
	`, id)
	if err != nil {
		return domain.Transaction{}, translateErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Type, &e.AmountValue, &e.Currency); err != nil {
			return domain.Transaction{}, err
		}
		t.Entries = append(t.Entries, e)
	}
	return t, rows.Err()
}

// UpdateTransactionStatusOCC moves a transaction to a new status, guarded
// by lock_version. It does not touch entries: superseded entries are
// swapped by ReplaceEntries, which update_transaction calls only on the
// same command that finalizes the status to posted or archived.
func (s *Store) UpdateTransactionStatusOCC(ctx context.Context, tx pgx.Tx, t domain.Transaction, to domain.TransactionStatus, postedAt *int64) (domain.Transaction, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE transactions SET status = $1, posted_at = $2, lock_version = lock_version + 1
		WHERE id = $3 AND lock_version = $4
	`, to, postedAt, t.ID, t.LockVersion)
	if err != nil {
		return domain.Transaction{}, translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Transaction{}, domain.ErrStaleRow
	}
	t.Status = to
	t.PostedAt = postedAt
	t.LockVersion++
	return t, nil
}

// ReplaceEntries deletes a pending transaction's current entries and
// inserts the replacements, used only when update_transaction carries new
// entries alongside a posted/archived transition.
func (s *Store) ReplaceEntries(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID, entries []domain.Entry) error {
	if _, err := tx.Exec(ctx, `DELETE FROM entries WHERE transaction_id = $1`, transactionID); err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.InsertEntry(ctx, tx, e); err != nil {
			return err
		}
	}
	return nil
}

// FindTransactionIDByCreateSource resolves the transaction a prior
// create_transaction command produced, by that command's (source,
// source_idempk) pair rather than any ID the caller might guess. This is
// the join an update_transaction command must perform: update_idempk makes
// the update itself idempotent, but source/source_idempk is carried over
// unchanged from the original create call to name which transaction is
// being targeted. Returns domain.ErrUpdateTargetMissing if no matching
// create_transaction ever produced a transaction link.
func (s *Store) FindTransactionIDByCreateSource(ctx context.Context, db querier, instanceID uuid.UUID, source, sourceIdempk string) (uuid.UUID, error) {
	if db == nil {
		db = s.pool
	}
	var id uuid.UUID
	err := db.QueryRow(ctx, `
		SELECT jel.entity_id
		FROM commands c
		JOIN journal_events je ON je.command_id = c.id
		JOIN journal_event_links jel ON jel.journal_event_id = je.id AND jel.kind = 'transaction'
		WHERE c.instance_id = $1 AND c.action = $2 AND c.source = $3 AND c.source_idempk = $4
		ORDER BY je.inserted_at ASC
		LIMIT 1
	`, instanceID, domain.ActionCreateTransaction, source, sourceIdempk).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, domain.ErrUpdateTargetMissing
		}
		return uuid.Nil, translateErr(err)
	}
	return id, nil
}

func translateTransactionErr(err error) error {
	translated := translateErr(err)
	if translated == domain.ErrAccountNotFound {
		return domain.ErrUpdateTargetMissing
	}
	return translated
}
