package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"bank-api/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the methods
// below work whether called standalone or inside a worker's WithTx block.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `
	id, instance_id, address, name, type, normal_side, currency, allow_negative,
	posted_debit, posted_credit, posted_amount,
	pending_debit, pending_credit, pending_amount,
	available, lock_version
`

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID, &a.InstanceID, &a.Address, &a.Name, &a.Type, &a.NormalSide, &a.Currency, &a.AllowNegative,
		&a.Posted.Debit, &a.Posted.Credit, &a.Posted.Amount,
		&a.Pending.Debit, &a.Pending.Credit, &a.Pending.Amount,
		&a.Available, &a.LockVersion,
	)
	return a, err
}

// CreateAccount inserts a zero-balance account. Type determines NormalSide
// per domain.NormalSideForType; callers are expected to have set it already
// (the create_account worker does this before calling in).
func (s *Store) CreateAccount(ctx context.Context, acc domain.Account) (domain.Account, error) {
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, instance_id, address, name, type, normal_side, currency, allow_negative,
			posted_debit, posted_credit, posted_amount,
			pending_debit, pending_credit, pending_amount,
			available, lock_version, inserted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8, 0,0,0, 0,0,0, 0, 0, $9)
	`, acc.ID, acc.InstanceID, acc.Address, acc.Name, acc.Type, acc.NormalSide, acc.Currency, acc.AllowNegative,
		time.Now().Unix())
	if err != nil {
		return domain.Account{}, translateErr(err)
	}
	return s.GetAccountByAddress(ctx, acc.InstanceID, acc.Address)
}

// GetAccountByAddress fetches the current row, including lock_version, for
// an OCC compare-and-swap read-modify-write cycle.
func (s *Store) GetAccountByAddress(ctx context.Context, instanceID uuid.UUID, address string) (domain.Account, error) {
	return getAccountByAddress(ctx, s.pool, instanceID, address)
}

func getAccountByAddress(ctx context.Context, db querier, instanceID uuid.UUID, address string) (domain.Account, error) {
	row := db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts WHERE instance_id = $1 AND address = $2
	`, instanceID, address)
	acc, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, translateErr(err)
	}
	return acc, nil
}

// GetAccountByAddressTx is GetAccountByAddress scoped to a worker's
// in-flight transaction, so an update_account projection reads and writes
// against the same snapshot.
func (s *Store) GetAccountByAddressTx(ctx context.Context, tx pgx.Tx, instanceID uuid.UUID, address string) (domain.Account, error) {
	return getAccountByAddress(ctx, tx, instanceID, address)
}

// GetAccountsByAddresses batch-fetches every account referenced by a
// transaction's entries in one round trip, the read the domain validator's
// AccountInfo map is built from. Pass a tx when called from inside a
// worker's WithTx block so the read and the later OCC write observe the
// same snapshot.
func (s *Store) GetAccountsByAddresses(ctx context.Context, db querier, instanceID uuid.UUID, addresses []string) (map[string]domain.Account, error) {
	if db == nil {
		db = s.pool
	}
	rows, err := db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts WHERE instance_id = $1 AND address = ANY($2)
	`, instanceID, addresses)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	out := map[string]domain.Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[acc.Address] = acc
	}
	return out, rows.Err()
}

// GetAccountsByIDs batch-fetches accounts by their primary key, the lookup
// update_transaction needs for a pending transaction's existing entries:
// those only carry the account's ID, never its address.
func (s *Store) GetAccountsByIDs(ctx context.Context, db querier, instanceID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]domain.Account, error) {
	if db == nil {
		db = s.pool
	}
	if len(ids) == 0 {
		return map[uuid.UUID]domain.Account{}, nil
	}
	rows, err := db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts WHERE instance_id = $1 AND id = ANY($2)
	`, instanceID, ids)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	out := map[uuid.UUID]domain.Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[acc.ID] = acc
	}
	return out, rows.Err()
}

// UpdateAccountOCC writes the account's balances back only if lock_version
// still matches the value the caller read. Returns domain.ErrStaleRow on a
// conflicting concurrent writer, the condition the worker's bounded retry
// loop watches for. Always called inside a worker's WithTx block so the
// balance write and the balance_history_entries append commit together.
func (s *Store) UpdateAccountOCC(ctx context.Context, tx pgx.Tx, acc domain.Account) (domain.Account, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE accounts SET
			name = $1, allow_negative = $2,
			posted_debit = $3, posted_credit = $4, posted_amount = $5,
			pending_debit = $6, pending_credit = $7, pending_amount = $8,
			available = $9, lock_version = lock_version + 1
		WHERE id = $10 AND lock_version = $11
	`, acc.Name, acc.AllowNegative,
		acc.Posted.Debit, acc.Posted.Credit, acc.Posted.Amount,
		acc.Pending.Debit, acc.Pending.Credit, acc.Pending.Amount,
		acc.Available, acc.ID, acc.LockVersion)
	if err != nil {
		return domain.Account{}, translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Account{}, domain.ErrStaleRow
	}
	acc.LockVersion++
	return acc, nil
}

// InsertBalanceHistory appends one immutable snapshot row, written in the
// same transaction as the account/entry mutation it documents.
func (s *Store) InsertBalanceHistory(ctx context.Context, tx pgx.Tx, entry domain.BalanceHistoryEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO balance_history_entries (
			account_id, posted_debit, posted_credit, posted_amount,
			pending_debit, pending_credit, pending_amount,
			available, transaction_id, inserted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, entry.AccountID, entry.Posted.Debit, entry.Posted.Credit, entry.Posted.Amount,
		entry.Pending.Debit, entry.Pending.Credit, entry.Pending.Amount,
		entry.Available, entry.TransactionID, time.Now().Unix())
	return err
}

// ListBalanceHistory pages through an account's append-only history, newest
// first.
func (s *Store) ListBalanceHistory(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.BalanceHistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT account_id, posted_debit, posted_credit, posted_amount,
		       pending_debit, pending_credit, pending_amount,
		       available, transaction_id, inserted_at
		FROM balance_history_entries
		WHERE account_id = $1
		ORDER BY inserted_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []domain.BalanceHistoryEntry
	for rows.Next() {
		var e domain.BalanceHistoryEntry
		if err := rows.Scan(
			&e.AccountID, &e.Posted.Debit, &e.Posted.Credit, &e.Posted.Amount,
			&e.Pending.Debit, &e.Pending.Credit, &e.Pending.Amount,
			&e.Available, &e.TransactionID, &e.InsertedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
