package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bank-api/internal/domain"
)

// ClaimPendingUpdate inserts a pending_transaction_lookup row inside tx,
// guarded by the table's primary key. A conflict means another update
// command is already in flight against this pending transaction, surfaced
// as domain.ErrPendingUpdateInFlight so the worker fails the command
// instead of racing a second writer onto the same entries.
func (s *Store) ClaimPendingUpdate(ctx context.Context, tx pgx.Tx, instanceID, transactionID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO pending_transaction_lookup (instance_id, transaction_id) VALUES ($1, $2)
	`, instanceID, transactionID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPendingUpdateInFlight
		}
		return translateErr(err)
	}
	return nil
}

// ReleasePendingUpdate removes the claim once the update_transaction
// command reaches a terminal outcome (success or failure), whether or not
// the transaction's status actually changed.
func (s *Store) ReleasePendingUpdate(ctx context.Context, tx pgx.Tx, instanceID, transactionID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM pending_transaction_lookup WHERE instance_id = $1 AND transaction_id = $2
	`, instanceID, transactionID)
	return err
}
