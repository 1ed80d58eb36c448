package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bank-api/internal/domain"
)

// IngestCommand inserts a command and its 1:1 queue item in a single
// transaction, keyed on the precomputed idempotency hash. A unique
// constraint conflict on idempotency_hash is translated into
// domain.DuplicateCommand carrying the pre-existing command's ID, so the
// caller can look up and return its original result instead of erroring.
func (s *Store) IngestCommand(ctx context.Context, cmd domain.Command) (domain.Command, error) {
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}
	cmd.InsertedAt = time.Now().Unix()

	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO commands (id, instance_id, action, source, source_idempk, update_source, update_idempk, payload, idempotency_hash, inserted_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, cmd.ID, cmd.InstanceID, cmd.Action, cmd.Source, cmd.SourceIdempk, cmd.UpdateSource, cmd.UpdateIdempk,
			cmd.Payload, cmd.IdempotencyHash, cmd.InsertedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO command_queue_items (command_id, status, retry_count, errors, row_version)
			VALUES ($1, $2, 0, '[]', 0)
		`, cmd.ID, domain.QueuePending)
		return err
	})
	if err != nil {
		if existingID, dup := s.existingCommandForHash(ctx, cmd.IdempotencyHash, err); dup {
			return domain.Command{}, &domain.DuplicateCommand{ExistingCommandID: existingID}
		}
		return domain.Command{}, translateErr(err)
	}
	return cmd, nil
}

func (s *Store) existingCommandForHash(ctx context.Context, hash string, writeErr error) (string, bool) {
	if !isUniqueViolation(writeErr) {
		return "", false
	}
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT id FROM commands WHERE idempotency_hash = $1`, hash).Scan(&id)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// GetCommandByID loads a command for replay lookups (DuplicateCommand
// responses) and worker dispatch.
func (s *Store) GetCommandByID(ctx context.Context, id uuid.UUID) (domain.Command, error) {
	var cmd domain.Command
	err := s.pool.QueryRow(ctx, `
		SELECT id, instance_id, action, source, source_idempk, update_source, update_idempk, payload, idempotency_hash, inserted_at
		FROM commands WHERE id = $1
	`, id).Scan(&cmd.ID, &cmd.InstanceID, &cmd.Action, &cmd.Source, &cmd.SourceIdempk, &cmd.UpdateSource, &cmd.UpdateIdempk,
		&cmd.Payload, &cmd.IdempotencyHash, &cmd.InsertedAt)
	if err != nil {
		return domain.Command{}, translateErr(err)
	}
	return cmd, nil
}

// DecodeTransactionPayload unmarshals a command's raw payload for the
// create/update_transaction workers.
func DecodeTransactionPayload(raw []byte) (domain.TransactionPayload, error) {
	var p domain.TransactionPayload
	err := json.Unmarshal(raw, &p)
	return p, err
}

// DecodeAccountPayload unmarshals a command's raw payload for the
// create/update_account workers.
func DecodeAccountPayload(raw []byte) (domain.AccountPayload, error) {
	var p domain.AccountPayload
	err := json.Unmarshal(raw, &p)
	return p, err
}
