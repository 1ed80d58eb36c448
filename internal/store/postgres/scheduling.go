package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bank-api/internal/domain"
)

// ClaimNext atomically claims the oldest claimable queue item for an
// instance: pending, or failed/occ_timeout whose next_retry_after has
// elapsed. The UPDATE ... RETURNING makes the claim itself the compare-
// and-swap, so two processors racing on the same instance (which should
// never happen under the single-writer-per-tenant registry, but is not
// assumed away here) cannot both win.
func (s *Store) ClaimNext(ctx context.Context, instanceID uuid.UUID, processorID string) (domain.Command, domain.CommandQueueItem, bool, error) {
	now := time.Now().Unix()
	var cmd domain.Command
	var item domain.CommandQueueItem
	var errorsJSON []byte

	err := s.pool.QueryRow(ctx, `
		UPDATE command_queue_items q
		SET status = $1, processor_id = $2, processing_started_at = $3, row_version = row_version + 1
		FROM commands c
		WHERE q.command_id = c.id
		  AND c.instance_id = $4
		  AND q.status = ANY($5)
		  AND (q.next_retry_after IS NULL OR q.next_retry_after <= $3)
		  AND q.command_id = (
		      SELECT q2.command_id FROM command_queue_items q2
		      JOIN commands c2 ON c2.id = q2.command_id
		      WHERE c2.instance_id = $4
		        AND q2.status = ANY($5)
		        AND (q2.next_retry_after IS NULL OR q2.next_retry_after <= $3)
		      ORDER BY c2.inserted_at ASC
		      LIMIT 1
		      FOR UPDATE SKIP LOCKED
		  )
		RETURNING c.id, c.instance_id, c.action, c.source, c.source_idempk, c.update_source, c.update_idempk,
		          c.payload, c.idempotency_hash, c.inserted_at,
		          q.command_id, q.status, q.retry_count, q.next_retry_after, q.processor_id,
		          q.processing_started_at, q.processing_completed_at, q.errors, q.row_version
	`, domain.QueueProcessing, processorID, now, instanceID, domain.ClaimableStatuses).Scan(
		&cmd.ID, &cmd.InstanceID, &cmd.Action, &cmd.Source, &cmd.SourceIdempk, &cmd.UpdateSource, &cmd.UpdateIdempk,
		&cmd.Payload, &cmd.IdempotencyHash, &cmd.InsertedAt,
		&item.CommandID, &item.Status, &item.RetryCount, &item.NextRetryAfter, &item.ProcessorID,
		&item.ProcessingStartedAt, &item.ProcessingCompletedAt, &errorsJSON, &item.RowVersion,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Command{}, domain.CommandQueueItem{}, false, nil
		}
		return domain.Command{}, domain.CommandQueueItem{}, false, translateErr(err)
	}
	if err := json.Unmarshal(errorsJSON, &item.Errors); err != nil {
		return domain.Command{}, domain.CommandQueueItem{}, false, err
	}
	return cmd, item, true, nil
}

// MarkProcessed terminates a queue item successfully.
func (s *Store) MarkProcessed(ctx context.Context, tx pgx.Tx, commandID uuid.UUID, rowVersion int64) error {
	now := time.Now().Unix()
	tag, err := tx.Exec(ctx, `
		UPDATE command_queue_items
		SET status = $1, processing_completed_at = $2, row_version = row_version + 1
		WHERE command_id = $3 AND row_version = $4
	`, domain.QueueProcessed, now, commandID, rowVersion)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleRow
	}
	return nil
}

// MarkFailed appends an error entry and either schedules a retry at the
// caller-supplied nextRetryAfter (RunClaimed passes an exponential backoff)
// or moves the item to dead_letter, depending on policy and whether
// max_retries has been exhausted.
func (s *Store) MarkFailed(ctx context.Context, commandID uuid.UUID, rowVersion int64, message string, policy domain.OnErrorPolicy, maxRetries int, nextRetryAfter *int64) error {
	now := time.Now().Unix()
	entry := domain.QueueErrorEntry{Timestamp: now, Message: message}

	var status domain.QueueItemStatus
	switch {
	case policy == domain.OnErrorFail:
		status = domain.QueueDeadLetter
	default:
		status = domain.QueueFailed
	}

	errJSON, err := json.Marshal([]domain.QueueErrorEntry{entry})
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE command_queue_items
		SET status = $1, retry_count = retry_count + 1, next_retry_after = $2,
		    errors = errors || $3::jsonb, row_version = row_version + 1
		WHERE command_id = $4 AND row_version = $5
	`, status, nextRetryAfter, errJSON, commandID, rowVersion)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleRow
	}

	if status == domain.QueueFailed {
		_, err := s.pool.Exec(ctx, `
			UPDATE command_queue_items SET status = $1
			WHERE command_id = $2 AND retry_count > $3
		`, domain.QueueDeadLetter, commandID, maxRetries)
		if err != nil {
			return translateErr(err)
		}
	}
	return nil
}

// MarkOCCTimeout records that a worker exhausted its OCC retry budget
// without a stale-row conflict resolving, distinct from a business-rule
// MarkFailed so operators can tell contention from bad input.
func (s *Store) MarkOCCTimeout(ctx context.Context, commandID uuid.UUID, rowVersion int64, nextRetryAfter *int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE command_queue_items
		SET status = $1, retry_count = retry_count + 1, next_retry_after = $2, row_version = row_version + 1
		WHERE command_id = $3 AND row_version = $4
	`, domain.QueueOCCTimeout, nextRetryAfter, commandID, rowVersion)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleRow
	}
	return nil
}

// QueueDepthByStatus powers the monitor tick's queue-depth gauge: it
// returns a count per status across all tenants.
func (s *Store) QueueDepthByStatus(ctx context.Context) (map[domain.QueueItemStatus]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM command_queue_items GROUP BY status`)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	out := map[domain.QueueItemStatus]int64{}
	for rows.Next() {
		var status domain.QueueItemStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[status] = count
	}
	return out, rows.Err()
}

// HasClaimableWork reports whether an instance currently has any queue item
// eligible for a claim, the cheap check the monitor tick uses to decide
// whether to (re)start a tenant processor.
func (s *Store) HasClaimableWork(ctx context.Context, instanceID uuid.UUID) (bool, error) {
	now := time.Now().Unix()
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM command_queue_items q
			JOIN commands c ON c.id = q.command_id
			WHERE c.instance_id = $1
			  AND q.status = ANY($2)
			  AND (q.next_retry_after IS NULL OR q.next_retry_after <= $3)
		)
	`, instanceID, domain.ClaimableStatuses, now).Scan(&exists)
	if err != nil {
		return false, translateErr(err)
	}
	return exists, nil
}
