package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bank-api/internal/domain"
)

// DigestPayload fingerprints a command's raw payload for the journal
// event's payload_digest column, an at-a-glance change detector for
// operators browsing the audit trail; it is not used for idempotency
// (IdempotencyHash already covers that).
func DigestPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// InsertJournalEvent writes the immutable audit row for a successfully
// projected command, inside the same transaction as the projection itself.
func (s *Store) InsertJournalEvent(ctx context.Context, tx pgx.Tx, ev domain.JournalEvent) (domain.JournalEvent, error) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.InsertedAt = time.Now().Unix()
	_, err := tx.Exec(ctx, `
		INSERT INTO journal_events (id, command_id, instance_id, kind, inserted_at, payload_digest)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, ev.ID, ev.CommandID, ev.InstanceID, ev.Kind, ev.InsertedAt, ev.PayloadDigest)
	if err != nil {
		return domain.JournalEvent{}, translateErr(err)
	}
	return ev, nil
}

// InsertJournalLink idempotently records that a journal event touched one
// command/transaction/account. ON CONFLICT DO NOTHING makes the fan-out
// consumer's at-least-once redelivery safe to replay.
func (s *Store) InsertJournalLink(ctx context.Context, link domain.JournalLink) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO journal_event_links (journal_event_id, kind, entity_id)
		VALUES ($1,$2,$3)
		ON CONFLICT DO NOTHING
	`, link.JournalEventID, link.Kind, link.EntityID)
	return translateErr(err)
}

// ListJournalEventsSince pages journal events inserted strictly after the
// given unix time, oldest first, at most limit rows.
func (s *Store) ListJournalEventsSince(ctx context.Context, after int64, limit int) ([]domain.JournalEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, command_id, instance_id, kind, inserted_at, payload_digest
		FROM journal_events WHERE inserted_at > $1 ORDER BY inserted_at ASC LIMIT $2
	`, after, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []domain.JournalEvent
	for rows.Next() {
		var ev domain.JournalEvent
		if err := rows.Scan(&ev.ID, &ev.CommandID, &ev.InstanceID, &ev.Kind, &ev.InsertedAt, &ev.PayloadDigest); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
