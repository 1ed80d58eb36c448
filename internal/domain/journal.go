package domain

import "github.com/google/uuid"

// JournalEvent is the immutable audit row recording a successful
// projection. One per successful command execution.
type JournalEvent struct {
	ID            uuid.UUID
	CommandID     uuid.UUID
	InstanceID    uuid.UUID
	Kind          CommandAction
	InsertedAt    int64
	PayloadDigest string
}

// JournalLinkKind names which link table a fan-out job targets.
type JournalLinkKind string

const (
	LinkCommand     JournalLinkKind = "command"
	LinkTransaction JournalLinkKind = "transaction"
	LinkAccount     JournalLinkKind = "account"
)

// JournalLink is a best-effort fan-out row connecting a JournalEvent to one
// command/transaction/account it touched. Idempotent on
// (journal_event_id, kind, entity_id).
type JournalLink struct {
	JournalEventID uuid.UUID
	Kind           JournalLinkKind
	EntityID       uuid.UUID
}

// BalanceHistoryEntry is an append-only snapshot written on every
// successful balance mutation.
type BalanceHistoryEntry struct {
	AccountID     uuid.UUID
	Posted        Balance
	Pending       Balance
	Available     int64
	TransactionID uuid.UUID
	InsertedAt    int64
}

// PendingTransactionLookup exists iff a transaction is pending with an
// in-flight update command. Guards single-writer semantics for update
// chains; the store layer enforces the uniqueness via a DB constraint, this
// type is just the logical row shape.
type PendingTransactionLookup struct {
	InstanceID    uuid.UUID
	TransactionID uuid.UUID
}
