package domain

import "github.com/google/uuid"

type CommandAction string

const (
	ActionCreateTransaction CommandAction = "create_transaction"
	ActionUpdateTransaction CommandAction = "update_transaction"
	ActionCreateAccount     CommandAction = "create_account"
	ActionUpdateAccount     CommandAction = "update_account"
)

// TransactionPayload is the inbound shape for create/update_transaction.
type TransactionPayload struct {
	Status  TransactionStatus `json:"status"`
	Entries []EntryDraft      `json:"entries"`
}

// AccountPayload is the inbound shape for create/update_account.
type AccountPayload struct {
	Address       string      `json:"address"`
	Type          AccountType `json:"type"`
	Currency      string      `json:"currency"`
	Name          string      `json:"name,omitempty"`
	AllowNegative *bool       `json:"allow_negative,omitempty"`
}

// Command is an immutable record of an external intent.
type Command struct {
	ID              uuid.UUID
	InstanceID      uuid.UUID
	Action          CommandAction
	Source          string
	SourceIdempk    string
	UpdateIdempk    *string
	UpdateSource    *string
	Payload         []byte // raw JSON, decoded into TransactionPayload/AccountPayload by the worker
	IdempotencyHash string
	InsertedAt      int64
}

type QueueItemStatus string

const (
	QueuePending    QueueItemStatus = "pending"
	QueueProcessing QueueItemStatus = "processing"
	QueueProcessed  QueueItemStatus = "processed"
	QueueFailed     QueueItemStatus = "failed"
	QueueOCCTimeout QueueItemStatus = "occ_timeout"
	QueueDeadLetter QueueItemStatus = "dead_letter"
)

// QueueErrorEntry is one append-only entry in a queue item's error list.
type QueueErrorEntry struct {
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

// CommandQueueItem is the 1:1 scheduling/state record attached to a Command.
type CommandQueueItem struct {
	CommandID              uuid.UUID
	Status                 QueueItemStatus
	RetryCount             int
	NextRetryAfter         *int64
	ProcessorID            *string
	ProcessingStartedAt    *int64
	ProcessingCompletedAt  *int64
	Errors                 []QueueErrorEntry
	RowVersion             int64
}

// ClaimableStatuses lists the queue item statuses eligible for a scheduler
// claim. next_retry_after must also have elapsed for failed/occ_timeout.
var ClaimableStatuses = []QueueItemStatus{QueuePending, QueueOCCTimeout, QueueFailed}

// OnErrorPolicy controls whether a validation failure during worker
// execution is retried or sent straight to dead-letter.
type OnErrorPolicy string

const (
	OnErrorRetry OnErrorPolicy = "retry"
	OnErrorFail  OnErrorPolicy = "fail"
)
