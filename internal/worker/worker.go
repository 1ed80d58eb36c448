package worker

import (
	"context"
	"errors"
	"time"

	"bank-api/internal/config"
	"bank-api/internal/domain"
	"bank-api/internal/pkg/telemetry"
)

// Worker executes exactly one command action's projection. Implementations
// are pure orchestration: read, apply domain rules, write, all inside a
// single database transaction built by the store layer.
type Worker interface {
	Execute(ctx context.Context, cmd domain.Command, item domain.CommandQueueItem) (Result, error)
}

// Result carries the entity a command projected, so a synchronous caller
// (the HTTP ingest handler) can return it alongside the command instead of
// just an outcome status. Exactly one of Transaction/Account is set on a
// successful Execute; both are nil on error.
type Result struct {
	Transaction *domain.Transaction
	Account     *domain.Account
}

// OCCRetryExhausted marks that a worker's bounded retry budget elapsed
// without a clean write, distinct from a business-rule rejection.
var OCCRetryExhausted = errors.New("optimistic concurrency retry budget exhausted")

// RetryOCC runs attempt up to cfg.MaxRetries times, retrying only on
// domain.ErrStaleRow with exponential backoff bounded by MaxRetryDelay.
// Any other error, including a business-rule rejection, returns
// immediately without retrying.
func RetryOCC(ctx context.Context, cfg config.LedgerConfig, action domain.CommandAction, attempt func() error) error {
	delay := cfg.BaseRetryDelay

	for i := 0; i < cfg.MaxRetries; i++ {
		err := attempt()
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrStaleRow) {
			return err
		}

		telemetry.OCCRetriesTotal.WithLabelValues(string(action)).Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > cfg.MaxRetryDelay {
			delay = cfg.MaxRetryDelay
		}
	}

	return OCCRetryExhausted
}
