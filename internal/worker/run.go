package worker

import (
	"context"
	"errors"
	"time"

	"bank-api/internal/config"
	"bank-api/internal/domain"
	"bank-api/internal/pkg/logging"
	"bank-api/internal/pkg/telemetry"
	"bank-api/internal/store/postgres"
)

// RunClaimed dispatches one already-claimed queue item and marks its
// terminal outcome, the logic shared by the scheduler's per-tenant
// processor loop and the HTTP layer's synchronous ingest path. It returns
// the queue status the item settled into, the projected Result on success,
// and the dispatch error, if any, so a caller that needs to report the
// outcome (the sync HTTP handler) doesn't have to re-derive it.
func RunClaimed(ctx context.Context, store *postgres.Store, dispatcher *Dispatcher, cfg config.LedgerConfig, cmd domain.Command, item domain.CommandQueueItem) (domain.QueueItemStatus, Result, error) {
	result, err := dispatcher.Dispatch(ctx, cmd, item)
	if err == nil {
		telemetry.CommandsProcessedTotal.WithLabelValues(string(cmd.Action), string(domain.QueueProcessed)).Inc()
		return domain.QueueProcessed, result, nil
	}

	// The retry delay doubles with each earlier failure of this item,
	// capped at MaxRetryDelay.
	delay := cfg.BaseRetryDelay
	for i := 0; i < item.RetryCount && delay < cfg.MaxRetryDelay; i++ {
		delay *= 2
	}
	if delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}

	if err == OCCRetryExhausted {
		next := time.Now().Add(delay).Unix()
		if markErr := store.MarkOCCTimeout(ctx, cmd.ID, item.RowVersion, &next); markErr != nil {
			logging.Error("mark occ timeout failed", markErr, nil)
		}
		telemetry.CommandsProcessedTotal.WithLabelValues(string(cmd.Action), string(domain.QueueOCCTimeout)).Inc()
		return domain.QueueOCCTimeout, Result{}, err
	}

	policy := domain.OnErrorRetry
	if isBusinessRuleError(err) {
		policy = domain.OnErrorFail
	}
	next := time.Now().Add(delay).Unix()
	if markErr := store.MarkFailed(ctx, cmd.ID, item.RowVersion, err.Error(), policy, cfg.MaxRetries, &next); markErr != nil {
		logging.Error("mark failed failed", markErr, nil)
	}
	status := domain.QueueFailed
	if policy == domain.OnErrorFail || item.RetryCount+1 > cfg.MaxRetries {
		status = domain.QueueDeadLetter
	}
	telemetry.CommandsProcessedTotal.WithLabelValues(string(cmd.Action), string(status)).Inc()
	return status, Result{}, err
}

// isBusinessRuleError reports whether err is a validation/business-rule
// rejection that retrying cannot fix, as opposed to a transient database
// condition.
func isBusinessRuleError(err error) bool {
	for _, target := range []error{
		domain.ErrTooFewEntries, domain.ErrUnbalancedByCurrency, domain.ErrCurrencyMismatch,
		domain.ErrCrossInstance, domain.ErrIllegalTransition, domain.ErrNegativeAvailable,
		domain.ErrUpdateTargetMissing, domain.ErrUpdateTargetNotPending, domain.ErrPendingUpdateInFlight,
		domain.ErrAccountNotFound, domain.ErrActionNotSupported,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
