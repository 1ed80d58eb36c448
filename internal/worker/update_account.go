package worker

import (
	"context"

	"github.com/jackc/pgx/v5"

	"bank-api/internal/config"
	"bank-api/internal/domain"
	"bank-api/internal/linkfanout"
	"bank-api/internal/pkg/telemetry"
	"bank-api/internal/store/postgres"
)

// UpdateAccountWorker projects an update_account command: name and
// allow_negative are the only mutable fields. Runs under RetryOCC because
// the lock_version-guarded account write can lose to a concurrent balance
// update; only that stale-row conflict is retried.
type UpdateAccountWorker struct {
	Store     *postgres.Store
	Cfg       config.LedgerConfig
	Publisher linkfanout.Publisher
}

func (w *UpdateAccountWorker) Execute(ctx context.Context, cmd domain.Command, item domain.CommandQueueItem) (Result, error) {
	payload, err := postgres.DecodeAccountPayload(cmd.Payload)
	if err != nil {
		return Result{}, err
	}

	var publishedEvent domain.JournalEvent
	var publishedLinks []domain.JournalLink
	var result domain.Account

	err = RetryOCC(ctx, w.Cfg, cmd.Action, func() error {
		return w.Store.WithTx(ctx, func(tx pgx.Tx) error {
			acc, err := w.Store.GetAccountByAddressTx(ctx, tx, cmd.InstanceID, payload.Address)
			if err != nil {
				return err
			}

			if payload.Name != "" {
				acc.Name = payload.Name
			}
			if payload.AllowNegative != nil {
				acc.AllowNegative = *payload.AllowNegative
				if !acc.AllowNegative && acc.Available < 0 {
					return domain.ErrNegativeAvailable
				}
			}

			written, err := w.Store.UpdateAccountOCC(ctx, tx, acc)
			if err != nil {
				return err
			}

			ev, err := w.Store.InsertJournalEvent(ctx, tx, domain.JournalEvent{
				CommandID:     cmd.ID,
				InstanceID:    cmd.InstanceID,
				Kind:          cmd.Action,
				PayloadDigest: postgres.DigestPayload(cmd.Payload),
			})
			if err != nil {
				return err
			}
			telemetry.JournalEventsWrittenTotal.Inc()

			publishedEvent = ev
			publishedLinks = []domain.JournalLink{
				{JournalEventID: ev.ID, Kind: domain.LinkCommand, EntityID: cmd.ID},
				{JournalEventID: ev.ID, Kind: domain.LinkAccount, EntityID: written.ID},
			}
			result = written

			return w.Store.MarkProcessed(ctx, tx, cmd.ID, item.RowVersion)
		})
	})
	if err != nil {
		return Result{}, err
	}

	w.Publisher.Publish(ctx, publishedEvent, publishedLinks)
	return Result{Account: &result}, nil
}
