package worker

import (
	"context"

	"github.com/jackc/pgx/v5"

	"bank-api/internal/domain"
	"bank-api/internal/linkfanout"
	"bank-api/internal/pkg/telemetry"
	"bank-api/internal/store/postgres"
)

// CreateAccountWorker projects a create_account command. Account creation
// has no balance arithmetic to retry against, so it runs once per attempt
// rather than inside RetryOCC's loop — the only conflict possible is the
// (instance_id, address) unique constraint, which is a validation failure,
// not contention.
type CreateAccountWorker struct {
	Store     *postgres.Store
	Publisher linkfanout.Publisher
}

func (w *CreateAccountWorker) Execute(ctx context.Context, cmd domain.Command, item domain.CommandQueueItem) (Result, error) {
	payload, err := postgres.DecodeAccountPayload(cmd.Payload)
	if err != nil {
		return Result{}, err
	}

	allowNegative := false
	if payload.AllowNegative != nil {
		allowNegative = *payload.AllowNegative
	}

	acc := domain.Account{
		InstanceID:    cmd.InstanceID,
		Address:       payload.Address,
		Name:          payload.Name,
		Type:          payload.Type,
		NormalSide:    domain.NormalSideForType(payload.Type),
		Currency:      payload.Currency,
		AllowNegative: allowNegative,
	}

	created, err := w.Store.CreateAccount(ctx, acc)
	if err != nil {
		return Result{}, err
	}

	var publishedEvent domain.JournalEvent
	var publishedLinks []domain.JournalLink

	err = w.Store.WithTx(ctx, func(tx pgx.Tx) error {
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
			{JournalEventID: ev.ID, Kind: domain.LinkAccount, EntityID: created.ID},
		}

		return w.Store.MarkProcessed(ctx, tx, cmd.ID, item.RowVersion)
	})
	if err != nil {
		return Result{}, err
	}

	w.Publisher.Publish(ctx, publishedEvent, publishedLinks)
	return Result{Account: &created}, nil
}
