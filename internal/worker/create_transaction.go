package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bank-api/internal/config"
	"bank-api/internal/domain"
	"bank-api/internal/linkfanout"
	"bank-api/internal/pkg/telemetry"
	"bank-api/internal/store/postgres"
)

// CreateTransactionWorker projects a create_transaction command: validates
// the balanced entry set against the current account snapshot, applies
// each entry to its account's posted or pending balance depending on the
// requested status, and writes the transaction, its entries, the updated
// accounts, their balance history, and the journal event atomically. The
// journal_event_links fan-out is published after commit, not inside the
// transaction: it is a best-effort side index, not part of the ledger's
// consistency boundary.
type CreateTransactionWorker struct {
	Store     *postgres.Store
	Cfg       config.LedgerConfig
	Publisher linkfanout.Publisher
}

func (w *CreateTransactionWorker) Execute(ctx context.Context, cmd domain.Command, item domain.CommandQueueItem) (Result, error) {
	payload, err := postgres.DecodeTransactionPayload(cmd.Payload)
	if err != nil {
		return Result{}, err
	}

	var publishedEvent domain.JournalEvent
	var publishedLinks []domain.JournalLink
	var result domain.Transaction

	err = RetryOCC(ctx, w.Cfg, cmd.Action, func() error {
		return w.Store.WithTx(ctx, func(tx pgx.Tx) error {
			addresses := make([]string, len(payload.Entries))
			for i, e := range payload.Entries {
				addresses[i] = e.AccountAddress
			}

			accounts, err := w.Store.GetAccountsByAddresses(ctx, tx, cmd.InstanceID, addresses)
			if err != nil {
				return err
			}

			infos := map[string]domain.AccountInfo{}
			for addr, acc := range accounts {
				infos[addr] = domain.AccountInfo{
					Address:    acc.Address,
					InstanceID: acc.InstanceID,
					Currency:   acc.Currency,
					NormalSide: acc.NormalSide,
				}
			}

			resolved := make([]domain.ResolvedEntry, len(payload.Entries))
			likes := make([]domain.EntryLike, len(payload.Entries))
			for i, e := range payload.Entries {
				acc, ok := accounts[e.AccountAddress]
				if !ok {
					resolved[i] = domain.ResolvedEntry{AccountAddress: e.AccountAddress, Currency: e.Currency}
					likes[i] = resolved[i]
					continue
				}
				resolved[i] = e.Resolve(acc.NormalSide)
				likes[i] = resolved[i]
			}

			if err := domain.Validate(cmd.InstanceID, likes, infos); err != nil {
				return err
			}

			transition := domain.TransitionPosted
			var postedAt *int64
			if payload.Status == domain.TransactionPending {
				transition = domain.TransitionPending
			} else {
				now := time.Now().Unix()
				postedAt = &now
			}

			txn := domain.Transaction{
				ID:          uuid.New(),
				InstanceID:  cmd.InstanceID,
				Status:      payload.Status,
				EffectiveAt: time.Now().Unix(),
				PostedAt:    postedAt,
			}
			txn, err = w.Store.InsertTransaction(ctx, tx, txn)
			if err != nil {
				return err
			}

			working := make(map[string]domain.Account, len(accounts))
			for addr, acc := range accounts {
				working[addr] = acc
			}

			for _, r := range resolved {
				acc := working[r.AccountAddress]
				updated, err := domain.ApplyEntry(acc, r.Type, r.AmountValue, transition)
				if err != nil {
					return err
				}
				working[r.AccountAddress] = updated

				entryID := uuid.New()
				if err := w.Store.InsertEntry(ctx, tx, domain.Entry{
					ID:            entryID,
					TransactionID: txn.ID,
					AccountID:     acc.ID,
					Type:          r.Type,
					AmountValue:   r.AmountValue,
					Currency:      r.Currency,
				}); err != nil {
					return err
				}
			}

			touchedAccounts := make([]uuid.UUID, 0, len(working))
			for addr, acc := range working {
				written, err := w.Store.UpdateAccountOCC(ctx, tx, acc)
				if err != nil {
					return err
				}
				working[addr] = written
				touchedAccounts = append(touchedAccounts, written.ID)

				if err := w.Store.InsertBalanceHistory(ctx, tx, domain.BalanceHistoryEntry{
					AccountID:     written.ID,
					Posted:        written.Posted,
					Pending:       written.Pending,
					Available:     written.Available,
					TransactionID: txn.ID,
				}); err != nil {
					return err
				}
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
				{JournalEventID: ev.ID, Kind: domain.LinkTransaction, EntityID: txn.ID},
			}
			for _, accID := range touchedAccounts {
				publishedLinks = append(publishedLinks, domain.JournalLink{JournalEventID: ev.ID, Kind: domain.LinkAccount, EntityID: accID})
			}
			result = txn

			return w.Store.MarkProcessed(ctx, tx, cmd.ID, item.RowVersion)
		})
	})
	if err != nil {
		return Result{}, err
	}

	w.Publisher.Publish(ctx, publishedEvent, publishedLinks)
	return Result{Transaction: &result}, nil
}
