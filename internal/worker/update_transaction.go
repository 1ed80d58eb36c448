package worker

import (
	"time"

	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bank-api/internal/config"
	"bank-api/internal/domain"
	"bank-api/internal/linkfanout"
	"bank-api/internal/pkg/telemetry"
	"bank-api/internal/store/postgres"
)

// UpdateTransactionWorker projects an update_transaction command. Per the
// decided design: a pending transaction's entries may only be replaced
// when the same command also finalizes its status to posted or archived.
// A same-status (pending -> pending) update never changes entries or
// balances; the payload carries no metadata to apply. The previous entries' pending holds are reversed before the new
// entries (if any) are applied under the target transition.
type UpdateTransactionWorker struct {
	Store     *postgres.Store
	Cfg       config.LedgerConfig
	Publisher linkfanout.Publisher
}

func (w *UpdateTransactionWorker) Execute(ctx context.Context, cmd domain.Command, item domain.CommandQueueItem) (Result, error) {
	payload, err := postgres.DecodeTransactionPayload(cmd.Payload)
	if err != nil {
		return Result{}, err
	}

	var publishedEvent domain.JournalEvent
	var publishedLinks []domain.JournalLink
	var result domain.Transaction

	err = RetryOCC(ctx, w.Cfg, cmd.Action, func() error {
		return w.Store.WithTx(ctx, func(tx pgx.Tx) error {
			// The target transaction is whatever create_transaction produced
			// for this same (source, source_idempk) pair, never a value the
			// caller can name directly: update_idempk only makes this update
			// itself idempotent.
			targetID, err := w.Store.FindTransactionIDByCreateSource(ctx, tx, cmd.InstanceID, cmd.Source, cmd.SourceIdempk)
			if err != nil {
				return err
			}

			if err := w.Store.ClaimPendingUpdate(ctx, tx, cmd.InstanceID, targetID); err != nil {
				return err
			}
			defer w.Store.ReleasePendingUpdate(ctx, tx, cmd.InstanceID, targetID)

			current, err := w.Store.GetTransactionByID(ctx, tx, cmd.InstanceID, targetID)
			if err != nil {
				return err
			}
			if current.Status != domain.TransactionPending {
				return domain.ErrUpdateTargetNotPending
			}
			if err := domain.ValidateTransition(current.Status, payload.Status); err != nil {
				return err
			}

			finalizing := payload.Status != domain.TransactionPending
			replacingEntries := len(payload.Entries) > 0 && finalizing

			existingIDs := make([]uuid.UUID, 0, len(current.Entries))
			seen := map[uuid.UUID]struct{}{}
			for _, e := range current.Entries {
				if _, ok := seen[e.AccountID]; ok {
					continue
				}
				seen[e.AccountID] = struct{}{}
				existingIDs = append(existingIDs, e.AccountID)
			}

			byID, err := w.Store.GetAccountsByIDs(ctx, tx, cmd.InstanceID, existingIDs)
			if err != nil {
				return err
			}

			var newAccounts map[string]domain.Account
			if replacingEntries {
				addrList := make([]string, len(payload.Entries))
				for i, e := range payload.Entries {
					addrList[i] = e.AccountAddress
				}
				newAccounts, err = w.Store.GetAccountsByAddresses(ctx, tx, cmd.InstanceID, addrList)
				if err != nil {
					return err
				}
				for _, acc := range newAccounts {
					byID[acc.ID] = acc
				}
			}

			working := map[uuid.UUID]domain.Account{}
			get := func(acc domain.Account) domain.Account {
				if prior, ok := working[acc.ID]; ok {
					return prior
				}
				return acc
			}

			if finalizing {
				// Reverse the old entries' pending holds.
				for _, e := range current.Entries {
					acc, ok := byID[e.AccountID]
					if !ok {
						return domain.ErrAccountNotFound
					}
					updated, err := domain.ApplyEntry(acc, e.Type, e.AmountValue, domain.TransitionPendingToArchived)
					if err != nil {
						return err
					}
					working[acc.ID] = updated
					byID[acc.ID] = updated
				}
			}

			var newEntries []domain.Entry
			if replacingEntries {
				infos := map[string]domain.AccountInfo{}
				for addr, acc := range newAccounts {
					infos[addr] = domain.AccountInfo{Address: acc.Address, InstanceID: acc.InstanceID, Currency: acc.Currency, NormalSide: acc.NormalSide}
				}
				resolved := make([]domain.ResolvedEntry, len(payload.Entries))
				likes := make([]domain.EntryLike, len(payload.Entries))
				for i, e := range payload.Entries {
					acc := newAccounts[e.AccountAddress]
					resolved[i] = e.Resolve(acc.NormalSide)
					likes[i] = resolved[i]
				}
				if err := domain.Validate(cmd.InstanceID, likes, infos); err != nil {
					return err
				}

				transition := domain.TransitionPosted
				if payload.Status == domain.TransactionArchived {
					transition = domain.TransitionPendingToArchived
				}
				for _, r := range resolved {
					base := newAccounts[r.AccountAddress]
					updated, err := domain.ApplyEntry(get(base), r.Type, r.AmountValue, transition)
					if err != nil {
						return err
					}
					working[base.ID] = updated
					newEntries = append(newEntries, domain.Entry{
						ID:            uuid.New(),
						TransactionID: targetID,
						AccountID:     updated.ID,
						Type:          r.Type,
						AmountValue:   r.AmountValue,
						Currency:      r.Currency,
					})
				}
			} else if finalizing {
				// No new entries supplied: finalize using the existing ones.
				transition := domain.TransitionPendingToPosted
				if payload.Status == domain.TransactionArchived {
					transition = domain.TransitionPendingToArchived
				}
				for _, e := range current.Entries {
					acc := byID[e.AccountID]
					// undo the archival reversal above, then apply the real transition
					reverted, err := domain.ApplyEntry(working[acc.ID], e.Type, e.AmountValue, domain.TransitionPending)
					if err != nil {
						return err
					}
					updated, err := domain.ApplyEntry(reverted, e.Type, e.AmountValue, transition)
					if err != nil {
						return err
					}
					working[acc.ID] = updated
				}
			}

			if replacingEntries {
				if err := w.Store.ReplaceEntries(ctx, tx, targetID, newEntries); err != nil {
					return err
				}
			}

			var postedAt *int64
			if payload.Status == domain.TransactionPosted {
				now := time.Now().Unix()
				postedAt = &now
			}
			updatedTxn, err := w.Store.UpdateTransactionStatusOCC(ctx, tx, current, payload.Status, postedAt)
			if err != nil {
				return err
			}

			touchedAccounts := make([]uuid.UUID, 0, len(working))
			for id, acc := range working {
				written, err := w.Store.UpdateAccountOCC(ctx, tx, acc)
				if err != nil {
					return err
				}
				working[id] = written
				touchedAccounts = append(touchedAccounts, id)
				if err := w.Store.InsertBalanceHistory(ctx, tx, domain.BalanceHistoryEntry{
					AccountID:     written.ID,
					Posted:        written.Posted,
					Pending:       written.Pending,
					Available:     written.Available,
					TransactionID: targetID,
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
				{JournalEventID: ev.ID, Kind: domain.LinkTransaction, EntityID: targetID},
			}
			for _, accID := range touchedAccounts {
				publishedLinks = append(publishedLinks, domain.JournalLink{JournalEventID: ev.ID, Kind: domain.LinkAccount, EntityID: accID})
			}
			if replacingEntries {
				updatedTxn.Entries = newEntries
			} else {
				updatedTxn.Entries = current.Entries
			}
			result = updatedTxn

			return w.Store.MarkProcessed(ctx, tx, cmd.ID, item.RowVersion)
		})
	})
	if err != nil {
		return Result{}, err
	}

	w.Publisher.Publish(ctx, publishedEvent, publishedLinks)
	return Result{Transaction: &result}, nil
}
