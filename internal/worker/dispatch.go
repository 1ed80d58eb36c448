package worker

import (
	"context"

	"bank-api/internal/config"
	"bank-api/internal/domain"
	"bank-api/internal/linkfanout"
	"bank-api/internal/store/postgres"
)

// Dispatcher routes a claimed command to the Worker registered for its
// action.
type Dispatcher struct {
	workers map[domain.CommandAction]Worker
}

// NewDispatcher wires every supported command action to its worker.
func NewDispatcher(store *postgres.Store, cfg config.LedgerConfig, publisher linkfanout.Publisher) *Dispatcher {
	return &Dispatcher{
		workers: map[domain.CommandAction]Worker{
			domain.ActionCreateTransaction: &CreateTransactionWorker{Store: store, Cfg: cfg, Publisher: publisher},
			domain.ActionUpdateTransaction: &UpdateTransactionWorker{Store: store, Cfg: cfg, Publisher: publisher},
			domain.ActionCreateAccount:     &CreateAccountWorker{Store: store, Publisher: publisher},
			domain.ActionUpdateAccount:     &UpdateAccountWorker{Store: store, Cfg: cfg, Publisher: publisher},
		},
	}
}

// Dispatch resolves and runs the worker for cmd.Action, or
// domain.ErrActionNotSupported if none is registered.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd domain.Command, item domain.CommandQueueItem) (Result, error) {
	w, ok := d.workers[cmd.Action]
	if !ok {
		return Result{}, domain.ErrActionNotSupported
	}
	return w.Execute(ctx, cmd, item)
}
