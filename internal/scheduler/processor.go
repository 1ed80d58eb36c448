package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"bank-api/internal/config"
	"bank-api/internal/pkg/logging"
	"bank-api/internal/pkg/telemetry"
	"bank-api/internal/store/postgres"
	"bank-api/internal/worker"
)

// Processor runs one tenant's claim -> dispatch loop: it repeatedly claims
// the oldest claimable queue item for its instance and runs it through the
// worker dispatcher, backing off when there is nothing to claim. Exactly
// one Processor per instance ID runs at a time, enforced by Registry.
type Processor struct {
	instanceID uuid.UUID
	store      *postgres.Store
	dispatcher *worker.Dispatcher
	cfg        config.LedgerConfig

	stop    chan struct{}
	stopped atomic.Bool
}

func NewProcessor(instanceID uuid.UUID, store *postgres.Store, dispatcher *worker.Dispatcher, cfg config.LedgerConfig) *Processor {
	return &Processor{
		instanceID: instanceID,
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
		stop:       make(chan struct{}),
	}
}

func (p *Processor) Stop() {
	if p.stopped.CompareAndSwap(false, true) {
		close(p.stop)
	}
}

func (p *Processor) Stopped() bool {
	return p.stopped.Load()
}

// Run drives the claim/dispatch loop until Stop is called or ctx is
// cancelled. idleAfter consecutive empty claims cause the processor to
// exit and deregister, so the monitor tick can start a fresh one the next
// time this tenant has work.
func (p *Processor) Run(ctx context.Context, idleAfter int, registry *Registry) {
	defer registry.Remove(p.instanceID)
	idle := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		default:
		}

		cmd, item, ok, err := p.store.ClaimNext(ctx, p.instanceID, p.cfg.ProcessorName)
		if err != nil {
			logging.Error("claim failed", err, map[string]interface{}{"instance_id": p.instanceID.String()})
			p.sleep(ctx)
			continue
		}
		if !ok {
			idle++
			if idle >= idleAfter {
				return
			}
			p.sleep(ctx)
			continue
		}
		idle = 0

		telemetry.CommandsClaimedTotal.WithLabelValues(string(cmd.Action)).Inc()
		if _, _, err := worker.RunClaimed(ctx, p.store, p.dispatcher, p.cfg, cmd, item); err != nil {
			logging.Warn("command projection failed", map[string]interface{}{
				"instance_id": p.instanceID.String(),
				"command_id":  cmd.ID.String(),
				"action":      string(cmd.Action),
				"error":       err.Error(),
			})
		}
	}
}

func (p *Processor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-p.stop:
	case <-time.After(p.cfg.PollInterval):
	}
}
