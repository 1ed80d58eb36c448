package scheduler

import (
	"context"
	"time"

	"bank-api/internal/config"
	"bank-api/internal/pkg/logging"
	"bank-api/internal/pkg/telemetry"
	"bank-api/internal/store/postgres"
	"bank-api/internal/worker"
)

// Monitor periodically sweeps every instance and, for any that have
// claimable work but no running Processor, starts one. This is the
// cooperative-scheduling half of the pipeline: the monitor never claims
// or dispatches commands itself.
type Monitor struct {
	store      *postgres.Store
	dispatcher *worker.Dispatcher
	registry   *Registry
	cfg        config.LedgerConfig
}

func NewMonitor(store *postgres.Store, dispatcher *worker.Dispatcher, registry *Registry, cfg config.LedgerConfig) *Monitor {
	return &Monitor{store: store, dispatcher: dispatcher, registry: registry, cfg: cfg}
}

// Run ticks every cfg.PollInterval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	instances, err := m.store.ListInstances(ctx)
	if err != nil {
		logging.Error("monitor: list instances failed", err, nil)
		return
	}

	for _, inst := range instances {
		hasWork, err := m.store.HasClaimableWork(ctx, inst.ID)
		if err != nil {
			logging.Error("monitor: claimable check failed", err, map[string]interface{}{"instance_id": inst.ID.String()})
			continue
		}
		if !hasWork {
			continue
		}

		instanceID := inst.ID
		m.registry.EnsureRunning(instanceID, func() *Processor {
			p := NewProcessor(instanceID, m.store, m.dispatcher, m.cfg)
			go p.Run(ctx, 3, m.registry)
			return p
		})
	}

	telemetry.ActiveTenantProcessorsGauge.Set(float64(m.registry.Count()))

	depths, err := m.store.QueueDepthByStatus(ctx)
	if err != nil {
		return
	}
	for status, count := range depths {
		telemetry.QueueDepthGauge.WithLabelValues(string(status)).Set(float64(count))
	}
}
