package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP-facing metrics, shaped the same way as the teacher's middleware pair.
var (
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)
)

// Command pipeline metrics.
var (
	CommandsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_commands_ingested_total",
			Help: "Total number of commands accepted into the pipeline",
		},
		[]string{"action", "mode"}, // mode: sync, enqueue
	)

	DuplicateCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_duplicate_commands_total",
			Help: "Total number of commands rejected as idempotent replays",
		},
		[]string{"action"},
	)

	CommandsClaimedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_commands_claimed_total",
			Help: "Total number of queue items claimed by a tenant processor",
		},
		[]string{"action"},
	)

	CommandsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_commands_processed_total",
			Help: "Total number of command executions by the queue status they settled into",
		},
		[]string{"action", "status"}, // status: processed, failed, occ_timeout, dead_letter
	)

	OCCRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_occ_retries_total",
			Help: "Total number of optimistic concurrency retries attempted by a worker",
		},
		[]string{"action"},
	)

	JournalEventsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_journal_events_written_total",
			Help: "Total number of journal events written",
		},
	)

	QueueDepthGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledger_queue_depth",
			Help: "Current number of queue items by status, as last observed by the monitor tick",
		},
		[]string{"status"},
	)

	LinkFanoutLagGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_link_fanout_lag_seconds",
			Help: "Age of the most recently processed journal link fan-out message when it was processed",
		},
	)

	ActiveTenantProcessorsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_active_tenant_processors",
			Help: "Current number of running per-tenant processors",
		},
	)
)
