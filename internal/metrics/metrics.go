// Package metrics declares the Prometheus instruments of the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firstpulse_operations_total",
			Help: "Engine operations by name and outcome code",
		},
		[]string{"operation", "code"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "firstpulse_operation_duration_seconds",
			Help:    "Duration of engine operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	BatchRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firstpulse_batch_records_total",
			Help: "Records allocated into generated batches by source type",
		},
		[]string{"source"},
	)

	DuplicatesAvoided = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "firstpulse_duplicates_avoided_total",
			Help: "Candidates dropped by owner deduplication",
		},
	)

	CadenceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firstpulse_cadence_transitions_total",
			Help: "Cooldown entries and exits",
		},
		[]string{"transition"},
	)

	SkipTraceRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "firstpulse_skip_trace_records_total",
			Help: "Records sent for skip-trace enrichment",
		},
	)

	WalletDebitCents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "firstpulse_wallet_debit_cents_total",
			Help: "Skip-trace charges in cents",
		},
	)

	ScheduledRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firstpulse_scheduled_runs_total",
			Help: "Scheduled jobs by job name and result",
		},
		[]string{"job", "result"},
	)
)
