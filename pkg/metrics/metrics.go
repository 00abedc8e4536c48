package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring a batch run
var (
	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairlauncher_items_processed_total",
		Help: "The total number of work items processed by terminal status",
	}, []string{"status"})

	ItemProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pairlauncher_item_processing_seconds",
		Help:    "Time taken to run the saga of one work item",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // Start at 1s with 10 buckets doubling in size
	}, []string{"status"})

	StepAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairlauncher_step_attempts_total",
		Help: "Attempts made per saga step",
	}, []string{"step"})

	GasUsed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pairlauncher_gas_used",
		Help:    "Gas used by confirmed writes",
		Buckets: prometheus.ExponentialBuckets(21000, 2, 10), // Start at 21000 with 10 buckets doubling in size
	}, []string{"step"})

	FeeRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pairlauncher_fee_rate_gwei",
		Help: "Last buffered fee rate in gwei by operation class",
	}, []string{"class"})

	FeeFloorUsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pairlauncher_fee_floor_used_total",
		Help: "Number of estimates that fell back to the configured floor",
	})

	InFlightOperations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairlauncher_in_flight_operations",
		Help: "Unconfirmed writes of the submitting identity seen before the batch started",
	})

	Retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairlauncher_retries_total",
		Help: "Retries scheduled after transient errors",
	}, []string{"step", "error_kind"})

	MaxRetriesReached = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairlauncher_max_retries_reached_total",
		Help: "Operations that exhausted their attempt budget",
	}, []string{"step", "error_kind"})

	ItemErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairlauncher_item_errors_total",
		Help: "Failed work items by step and error kind",
	}, []string{"step", "error_kind"})
)
