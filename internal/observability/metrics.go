package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for StokVault.
type Metrics struct {
	// --- Vault operations ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec

	// --- Round lifecycle ---
	RoundsStarted    prometheus.Counter
	RoundsCompleted  prometheus.Counter
	PayoutsClaimed   prometheus.Counter
	ViolationsTotal  prometheus.Counter
	PenaltyUnits     *prometheus.CounterVec
	HealthFactorBps  prometheus.Histogram
	CurrentRoundID   prometheus.Gauge
	ActiveMembers    prometheus.Gauge

	// --- Insurance ---
	InsuranceBalance    *prometheus.GaugeVec
	InsuranceDistributed *prometheus.CounterVec

	// --- Event pipeline ---
	EventsEmitted prometheus.Counter
	EventsDropped prometheus.Counter
	PublishErrors prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetry         prometheus.Counter
	PersistLastSequence  prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stok_vault_ops_applied_total",
			Help: "Vault operations applied successfully",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stok_vault_ops_rejected_total",
			Help: "Vault operations rejected (validation, precondition, resource)",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stok_vault_op_duration_seconds",
			Help:    "Time to apply a single vault operation",
			Buckets: opBuckets,
		}, []string{"op"}),

		RoundsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stok_rounds_started_total",
			Help: "Rounds opened",
		}),

		RoundsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stok_rounds_completed_total",
			Help: "Rounds settled",
		}),

		PayoutsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stok_payouts_claimed_total",
			Help: "Pool payouts claimed by recipients",
		}),

		ViolationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stok_violations_total",
			Help: "Health-factor violations recorded at settlement",
		}),

		PenaltyUnits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stok_penalty_units_total",
			Help: "Penalty amounts routed to insurance, base units per asset",
		}, []string{"asset"}),

		HealthFactorBps: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stok_health_factor_bps",
			Help:    "Health factors measured at settlement, basis points",
			Buckets: []float64{1000, 2000, 3000, 4000, 5000, 6000, 7000, 8000, 9000, 9500, 10000},
		}),

		CurrentRoundID: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stok_current_round_id",
			Help: "ID of the most recent round",
		}),

		ActiveMembers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stok_active_members",
			Help: "Active member count",
		}),

		InsuranceBalance: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stok_insurance_balance_units",
			Help: "Insurance pool balance, base units per asset",
		}, []string{"asset"}),

		InsuranceDistributed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stok_insurance_distributed_units_total",
			Help: "Insurance payouts executed, base units per asset",
		}, []string{"asset"}),

		EventsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stok_events_emitted_total",
			Help: "Lifecycle events emitted to the output channel",
		}),

		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stok_events_dropped_total",
			Help: "Lifecycle events dropped because the output channel was full",
		}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stok_publish_errors_total",
			Help: "Outbound publish failures",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stok_persist_events_written_total",
			Help: "Event rows committed to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stok_persist_batch_size",
			Help:    "Events per persistence batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stok_persist_errors_total",
			Help: "Persistence failures by kind",
		}, []string{"kind"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stok_persist_retries_total",
			Help: "Persistence batch retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stok_persist_last_sequence",
			Help: "Last event sequence committed to Postgres",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stok_query_requests_total",
			Help: "Query API requests",
		}, []string{"endpoint"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stok_query_duration_seconds",
			Help:    "Query API latency",
			Buckets: opBuckets,
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stok_query_errors_total",
			Help: "Query API errors",
		}, []string{"endpoint", "kind"}),
	}
}
