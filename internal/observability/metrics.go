package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the fund ledger.
type Metrics struct {
	// --- Engine ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec
	Journals    *prometheus.CounterVec
	Sequence    prometheus.Gauge

	// --- Fund state ---
	FundNav    *prometheus.GaugeVec
	FundSupply *prometheus.GaugeVec
	FundsTotal prometheus.Gauge

	// --- Channel & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistBatchDur        prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge

	// --- Snapshot & replay ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge
	ReplayEventsTotal prometheus.Counter

	// --- Scheduler ---
	RebalanceSignals *prometheus.CounterVec
	RebalanceScanDur prometheus.Histogram

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fund_ops_applied_total",
			Help: "Operations successfully applied by the engine",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fund_ops_rejected_total",
			Help: "Operations rejected by validation",
		}, []string{"op", "code"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fund_op_apply_duration_seconds",
			Help:    "Time to apply a single operation",
			Buckets: latencyBuckets,
		}, []string{"op"}),

		Journals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fund_journals_generated_total",
			Help: "Share-register journal rows generated",
		}, []string{"journal_type"}),

		Sequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fund_sequence",
			Help: "Current global event sequence",
		}),

		FundNav: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fund_nav_base_units",
			Help: "Fund total value in base settlement units",
		}, []string{"fund_id"}),

		FundSupply: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fund_shares_outstanding",
			Help: "Fund outstanding share supply",
		}, []string{"fund_id"}),

		FundsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fund_funds_total",
			Help: "Number of funds created",
		}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fund_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fund_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fund_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fund_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fund_persist_events_written_total",
			Help: "Event rows committed to Postgres",
		}),

		PersistJournalsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fund_persist_journals_written_total",
			Help: "Journal rows committed to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fund_persist_batch_size",
			Help:    "Events per persisted batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fund_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fund_persist_errors_total",
			Help: "Postgres write errors by kind",
		}, []string{"kind"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fund_persist_retry_total",
			Help: "Persistence batch retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fund_persist_last_sequence",
			Help: "Highest sequence durably committed",
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fund_snapshot_taken_total",
			Help: "Snapshots written",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fund_snapshot_duration_seconds",
			Help:    "Snapshot serialization and write duration",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fund_snapshot_size_bytes",
			Help: "Size of the last snapshot",
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fund_snapshot_last_sequence",
			Help: "Sequence of the last snapshot",
		}),

		ReplayEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fund_replay_events_total",
			Help: "Events replayed during recovery",
		}),

		RebalanceSignals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fund_rebalance_signals_total",
			Help: "Drift signals emitted by the rebalance monitor",
		}, []string{"fund_id"}),

		RebalanceScanDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fund_rebalance_scan_duration_seconds",
			Help:    "Full drift scan duration",
			Buckets: latencyBuckets,
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fund_query_requests_total",
			Help: "Query API requests",
		}, []string{"endpoint"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fund_query_duration_seconds",
			Help:    "Query API request duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fund_query_errors_total",
			Help: "Query API errors",
		}, []string{"endpoint", "code"}),
	}
}
