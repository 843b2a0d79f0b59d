package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Pipeline metrics
	RunsStarted   prometheus.Counter
	RunsCompleted prometheus.Counter
	RunsFailed    *prometheus.CounterVec
	RunDuration   prometheus.Histogram

	// Event metrics
	EventsNormalized     prometheus.Counter
	EventsUnclassifiable prometheus.Counter
	EventsUnpriced       prometheus.Counter
	AssetsAborted        *prometheus.CounterVec

	// Ledger metrics
	EntriesPosted    prometheus.Counter
	DisposalsMatched prometheus.Counter
	LotsOpened       prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Oracle metrics
	OracleLookups  *prometheus.CounterVec
	OracleDuration prometheus.Histogram
	PriceCacheHits *prometheus.CounterVec

	// Database metrics
	DBQueries     *prometheus.CounterVec
	DBErrors      *prometheus.CounterVec
	DBConnections prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainbooks_runs_started_total",
			Help: "Total number of pipeline runs started",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainbooks_runs_completed_total",
			Help: "Total number of pipeline runs completed",
		}),
		RunsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainbooks_runs_failed_total",
				Help: "Total number of failed pipeline runs by error type",
			},
			[]string{"error_type"},
		),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainbooks_run_duration_seconds",
			Help:    "Duration of pipeline runs",
			Buckets: prometheus.DefBuckets,
		}),

		EventsNormalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainbooks_events_normalized_total",
			Help: "Total number of raw records normalized into events",
		}),
		EventsUnclassifiable: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainbooks_events_unclassifiable_total",
			Help: "Total number of events excluded as unclassifiable",
		}),
		EventsUnpriced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainbooks_events_unpriced_total",
			Help: "Total number of events processed without a USD price",
		}),
		AssetsAborted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainbooks_assets_aborted_total",
				Help: "Total number of per-asset aborts by asset",
			},
			[]string{"asset"},
		),

		EntriesPosted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainbooks_entries_posted_total",
			Help: "Total number of ledger entries posted",
		}),
		DisposalsMatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainbooks_disposals_matched_total",
			Help: "Total number of disposals matched against lots",
		}),
		LotsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainbooks_lots_opened_total",
			Help: "Total number of acquisition lots opened",
		}),

		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainbooks_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chainbooks_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		OracleLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainbooks_oracle_lookups_total",
				Help: "Total price oracle lookups by outcome",
			},
			[]string{"outcome"},
		),
		OracleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainbooks_oracle_duration_seconds",
			Help:    "Price oracle lookup duration",
			Buckets: prometheus.DefBuckets,
		}),
		PriceCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainbooks_price_cache_total",
				Help: "Price cache lookups by outcome",
			},
			[]string{"outcome"},
		),

		DBQueries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainbooks_db_queries_total",
				Help: "Total database queries",
			},
			[]string{"operation", "table"},
		),
		DBErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainbooks_db_errors_total",
				Help: "Total database errors",
			},
			[]string{"operation"},
		),
		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chainbooks_db_connections",
			Help: "Current number of database connections",
		}),
	}
}
