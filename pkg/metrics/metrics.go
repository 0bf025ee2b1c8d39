package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Change feed metrics
	EventsApplied    *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
	FeedResyncs      prometheus.Counter
	BulkLoadFailures *prometheus.CounterVec

	// Mutation gateway metrics
	PendingMutations prometheus.Gauge
	WriteFailures    *prometheus.CounterVec
	EchoLatency      prometheus.Histogram

	// Record store metrics
	StoreOperations *prometheus.CounterVec

	// Feed relay metrics
	RelayPublished prometheus.Counter
	RelayFailed    prometheus.Counter

	// AI assist metrics
	AssistCalls *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics on the given
// registerer. Tests pass a fresh prometheus.NewRegistry.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_events_applied_total",
			Help:      "Change events applied to the local reconciled state",
		}, []string{"collection", "kind"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_events_dropped_total",
			Help:      "Change events dropped instead of applied",
		}, []string{"collection", "reason"}),
		FeedResyncs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_resyncs_total",
			Help:      "Full resynchronizations after subscription loss",
		}),
		BulkLoadFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_load_failures_total",
			Help:      "Bulk loads that failed and left a collection empty",
		}, []string{"collection"}),

		PendingMutations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_pending_mutations",
			Help:      "Mutations written but not yet echoed by the feed",
		}),
		WriteFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_write_failures_total",
			Help:      "Mutations rejected by the store or never echoed",
		}, []string{"operation"}),
		EchoLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_echo_latency_seconds",
			Help:      "Time between a write and its change event arriving back",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Record store operations",
		}, []string{"operation", "status"}),

		RelayPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_events_published_total",
			Help:      "Outbox events published to the change feed",
		}),
		RelayFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_events_failed_total",
			Help:      "Outbox events that failed to publish",
		}),

		AssistCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assist_calls_total",
			Help:      "AI assist calls by operation and outcome",
		}, []string{"operation", "outcome"}),
	}
}
