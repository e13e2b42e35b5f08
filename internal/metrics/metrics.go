package metrics

import "github.com/prometheus/client_golang/prometheus"

// Embedding pipeline Prometheus metrics.
var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vektor",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests processed",
		},
		[]string{"source", "status"}, // source: "event" / "http", status: "SUCCESS" / "PARTIAL" / "FAILURE"
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vektor",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vektor",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vektor",
			Name:      "provider_calls_total",
			Help:      "Total model provider invocations",
		},
		[]string{"model", "status"},
	)

	BreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vektor",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		},
		[]string{"name", "to"},
	)

	DeadLettersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vektor",
			Name:      "dead_letters_total",
			Help:      "Messages routed to the dead-letter queue",
		},
		[]string{"error_type"},
	)

	BatchFlushSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vektor",
			Name:      "batch_flush_size",
			Help:      "Number of items drained per batch flush",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"trigger"}, // "size" / "schedule" / "timeout"
	)

	BatchPendingItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vektor",
			Name:      "batch_pending_items",
			Help:      "Items currently waiting in the batch queue",
		},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(CacheTotal)
	prometheus.MustRegister(ProviderCallsTotal)
	prometheus.MustRegister(BreakerTransitionsTotal)
	prometheus.MustRegister(DeadLettersTotal)
	prometheus.MustRegister(BatchFlushSize)
	prometheus.MustRegister(BatchPendingItems)
}
