package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoreCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tunegraph_store_call_duration_seconds",
			Help:    "Duration of graph and vector store calls, including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store", "operation", "outcome"},
	)

	StoreRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunegraph_store_retries_total",
			Help: "Retry attempts issued against a backing store",
		},
		[]string{"store", "operation"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunegraph_cache_requests_total",
			Help: "Embedding cache lookups by tier and result",
		},
		[]string{"tier", "result"}, // hit, miss, expired, error
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunegraph_cache_evictions_total",
			Help: "Embedding cache evictions by reason",
		},
		[]string{"tier", "reason"}, // capacity, expired
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tunegraph_cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"tier"},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tunegraph_component_health",
			Help: "Component health (0=healthy, 1=degraded, 2=unhealthy)",
		},
		[]string{"component"},
	)

	ComponentLatency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tunegraph_component_probe_latency_seconds",
			Help: "Latency of the most recent health probe",
		},
		[]string{"component"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tunegraph_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunegraph_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	EngineOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunegraph_engine_operations_total",
			Help: "Recommendation engine operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	EdgesMaterialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunegraph_edges_materialized_total",
			Help: "SIMILAR_TO and MOOD_MATCHES edges written",
		},
		[]string{"type"},
	)

	EdgesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunegraph_edges_below_threshold_total",
			Help: "Candidate edges dropped for scoring below the threshold",
		},
		[]string{"type"},
	)

	HTTPRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tunegraph_http_request_duration_seconds",
			Help:    "Operational HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	VectorProviderBootstrap = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunegraph_vector_provider_bootstrap_total",
			Help: "Vector provider bootstrap attempts by outcome and error code",
		},
		[]string{"provider", "outcome", "code"},
	)

	VectorProviderActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tunegraph_vector_provider_active",
			Help: "1 for the vector provider currently in use",
		},
		[]string{"provider"},
	)

	EngineSlowOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunegraph_engine_over_budget_total",
			Help: "Engine calls that took longer than their configured latency budget",
		},
		[]string{"operation"},
	)

	GraphEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tunegraph_graph_entities",
			Help: "Graph node and relationship counts as of the last health check",
		},
		[]string{"kind"}, // tracks, users, similar_edges, mood_edges
	)
)

// Outcome labels an error for metric purposes.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
