// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TurnDuration tracks end-to-end turn handling time.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_turn_duration_seconds",
			Help:    "Chat turn duration by outcome",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"actor", "outcome"},
	)

	// TurnsTotal counts turns by outcome.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Total chat turns handled",
		},
		[]string{"tenant_id", "actor", "outcome"},
	)

	// CacheLookups counts response cache lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_lookups_total",
			Help: "Response cache lookups by result",
		},
		[]string{"result"},
	)

	// CacheWriteErrors counts failed cache writes.
	CacheWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "response_cache_write_errors_total",
			Help: "Response cache writes that failed",
		},
	)

	// RetrievalTier counts the tier a retrieval finished at.
	RetrievalTier = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_final_tier_total",
			Help: "Retrievals by final tier",
		},
		[]string{"tier", "escalated"},
	)

	// CollectionDegraded counts collection searches degraded to empty.
	CollectionDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_collection_degraded_total",
			Help: "Collection searches that failed or timed out",
		},
		[]string{"collection"},
	)

	// LLMDuration tracks provider call duration.
	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM provider request duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// ProviderRetries counts retried provider calls.
	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_provider_retries_total",
			Help: "Provider calls retried after a transient error",
		},
		[]string{"operation"},
	)

	// BusyRejections counts turns rejected because the session was busy.
	BusyRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_session_busy_total",
			Help: "Turns rejected because another turn held the session",
		},
	)

	// SessionsSwept counts idle sessions removed by the janitor.
	SessionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_swept_total",
			Help: "Idle sessions removed by the sweep",
		},
	)

	// HistoryStreams tracks open history replay streams.
	HistoryStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_history_streams_active",
			Help: "Number of open history replay streams",
		},
	)

	// IntentExtractions counts extraction outcomes (captured, empty, failed, skipped).
	IntentExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_extractions_total",
			Help: "Intent extraction outcomes",
		},
		[]string{"result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTurn records the outcome of a chat turn.
func RecordTurn(tenantID, actor, outcome string, duration float64) {
	TurnDuration.WithLabelValues(actor, outcome).Observe(duration)
	TurnsTotal.WithLabelValues(tenantID, actor, outcome).Inc()
}

// RecordLLM records metrics for a completed provider call.
func RecordLLM(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordRetrieval records the tier a retrieval ended at.
func RecordRetrieval(tier string, escalated bool) {
	e := "false"
	if escalated {
		e = "true"
	}
	RetrievalTier.WithLabelValues(tier, e).Inc()
}
