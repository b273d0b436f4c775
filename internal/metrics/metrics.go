package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for cogload.
// All Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Engine metrics
	ScoreCalculations *prometheus.CounterVec
	ScoreValue        prometheus.Histogram
	ScoreDuration     prometheus.Histogram

	// Orchestrator / agent metrics
	Orchestrations  *prometheus.CounterVec
	AgentRuns       *prometheus.CounterVec
	AgentDuration   *prometheus.HistogramVec
	Recommendations *prometheus.CounterVec

	// Advisory backend metrics
	AdvisoryRequests *prometheus.CounterVec
	AdvisoryLatency  *prometheus.HistogramVec

	// System metrics
	CacheHits           *prometheus.CounterVec
	CacheMisses         *prometheus.CounterVec
	EventsPublished     *prometheus.CounterVec
	SyncedEntities      *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			ScoreCalculations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cogload_score_calculations_total",
					Help: "Total number of cognitive load calculations by resulting level",
				},
				[]string{"level"},
			),
			ScoreValue: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "cogload_score_value",
					Help:    "Distribution of computed cognitive load scores",
					Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 to 100
				},
			),
			ScoreDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "cogload_score_duration_seconds",
					Help:    "Time spent computing and persisting a score",
					Buckets: prometheus.DefBuckets,
				},
			),

			Orchestrations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cogload_orchestrations_total",
					Help: "Total number of orchestrator runs",
				},
				[]string{"trigger", "result"},
			),
			AgentRuns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cogload_agent_runs_total",
					Help: "Agent runs by outcome source (advisory or fallback)",
				},
				[]string{"agent", "source"},
			),
			AgentDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "cogload_agent_duration_seconds",
					Help:    "Agent run duration in seconds",
					Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
				},
				[]string{"agent"},
			),
			Recommendations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cogload_recommendations_total",
					Help: "Persisted recommendations by agent and priority",
				},
				[]string{"agent", "priority"},
			),

			AdvisoryRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cogload_advisory_requests_total",
					Help: "Total number of advisory backend requests",
				},
				[]string{"provider", "model", "success"},
			),
			AdvisoryLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "cogload_advisory_latency_seconds",
					Help:    "Advisory backend request latency in seconds",
					Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
				},
				[]string{"provider", "model"},
			),

			CacheHits: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cogload_cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"backend"},
			),
			CacheMisses: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cogload_cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"backend"},
			),
			EventsPublished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cogload_events_published_total",
					Help: "Total number of events published",
				},
				[]string{"event_type"},
			),
			SyncedEntities: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cogload_synced_entities_total",
					Help: "Entities upserted by GitHub sync",
				},
				[]string{"kind"},
			),
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cogload_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "cogload_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),
		}
	})

	return sharedMetrics
}

// Handler serves the default Prometheus registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordScore records one engine calculation
func (m *Metrics) RecordScore(level string, score int, seconds float64) {
	if m == nil {
		return
	}
	m.ScoreCalculations.WithLabelValues(level).Inc()
	m.ScoreValue.Observe(float64(score))
	m.ScoreDuration.Observe(seconds)
}

// RecordOrchestration records an orchestrator run
func (m *Metrics) RecordOrchestration(trigger string, success bool) {
	if m == nil {
		return
	}
	m.Orchestrations.WithLabelValues(trigger, boolLabel(success, "ok", "error")).Inc()
}

// RecordAgentRun records one agent invocation
func (m *Metrics) RecordAgentRun(agent string, usedFallback bool, seconds float64) {
	if m == nil {
		return
	}
	m.AgentRuns.WithLabelValues(agent, boolLabel(usedFallback, "fallback", "advisory")).Inc()
	m.AgentDuration.WithLabelValues(agent).Observe(seconds)
}

// RecordRecommendation records a persisted recommendation
func (m *Metrics) RecordRecommendation(agent, priority string) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(agent, priority).Inc()
}

// RecordAdvisoryRequest records an advisory backend request
func (m *Metrics) RecordAdvisoryRequest(provider, model string, success bool, latencyMs int64) {
	if m == nil {
		return
	}
	m.AdvisoryRequests.WithLabelValues(provider, model, boolLabel(success, "true", "false")).Inc()
	m.AdvisoryLatency.WithLabelValues(provider, model).Observe(float64(latencyMs) / 1000.0)
}

// RecordCacheLookup records a cache hit or miss
func (m *Metrics) RecordCacheLookup(backend string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(backend).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(backend).Inc()
}

// RecordEvent records a published event
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordSynced records n entities of a kind written by sync
func (m *Metrics) RecordSynced(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SyncedEntities.WithLabelValues(kind).Add(float64(n))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func boolLabel(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}
