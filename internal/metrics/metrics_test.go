package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewMetrics_Singleton(t *testing.T) {
	assert.Same(t, NewMetrics(), NewMetrics())
}

func TestRecordAgentRun_LabelsSource(t *testing.T) {
	m := NewMetrics()
	before := counterValue(t, m.AgentRuns.WithLabelValues("focus", "fallback"))
	m.RecordAgentRun("focus", true, 0.01)
	assert.Equal(t, before+1, counterValue(t, m.AgentRuns.WithLabelValues("focus", "fallback")))
}

func TestRecordCacheLookup(t *testing.T) {
	m := NewMetrics()
	hits := counterValue(t, m.CacheHits.WithLabelValues("memory"))
	misses := counterValue(t, m.CacheMisses.WithLabelValues("memory"))
	m.RecordCacheLookup("memory", true)
	m.RecordCacheLookup("memory", false)
	m.RecordCacheLookup("memory", false)
	assert.Equal(t, hits+1, counterValue(t, m.CacheHits.WithLabelValues("memory")))
	assert.Equal(t, misses+2, counterValue(t, m.CacheMisses.WithLabelValues("memory")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordScore("flow", 10, 0.1)
		m.RecordOrchestration("manual", true)
		m.RecordAgentRun("planning", false, 0.2)
		m.RecordRecommendation("focus", "high")
		m.RecordAdvisoryRequest("openai", "gpt", true, 10)
		m.RecordCacheLookup("redis", true)
		m.RecordEvent("snapshot.created")
		m.RecordSynced("issue", 3)
		m.RecordHTTPRequest("GET", "/", "200", 0.01)
	})
}
