package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
	assert.Same(t, registry, InitRegistry())
}

// gathered returns the value of the first series of the named family carrying label=value
func gathered(t *testing.T, name, label, value string) float64 {
	t.Helper()
	families, err := GetRegistry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := label == ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					matched = true
				}
			}
			if !matched {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func TestRecordWalkForwardRun(t *testing.T) {
	InitRegistry()

	before := gathered(t, "strategy_validator_walk_forward_runs_total", "strategy", "wf_counter")
	RecordWalkForwardRun("wf_counter", "success")
	after := gathered(t, "strategy_validator_walk_forward_runs_total", "strategy", "wf_counter")

	assert.Equal(t, before+1, after)
}

func TestUpdateRobustness(t *testing.T) {
	InitRegistry()

	UpdateRobustness("ma_cross", 0.62, 0.15)

	assert.InDelta(t, 0.62, gathered(t, "strategy_validator_walk_forward_efficiency", "strategy", "ma_cross"), 1e-9)
	assert.InDelta(t, 0.15, gathered(t, "strategy_validator_walk_forward_consistency", "strategy", "ma_cross"), 1e-9)
}

func TestRunGauges(t *testing.T) {
	InitRegistry()

	start := gathered(t, "strategy_validator_active_runs", "", "")
	RunStarted()
	assert.Equal(t, start+1, gathered(t, "strategy_validator_active_runs", "", ""))
	RunFinished("ma_cross", 1.5, 1700000000)
	assert.Equal(t, start, gathered(t, "strategy_validator_active_runs", "", ""))
}

func TestEvaluationMetrics(t *testing.T) {
	InitRegistry()

	tests := []struct {
		name string
		fn   func()
	}{
		{"optimization", func() { RecordOptimization("ma_cross", 12, 1.4) }},
		{"cache hit", func() { RecordCacheLookup(true) }},
		{"cache miss", func() { RecordCacheLookup(false) }},
		{"cache ratio", func() { UpdateCacheHitRatio(0.5) }},
		{"runner request", func() { RecordRunnerRequest("success") }},
		{"runner latency", func() { RecordRunnerLatency(0.2) }},
		{"stage duration", func() { RecordStageDuration("optimize", 0.3) }},
		{"window", func() { RecordWindow("ma_cross", "success") }},
		{"persisted", func() { RecordReportPersisted("success") }},
		{"scheduled", func() { RecordScheduledRun("failure") }},
		{"breaker", func() { RecordCircuitBreakerTrip() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, tt.fn)
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	InitRegistry()
	RecordWalkForwardRun("handler_check", "success")

	handler := Handler()
	require.NotNil(t, handler)
	assert.Implements(t, (*http.Handler)(nil), handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "strategy_validator_walk_forward_runs_total"))
}

func BenchmarkRecordWindow(b *testing.B) {
	InitRegistry()

	for i := 0; i < b.N; i++ {
		RecordWindow("ma_cross", "success")
	}
}
