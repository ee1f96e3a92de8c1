// Package metrics defines optimizer, cache and runner metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Evaluation counter vectors
var (
	OptimizerEvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "optimizer_evaluations_total",
		Help:      "Total number of parameter combinations evaluated by the optimizer",
	}, []string{"strategy"})

	ResultCacheRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "result_cache_requests_total",
		Help:      "Total number of backtest result cache lookups by outcome",
	}, []string{"outcome"})

	RunnerRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runner_requests_total",
		Help:      "Total number of remote backtest runner requests by status",
	}, []string{"status"})
)

// Evaluation gauge vectors
var (
	OptimizerBestScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "optimizer_best_score",
		Help:      "Best in-sample score found by the most recent optimization",
	}, []string{"strategy"})

	ResultCacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "result_cache_hit_ratio",
		Help:      "Backtest result cache hit ratio",
	})
)

// RecordOptimization records the outcome of one optimizer call.
func RecordOptimization(strategy string, evaluated int, bestScore float64) {
	OptimizerEvaluationsTotal.WithLabelValues(strategy).Add(float64(evaluated))
	OptimizerBestScore.WithLabelValues(strategy).Set(bestScore)
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	ResultCacheRequestsTotal.WithLabelValues(outcome).Inc()
}

// UpdateCacheHitRatio sets the cache hit ratio gauge.
func UpdateCacheHitRatio(ratio float64) {
	ResultCacheHitRatio.Set(ratio)
}

// RecordRunnerRequest records a remote runner call.
// status should be one of: "success", "failure", "circuit_open"
func RecordRunnerRequest(status string) {
	RunnerRequestsTotal.WithLabelValues(status).Inc()
}
