// Package metrics defines walk-forward specific metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Walk-forward counter vectors
var (
	WalkForwardRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "walk_forward_runs_total",
		Help:      "Total number of walk-forward runs by strategy and status",
	}, []string{"strategy", "status"})

	WalkForwardWindowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "walk_forward_windows_total",
		Help:      "Total number of evaluated windows by strategy and status",
	}, []string{"strategy", "status"})
)

// Walk-forward histogram vectors
var (
	WalkForwardStageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "walk_forward_stage_duration_seconds",
		Help:      "Duration of optimize and backtest stages per window",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"stage"})
)

// Walk-forward gauge vectors
var (
	WalkForwardEfficiency = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "walk_forward_efficiency",
		Help:      "Latest walk-forward efficiency per strategy",
	}, []string{"strategy"})

	WalkForwardConsistency = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "walk_forward_consistency",
		Help:      "Latest dispersion of out-of-sample ranking metric per strategy",
	}, []string{"strategy"})
)

// RecordWalkForwardRun records a run outcome.
// status should be one of: "success", "failure", "cancelled"
func RecordWalkForwardRun(strategy, status string) {
	WalkForwardRunsTotal.WithLabelValues(strategy, status).Inc()
}

// RecordWindow records the outcome of one window.
func RecordWindow(strategy, status string) {
	WalkForwardWindowsTotal.WithLabelValues(strategy, status).Inc()
}

// RecordStageDuration records how long an optimize or backtest stage took.
func RecordStageDuration(stage string, durationSeconds float64) {
	WalkForwardStageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// UpdateRobustness sets the efficiency and consistency gauges for a strategy.
func UpdateRobustness(strategy string, efficiency, consistency float64) {
	WalkForwardEfficiency.WithLabelValues(strategy).Set(efficiency)
	WalkForwardConsistency.WithLabelValues(strategy).Set(consistency)
}
