// Package metrics provides the centralized Prometheus registry for the validator.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "strategy_validator"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	ReportsPersistedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_persisted_total",
		Help:      "Total number of walk-forward reports written to storage by status",
	}, []string{"status"})
	ScheduledRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduled_runs_total",
		Help:      "Total number of scheduled revalidation runs by status",
	}, []string{"status"})
	CircuitBreakerTripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_trips_total",
		Help:      "Total number of runner circuit breaker trips",
	})
)

// Gauge metrics
var (
	ActiveRuns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_runs",
		Help:      "Number of walk-forward runs currently executing",
	})
	LastRunTimestamp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last completed walk-forward run per strategy",
	}, []string{"strategy"})
)

// Histogram metrics
var (
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of complete walk-forward runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
	})
	RunnerRequestLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "runner_request_latency_seconds",
		Help:      "Latency of remote backtest runner requests in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// Register counter metrics
		registry.MustRegister(ReportsPersistedTotal)
		registry.MustRegister(ScheduledRunsTotal)
		registry.MustRegister(CircuitBreakerTripsTotal)

		// Register gauge metrics
		registry.MustRegister(ActiveRuns)
		registry.MustRegister(LastRunTimestamp)

		// Register histogram metrics
		registry.MustRegister(RunDuration)
		registry.MustRegister(RunnerRequestLatency)

		// Register walk-forward metrics
		registry.MustRegister(WalkForwardRunsTotal)
		registry.MustRegister(WalkForwardWindowsTotal)
		registry.MustRegister(WalkForwardStageDuration)
		registry.MustRegister(WalkForwardEfficiency)
		registry.MustRegister(WalkForwardConsistency)

		// Register evaluation metrics
		registry.MustRegister(OptimizerEvaluationsTotal)
		registry.MustRegister(OptimizerBestScore)
		registry.MustRegister(ResultCacheRequestsTotal)
		registry.MustRegister(ResultCacheHitRatio)
		registry.MustRegister(RunnerRequestsTotal)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordReportPersisted records a report save attempt.
func RecordReportPersisted(status string) {
	ReportsPersistedTotal.WithLabelValues(status).Inc()
}

// RecordScheduledRun records a cron-triggered revalidation.
func RecordScheduledRun(status string) {
	ScheduledRunsTotal.WithLabelValues(status).Inc()
}

// RecordCircuitBreakerTrip records a circuit breaker trip event.
func RecordCircuitBreakerTrip() {
	CircuitBreakerTripsTotal.Inc()
}

// RunStarted increments the active runs gauge.
func RunStarted() {
	ActiveRuns.Inc()
}

// RunFinished decrements the active runs gauge and records the run duration.
func RunFinished(strategy string, durationSeconds float64, completedAtUnix float64) {
	ActiveRuns.Dec()
	RunDuration.Observe(durationSeconds)
	if completedAtUnix > 0 {
		LastRunTimestamp.WithLabelValues(strategy).Set(completedAtUnix)
	}
}

// RecordRunnerLatency records the latency of one remote runner call.
func RecordRunnerLatency(durationSeconds float64) {
	RunnerRequestLatency.Observe(durationSeconds)
}
