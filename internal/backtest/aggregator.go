package backtest

import (
	"math"
)

// Verdict is the robustness classification of a walk-forward run
type Verdict string

const (
	VerdictRobust   Verdict = "ROBUST"
	VerdictMarginal Verdict = "MARGINAL"
	VerdictOverfit  Verdict = "OVERFIT"
)

// RobustnessBands are the efficiency thresholds used by Classify
type RobustnessBands struct {
	Robust   float64 `json:"robust"`
	Marginal float64 `json:"marginal"`
}

// DefaultBands returns the conventional 0.5 / 0.3 thresholds
func DefaultBands() RobustnessBands {
	return RobustnessBands{Robust: 0.5, Marginal: 0.3}
}

// Classify maps a walk-forward efficiency to a verdict
func (b RobustnessBands) Classify(efficiency float64) Verdict {
	if b.Robust == 0 && b.Marginal == 0 {
		b = DefaultBands()
	}
	switch {
	case efficiency >= b.Robust:
		return VerdictRobust
	case efficiency >= b.Marginal:
		return VerdictMarginal
	default:
		return VerdictOverfit
	}
}

// AggregateOptions configures Aggregate
type AggregateOptions struct {
	Metric RankingMetric
	// ZeroTolerance excludes windows whose |training metric| is at or below it from efficiency
	ZeroTolerance float64
	Bands         RobustnessBands
}

// Summary is the cross-window robustness summary
type Summary struct {
	TotalWindows          int     `json:"total_windows"`
	WalkForwardEfficiency float64 `json:"walk_forward_efficiency"`
	Consistency           float64 `json:"consistency"`
	ExcludedWindows       int     `json:"excluded_windows"`
	MeanDegradation       float64 `json:"mean_degradation"`
	ProfitableWindows     int     `json:"profitable_windows"`
	Verdict               Verdict `json:"verdict"`
}

// Aggregate combines window results into a Summary. Empty input yields zeros.
func Aggregate(results []WindowResult, opts AggregateOptions) Summary {
	metric := opts.Metric
	if metric == "" {
		metric = DefaultRankingMetric
	}
	summary := Summary{TotalWindows: len(results)}
	if len(results) == 0 {
		summary.Verdict = opts.Bands.Classify(0)
		return summary
	}

	ratios := make([]float64, 0, len(results))
	outOfSample := make([]float64, 0, len(results))
	degradations := make([]float64, 0, len(results))
	for _, r := range results {
		train := metric.Value(r.TrainingMetrics)
		test := metric.Value(r.TestingMetrics)

		if isFinite(test) {
			outOfSample = append(outOfSample, test)
		}
		if isFinite(train) && isFinite(test) && math.Abs(train) > opts.ZeroTolerance {
			ratios = append(ratios, test/train)
		} else {
			summary.ExcludedWindows++
		}
		degradations = append(degradations, r.PerformanceDegradation)
		if r.TestingMetrics.TotalReturn > 0 {
			summary.ProfitableWindows++
		}
	}

	summary.WalkForwardEfficiency = finiteOrZero(average(ratios))
	summary.Consistency = calculateConsistency(outOfSample)
	summary.MeanDegradation = finiteOrZero(average(degradations))
	summary.Verdict = opts.Bands.Classify(summary.WalkForwardEfficiency)
	return summary
}

// calculateConsistency is the population standard deviation of the out-of-sample metric
func calculateConsistency(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return finiteOrZero(stddev(values))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
