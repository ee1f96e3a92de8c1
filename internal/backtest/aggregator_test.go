package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func scored(train, test float64) WindowResult {
	return WindowResult{
		TrainingMetrics:        PerformanceMetrics{SharpeRatio: Ratio(train)},
		TestingMetrics:         PerformanceMetrics{SharpeRatio: Ratio(test), TotalReturn: test / 10},
		PerformanceDegradation: CalculateDegradation(train, test),
	}
}

func TestAggregateEmpty(t *testing.T) {
	summary := Aggregate(nil, AggregateOptions{})
	assert.Equal(t, 0, summary.TotalWindows)
	assert.Equal(t, 0.0, summary.WalkForwardEfficiency)
	assert.Equal(t, 0.0, summary.Consistency)
	assert.Equal(t, VerdictOverfit, summary.Verdict)
}

func TestAggregateEfficiencyAndConsistency(t *testing.T) {
	summary := Aggregate([]WindowResult{scored(2, 1), scored(4, 3)}, AggregateOptions{Metric: RankSharpe})

	assert.Equal(t, 2, summary.TotalWindows)
	assert.InDelta(t, 0.625, summary.WalkForwardEfficiency, 1e-12)
	assert.InDelta(t, 1.0, summary.Consistency, 1e-12)
	assert.Equal(t, 0, summary.ExcludedWindows)
	assert.Equal(t, 2, summary.ProfitableWindows)
	assert.InDelta(t, 0.375, summary.MeanDegradation, 1e-12)
	assert.Equal(t, VerdictRobust, summary.Verdict)
}

func TestAggregateExcludesZeroTraining(t *testing.T) {
	results := []WindowResult{scored(0, 1), scored(2, 1), scored(1, math.Inf(1))}
	summary := Aggregate(results, AggregateOptions{})

	assert.Equal(t, 2, summary.ExcludedWindows)
	assert.InDelta(t, 0.5, summary.WalkForwardEfficiency, 1e-12)
	assert.InDelta(t, 0.0, summary.Consistency, 1e-12)
	assert.Equal(t, VerdictRobust, summary.Verdict)
}

func TestAggregateZeroTolerance(t *testing.T) {
	results := []WindowResult{scored(0.001, 5), scored(1, 0.4)}

	strict := Aggregate(results, AggregateOptions{})
	assert.Equal(t, 0, strict.ExcludedWindows)
	assert.Greater(t, strict.WalkForwardEfficiency, 100.0)

	tolerant := Aggregate(results, AggregateOptions{ZeroTolerance: 0.01})
	assert.Equal(t, 1, tolerant.ExcludedWindows)
	assert.InDelta(t, 0.4, tolerant.WalkForwardEfficiency, 1e-12)
	assert.Equal(t, VerdictMarginal, tolerant.Verdict)
}

func TestAggregateSingleWindowConsistency(t *testing.T) {
	summary := Aggregate([]WindowResult{scored(1, -1)}, AggregateOptions{})
	assert.Equal(t, 0.0, summary.Consistency)
	assert.InDelta(t, -1.0, summary.WalkForwardEfficiency, 1e-12)
	assert.Equal(t, 0, summary.ProfitableWindows)
	assert.Equal(t, VerdictOverfit, summary.Verdict)
}

func TestAggregateUsesRankingMetric(t *testing.T) {
	r := WindowResult{
		TrainingMetrics: PerformanceMetrics{SharpeRatio: 1, WinRate: 80},
		TestingMetrics:  PerformanceMetrics{SharpeRatio: 1, WinRate: 20},
	}
	assert.InDelta(t, 1.0, Aggregate([]WindowResult{r}, AggregateOptions{Metric: RankSharpe}).WalkForwardEfficiency, 1e-12)
	assert.InDelta(t, 0.25, Aggregate([]WindowResult{r}, AggregateOptions{Metric: RankWinRate}).WalkForwardEfficiency, 1e-12)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		bands      RobustnessBands
		efficiency float64
		want       Verdict
	}{
		{"robust at threshold", DefaultBands(), 0.5, VerdictRobust},
		{"marginal at threshold", DefaultBands(), 0.3, VerdictMarginal},
		{"overfit below", DefaultBands(), 0.29, VerdictOverfit},
		{"negative", DefaultBands(), -2, VerdictOverfit},
		{"zero bands use defaults", RobustnessBands{}, 0.4, VerdictMarginal},
		{"custom robust", RobustnessBands{Robust: 0.8, Marginal: 0.6}, 0.7, VerdictMarginal},
		{"custom overfit", RobustnessBands{Robust: 0.8, Marginal: 0.6}, 0.5, VerdictOverfit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.bands.Classify(tt.efficiency))
		})
	}
}
