package backtest

import (
	"context"

	"github.com/yourusername/strategy-validator/internal/params"
)

// StrategyTemplate identifies the strategy under validation; Settings are passed
// through to collaborators untouched
type StrategyTemplate struct {
	Name     string         `json:"name"`
	Version  string         `json:"version,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Key returns a stable identifier for caching and logging
func (s StrategyTemplate) Key() string {
	if s.Version == "" {
		return s.Name
	}
	return s.Name + "@" + s.Version
}

// OptimizationResult is the optimizer's pick for one training period
type OptimizationResult struct {
	Best      params.Combination `json:"best"`
	Score     float64            `json:"score"`
	Evaluated int                `json:"evaluated"`
	Trades    []Trade            `json:"trades,omitempty"`
	Timeline  PortfolioTimeline  `json:"timeline,omitempty"`
}

// Optimizer searches the parameter space over a single period.
// It must only read data inside period.
type Optimizer interface {
	Optimize(ctx context.Context, space params.Space, template StrategyTemplate, period Period) (OptimizationResult, error)
	// Deterministic reports whether identical inputs always yield the same result
	Deterministic() bool
}

// RunResult is the output of one backtest
type RunResult struct {
	Trades   []Trade           `json:"trades"`
	Timeline PortfolioTimeline `json:"portfolio"`
}

// Runner backtests a fixed parameter combination over a period
type Runner interface {
	Run(ctx context.Context, template StrategyTemplate, combination params.Combination, period Period) (RunResult, error)
}

// OptimizerFunc adapts a function to Optimizer. Adapted functions are treated as deterministic.
type OptimizerFunc func(ctx context.Context, space params.Space, template StrategyTemplate, period Period) (OptimizationResult, error)

func (f OptimizerFunc) Optimize(ctx context.Context, space params.Space, template StrategyTemplate, period Period) (OptimizationResult, error) {
	return f(ctx, space, template, period)
}

func (f OptimizerFunc) Deterministic() bool { return true }

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, template StrategyTemplate, combination params.Combination, period Period) (RunResult, error)

func (f RunnerFunc) Run(ctx context.Context, template StrategyTemplate, combination params.Combination, period Period) (RunResult, error) {
	return f(ctx, template, combination, period)
}
