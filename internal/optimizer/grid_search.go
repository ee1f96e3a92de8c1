package optimizer

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/strategy-validator/internal/backtest"
	"github.com/yourusername/strategy-validator/internal/config"
	"github.com/yourusername/strategy-validator/internal/logger"
	"github.com/yourusername/strategy-validator/internal/metrics"
	"github.com/yourusername/strategy-validator/internal/params"
)

// Config configures a GridSearch
type Config struct {
	// Parallelism bounds concurrent runner calls; 0 means 1
	Parallelism  int
	Metric       backtest.RankingMetric
	RiskFreeRate float64
}

// ConfigFromApp builds a grid search config from application settings
func ConfigFromApp(cfg *config.Config) (Config, error) {
	metric, err := backtest.ParseRankingMetric(cfg.WalkForward.RankingMetric)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Parallelism:  cfg.Optimizer.Parallelism,
		Metric:       metric,
		RiskFreeRate: cfg.WalkForward.RiskFreeRate,
	}, nil
}

// GridSearch evaluates every combination of a space on the training period
// and picks the best by the ranking metric. Ties go to the combination
// enumerated first, so results do not depend on completion order.
type GridSearch struct {
	runner backtest.Runner
	cfg    Config
	cache  *ResultCache
	logger *logger.OptimizerLogger
}

// NewGridSearch creates a grid search over runner. resultCache may be nil.
func NewGridSearch(runner backtest.Runner, cfg Config, resultCache *ResultCache, log *logrus.Logger) (*GridSearch, error) {
	if runner == nil {
		return nil, &backtest.ConfigError{Field: "runner", Reason: "is required"}
	}
	if cfg.Parallelism < 0 {
		return nil, &backtest.ConfigError{Field: "parallelism", Reason: "cannot be negative"}
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = 1
	}
	metric, err := backtest.ParseRankingMetric(string(cfg.Metric))
	if err != nil {
		return nil, err
	}
	cfg.Metric = metric
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &GridSearch{
		runner: runner,
		cfg:    cfg,
		cache:  resultCache,
		logger: logger.NewOptimizerLogger(log),
	}, nil
}

// Deterministic is true: the grid and the tie-break are fixed
func (g *GridSearch) Deterministic() bool { return true }

type candidate struct {
	score float64
	run   backtest.RunResult
}

// Optimize runs every combination over period and returns the best one
func (g *GridSearch) Optimize(ctx context.Context, space params.Space, template backtest.StrategyTemplate, period backtest.Period) (backtest.OptimizationResult, error) {
	combinations := space.Combinations()
	if len(combinations) == 0 {
		return backtest.OptimizationResult{}, params.ErrEmptySpace
	}

	opts := backtest.MetricsOptions{RiskFreeRate: g.cfg.RiskFreeRate}
	candidates := make([]candidate, len(combinations))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Parallelism)
	for i := range combinations {
		if gctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			run, err := g.evaluate(gctx, template, combinations[i], period)
			if err != nil {
				return fmt.Errorf("combination %s: %w", combinations[i], err)
			}
			score := g.cfg.Metric.Value(backtest.CalculateMetrics(run.Trades, run.Timeline, period, opts))
			if math.IsNaN(score) {
				score = math.Inf(-1)
			}
			candidates[i] = candidate{score: score, run: run}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return backtest.OptimizationResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return backtest.OptimizationResult{}, err
	}

	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].score > candidates[best].score {
			best = i
		}
	}

	result := backtest.OptimizationResult{
		Best:      combinations[best],
		Score:     candidates[best].score,
		Evaluated: len(combinations),
		Trades:    candidates[best].run.Trades,
		Timeline:  candidates[best].run.Timeline,
	}

	metrics.RecordOptimization(template.Key(), result.Evaluated, result.Score)
	g.logger.LogSearchCompleted(template.Key(), period.String(), result.Evaluated, result.Best.String(), finite(result.Score))
	if g.cache != nil {
		hits, misses, _ := g.cache.Stats()
		g.logger.LogCacheStats(hits, misses, g.cache.ItemCount())
	}
	return result, nil
}

func (g *GridSearch) evaluate(ctx context.Context, template backtest.StrategyTemplate, combination params.Combination, period backtest.Period) (backtest.RunResult, error) {
	if g.cache == nil {
		return g.runner.Run(ctx, template, combination, period)
	}
	key := NewCacheKey(template, period, combination)
	if cached, ok := g.cache.Get(key); ok {
		return cached, nil
	}
	run, err := g.runner.Run(ctx, template, combination, period)
	if err != nil {
		return backtest.RunResult{}, err
	}
	g.cache.Set(key, run)
	return run, nil
}

// finite maps ±Inf to 0 for log fields, which must stay JSON-encodable
func finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}
