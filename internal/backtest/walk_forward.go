package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/strategy-validator/internal/logger"
	"github.com/yourusername/strategy-validator/internal/metrics"
	"github.com/yourusername/strategy-validator/internal/params"
)

// OrchestratorConfig configures a walk-forward run
type OrchestratorConfig struct {
	// MaxConcurrency bounds how many windows are evaluated at once; 0 means 1
	MaxConcurrency int
	RankingMetric  RankingMetric
	RiskFreeRate   float64
	ZeroTolerance  float64
	Bands          RobustnessBands
}

func (c OrchestratorConfig) withDefaults() (OrchestratorConfig, error) {
	if c.MaxConcurrency < 0 {
		return c, &ConfigError{Field: "max_concurrency", Reason: "cannot be negative"}
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 1
	}
	metric, err := ParseRankingMetric(string(c.RankingMetric))
	if err != nil {
		return c, err
	}
	c.RankingMetric = metric
	if c.ZeroTolerance < 0 {
		return c, &ConfigError{Field: "zero_tolerance", Reason: "cannot be negative"}
	}
	if c.Bands == (RobustnessBands{}) {
		c.Bands = DefaultBands()
	}
	if c.Bands.Marginal > c.Bands.Robust {
		return c, &ConfigError{Field: "bands", Reason: "marginal threshold must not exceed robust threshold"}
	}
	return c, nil
}

// WindowResult is the outcome of one train/test window
type WindowResult struct {
	Window                 Window             `json:"window"`
	Parameters             params.Combination `json:"parameters"`
	ParameterHash          string             `json:"parameter_hash"`
	CandidatesEvaluated    int                `json:"candidates_evaluated"`
	TrainingMetrics        PerformanceMetrics `json:"training_metrics"`
	TestingMetrics         PerformanceMetrics `json:"testing_metrics"`
	TrainingScore          Ratio              `json:"training_score"`
	TestingScore           Ratio              `json:"testing_score"`
	PerformanceDegradation float64            `json:"performance_degradation"`
}

// WalkForwardReport is the complete outcome of a run
type WalkForwardReport struct {
	RunID         uuid.UUID        `json:"run_id"`
	Strategy      StrategyTemplate `json:"strategy"`
	RankingMetric RankingMetric    `json:"ranking_metric"`
	Policy        WindowPolicy     `json:"policy"`
	FullRange     Period           `json:"full_range"`
	Windows       []WindowResult   `json:"windows"`
	Summary
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// ToJSON exports the report to JSON
func (r WalkForwardReport) ToJSON() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// Orchestrator drives optimizer and runner calls across walk-forward windows
type Orchestrator struct {
	optimizer Optimizer
	runner    Runner
	cfg       OrchestratorConfig
	logger    *logger.WalkForwardLogger
}

// NewOrchestrator validates cfg and builds an orchestrator
func NewOrchestrator(optimizer Optimizer, runner Runner, cfg OrchestratorConfig, log *logrus.Logger) (*Orchestrator, error) {
	if optimizer == nil {
		return nil, &ConfigError{Field: "optimizer", Reason: "is required"}
	}
	if runner == nil {
		return nil, &ConfigError{Field: "runner", Reason: "is required"}
	}
	resolved, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		optimizer: optimizer,
		runner:    runner,
		cfg:       resolved,
		logger:    logger.NewWalkForwardLogger(log),
	}, nil
}

// Config returns the resolved configuration
func (o *Orchestrator) Config() OrchestratorConfig {
	return o.cfg
}

// Run evaluates every window generated from fullRange and aggregates the results.
// On failure or cancellation the returned error is a *RunError carrying the completed windows.
func (o *Orchestrator) Run(ctx context.Context, space params.Space, template StrategyTemplate, fullRange Period, policy WindowPolicy) (*WalkForwardReport, error) {
	if err := space.Validate(); err != nil {
		return nil, &ConfigError{Field: "parameter_space", Reason: err.Error()}
	}
	if space.Size() == 0 {
		return nil, &ConfigError{Field: "parameter_space", Reason: params.ErrEmptySpace.Error()}
	}
	windows, err := GenerateWindows(fullRange, policy)
	if err != nil {
		return nil, err
	}

	runID := uuid.New()
	log := o.logger.ForRun(runID.String(), template.Key())
	if !o.optimizer.Deterministic() && o.cfg.MaxConcurrency > 1 {
		log.WithField("concurrency", o.cfg.MaxConcurrency).
			Warn("Optimizer is non-deterministic; results may not be reproducible across runs")
	}
	log.LogRunStarted(string(policy.Mode), len(windows), space.Size(), o.cfg.MaxConcurrency)

	startedAt := time.Now().UTC()
	metrics.RunStarted()
	results, runErr := o.evaluate(ctx, log, space, template, windows)
	completedAt := time.Now().UTC()

	if runErr != nil {
		metrics.RunFinished(template.Key(), completedAt.Sub(startedAt).Seconds(), 0)
		if runErr.Cancelled {
			metrics.RecordWalkForwardRun(template.Key(), "cancelled")
			log.LogRunCancelled(len(runErr.Partial))
		} else {
			metrics.RecordWalkForwardRun(template.Key(), "failure")
			log.LogRunFailed(runErr.WindowIndex, string(runErr.Stage), len(runErr.Partial), runErr.Err)
		}
		return nil, runErr
	}

	summary := Aggregate(results, AggregateOptions{
		Metric:        o.cfg.RankingMetric,
		ZeroTolerance: o.cfg.ZeroTolerance,
		Bands:         o.cfg.Bands,
	})

	metrics.RunFinished(template.Key(), completedAt.Sub(startedAt).Seconds(), float64(completedAt.Unix()))
	metrics.RecordWalkForwardRun(template.Key(), "success")
	metrics.UpdateRobustness(template.Key(), summary.WalkForwardEfficiency, summary.Consistency)
	log.LogRunCompleted(summary.TotalWindows, summary.WalkForwardEfficiency, summary.Consistency, string(summary.Verdict), completedAt.Sub(startedAt))

	return &WalkForwardReport{
		RunID:         runID,
		Strategy:      template,
		RankingMetric: o.cfg.RankingMetric,
		Policy:        policy,
		FullRange:     fullRange,
		Windows:       results,
		Summary:       summary,
		StartedAt:     startedAt,
		CompletedAt:   completedAt,
	}, nil
}

// evaluate runs windows on a bounded pool. Each worker owns one result slot,
// so results come back in index order whatever the completion order.
func (o *Orchestrator) evaluate(ctx context.Context, log *logger.WalkForwardLogger, space params.Space, template StrategyTemplate, windows []Window) ([]WindowResult, *RunError) {
	if err := ctx.Err(); err != nil {
		return nil, &RunError{WindowIndex: -1, Cancelled: true, Partial: []WindowResult{}, Err: err}
	}

	slots := make([]*WindowResult, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrency)

	for i := range windows {
		if gctx.Err() != nil {
			break
		}
		w := windows[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := o.evaluateWindow(gctx, log, space, template, w)
			if err != nil {
				metrics.RecordWindow(template.Key(), "failure")
				return err
			}
			metrics.RecordWindow(template.Key(), "success")
			slots[w.Index] = &result
			return nil
		})
	}
	err := g.Wait()

	completed := make([]WindowResult, 0, len(windows))
	for _, r := range slots {
		if r != nil {
			completed = append(completed, *r)
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &RunError{WindowIndex: -1, Cancelled: true, Partial: completed, Err: ctxErr}
	}
	if err != nil {
		runErr := &RunError{WindowIndex: -1, Partial: completed, Err: err}
		var windowErr *WindowError
		if errors.As(err, &windowErr) {
			runErr.WindowIndex = windowErr.Index
			runErr.Stage = windowErr.Stage
		}
		return nil, runErr
	}
	return completed, nil
}

// evaluateWindow optimizes on the training period, then backtests the chosen
// combination on the testing period only
func (o *Orchestrator) evaluateWindow(ctx context.Context, log *logger.WalkForwardLogger, space params.Space, template StrategyTemplate, w Window) (WindowResult, error) {
	started := time.Now()
	opts := MetricsOptions{RiskFreeRate: o.cfg.RiskFreeRate}

	optimized, err := o.optimizer.Optimize(ctx, space, template, w.Training)
	metrics.RecordStageDuration(string(StageOptimize), time.Since(started).Seconds())
	if err != nil {
		return WindowResult{}, &WindowError{Index: w.Index, Stage: StageOptimize, Err: err}
	}
	if optimized.Best.IsZero() {
		return WindowResult{}, &WindowError{Index: w.Index, Stage: StageOptimize, Err: fmt.Errorf("optimizer returned no parameter combination")}
	}
	trainingMetrics := CalculateMetrics(optimized.Trades, optimized.Timeline, w.Training, opts)

	backtestStarted := time.Now()
	run, err := o.runner.Run(ctx, template, optimized.Best, w.Testing)
	metrics.RecordStageDuration(string(StageBacktest), time.Since(backtestStarted).Seconds())
	if err != nil {
		return WindowResult{}, &WindowError{Index: w.Index, Stage: StageBacktest, Err: err}
	}
	testingMetrics := CalculateMetrics(run.Trades, run.Timeline, w.Testing, opts)

	trainScore := o.cfg.RankingMetric.Value(trainingMetrics)
	testScore := o.cfg.RankingMetric.Value(testingMetrics)
	result := WindowResult{
		Window:                 w,
		Parameters:             optimized.Best,
		ParameterHash:          optimized.Best.Hash(),
		CandidatesEvaluated:    optimized.Evaluated,
		TrainingMetrics:        trainingMetrics,
		TestingMetrics:         testingMetrics,
		TrainingScore:          Ratio(trainScore),
		TestingScore:           Ratio(testScore),
		PerformanceDegradation: CalculateDegradation(trainScore, testScore),
	}

	log.LogWindowCompleted(w.Index, optimized.Best.String(), finiteOrZero(trainScore), finiteOrZero(testScore), result.PerformanceDegradation, time.Since(started))
	return result, nil
}
