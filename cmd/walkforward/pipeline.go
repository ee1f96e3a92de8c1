package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/strategy-validator/internal/backtest"
	"github.com/yourusername/strategy-validator/internal/config"
	"github.com/yourusername/strategy-validator/internal/optimizer"
	"github.com/yourusername/strategy-validator/internal/runner"
)

// pipeline wires the remote runner, result cache, grid search and orchestrator
type pipeline struct {
	spec         backtest.RunSpec
	client       *runner.RateLimitedHTTPClient
	cache        *optimizer.ResultCache
	orchestrator *backtest.Orchestrator
	log          *logrus.Logger
}

func newPipeline(cfg *config.Config, log *logrus.Logger) (*pipeline, error) {
	spec, err := backtest.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	client := runner.NewRateLimitedHTTPClient(runner.ClientConfigFromRunner(cfg.Runner), log)
	remote := runner.NewHTTPRunner(client, cfg.Runner.BaseURL, cfg.Runner.APIKey, log)

	cache := optimizer.NewResultCache(
		time.Duration(cfg.Optimizer.CacheTTLSeconds)*time.Second,
		time.Duration(cfg.Optimizer.CacheCleanupSeconds)*time.Second,
	)
	searchCfg, err := optimizer.ConfigFromApp(cfg)
	if err != nil {
		return nil, err
	}
	// Grid search consults the cache itself, so it gets the bare runner.
	search, err := optimizer.NewGridSearch(remote, searchCfg, cache, log)
	if err != nil {
		return nil, err
	}
	cached := optimizer.NewCachedRunner(remote, cache, log)

	orchestrator, err := backtest.NewOrchestrator(search, cached, spec.Orchestrator, log)
	if err != nil {
		return nil, err
	}

	return &pipeline{
		spec:         spec,
		client:       client,
		cache:        cache,
		orchestrator: orchestrator,
		log:          log,
	}, nil
}

// run validates the configured range
func (p *pipeline) run(ctx context.Context) (*backtest.WalkForwardReport, error) {
	return p.runRange(ctx, p.spec.FullRange)
}

func (p *pipeline) runRange(ctx context.Context, fullRange backtest.Period) (*backtest.WalkForwardReport, error) {
	report, err := p.orchestrator.Run(ctx, p.spec.Space, p.spec.Template, fullRange, p.spec.Policy)
	if err != nil {
		return nil, fmt.Errorf("walk-forward run failed: %w", err)
	}
	return report, nil
}

// revalidate drops cached runs for the strategy before running again, so a
// scheduled run sees fresh results from the backtest service. trailing > 0
// validates the trailing days up to now instead of the configured range.
func (p *pipeline) revalidate(ctx context.Context, now time.Time, trailing int) (*backtest.WalkForwardReport, error) {
	if removed := p.cache.InvalidateStrategy(p.spec.Template.Key()); removed > 0 {
		p.log.WithField("entries", removed).Debug("Invalidated cached backtests")
	}
	if trailing > 0 {
		return p.runRange(ctx, trailingRange(now, trailing))
	}
	return p.run(ctx)
}

func (p *pipeline) close() {
	if err := p.client.Close(); err != nil {
		p.log.WithError(err).Warn("Failed to close runner client")
	}
}

// trailingRange ends at the UTC midnight of now and spans days
func trailingRange(now time.Time, days int) backtest.Period {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return backtest.Period{Start: end.AddDate(0, 0, -days), End: end}
}

// applyDateOverrides replaces the configured range bounds with non-empty flags
func applyDateOverrides(cfg *config.Config, start, end string) error {
	if start != "" {
		if _, err := time.Parse(config.DateLayout, start); err != nil {
			return fmt.Errorf("invalid start date: %w", err)
		}
		cfg.WalkForward.StartDate = start
	}
	if end != "" {
		if _, err := time.Parse(config.DateLayout, end); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
		cfg.WalkForward.EndDate = end
	}
	return nil
}
