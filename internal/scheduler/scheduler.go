// Package scheduler re-runs walk-forward validation on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/strategy-validator/internal/backtest"
	"github.com/yourusername/strategy-validator/internal/logger"
	"github.com/yourusername/strategy-validator/internal/metrics"
	"github.com/yourusername/strategy-validator/internal/models"
	"github.com/yourusername/strategy-validator/internal/repository"
)

// RunFunc produces one walk-forward report
type RunFunc func(ctx context.Context) (*backtest.WalkForwardReport, error)

// Scheduler manages scheduled revalidation jobs
type Scheduler struct {
	cron            *cron.Cron
	run             RunFunc
	repo            repository.WalkForwardRepository
	log             *logrus.Logger
	audit           *logger.AuditLogger
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	jobTimeout      time.Duration
	gracefulTimeout time.Duration
	lastVerdicts    map[string]backtest.Verdict
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithRepository persists every report and compares verdicts against stored runs
func WithRepository(repo repository.WalkForwardRepository) Option {
	return func(s *Scheduler) { s.repo = repo }
}

// WithJobTimeout bounds a single scheduled run
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.jobTimeout = d }
}

// NewScheduler creates a new scheduler
func NewScheduler(run RunFunc, log *logrus.Logger, opts ...Option) (*Scheduler, error) {
	if run == nil {
		return nil, errors.New("run function is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Scheduler{
		run:             run,
		log:             log,
		audit:           logger.NewAuditLogger(log),
		jobIDs:          make([]cron.EntryID, 0),
		jobTimeout:      4 * time.Hour,
		gracefulTimeout: 30 * time.Second,
		lastVerdicts:    make(map[string]backtest.Verdict),
	}
	for _, opt := range opts {
		opt(s)
	}
	// Overlapping revalidations of the same strategy are skipped.
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))),
	)
	return s, nil
}

// ScheduleRevalidation registers a revalidation job on a cron expression
func (s *Scheduler) ScheduleRevalidation(cronExpression string) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return 0, fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(cronExpression, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()
		if _, err := s.RunNow(ctx); err != nil {
			s.log.WithError(err).Error("Scheduled revalidation failed")
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.log.WithField("cron", cronExpression).Info("Scheduled revalidation job")
	return entryID, nil
}

// RunNow executes one revalidation immediately, persisting the report when a
// repository is configured
func (s *Scheduler) RunNow(ctx context.Context) (*backtest.WalkForwardReport, error) {
	report, err := s.run(ctx)
	if err != nil {
		metrics.RecordScheduledRun("failure")
		return nil, err
	}

	strategy := report.Strategy.Name
	previous, known := s.previousVerdict(ctx, strategy)
	if known && previous != report.Verdict {
		s.audit.LogVerdictChange(strategy, string(previous), string(report.Verdict), report.WalkForwardEfficiency)
	}

	s.mu.Lock()
	s.lastVerdicts[strategy] = report.Verdict
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.SaveReport(ctx, report); err != nil {
			metrics.RecordScheduledRun("failure")
			return report, fmt.Errorf("failed to persist report: %w", err)
		}
		s.audit.LogReportPersisted(report.RunID.String(), strategy, string(report.Verdict), len(report.Windows), report.CompletedAt)
	}

	metrics.RecordScheduledRun("success")
	return report, nil
}

func (s *Scheduler) previousVerdict(ctx context.Context, strategy string) (backtest.Verdict, bool) {
	if s.repo != nil {
		latest, err := s.repo.GetLatest(ctx, strategy)
		switch {
		case err == nil:
			return backtest.Verdict(latest.Verdict), true
		case errors.Is(err, models.ErrNotFound):
			return "", false
		default:
			s.log.WithError(err).WithField("strategy", strategy).Warn("Failed to load previous run")
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	verdict, ok := s.lastVerdicts[strategy]
	return verdict, ok
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.log.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")
	return nil
}

// Stop stops the scheduler, waiting for a running job up to the graceful timeout
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	stopped := s.cron.Stop()
	s.isRunning = false
	s.mu.Unlock()

	// A job still in flight takes mu to record its verdict, so wait unlocked.
	select {
	case <-stopped.Done():
		s.log.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler stop timed out after %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() && (nextRun.IsZero() || entry.Next.Before(nextRun)) {
			nextRun = entry.Next
		}
	}
	return nextRun
}
