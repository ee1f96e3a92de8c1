package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/strategy-validator/internal/backtest"
	"github.com/yourusername/strategy-validator/internal/database"
	"github.com/yourusername/strategy-validator/internal/export"
	"github.com/yourusername/strategy-validator/internal/health"
	"github.com/yourusername/strategy-validator/internal/logger"
	"github.com/yourusername/strategy-validator/internal/repository"
	"github.com/yourusername/strategy-validator/internal/scheduler"
)

var (
	cronExpr     string
	trailingDays int
	runAtStart   bool
)

func init() {
	scheduleCmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (defaults to schedule.cron)")
	scheduleCmd.Flags().IntVar(&trailingDays, "trailing-days", 0, "Validate the trailing N days up to today instead of the configured range")
	scheduleCmd.Flags().BoolVar(&runAtStart, "run-at-start", false, "Run one revalidation before waiting for the schedule")
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Re-run walk-forward validation on a cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		expr := cronExpr
		if expr == "" {
			expr = cfg.Schedule.Cron
		}
		if expr == "" {
			return fmt.Errorf("no cron expression: set schedule.cron or --cron")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runSchedule(ctx, expr)
	},
}

func runSchedule(ctx context.Context, expr string) error {
	p, err := newPipeline(cfg, log)
	if err != nil {
		return err
	}
	defer p.close()

	audit := logger.NewAuditLogger(log)
	runFn := func(runCtx context.Context) (*backtest.WalkForwardReport, error) {
		report, err := p.revalidate(runCtx, time.Now().UTC(), trailingDays)
		if err != nil {
			return nil, err
		}
		log.Info(export.ConsoleReport(report))
		if _, err := writeExports(report, cfg.Export, audit); err != nil {
			log.WithError(err).Warn("Report export failed")
		}
		return report, nil
	}

	opts := []scheduler.Option{}
	var pinger health.DatabasePinger
	if cfg.Database.Enabled {
		db, err := database.Initialize(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		repos, err := repository.NewRepositories(db)
		if err != nil {
			return err
		}
		opts = append(opts, scheduler.WithRepository(repos.WalkForward))
		pinger = db
	}

	sched, err := scheduler.NewScheduler(runFn, log, opts...)
	if err != nil {
		return err
	}
	if _, err := sched.ScheduleRevalidation(expr); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		server := health.NewServer(health.Config{
			ServiceName: cfg.App.Name,
			Version:     Version,
			Port:        cfg.Metrics.Port,
			MetricsPath: cfg.Metrics.Path,
			Logger:      log,
			DB:          pinger,
			Scheduler:   sched,
		})
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer server.SetReady(false)
		server.SetReady(true)
	}

	if runAtStart {
		if _, err := sched.RunNow(ctx); err != nil {
			log.WithError(err).Error("Initial revalidation failed")
		}
	}

	if err := sched.Start(); err != nil {
		return err
	}
	log.WithField("next_run", sched.GetNextRun()).Info("Waiting for scheduled revalidations")

	<-ctx.Done()
	return sched.Stop()
}
