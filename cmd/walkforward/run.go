package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yourusername/strategy-validator/internal/backtest"
	"github.com/yourusername/strategy-validator/internal/config"
	"github.com/yourusername/strategy-validator/internal/database"
	"github.com/yourusername/strategy-validator/internal/export"
	"github.com/yourusername/strategy-validator/internal/logger"
	"github.com/yourusername/strategy-validator/internal/repository"
)

var (
	startDate string
	endDate   string
	outputDir string
	persist   bool
)

func init() {
	runCmd.Flags().StringVar(&startDate, "start-date", "", "Override start date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&endDate, "end-date", "", "Override end date (YYYY-MM-DD)")
	runCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Override the export directory")
	runCmd.Flags().BoolVar(&persist, "persist", false, "Store the report in PostgreSQL (defaults to database.enabled)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run walk-forward validation once",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyDateOverrides(cfg, startDate, endDate); err != nil {
			return err
		}
		if outputDir != "" {
			cfg.Export.OutputDir = outputDir
		}
		if !cmd.Flags().Changed("persist") {
			persist = cfg.Database.Enabled
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runOnce(ctx)
	},
}

func runOnce(ctx context.Context) error {
	p, err := newPipeline(cfg, log)
	if err != nil {
		return err
	}
	defer p.close()

	report, err := p.run(ctx)
	var runErr *backtest.RunError
	if errors.As(err, &runErr) && len(runErr.Partial) > 0 {
		log.WithField("completed_windows", len(runErr.Partial)).Warn("Run stopped early; partial windows were not exported")
	}
	if err != nil {
		return err
	}

	fmt.Println(export.ConsoleReport(report))

	if _, err := writeExports(report, cfg.Export, logger.NewAuditLogger(log)); err != nil {
		return err
	}

	if !persist {
		return nil
	}
	return persistReport(ctx, report)
}

func persistReport(ctx context.Context, report *backtest.WalkForwardReport) error {
	db, err := database.Initialize(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repos, err := repository.NewRepositories(db)
	if err != nil {
		return err
	}
	if err := repos.WalkForward.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("failed to persist report: %w", err)
	}
	logger.NewAuditLogger(log).LogReportPersisted(
		report.RunID.String(), report.Strategy.Name, string(report.Verdict), len(report.Windows), report.CompletedAt,
	)
	return nil
}

// exportPaths returns the JSON and CSV file paths for a report
func exportPaths(report *backtest.WalkForwardReport, dir string) (string, string) {
	if dir == "" {
		dir = "."
	}
	base := fmt.Sprintf("walkforward_%s_%s", report.Strategy.Name, report.RunID.String())
	return filepath.Join(dir, base+".json"), filepath.Join(dir, base+".csv")
}

// writeExports writes the enabled export formats and returns the written paths
func writeExports(report *backtest.WalkForwardReport, exportCfg config.ExportConfig, audit *logger.AuditLogger) ([]string, error) {
	jsonPath, csvPath := exportPaths(report, exportCfg.OutputDir)
	var written []string

	if exportCfg.JSON {
		if err := export.ExportToJSON(report, jsonPath); err != nil {
			return written, fmt.Errorf("failed to export JSON: %w", err)
		}
		audit.LogReportExported(report.RunID.String(), "json", jsonPath)
		written = append(written, jsonPath)
	}
	if exportCfg.CSV {
		if err := export.ExportToCSV(report, csvPath); err != nil {
			return written, fmt.Errorf("failed to export CSV: %w", err)
		}
		audit.LogReportExported(report.RunID.String(), "csv", csvPath)
		written = append(written, csvPath)
	}
	return written, nil
}
