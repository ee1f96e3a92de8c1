package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yourusername/strategy-validator/internal/database"
	"github.com/yourusername/strategy-validator/internal/export"
	"github.com/yourusername/strategy-validator/internal/models"
	"github.com/yourusername/strategy-validator/internal/repository"
)

var (
	historyStrategy string
	historyLimit    int
	historyRunID    string
)

func init() {
	historyCmd.Flags().StringVar(&historyStrategy, "strategy", "", "Strategy to list (defaults to strategy.name)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum number of runs to list")
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "Print the stored report of one run")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored walk-forward runs or print one stored report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyLimit <= 0 {
			return fmt.Errorf("--limit must be positive")
		}
		var runID uuid.UUID
		if historyRunID != "" {
			id, err := uuid.Parse(historyRunID)
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}
			runID = id
		}
		strategy := historyStrategy
		if strategy == "" {
			strategy = cfg.Strategy.Name
		}

		ctx := context.Background()
		db, err := database.Initialize(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		repos, err := repository.NewRepositories(db)
		if err != nil {
			return err
		}
		return showHistory(ctx, os.Stdout, repos.WalkForward, strategy, historyLimit, runID)
	},
}

// showHistory prints one stored report when runID is set, otherwise the
// latest runs of strategy
func showHistory(ctx context.Context, w io.Writer, repo repository.WalkForwardRepository, strategy string, limit int, runID uuid.UUID) error {
	if runID != uuid.Nil {
		report, err := repo.LoadReport(ctx, runID)
		if err != nil {
			return fmt.Errorf("failed to load run %s: %w", runID, err)
		}
		fmt.Fprintln(w, export.ConsoleReport(report))
		return nil
	}

	runs, err := repo.ListRuns(ctx, strategy, limit)
	if err != nil {
		return err
	}
	printRuns(w, strategy, runs)
	return nil
}

func printRuns(w io.Writer, strategy string, runs []*models.WalkForwardRun) {
	const layout = "2006-01-02"
	if len(runs) == 0 {
		fmt.Fprintf(w, "No stored runs for %s\n", strategy)
		return
	}
	fmt.Fprintf(w, "%-36s  %-8s  %-21s  %7s  %6s  %s\n", "Run", "Mode", "Range", "Windows", "WFE", "Verdict")
	fmt.Fprintln(w, strings.Repeat("-", 96))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-8s  %s..%s  %7d  %6.2f  %s\n",
			r.ID, r.Mode, r.RangeStart.Format(layout), r.RangeEnd.Format(layout),
			r.TotalWindows, r.WalkForwardEfficiency, r.Verdict)
	}
}
