// Package export renders walk-forward reports for terminals, files and spreadsheets.
package export

import (
	"fmt"
	"strings"

	"github.com/yourusername/strategy-validator/internal/backtest"
)

// ConsoleReport formats a walk-forward report for terminal output
func ConsoleReport(report *backtest.WalkForwardReport) string {
	if report == nil {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("Walk-Forward Report\n")
	builder.WriteString("===================\n")
	builder.WriteString(fmt.Sprintf("Run ID: %s\n", report.RunID))
	builder.WriteString(fmt.Sprintf("Strategy: %s\n", report.Strategy.Key()))
	builder.WriteString(fmt.Sprintf("Range: %s\n", report.FullRange))
	builder.WriteString(fmt.Sprintf("Mode: %s (train %.0fd, test %.0fd, step %.0fd)\n",
		report.Policy.Mode,
		report.Policy.TrainingSize.Hours()/24,
		report.Policy.TestingSize.Hours()/24,
		report.Policy.StepSize.Hours()/24,
	))
	builder.WriteString(fmt.Sprintf("Ranking Metric: %s\n", report.RankingMetric))
	builder.WriteString("\n")

	if len(report.Windows) > 0 {
		builder.WriteString(fmt.Sprintf("%-4s %-12s %-12s %10s %10s %10s  %s\n",
			"#", "Train End", "Test End", "Train", "Test", "Degr.", "Parameters"))
		for _, w := range report.Windows {
			builder.WriteString(fmt.Sprintf("%-4d %-12s %-12s %10s %10s %9.1f%%  %s\n",
				w.Window.Index,
				w.Window.Training.End.Format("2006-01-02"),
				w.Window.Testing.End.Format("2006-01-02"),
				w.TrainingScore,
				w.TestingScore,
				w.PerformanceDegradation*100,
				w.Parameters,
			))
		}
		builder.WriteString("\n")
	}

	builder.WriteString(fmt.Sprintf("Windows: %d (excluded from efficiency: %d)\n", report.TotalWindows, report.ExcludedWindows))
	builder.WriteString(fmt.Sprintf("Profitable Windows: %d\n", report.ProfitableWindows))
	builder.WriteString(fmt.Sprintf("Walk-Forward Efficiency: %.2f\n", report.WalkForwardEfficiency))
	builder.WriteString(fmt.Sprintf("Consistency: %.4f\n", report.Consistency))
	builder.WriteString(fmt.Sprintf("Mean Degradation: %.1f%%\n", report.MeanDegradation*100))
	builder.WriteString(fmt.Sprintf("Verdict: %s\n", report.Verdict))
	return builder.String()
}
