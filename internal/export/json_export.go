package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yourusername/strategy-validator/internal/backtest"
)

// csvHeader lists the columns written by ExportToCSV
var csvHeader = []string{
	"window", "training_start", "training_end", "testing_start", "testing_end",
	"parameter_hash", "parameters", "candidates",
	"training_score", "testing_score", "degradation",
	"testing_total_return", "testing_max_drawdown", "testing_win_rate", "testing_trades",
}

// ExportToJSON writes the full report as indented JSON
func ExportToJSON(report *backtest.WalkForwardReport, outputPath string) error {
	if report == nil {
		return fmt.Errorf("report is required")
	}
	if err := ensureDir(outputPath); err != nil {
		return err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(outputPath, data, 0o644)
}

// ExportToCSV writes one row per window
func ExportToCSV(report *backtest.WalkForwardReport, outputPath string) error {
	if report == nil {
		return fmt.Errorf("report is required")
	}
	if err := ensureDir(outputPath); err != nil {
		return err
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, w := range report.Windows {
		if err := writer.Write(windowRecord(w)); err != nil {
			return fmt.Errorf("failed to write window %d: %w", w.Window.Index, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return file.Close()
}

func windowRecord(w backtest.WindowResult) []string {
	const layout = "2006-01-02T15:04:05Z07:00"
	parameters, _ := json.Marshal(w.Parameters)
	return []string{
		strconv.Itoa(w.Window.Index),
		w.Window.Training.Start.Format(layout),
		w.Window.Training.End.Format(layout),
		w.Window.Testing.Start.Format(layout),
		w.Window.Testing.End.Format(layout),
		w.ParameterHash,
		string(parameters),
		strconv.Itoa(w.CandidatesEvaluated),
		ratioField(w.TrainingScore),
		ratioField(w.TestingScore),
		formatFloat(w.PerformanceDegradation),
		formatFloat(w.TestingMetrics.TotalReturn),
		formatFloat(w.TestingMetrics.MaxDrawdown),
		formatFloat(w.TestingMetrics.WinRate),
		strconv.Itoa(w.TestingMetrics.TotalTrades),
	}
}

func ratioField(r backtest.Ratio) string {
	if r.IsInf() {
		return r.String()
	}
	return formatFloat(r.Float64())
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func ensureDir(outputPath string) error {
	if outputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}
