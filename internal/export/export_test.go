package export

import (
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/strategy-validator/internal/backtest"
	"github.com/yourusername/strategy-validator/internal/params"
)

func sampleReport() *backtest.WalkForwardReport {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	combo := params.NewCombination(map[string]params.Value{
		"fast": params.Int(10),
		"stop": params.Float(0.02),
	})

	windows := []backtest.WindowResult{
		{
			Window: backtest.Window{
				Index:    0,
				Training: backtest.Period{Start: start, End: start.Add(60 * day)},
				Testing:  backtest.Period{Start: start.Add(60 * day), End: start.Add(90 * day)},
			},
			Parameters:             combo,
			ParameterHash:          combo.Hash(),
			CandidatesEvaluated:    12,
			TrainingScore:          2,
			TestingScore:           1,
			PerformanceDegradation: 0.5,
			TestingMetrics:         backtest.PerformanceMetrics{TotalReturn: 0.04, TotalTrades: 7, ProfitFactor: backtest.Ratio(math.Inf(1))},
		},
		{
			Window: backtest.Window{
				Index:    1,
				Training: backtest.Period{Start: start.Add(30 * day), End: start.Add(90 * day)},
				Testing:  backtest.Period{Start: start.Add(90 * day), End: start.Add(120 * day)},
			},
			Parameters:    combo,
			ParameterHash: combo.Hash(),
			TrainingScore: 1.5,
			TestingScore:  backtest.Ratio(math.Inf(1)),
		},
	}

	return &backtest.WalkForwardReport{
		RunID:         uuid.MustParse("6f1c2a3e-9d7b-4c1a-8e2f-0a1b2c3d4e5f"),
		Strategy:      backtest.StrategyTemplate{Name: "ma_cross", Version: "1.0.0"},
		RankingMetric: backtest.RankSharpe,
		Policy:        backtest.NewDayPolicy(60, 30, 30, backtest.ModeRolling),
		FullRange:     backtest.Period{Start: start, End: start.Add(120 * day)},
		Windows:       windows,
		Summary: backtest.Summary{
			TotalWindows:          2,
			WalkForwardEfficiency: 0.5,
			Consistency:           0,
			ExcludedWindows:       1,
			ProfitableWindows:     1,
			Verdict:               backtest.VerdictRobust,
		},
		StartedAt:   start,
		CompletedAt: start.Add(time.Minute),
	}
}

func TestConsoleReport(t *testing.T) {
	out := ConsoleReport(sampleReport())

	assert.Contains(t, out, "Walk-Forward Report")
	assert.Contains(t, out, "ma_cross@1.0.0")
	assert.Contains(t, out, "Walk-Forward Efficiency: 0.50")
	assert.Contains(t, out, "Verdict: ROBUST")
	assert.Contains(t, out, "+Inf")
	assert.Contains(t, out, "2023-03-02")
	assert.Empty(t, ConsoleReport(nil))
}

func TestExportToJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	require.NoError(t, ExportToJSON(sampleReport(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "ROBUST", decoded["verdict"])
	assert.Equal(t, "6f1c2a3e-9d7b-4c1a-8e2f-0a1b2c3d4e5f", decoded["run_id"])

	windows := decoded["windows"].([]any)
	require.Len(t, windows, 2)
	second := windows[1].(map[string]any)
	assert.Equal(t, "+Inf", second["testing_score"])
}

func TestExportToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, ExportToCSV(sampleReport(), path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "0", records[1][0])
	assert.Equal(t, "2023-03-02T00:00:00Z", records[1][2])
	assert.Equal(t, "2.000000", records[1][8])
	assert.Equal(t, "7", records[1][14])
	assert.Equal(t, "+Inf", records[2][9])
	assert.JSONEq(t, `{"fast":10,"stop":0.02}`, records[1][6])
}

func TestExportRequiresPath(t *testing.T) {
	assert.Error(t, ExportToJSON(sampleReport(), ""))
	assert.Error(t, ExportToCSV(sampleReport(), ""))
	assert.Error(t, ExportToCSV(nil, filepath.Join(t.TempDir(), "x.csv")))
}
