package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/strategy-validator/internal/backtest"
	"github.com/yourusername/strategy-validator/internal/database"
	"github.com/yourusername/strategy-validator/internal/models"
	"github.com/yourusername/strategy-validator/internal/params"
)

func testReport(strategy string, completedAt time.Time, verdict backtest.Verdict) *backtest.WalkForwardReport {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	combo := params.NewCombination(map[string]params.Value{"fast": params.Int(10)})

	windows := make([]backtest.WindowResult, 0, 2)
	for i := 0; i < 2; i++ {
		trainStart := start.Add(time.Duration(30*i) * day)
		windows = append(windows, backtest.WindowResult{
			Window: backtest.Window{
				Index:    i,
				Training: backtest.Period{Start: trainStart, End: trainStart.Add(60 * day)},
				Testing:  backtest.Period{Start: trainStart.Add(60 * day), End: trainStart.Add(90 * day)},
			},
			Parameters:          combo,
			ParameterHash:       combo.Hash(),
			CandidatesEvaluated: 3,
			TrainingMetrics:     backtest.PerformanceMetrics{SharpeRatio: 2, TotalTrades: 10},
			TestingMetrics:      backtest.PerformanceMetrics{SharpeRatio: 1, TotalTrades: 4},
			TrainingScore:       2,
			TestingScore:        1,
		})
	}

	return &backtest.WalkForwardReport{
		RunID:         uuid.New(),
		Strategy:      backtest.StrategyTemplate{Name: strategy, Version: "1.0.0"},
		RankingMetric: backtest.RankSharpe,
		Policy:        backtest.NewDayPolicy(60, 30, 30, backtest.ModeRolling),
		FullRange:     backtest.Period{Start: start, End: start.Add(150 * day)},
		Windows:       windows,
		Summary: backtest.Summary{
			TotalWindows:          2,
			WalkForwardEfficiency: 0.5,
			ProfitableWindows:     2,
			MeanDegradation:       0.5,
			Verdict:               verdict,
		},
		StartedAt:   completedAt.Add(-time.Minute),
		CompletedAt: completedAt,
	}
}

func TestNewRepositoriesRequiresDB(t *testing.T) {
	_, err := NewRepositories(nil)
	assert.Error(t, err)
}

func TestMapWriteError(t *testing.T) {
	dup := mapWriteError("insert", &pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, dup, models.ErrDuplicateKey)

	wrapped := mapWriteError("insert", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"}))
	assert.ErrorIs(t, wrapped, models.ErrDuplicateKey)

	other := mapWriteError("insert", &pgconn.PgError{Code: "23503"})
	assert.False(t, errors.Is(other, models.ErrDuplicateKey))
	assert.Contains(t, other.Error(), "insert")
}

func TestWindowRowsMatchColumns(t *testing.T) {
	_, windows, err := models.FromReport(testReport("ma_cross", time.Now().UTC(), backtest.VerdictRobust))
	require.NoError(t, err)

	rows := windowRows(windows)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Len(t, row, len(windowColumns))
	}
	assert.Equal(t, 1, rows[1][1])
}

func TestSaveReportRejectsInvalidReport(t *testing.T) {
	repo := &PostgresWalkForwardRepository{}
	err := repo.SaveReport(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrInvalidReport)

	report := testReport("ma_cross", time.Now().UTC(), "")
	err = repo.SaveReport(context.Background(), report)
	assert.ErrorIs(t, err, models.ErrInvalidReport)
}

func TestWalkForwardRepositoryRoundTrip(t *testing.T) {
	db := database.SetupTestDB(t)
	defer database.TeardownTestDB(t, db)

	ctx := context.Background()
	repos, err := NewRepositories(db)
	require.NoError(t, err)
	repo := repos.WalkForward

	now := time.Now().UTC().Truncate(time.Microsecond)
	older := testReport("ma_cross", now.Add(-time.Hour), backtest.VerdictOverfit)
	newer := testReport("ma_cross", now, backtest.VerdictRobust)
	require.NoError(t, repo.SaveReport(ctx, older))
	require.NoError(t, repo.SaveReport(ctx, newer))

	err = repo.SaveReport(ctx, newer)
	assert.ErrorIs(t, err, models.ErrDuplicateKey)

	run, err := repo.GetRun(ctx, older.RunID)
	require.NoError(t, err)
	assert.Equal(t, "OVERFIT", run.Verdict)
	assert.Equal(t, 60.0, run.TrainingDays)

	latest, err := repo.GetLatest(ctx, "ma_cross")
	require.NoError(t, err)
	assert.Equal(t, newer.RunID, latest.ID)
	assert.Equal(t, newer.Summary, latest.Summary())

	runs, err := repo.ListRuns(ctx, "ma_cross", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.RunID, runs[0].ID)

	windows, err := repo.GetWindows(ctx, newer.RunID)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	result, err := windows[1].ToResult()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Window.Index)
	assert.Equal(t, newer.Windows[1].ParameterHash, result.Parameters.Hash())

	loaded, err := repo.LoadReport(ctx, newer.RunID)
	require.NoError(t, err)
	assert.Equal(t, newer.Summary, loaded.Summary)
	assert.Equal(t, newer.Policy, loaded.Policy)
	require.Len(t, loaded.Windows, 2)
	assert.Equal(t, newer.Windows[0].Window, loaded.Windows[0].Window)

	_, err = repo.LoadReport(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = repo.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = repo.GetLatest(ctx, "unknown")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
