package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yourusername/strategy-validator/internal/backtest"
	"github.com/yourusername/strategy-validator/internal/database"
	"github.com/yourusername/strategy-validator/internal/metrics"
	"github.com/yourusername/strategy-validator/internal/models"
)

const (
	errScanRun         = "failed to scan walk-forward run: %w"
	uniqueViolationSQL = "23505"

	runColumns = `id, strategy, strategy_version, mode, ranking_metric, range_start, range_end,
		training_days, testing_days, step_days, total_windows, walk_forward_efficiency,
		consistency, excluded_windows, mean_degradation, profitable_windows, verdict,
		settings, started_at, completed_at, created_at`
)

var windowColumns = []string{
	"run_id", "window_index", "training_start", "training_end", "testing_start", "testing_end",
	"parameter_hash", "parameters", "candidates_evaluated", "training_score", "testing_score",
	"performance_degradation", "training_metrics", "testing_metrics",
}

// PostgresWalkForwardRepository implements WalkForwardRepository for PostgreSQL
type PostgresWalkForwardRepository struct {
	db *database.DB
}

// NewPostgresWalkForwardRepository creates a new walk-forward repository
func NewPostgresWalkForwardRepository(db *database.DB) WalkForwardRepository {
	return &PostgresWalkForwardRepository{db: db}
}

// SaveReport stores the run and all of its windows in one transaction
func (r *PostgresWalkForwardRepository) SaveReport(ctx context.Context, report *backtest.WalkForwardReport) error {
	run, windows, err := models.FromReport(report)
	if err != nil {
		metrics.RecordReportPersisted("invalid")
		return err
	}

	err = r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		q := r.db.Querier(txCtx)
		if err := insertRun(txCtx, q, run); err != nil {
			return err
		}
		if len(windows) == 0 {
			return nil
		}
		count, err := q.CopyFrom(txCtx, pgx.Identifier{"walk_forward_windows"}, windowColumns, pgx.CopyFromRows(windowRows(windows)))
		if err != nil {
			return fmt.Errorf("failed to copy walk-forward windows: %w", err)
		}
		if int(count) != len(windows) {
			return fmt.Errorf("copied %d of %d walk-forward windows", count, len(windows))
		}
		return nil
	})
	if err != nil {
		metrics.RecordReportPersisted("failure")
		return err
	}
	metrics.RecordReportPersisted("success")
	return nil
}

func insertRun(ctx context.Context, q database.Querier, run *models.WalkForwardRun) error {
	query := `
		INSERT INTO walk_forward_runs (
			id, strategy, strategy_version, mode, ranking_metric, range_start, range_end,
			training_days, testing_days, step_days, total_windows, walk_forward_efficiency,
			consistency, excluded_windows, mean_degradation, profitable_windows, verdict,
			settings, started_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`
	_, err := q.Exec(ctx, query,
		run.ID, run.Strategy, run.StrategyVersion, run.Mode, run.RankingMetric, run.RangeStart, run.RangeEnd,
		run.TrainingDays, run.TestingDays, run.StepDays, run.TotalWindows, run.WalkForwardEfficiency,
		run.Consistency, run.ExcludedWindows, run.MeanDegradation, run.ProfitableWindows, run.Verdict,
		run.Settings, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		return mapWriteError("failed to insert walk-forward run", err)
	}
	return nil
}

func windowRows(windows []*models.WalkForwardWindow) [][]any {
	rows := make([][]any, 0, len(windows))
	for _, w := range windows {
		rows = append(rows, []any{
			w.RunID, w.WindowIndex, w.TrainingStart, w.TrainingEnd, w.TestingStart, w.TestingEnd,
			w.ParameterHash, w.Parameters, w.CandidatesEvaluated, w.TrainingScore, w.TestingScore,
			w.PerformanceDegradation, w.TrainingMetrics, w.TestingMetrics,
		})
	}
	return rows
}

// mapWriteError converts unique violations into models.ErrDuplicateKey
func mapWriteError(msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationSQL {
		return fmt.Errorf("%s: %w", msg, models.ErrDuplicateKey)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// GetRun retrieves a run by ID
func (r *PostgresWalkForwardRepository) GetRun(ctx context.Context, id uuid.UUID) (*models.WalkForwardRun, error) {
	query := `SELECT ` + runColumns + ` FROM walk_forward_runs WHERE id = $1`
	run, err := scanRun(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf(errScanRun, err)
	}
	return run, nil
}

// GetLatest retrieves the most recently completed run for a strategy
func (r *PostgresWalkForwardRepository) GetLatest(ctx context.Context, strategy string) (*models.WalkForwardRun, error) {
	query := `SELECT ` + runColumns + ` FROM walk_forward_runs
		WHERE strategy = $1 ORDER BY completed_at DESC LIMIT 1`
	run, err := scanRun(r.db.Querier(ctx).QueryRow(ctx, query, strategy))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf(errScanRun, err)
	}
	return run, nil
}

// ListRuns retrieves recent runs for a strategy, newest first
func (r *PostgresWalkForwardRepository) ListRuns(ctx context.Context, strategy string, limit int) ([]*models.WalkForwardRun, error) {
	query := `SELECT ` + runColumns + ` FROM walk_forward_runs
		WHERE strategy = $1 ORDER BY completed_at DESC LIMIT $2`
	rows, err := r.db.Querier(ctx).Query(ctx, query, strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query walk-forward runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.WalkForwardRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanRun, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetWindows retrieves the windows of a run in index order
func (r *PostgresWalkForwardRepository) GetWindows(ctx context.Context, runID uuid.UUID) ([]*models.WalkForwardWindow, error) {
	query := `
		SELECT run_id, window_index, training_start, training_end, testing_start, testing_end,
			parameter_hash, parameters, candidates_evaluated, training_score, testing_score,
			performance_degradation, training_metrics, testing_metrics
		FROM walk_forward_windows WHERE run_id = $1 ORDER BY window_index
	`
	rows, err := r.db.Querier(ctx).Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query walk-forward windows: %w", err)
	}
	defer rows.Close()

	var windows []*models.WalkForwardWindow
	for rows.Next() {
		w := &models.WalkForwardWindow{}
		if err := rows.Scan(
			&w.RunID, &w.WindowIndex, &w.TrainingStart, &w.TrainingEnd, &w.TestingStart, &w.TestingEnd,
			&w.ParameterHash, &w.Parameters, &w.CandidatesEvaluated, &w.TrainingScore, &w.TestingScore,
			&w.PerformanceDegradation, &w.TrainingMetrics, &w.TestingMetrics,
		); err != nil {
			return nil, fmt.Errorf("failed to scan walk-forward window: %w", err)
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// LoadReport rebuilds a stored report with its windows
func (r *PostgresWalkForwardRepository) LoadReport(ctx context.Context, id uuid.UUID) (*backtest.WalkForwardReport, error) {
	run, err := r.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	windows, err := r.GetWindows(ctx, id)
	if err != nil {
		return nil, err
	}
	return run.ToReport(windows)
}

func scanRun(row pgx.Row) (*models.WalkForwardRun, error) {
	run := &models.WalkForwardRun{}
	err := row.Scan(
		&run.ID, &run.Strategy, &run.StrategyVersion, &run.Mode, &run.RankingMetric, &run.RangeStart, &run.RangeEnd,
		&run.TrainingDays, &run.TestingDays, &run.StepDays, &run.TotalWindows, &run.WalkForwardEfficiency,
		&run.Consistency, &run.ExcludedWindows, &run.MeanDegradation, &run.ProfitableWindows, &run.Verdict,
		&run.Settings, &run.StartedAt, &run.CompletedAt, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}
