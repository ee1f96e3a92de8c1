// Package models defines the persisted forms of walk-forward reports.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/yourusername/strategy-validator/internal/backtest"
	"github.com/yourusername/strategy-validator/internal/params"
)

var validate = validator.New()

// WalkForwardRun is one stored walk-forward report header with its summary
type WalkForwardRun struct {
	ID                    uuid.UUID       `db:"id" json:"id" validate:"required"`
	Strategy              string          `db:"strategy" json:"strategy" validate:"required"`
	StrategyVersion       string          `db:"strategy_version" json:"strategy_version"`
	Mode                  string          `db:"mode" json:"mode" validate:"required,oneof=rolling anchored"`
	RankingMetric         string          `db:"ranking_metric" json:"ranking_metric" validate:"required"`
	RangeStart            time.Time       `db:"range_start" json:"range_start" validate:"required"`
	RangeEnd              time.Time       `db:"range_end" json:"range_end" validate:"required,gtfield=RangeStart"`
	TrainingDays          float64         `db:"training_days" json:"training_days" validate:"gt=0"`
	TestingDays           float64         `db:"testing_days" json:"testing_days" validate:"gt=0"`
	StepDays              float64         `db:"step_days" json:"step_days" validate:"gt=0"`
	TotalWindows          int             `db:"total_windows" json:"total_windows" validate:"gte=0"`
	WalkForwardEfficiency float64         `db:"walk_forward_efficiency" json:"walk_forward_efficiency"`
	Consistency           float64         `db:"consistency" json:"consistency" validate:"gte=0"`
	ExcludedWindows       int             `db:"excluded_windows" json:"excluded_windows" validate:"gte=0"`
	MeanDegradation       float64         `db:"mean_degradation" json:"mean_degradation"`
	ProfitableWindows     int             `db:"profitable_windows" json:"profitable_windows" validate:"gte=0"`
	Verdict               string          `db:"verdict" json:"verdict" validate:"required,oneof=ROBUST MARGINAL OVERFIT"`
	Settings              json.RawMessage `db:"settings" json:"settings,omitempty"`
	StartedAt             time.Time       `db:"started_at" json:"started_at"`
	CompletedAt           time.Time       `db:"completed_at" json:"completed_at"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
}

// WalkForwardWindow is one stored window result
type WalkForwardWindow struct {
	RunID                  uuid.UUID       `db:"run_id" json:"run_id" validate:"required"`
	WindowIndex            int             `db:"window_index" json:"window_index" validate:"gte=0"`
	TrainingStart          time.Time       `db:"training_start" json:"training_start"`
	TrainingEnd            time.Time       `db:"training_end" json:"training_end" validate:"gtfield=TrainingStart"`
	TestingStart           time.Time       `db:"testing_start" json:"testing_start"`
	TestingEnd             time.Time       `db:"testing_end" json:"testing_end" validate:"gtfield=TestingStart"`
	ParameterHash          string          `db:"parameter_hash" json:"parameter_hash" validate:"required,len=64,hexadecimal"`
	Parameters             json.RawMessage `db:"parameters" json:"parameters" validate:"required"`
	CandidatesEvaluated    int             `db:"candidates_evaluated" json:"candidates_evaluated" validate:"gte=0"`
	TrainingScore          float64         `db:"training_score" json:"training_score"`
	TestingScore           float64         `db:"testing_score" json:"testing_score"`
	PerformanceDegradation float64         `db:"performance_degradation" json:"performance_degradation"`
	TrainingMetrics        json.RawMessage `db:"training_metrics" json:"training_metrics" validate:"required"`
	TestingMetrics         json.RawMessage `db:"testing_metrics" json:"testing_metrics" validate:"required"`
}

// Validate checks the row against its struct tags
func (r *WalkForwardRun) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return nil
}

// Validate checks the row against its struct tags
func (w *WalkForwardWindow) Validate() error {
	if err := validate.Struct(w); err != nil {
		return fmt.Errorf("%w: window %d: %v", ErrInvalidReport, w.WindowIndex, err)
	}
	return nil
}

// Summary rebuilds the cross-window summary stored on the run
func (r *WalkForwardRun) Summary() backtest.Summary {
	return backtest.Summary{
		TotalWindows:          r.TotalWindows,
		WalkForwardEfficiency: r.WalkForwardEfficiency,
		Consistency:           r.Consistency,
		ExcludedWindows:       r.ExcludedWindows,
		MeanDegradation:       r.MeanDegradation,
		ProfitableWindows:     r.ProfitableWindows,
		Verdict:               backtest.Verdict(r.Verdict),
	}
}

// FromReport converts a report into its run row and window rows
func FromReport(report *backtest.WalkForwardReport) (*WalkForwardRun, []*WalkForwardWindow, error) {
	if report == nil {
		return nil, nil, fmt.Errorf("%w: report is nil", ErrInvalidReport)
	}

	var settings json.RawMessage
	if len(report.Strategy.Settings) > 0 {
		data, err := json.Marshal(report.Strategy.Settings)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal strategy settings: %w", err)
		}
		settings = data
	}

	run := &WalkForwardRun{
		ID:                    report.RunID,
		Strategy:              report.Strategy.Name,
		StrategyVersion:       report.Strategy.Version,
		Mode:                  string(report.Policy.Mode),
		RankingMetric:         string(report.RankingMetric),
		RangeStart:            report.FullRange.Start,
		RangeEnd:              report.FullRange.End,
		TrainingDays:          report.Policy.TrainingSize.Hours() / 24,
		TestingDays:           report.Policy.TestingSize.Hours() / 24,
		StepDays:              report.Policy.StepSize.Hours() / 24,
		TotalWindows:          report.TotalWindows,
		WalkForwardEfficiency: report.WalkForwardEfficiency,
		Consistency:           report.Consistency,
		ExcludedWindows:       report.ExcludedWindows,
		MeanDegradation:       report.MeanDegradation,
		ProfitableWindows:     report.ProfitableWindows,
		Verdict:               string(report.Verdict),
		Settings:              settings,
		StartedAt:             report.StartedAt,
		CompletedAt:           report.CompletedAt,
	}
	if err := run.Validate(); err != nil {
		return nil, nil, err
	}

	windows := make([]*WalkForwardWindow, 0, len(report.Windows))
	for _, w := range report.Windows {
		row, err := windowFromResult(report.RunID, w)
		if err != nil {
			return nil, nil, err
		}
		windows = append(windows, row)
	}
	return run, windows, nil
}

func windowFromResult(runID uuid.UUID, w backtest.WindowResult) (*WalkForwardWindow, error) {
	parameters, err := json.Marshal(w.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}
	training, err := json.Marshal(w.TrainingMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal training metrics: %w", err)
	}
	testing, err := json.Marshal(w.TestingMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal testing metrics: %w", err)
	}

	row := &WalkForwardWindow{
		RunID:                  runID,
		WindowIndex:            w.Window.Index,
		TrainingStart:          w.Window.Training.Start,
		TrainingEnd:            w.Window.Training.End,
		TestingStart:           w.Window.Testing.Start,
		TestingEnd:             w.Window.Testing.End,
		ParameterHash:          w.ParameterHash,
		Parameters:             parameters,
		CandidatesEvaluated:    w.CandidatesEvaluated,
		TrainingScore:          w.TrainingScore.Float64(),
		TestingScore:           w.TestingScore.Float64(),
		PerformanceDegradation: w.PerformanceDegradation,
		TrainingMetrics:        training,
		TestingMetrics:         testing,
	}
	if err := row.Validate(); err != nil {
		return nil, err
	}
	return row, nil
}

// ToResult converts a stored window back into a window result
func (w *WalkForwardWindow) ToResult() (backtest.WindowResult, error) {
	var combination params.Combination
	if err := json.Unmarshal(w.Parameters, &combination); err != nil {
		return backtest.WindowResult{}, err
	}
	var training, testing backtest.PerformanceMetrics
	if err := json.Unmarshal(w.TrainingMetrics, &training); err != nil {
		return backtest.WindowResult{}, fmt.Errorf("failed to decode training metrics: %w", err)
	}
	if err := json.Unmarshal(w.TestingMetrics, &testing); err != nil {
		return backtest.WindowResult{}, fmt.Errorf("failed to decode testing metrics: %w", err)
	}
	return backtest.WindowResult{
		Window: backtest.Window{
			Index:    w.WindowIndex,
			Training: backtest.Period{Start: w.TrainingStart, End: w.TrainingEnd},
			Testing:  backtest.Period{Start: w.TestingStart, End: w.TestingEnd},
		},
		Parameters:             combination,
		ParameterHash:          w.ParameterHash,
		CandidatesEvaluated:    w.CandidatesEvaluated,
		TrainingMetrics:        training,
		TestingMetrics:         testing,
		TrainingScore:          backtest.Ratio(w.TrainingScore),
		TestingScore:           backtest.Ratio(w.TestingScore),
		PerformanceDegradation: w.PerformanceDegradation,
	}, nil
}

// ToReport rebuilds the report stored as r and its window rows
func (r *WalkForwardRun) ToReport(windows []*WalkForwardWindow) (*backtest.WalkForwardReport, error) {
	var settings map[string]any
	if len(r.Settings) > 0 {
		if err := json.Unmarshal(r.Settings, &settings); err != nil {
			return nil, fmt.Errorf("failed to decode strategy settings: %w", err)
		}
	}

	results := make([]backtest.WindowResult, 0, len(windows))
	for _, w := range windows {
		if w.RunID != r.ID {
			return nil, fmt.Errorf("%w: window %d belongs to run %s", ErrInvalidReport, w.WindowIndex, w.RunID)
		}
		result, err := w.ToResult()
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", w.WindowIndex, err)
		}
		results = append(results, result)
	}

	day := float64(24 * time.Hour)
	return &backtest.WalkForwardReport{
		RunID:         r.ID,
		Strategy:      backtest.StrategyTemplate{Name: r.Strategy, Version: r.StrategyVersion, Settings: settings},
		RankingMetric: backtest.RankingMetric(r.RankingMetric),
		Policy: backtest.WindowPolicy{
			TrainingSize: time.Duration(r.TrainingDays * day),
			TestingSize:  time.Duration(r.TestingDays * day),
			StepSize:     time.Duration(r.StepDays * day),
			Mode:         backtest.Mode(r.Mode),
		},
		FullRange:   backtest.Period{Start: r.RangeStart, End: r.RangeEnd},
		Windows:     results,
		Summary:     r.Summary(),
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}, nil
}
