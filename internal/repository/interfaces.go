package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/strategy-validator/internal/backtest"
	"github.com/yourusername/strategy-validator/internal/models"
)

// WalkForwardRepository defines the interface for walk-forward report storage
type WalkForwardRepository interface {
	SaveReport(ctx context.Context, report *backtest.WalkForwardReport) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.WalkForwardRun, error)
	GetLatest(ctx context.Context, strategy string) (*models.WalkForwardRun, error)
	GetWindows(ctx context.Context, runID uuid.UUID) ([]*models.WalkForwardWindow, error)
	ListRuns(ctx context.Context, strategy string, limit int) ([]*models.WalkForwardRun, error)
	LoadReport(ctx context.Context, id uuid.UUID) (*backtest.WalkForwardReport, error)
}
