package database

import (
	"context"
	"fmt"

	"github.com/yourusername/strategy-validator/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS walk_forward_runs (
	id                      UUID PRIMARY KEY,
	strategy                TEXT NOT NULL,
	strategy_version        TEXT NOT NULL DEFAULT '',
	mode                    TEXT NOT NULL,
	ranking_metric          TEXT NOT NULL,
	range_start             TIMESTAMPTZ NOT NULL,
	range_end               TIMESTAMPTZ NOT NULL,
	training_days           DOUBLE PRECISION NOT NULL,
	testing_days            DOUBLE PRECISION NOT NULL,
	step_days               DOUBLE PRECISION NOT NULL,
	total_windows           INTEGER NOT NULL,
	walk_forward_efficiency DOUBLE PRECISION NOT NULL,
	consistency             DOUBLE PRECISION NOT NULL,
	excluded_windows        INTEGER NOT NULL,
	mean_degradation        DOUBLE PRECISION NOT NULL,
	profitable_windows      INTEGER NOT NULL,
	verdict                 TEXT NOT NULL,
	settings                JSONB,
	started_at              TIMESTAMPTZ NOT NULL,
	completed_at            TIMESTAMPTZ NOT NULL,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_walk_forward_runs_strategy_completed
	ON walk_forward_runs (strategy, completed_at DESC);

CREATE TABLE IF NOT EXISTS walk_forward_windows (
	run_id                  UUID NOT NULL REFERENCES walk_forward_runs (id) ON DELETE CASCADE,
	window_index            INTEGER NOT NULL,
	training_start          TIMESTAMPTZ NOT NULL,
	training_end            TIMESTAMPTZ NOT NULL,
	testing_start           TIMESTAMPTZ NOT NULL,
	testing_end             TIMESTAMPTZ NOT NULL,
	parameter_hash          TEXT NOT NULL,
	parameters              JSONB NOT NULL,
	candidates_evaluated    INTEGER NOT NULL,
	training_score          DOUBLE PRECISION NOT NULL,
	testing_score           DOUBLE PRECISION NOT NULL,
	performance_degradation DOUBLE PRECISION NOT NULL,
	training_metrics        JSONB NOT NULL,
	testing_metrics         JSONB NOT NULL,
	PRIMARY KEY (run_id, window_index)
);
`

// Initialize creates a connection pool and makes sure the report tables exist
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the report tables when missing
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
