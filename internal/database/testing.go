package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/yourusername/strategy-validator/internal/config"
)

// TestDSNEnv names the environment variable holding the integration test database config path
const TestDSNEnv = "STRATEGY_VALIDATOR_TEST_CONFIG"

// SetupTestDB connects to the database described by the config file named in
// STRATEGY_VALIDATOR_TEST_CONFIG, skipping the test when it is unset
func SetupTestDB(t *testing.T) *DB {
	t.Helper()
	path := os.Getenv(TestDSNEnv)
	if path == "" {
		t.Skipf("integration test: set %s to a config file with database settings", TestDSNEnv)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}
	return db
}

// TeardownTestDB removes test rows and closes the pool
func TeardownTestDB(t *testing.T, db *DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.pool.Exec(ctx, "TRUNCATE walk_forward_windows, walk_forward_runs"); err != nil {
		t.Logf("warning: failed to clean test database: %v", err)
	}
	db.Close()
}
