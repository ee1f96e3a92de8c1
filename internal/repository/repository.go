// Package repository persists walk-forward reports.
package repository

import (
	"fmt"

	"github.com/yourusername/strategy-validator/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	WalkForward WalkForwardRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		WalkForward: NewPostgresWalkForwardRepository(db),
	}, nil
}
