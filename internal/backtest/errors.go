package backtest

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig marks configuration problems detected before any window runs
	ErrInvalidConfig = errors.New("invalid walk-forward configuration")
	// ErrCancelled is reported when the caller cancels a run
	ErrCancelled = errors.New("walk-forward run cancelled")
)

// Stage names the collaborator call that failed inside a window
type Stage string

const (
	StageOptimize Stage = "optimize"
	StageBacktest Stage = "backtest"
)

// ConfigError describes an invalid policy, range or parameter space
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is match ErrInvalidConfig
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// WindowError wraps a collaborator failure with the window it happened in
type WindowError struct {
	Index int
	Stage Stage
	Err   error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("window %d %s failed: %v", e.Index, e.Stage, e.Err)
}

func (e *WindowError) Unwrap() error {
	return e.Err
}

// RunError is returned when a run stops before all windows complete.
// Partial holds the windows that finished, in index order.
type RunError struct {
	WindowIndex int
	Stage       Stage
	Cancelled   bool
	Partial     []WindowResult
	Err         error
}

func (e *RunError) Error() string {
	if e.Cancelled {
		return fmt.Sprintf("walk-forward run cancelled after %d completed windows", len(e.Partial))
	}
	return fmt.Sprintf("walk-forward run failed at window %d (%s): %v", e.WindowIndex, e.Stage, e.Err)
}

// Unwrap exposes the cause, plus ErrCancelled for cancelled runs
func (e *RunError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Cancelled {
		errs = append(errs, ErrCancelled)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
