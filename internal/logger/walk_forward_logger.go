// Package logger provides walk-forward run logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// WalkForwardLogger provides dedicated logging for walk-forward runs.
type WalkForwardLogger struct {
	*logrus.Entry
}

// NewWalkForwardLogger creates a new walk-forward logger.
func NewWalkForwardLogger(baseLogger *logrus.Logger) *WalkForwardLogger {
	return &WalkForwardLogger{
		Entry: baseLogger.WithField("component", "walk_forward"),
	}
}

// ForRun returns a logger that tags every entry with the run and strategy.
func (wl *WalkForwardLogger) ForRun(runID, strategy string) *WalkForwardLogger {
	return &WalkForwardLogger{
		Entry: wl.WithFields(logrus.Fields{
			"run_id":   runID,
			"strategy": strategy,
		}),
	}
}

// LogRunStarted logs the start of a run.
func (wl *WalkForwardLogger) LogRunStarted(mode string, windows, combinations, concurrency int) {
	wl.WithFields(logrus.Fields{
		"mode":         mode,
		"windows":      windows,
		"combinations": combinations,
		"concurrency":  concurrency,
	}).Info("Walk-forward run started")
}

// LogWindowCompleted logs one evaluated window.
func (wl *WalkForwardLogger) LogWindowCompleted(index int, parameters string, trainScore, testScore, degradation float64, duration time.Duration) {
	wl.WithFields(logrus.Fields{
		"window":      index,
		"parameters":  parameters,
		"train_score": trainScore,
		"test_score":  testScore,
		"degradation": degradation,
		"duration_ms": duration.Milliseconds(),
	}).Info("Walk-forward window completed")
}

// LogRunCompleted logs the aggregate outcome of a run.
func (wl *WalkForwardLogger) LogRunCompleted(windows int, efficiency, consistency float64, verdict string, duration time.Duration) {
	wl.WithFields(logrus.Fields{
		"windows":     windows,
		"efficiency":  efficiency,
		"consistency": consistency,
		"verdict":     verdict,
		"duration_ms": duration.Milliseconds(),
	}).Info("Walk-forward run completed")
}

// LogRunFailed logs a failed run.
func (wl *WalkForwardLogger) LogRunFailed(windowIndex int, stage string, completed int, err error) {
	wl.WithFields(logrus.Fields{
		"window":    windowIndex,
		"stage":     stage,
		"completed": completed,
	}).WithError(err).Error("Walk-forward run failed")
}

// LogRunCancelled logs a cancelled run.
func (wl *WalkForwardLogger) LogRunCancelled(completed int) {
	wl.WithField("completed", completed).Warn("Walk-forward run cancelled")
}
