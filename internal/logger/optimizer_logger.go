// Package logger provides optimizer and runner logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// OptimizerLogger provides dedicated logging for parameter searches.
type OptimizerLogger struct {
	*logrus.Entry
}

// NewOptimizerLogger creates a new optimizer logger.
func NewOptimizerLogger(baseLogger *logrus.Logger) *OptimizerLogger {
	return &OptimizerLogger{
		Entry: baseLogger.WithField("component", "optimizer"),
	}
}

// LogSearchCompleted logs the result of one grid search.
func (ol *OptimizerLogger) LogSearchCompleted(strategy, period string, evaluated int, best string, score float64) {
	ol.WithFields(logrus.Fields{
		"strategy":  strategy,
		"period":    period,
		"evaluated": evaluated,
		"best":      best,
		"score":     score,
	}).Debug("Parameter search completed")
}

// LogCacheStats logs result cache effectiveness.
func (ol *OptimizerLogger) LogCacheStats(hits, misses int64, items int) {
	ol.WithFields(logrus.Fields{
		"cache_hits":   hits,
		"cache_misses": misses,
		"cache_items":  items,
	}).Debug("Result cache statistics")
}

// LogRunnerError logs a failed runner call.
func (ol *OptimizerLogger) LogRunnerError(strategy, parameters string, err error) {
	ol.WithFields(logrus.Fields{
		"strategy":   strategy,
		"parameters": parameters,
	}).WithError(err).Warn("Backtest runner call failed")
}
