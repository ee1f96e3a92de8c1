// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogReportPersisted logs a stored walk-forward report.
func (al *AuditLogger) LogReportPersisted(runID, strategy, verdict string, windows int, completedAt time.Time) {
	al.WithFields(logrus.Fields{
		"run_id":       runID,
		"strategy":     strategy,
		"verdict":      verdict,
		"windows":      windows,
		"completed_at": completedAt.Unix(),
	}).Info("Walk-forward report persisted")
}

// LogReportExported logs a report written to disk.
func (al *AuditLogger) LogReportExported(runID, format, path string) {
	al.WithFields(logrus.Fields{
		"run_id": runID,
		"format": format,
		"path":   path,
	}).Info("Walk-forward report exported")
}

// LogVerdictChange logs a robustness verdict that differs from the previous run.
func (al *AuditLogger) LogVerdictChange(strategy, oldVerdict, newVerdict string, efficiency float64) {
	al.WithFields(logrus.Fields{
		"strategy":    strategy,
		"old_verdict": oldVerdict,
		"new_verdict": newVerdict,
		"efficiency":  efficiency,
	}).Warn("Robustness verdict changed")
}

// LogCircuitBreakerEvent logs circuit breaker events.
func (al *AuditLogger) LogCircuitBreakerEvent(eventType, reason string, failures int) {
	al.WithFields(logrus.Fields{
		"event_type": eventType,
		"reason":     reason,
		"failures":   failures,
	}).Warn("Circuit breaker event recorded")
}
