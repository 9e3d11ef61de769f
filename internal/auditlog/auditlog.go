// Package auditlog provides structured, leveled logging of workflow
// state transitions, retry/refine loops, and FK-inference decisions —
// the kind of record an operator greps across runs, distinct from the
// interactive progress output in internal/progresslog.
package auditlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Entry scoped to one request.
type Logger struct {
	entry *logrus.Entry
}

// New creates a request-scoped Logger. requestID ties every line back
// to one query() call so transitions from concurrent requests can be
// told apart in a shared log stream.
func New(requestID string) *Logger {
	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{})
	base.SetOutput(os.Stderr)
	return &Logger{entry: base.WithField("request_id", requestID)}
}

// Node logs a workflow node transition.
func (l *Logger) Node(node string, fields map[string]interface{}) {
	l.entry.WithField("node", node).WithFields(fields).Info("node transition")
}

// Retry logs an error-retry loop iteration.
func (l *Logger) Retry(retryCount int, errText string) {
	l.entry.WithFields(logrus.Fields{
		"retry_count": retryCount,
		"error":       errText,
	}).Warn("execution retry")
}

// Refine logs an empty-result refinement iteration.
func (l *Logger) Refine(refinedCount int, reasoning string) {
	l.entry.WithFields(logrus.Fields{
		"refined_count": refinedCount,
		"reasoning":     reasoning,
	}).Info("result refinement")
}

// FKDecision logs one FK-inference or FK-agent decision.
func (l *Logger) FKDecision(table, column, decisionType string, confidence float64) {
	l.entry.WithFields(logrus.Fields{
		"table":         table,
		"fk_column":     column,
		"decision_type": decisionType,
		"confidence":    confidence,
	}).Info("fk decision")
}

// Error logs a fatal, request-ending error.
func (l *Logger) Error(kind string, err error) {
	l.entry.WithFields(logrus.Fields{
		"kind":  kind,
		"error": err.Error(),
	}).Error("request failed")
}
