package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Item outcomes reported by the harvester
const (
	OutcomeAdded          = "added"
	OutcomeAlreadyPresent = "already_present"
	OutcomeSkipped        = "skipped"
	OutcomeFailed         = "failed"
)

// LogItemOutcome logs the terminal state of one catalog item
func LogItemOutcome(l Logger, itemID, title, outcome string, err error) {
	fields := map[string]interface{}{
		"item_id": itemID,
		"outcome": outcome,
	}
	if title != "" {
		fields["title"] = title
	}

	switch {
	case err != nil:
		l.WithError(err).ErrorWithFields("Item failed", fields)
	case outcome == OutcomeAdded:
		l.InfoWithFields("Item added to consumer", fields)
	default:
		l.DebugWithFields("Item not added", fields)
	}
}

// LogPageProgress logs the end of one listing page
func LogPageProgress(l Logger, page, items, dispatched, total int) {
	l.InfoWithFields("Page processed", map[string]interface{}{
		"page":             page,
		"items":            items,
		"dispatched":       dispatched,
		"dispatched_total": total,
	})
}

// LogRateLimit logs a rate-limit backoff
func LogRateLimit(l Logger, itemID string, attempt int, wait time.Duration) {
	l.WithFields(map[string]interface{}{
		"item_id": itemID,
		"attempt": attempt,
		"wait":    wait,
		"action":  "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	logger := GetLogger().WithField("component", component)
	if len(config) > 0 {
		logger = logger.WithFields(config)
	}
	logger.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogMetrics logs a summary block for an operation
func LogMetrics(l Logger, operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	l.InfoWithFields("Run summary", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { nop := zerolog.Nop(); return &nop }
