package logging

import (
	"context"

	"go.uber.org/zap"

	"dubber/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for job identifiers.
	FieldJobID = "job_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldWorker is the standardized structured logging key for worker lane names.
	FieldWorker = "worker"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for dashboards and alerts.
	FieldEventType = "event_type"
	// FieldErrorHint tells an operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized zap fields from the provided context.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 4)
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, zap.Int64(FieldJobID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, zap.String(FieldStage, stage))
	}
	if worker, ok := services.WorkerFromContext(ctx); ok {
		fields = append(fields, zap.String(FieldWorker, worker))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, zap.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// NewComponentLogger creates a logger with a standardized component field.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *zap.Logger, component string) *zap.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(zap.String(FieldComponent, component))
}

// WarnWithContext logs a warning with enforced event_type, error_hint, and impact fields.
// Missing fields are filled with defaults so every warning carries cause, impact and next step.
func WarnWithContext(logger *zap.Logger, msg, eventType string, fields ...zap.Field) {
	if logger == nil {
		return
	}
	if !hasField(fields, FieldEventType) {
		fields = append(fields, zap.String(FieldEventType, eventType))
	}
	if !hasField(fields, FieldErrorHint) {
		fields = append(fields, zap.String(FieldErrorHint, "check logs for details"))
	}
	if !hasField(fields, FieldImpact) {
		fields = append(fields, zap.String(FieldImpact, "operation completed with warnings"))
	}
	logger.Warn(msg, fields...)
}

// ErrorWithContext logs an error with enforced event_type and error_hint fields.
func ErrorWithContext(logger *zap.Logger, msg, eventType string, fields ...zap.Field) {
	if logger == nil {
		return
	}
	if !hasField(fields, FieldEventType) {
		fields = append(fields, zap.String(FieldEventType, eventType))
	}
	if !hasField(fields, FieldErrorHint) {
		fields = append(fields, zap.String(FieldErrorHint, "check logs for details"))
	}
	logger.Error(msg, fields...)
}

func hasField(fields []zap.Field, key string) bool {
	for _, f := range fields {
		if f.Key == key {
			return true
		}
	}
	return false
}
