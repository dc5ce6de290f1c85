package logging

import (
	"context"
	"log/slog"

	"feed2podcast/internal/services"
)

const (
	// FieldComponent names the subsystem emitting a log line.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldCorrelationID carries the HTTP request identifier.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags anomalies that should stand out.
	FieldAlert = "alert"
	FieldVoice = "voice"
	FieldURL   = "url"
	FieldUID   = "uid"
	FieldPath  = "path"
)

// ContextFields extracts standardized attributes from ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	if ep, ok := services.EpisodeFromContext(ctx); ok {
		for _, f := range []slog.Attr{
			slog.String(FieldURL, ep.FeedURL),
			slog.String(FieldUID, ep.UID),
			slog.String(FieldVoice, ep.Voice),
		} {
			if f.Value.String() != "" {
				fields = append(fields, f)
			}
		}
	}
	return fields
}

// WithContext returns logger augmented with fields derived from ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
