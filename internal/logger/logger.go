// Package logger writes structured logs and mirrors them to Sentry when a
// client is configured.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

// Fields represents structured log fields
type Fields map[string]interface{}

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// Setup replaces the output handler. JSON output is used in production.
func Setup(w io.Writer, level slog.Level, json bool) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if json {
		h = slog.NewJSONHandler(w, opts)
	}
	current.Store(slog.New(h))
}

// Info logs an informational message with structured fields
func Info(msg string, fields Fields) {
	current.Load().Info(msg, attrs(fields)...)
	breadcrumb("info", sentry.LevelInfo, msg, fields)
}

// Warn logs a warning message with structured fields
func Warn(msg string, fields Fields) {
	current.Load().Warn(msg, attrs(fields)...)
	breadcrumb("warning", sentry.LevelWarning, msg, fields)
}

// Debug logs a debug message with structured fields
func Debug(msg string, fields Fields) {
	current.Load().Debug(msg, attrs(fields)...)
	breadcrumb("debug", sentry.LevelDebug, msg, fields)
}

// Error logs an error message with structured fields and sends to Sentry
func Error(msg string, err error, fields Fields) {
	current.Load().Error(msg, append(attrs(fields), slog.Any("error", err))...)

	if hub := sentry.CurrentHub(); hub.Client() != nil && err != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			for key, value := range fields {
				scope.SetContext(key, map[string]interface{}{
					"value": value,
				})
			}
			if id, ok := fields["composition_id"].(string); ok {
				scope.SetTag("composition_id", id)
			}
			if model, ok := fields["model"].(string); ok {
				scope.SetTag("model", model)
			}
			hub.CaptureException(err)
		})
	}
}

// StartGenerationSpan opens a Sentry span covering one model call. The
// returned context carries the span; pass the span to
// LogGenerationRequest once the call returns.
func StartGenerationSpan(ctx context.Context, model string) (context.Context, *sentry.Span) {
	span := sentry.StartSpan(ctx, "gemini.generate")
	span.Description = model
	span.SetData("model", model)
	return span.Context(), span
}

// LogGenerationRequest finishes span and logs the call it covered. A
// non-nil err marks the span failed and is logged as an error.
func LogGenerationRequest(span *sentry.Span, model string, err error, fields Fields) time.Duration {
	if fields == nil {
		fields = Fields{}
	}
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
	} else {
		span.Status = sentry.SpanStatusOK
	}
	span.Finish()

	duration := span.EndTime.Sub(span.StartTime)
	fields["model"] = model
	fields["duration_ms"] = duration.Milliseconds()
	if err != nil {
		Error("Generation request failed", err, fields)
	} else {
		Info("Generation request completed", fields)
	}
	return duration
}

func breadcrumb(kind string, level sentry.Level, msg string, fields Fields) {
	if hub := sentry.CurrentHub(); hub.Client() != nil {
		sentry.AddBreadcrumb(&sentry.Breadcrumb{
			Type:     kind,
			Category: "log",
			Message:  msg,
			Data:     map[string]interface{}(fields),
			Level:    level,
		})
	}
}

// attrs flattens fields in key order so output is stable.
func attrs(fields Fields) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, slog.Any(k, fields[k]))
	}
	return out
}
