package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Setup(&buf, level, false)
	t.Cleanup(func() { Setup(os.Stderr, slog.LevelInfo, false) })
	return &buf
}

func TestFieldsAreOrdered(t *testing.T) {
	buf := capture(t, slog.LevelInfo)
	Info("loaded", Fields{"layers": 3, "bpm": 140.0, "id": "abc"})
	out := buf.String()
	assert.Contains(t, out, "msg=loaded")
	assert.Contains(t, out, "bpm=140 id=abc layers=3")
}

func TestLevels(t *testing.T) {
	buf := capture(t, slog.LevelInfo)
	Debug("hidden", nil)
	Warn("skipped note", Fields{"layer": "Bells"})
	Error("render failed", errors.New("boom"), Fields{"composition_id": "c1"})
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN msg=\"skipped note\" layer=Bells")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "error=boom")
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, slog.LevelDebug, true)
	t.Cleanup(func() { Setup(os.Stderr, slog.LevelInfo, false) })
	Debug("tick", Fields{"frame": 10})
	assert.Contains(t, buf.String(), `"frame":10`)
}

func TestGenerationSpanCoversTheCall(t *testing.T) {
	buf := capture(t, slog.LevelInfo)
	ctx, span := StartGenerationSpan(context.Background(), "gemini-test")
	require.Same(t, span, sentry.SpanFromContext(ctx))
	time.Sleep(5 * time.Millisecond)

	d := LogGenerationRequest(span, "gemini-test", nil, Fields{"producer": "Burial"})
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	assert.Equal(t, d, span.EndTime.Sub(span.StartTime))
	assert.Equal(t, sentry.SpanStatusOK, span.Status)
	assert.Contains(t, buf.String(), `msg="Generation request completed"`)
	assert.Contains(t, buf.String(), "model=gemini-test producer=Burial")
}

func TestGenerationSpanRecordsFailure(t *testing.T) {
	buf := capture(t, slog.LevelInfo)
	_, span := StartGenerationSpan(context.Background(), "gemini-test")
	LogGenerationRequest(span, "gemini-test", errors.New("quota"), nil)
	assert.Equal(t, sentry.SpanStatusInternalError, span.Status)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "error=quota")
}
