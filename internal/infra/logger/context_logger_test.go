package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(NewContextHandler(slog.NewJSONHandler(buf, nil)))
}

func TestContextHandler_AddsRequestScopedAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := contextTestLogger(&buf)

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = WithCollection(ctx, "rag_docs")
	ctx = WithStage(ctx, "retrieving")

	log.InfoContext(ctx, "probe_searches_started", slog.Int("probe_count", 3))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "req-123", record["qa.request.id"])
	assert.Equal(t, "rag_docs", record["qa.collection"])
	assert.Equal(t, "retrieving", record["qa.pipeline.stage"])
	assert.Equal(t, float64(3), record["probe_count"])
}

func TestContextHandler_BareContextAddsNothing(t *testing.T) {
	var buf bytes.Buffer
	log := contextTestLogger(&buf)

	log.InfoContext(context.Background(), "pipeline_started")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "qa.request.id")
	assert.NotContains(t, record, "qa.collection")
	assert.NotContains(t, record, "qa.pipeline.stage")
}

func TestContextHandler_PartialContext(t *testing.T) {
	var buf bytes.Buffer
	log := contextTestLogger(&buf)

	log.InfoContext(WithRequestID(context.Background(), "req-456"), "pipeline_completed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "req-456", record["qa.request.id"])
	assert.NotContains(t, record, "qa.pipeline.stage")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseLevel(tt.input), "level %q", tt.input)
	}
}
