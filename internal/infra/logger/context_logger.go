// ABOUTME: This file provides context-aware structured logging for the retrieval pipeline
// ABOUTME: Supports request ID, collection, and pipeline stage propagation with JSON output format
package logger

import (
	"context"
	"log/slog"
)

type ContextKey string

const (
	// Business context keys following OpenTelemetry semantic conventions
	// with a 'qa.' prefix
	RequestIDKey  ContextKey = "qa.request.id"
	CollectionKey ContextKey = "qa.collection"
	StageKey      ContextKey = "qa.pipeline.stage"
)

// ContextHandler wraps an slog.Handler to add pipeline business context
// (request ID, collection, stage) from the context to every log record.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler creates a new ContextHandler wrapping the provided handler.
func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

// Enabled delegates to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds the business context to the record before delegating.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		r.AddAttrs(slog.String(string(RequestIDKey), requestID))
	}
	if collection, ok := ctx.Value(CollectionKey).(string); ok {
		r.AddAttrs(slog.String(string(CollectionKey), collection))
	}
	if stage, ok := ctx.Value(StageKey).(string); ok {
		r.AddAttrs(slog.String(string(StageKey), stage))
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a new handler with the given group appended.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}

// Context helper functions

// WithRequestID adds the request ID to context for observability
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithCollection adds the collection name to context for observability
func WithCollection(ctx context.Context, collection string) context.Context {
	return context.WithValue(ctx, CollectionKey, collection)
}

// WithStage adds the pipeline stage to context for observability
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
