// Package tracing связывает обработку уведомлений и сброс счётчиков с
// OpenTelemetry: спаны экспортируются по OTLP HTTP, а trace ID кладётся в
// context, чтобы попадать в логи и заголовки запросов к backend'у.
//
// При выключенном трейсинге trace ID всё равно генерируется локально в
// формате W3C (32 hex символа).
package tracing

import (
	"context"
	"crypto/rand"

	"go.opentelemetry.io/otel/trace"
)

type traceIDKey struct{}

// WithTraceID возвращает context с trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceIDFromContext возвращает trace ID или пустую строку.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// newTraceID генерирует случайный trace ID. Ошибка crypto/rand даёт пустую
// строку: корреляции в логах не будет, обработка продолжается.
func newTraceID() string {
	var id trace.TraceID
	if _, err := rand.Read(id[:]); err != nil {
		return ""
	}
	return id.String()
}
