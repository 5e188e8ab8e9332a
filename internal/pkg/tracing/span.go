package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName — имя tracer'а для всех спанов сервиса.
const instrumentationName = "github.com/Kargones/ci-telemetry"

// Start открывает спан через глобальный TracerProvider и кладёт trace ID в context.
// При выключенном трейсинге (nop provider) trace ID генерируется локально,
// чтобы логи всё равно можно было коррелировать.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))

	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = WithTraceID(ctx, sc.TraceID().String())
	} else if TraceIDFromContext(ctx) == "" {
		ctx = WithTraceID(ctx, newTraceID())
	}
	return ctx, span
}

// RecordError помечает спан ошибкой. nil err игнорируется.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
