// Package telemetry wires up OpenTelemetry tracing for a cord run. Spans
// are recorded in-process and discarded; no exporter is configured.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Setup installs a tracer provider for the "cord" service and returns a
// shutdown func to flush and release it. The provider has no exporter,
// so spans stay in memory only.
func Setup(ctx context.Context) (trace.Tracer, func(context.Context) error) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp.Tracer("github.com/corddev/cord"), tp.Shutdown
}

// StartTick starts a span around one engine control-loop tick.
func StartTick(ctx context.Context, tracer trace.Tracer) (context.Context, trace.Span) {
	return tracer.Start(ctx, "engine.tick")
}

// StartToolCall starts a span around one tool-server dispatch.
func StartToolCall(ctx context.Context, tracer trace.Tracer, method string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "toolserver."+method)
}
