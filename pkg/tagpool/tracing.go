package tagpool

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tagpool/tagpool"

// tracer wraps a TracerProvider so Pool can start a span per task
// without every call site re-deriving it from the provider.
type tracer struct {
	t trace.Tracer
}

// newTracer builds a tracer from provider, defaulting to otel's global
// TracerProvider, which is a no-op (so tracing costs nothing) unless a
// provider has been installed with otel.SetTracerProvider.
func newTracer(provider trace.TracerProvider) *tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &tracer{t: provider.Tracer(tracerName)}
}

// startTaskSpan opens the "tagpool.task" span around one Executor.Run
// call, tagged with the task's tag and ID.
func (tr *tracer) startTaskSpan(ctx context.Context, id, tag string) (context.Context, trace.Span) {
	return tr.t.Start(ctx, "tagpool.task", trace.WithAttributes(
		attribute.String("tagpool.task_id", id),
		attribute.String("tagpool.tag", tag),
	))
}

func endTaskSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
