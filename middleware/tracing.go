package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Pasan-pramu/remind/job"
)

const scope = "github.com/Pasan-pramu/remind"

// Tracing opens a span per execution on the global TracerProvider.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(scope))
}

// TracingWithTracer opens a span named "remind.job <name>" per execution.
// The span carries the job's identity, its attempt number and the
// remind.outcome of the execution.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, "remind.job "+j.Name,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("remind.job.id", j.ID.String()),
				attribute.String("remind.job.name", j.Name),
				attribute.String("remind.job.key", j.Key),
				attribute.String("remind.queue", j.Queue),
				attribute.Int("remind.attempt", j.RetryCount+1),
			),
		)
		defer span.End()

		err := next(ctx)
		span.SetAttributes(attribute.String("remind.outcome", outcome(err)))
		switch {
		case err == nil, isSnooze(err):
			span.SetStatus(codes.Ok, "")
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}
