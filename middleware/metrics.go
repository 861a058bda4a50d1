package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Pasan-pramu/remind/job"
)

// Metrics records execution instruments on the global MeterProvider.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(scope))
}

// MetricsWithMeter records, per execution:
//
//	remind.job.duration   histogram, seconds spent in the handler
//	remind.job.lateness   histogram, seconds between RunAt and pickup
//	remind.job.executions counter
//
// Every point carries job_name and queue; duration and executions also
// carry outcome.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Instrument errors still come with usable noop instruments.
	duration, _ := meter.Float64Histogram("remind.job.duration",
		metric.WithDescription("Time spent executing a timer job"),
		metric.WithUnit("s"))
	late, _ := meter.Float64Histogram("remind.job.lateness",
		metric.WithDescription("Delay between a timer job falling due and being picked up"),
		metric.WithUnit("s"))
	executions, _ := meter.Int64Counter("remind.job.executions",
		metric.WithDescription("Timer job executions"),
		metric.WithUnit("{execution}"))

	return func(ctx context.Context, j *job.Job, next Handler) error {
		started := time.Now()
		base := []attribute.KeyValue{
			attribute.String("job_name", j.Name),
			attribute.String("queue", j.Queue),
		}
		late.Record(ctx, lateness(j, started).Seconds(), metric.WithAttributes(base...))

		err := next(ctx)
		withOutcome := metric.WithAttributes(append(base, attribute.String("outcome", outcome(err)))...)
		duration.Record(ctx, time.Since(started).Seconds(), withOutcome)
		executions.Add(ctx, 1, withOutcome)
		return err
	}
}
