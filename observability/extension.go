package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Pasan-pramu/remind/ext"
	"github.com/Pasan-pramu/remind/job"
	"github.com/Pasan-pramu/remind/subscription"
	"github.com/Pasan-pramu/remind/workflow"
)

var (
	_ ext.Extension         = (*MetricsExtension)(nil)
	_ ext.JobEnqueued       = (*MetricsExtension)(nil)
	_ ext.JobCompleted      = (*MetricsExtension)(nil)
	_ ext.JobFailed         = (*MetricsExtension)(nil)
	_ ext.JobRetrying       = (*MetricsExtension)(nil)
	_ ext.JobDLQ            = (*MetricsExtension)(nil)
	_ ext.WorkflowStarted   = (*MetricsExtension)(nil)
	_ ext.WorkflowSuspended = (*MetricsExtension)(nil)
	_ ext.WorkflowResumed   = (*MetricsExtension)(nil)
	_ ext.WorkflowCompleted = (*MetricsExtension)(nil)
	_ ext.WorkflowFailed    = (*MetricsExtension)(nil)
	_ ext.ReminderSent      = (*MetricsExtension)(nil)
	_ ext.ReminderSkipped   = (*MetricsExtension)(nil)
	_ ext.SweepCompleted    = (*MetricsExtension)(nil)
)

const meterName = "github.com/Pasan-pramu/remind/observability"

// MetricsExtension counts lifecycle events as OpenTelemetry counters.
type MetricsExtension struct {
	JobEnqueued       metric.Int64Counter
	JobCompleted      metric.Int64Counter
	JobFailed         metric.Int64Counter
	JobRetried        metric.Int64Counter
	JobDLQ            metric.Int64Counter
	WorkflowStarted   metric.Int64Counter
	WorkflowSuspended metric.Int64Counter
	WorkflowResumed   metric.Int64Counter
	WorkflowCompleted metric.Int64Counter
	WorkflowFailed    metric.Int64Counter
	RemindersSent     metric.Int64Counter
	RemindersSkipped  metric.Int64Counter
	TimersRescheduled metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension on meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		// Errors still come with a usable noop instrument.
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	return &MetricsExtension{
		JobEnqueued:       counter("remind.job.enqueued", "Timer jobs enqueued"),
		JobCompleted:      counter("remind.job.completed", "Timer jobs completed"),
		JobFailed:         counter("remind.job.failed", "Timer jobs failed terminally"),
		JobRetried:        counter("remind.job.retried", "Timer job retries scheduled"),
		JobDLQ:            counter("remind.job.dlq", "Timer jobs moved to the dead letter queue"),
		WorkflowStarted:   counter("remind.workflow.started", "Workflow runs started"),
		WorkflowSuspended: counter("remind.workflow.suspended", "Workflow runs put to sleep"),
		WorkflowResumed:   counter("remind.workflow.resumed", "Workflow runs woken"),
		WorkflowCompleted: counter("remind.workflow.completed", "Workflow runs completed"),
		WorkflowFailed:    counter("remind.workflow.failed", "Workflow runs failed"),
		RemindersSent:     counter("remind.reminder.sent", "Reminders accepted for delivery"),
		RemindersSkipped:  counter("remind.reminder.skipped", "Due reminders that were not sent"),
		TimersRescheduled: counter("remind.sweep.rescheduled", "Overdue timers rescheduled by the sweep"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func jobAttrs(j *job.Job) metric.AddOption {
	return metric.WithAttributes(attribute.String("job_name", j.Name), attribute.String("queue", j.Queue))
}

func runAttrs(r *workflow.Run) metric.AddOption {
	return metric.WithAttributes(attribute.String("workflow", r.Name))
}

// ── Timer job hooks ─────────────────────────────────

// OnJobEnqueued implements ext.JobEnqueued.
func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	m.JobEnqueued.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, _ time.Duration) error {
	m.JobCompleted.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.JobFailed.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobRetrying implements ext.JobRetrying.
func (m *MetricsExtension) OnJobRetrying(ctx context.Context, j *job.Job, _ int, _ time.Time) error {
	m.JobRetried.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobDLQ implements ext.JobDLQ.
func (m *MetricsExtension) OnJobDLQ(ctx context.Context, j *job.Job, _ error) error {
	m.JobDLQ.Add(ctx, 1, jobAttrs(j))
	return nil
}

// ── Workflow run hooks ──────────────────────────────

// OnWorkflowStarted implements ext.WorkflowStarted.
func (m *MetricsExtension) OnWorkflowStarted(ctx context.Context, r *workflow.Run) error {
	m.WorkflowStarted.Add(ctx, 1, runAttrs(r))
	return nil
}

// OnWorkflowSuspended implements ext.WorkflowSuspended.
func (m *MetricsExtension) OnWorkflowSuspended(ctx context.Context, r *workflow.Run, _ time.Time) error {
	m.WorkflowSuspended.Add(ctx, 1, runAttrs(r))
	return nil
}

// OnWorkflowResumed implements ext.WorkflowResumed.
func (m *MetricsExtension) OnWorkflowResumed(ctx context.Context, r *workflow.Run) error {
	m.WorkflowResumed.Add(ctx, 1, runAttrs(r))
	return nil
}

// OnWorkflowCompleted implements ext.WorkflowCompleted.
func (m *MetricsExtension) OnWorkflowCompleted(ctx context.Context, r *workflow.Run, _ time.Duration) error {
	m.WorkflowCompleted.Add(ctx, 1, runAttrs(r))
	return nil
}

// OnWorkflowFailed implements ext.WorkflowFailed.
func (m *MetricsExtension) OnWorkflowFailed(ctx context.Context, r *workflow.Run, _ error) error {
	m.WorkflowFailed.Add(ctx, 1, runAttrs(r))
	return nil
}

// ── Reminder hooks ──────────────────────────────────

// OnReminderSent implements ext.ReminderSent.
func (m *MetricsExtension) OnReminderSent(ctx context.Context, _ *workflow.Run, _ *subscription.Subscription, label string) error {
	m.RemindersSent.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
	return nil
}

// OnReminderSkipped implements ext.ReminderSkipped.
func (m *MetricsExtension) OnReminderSkipped(ctx context.Context, _ *workflow.Run, _, label, reason string) error {
	m.RemindersSkipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("label", label),
		attribute.String("reason", reason),
	))
	return nil
}

// OnSweepCompleted implements ext.SweepCompleted.
func (m *MetricsExtension) OnSweepCompleted(ctx context.Context, rescheduled int) error {
	m.TimersRescheduled.Add(ctx, int64(rescheduled))
	return nil
}
