package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Pasan-pramu/remind/ext"
	"github.com/Pasan-pramu/remind/job"
	"github.com/Pasan-pramu/remind/subscription"
	"github.com/Pasan-pramu/remind/workflow"
)

var (
	_ ext.Extension          = (*Extension)(nil)
	_ ext.JobRetrying        = (*Extension)(nil)
	_ ext.JobFailed          = (*Extension)(nil)
	_ ext.JobDLQ             = (*Extension)(nil)
	_ ext.WorkflowStarted    = (*Extension)(nil)
	_ ext.WorkflowSuspended  = (*Extension)(nil)
	_ ext.WorkflowResumed    = (*Extension)(nil)
	_ ext.WorkflowStepFailed = (*Extension)(nil)
	_ ext.WorkflowCompleted  = (*Extension)(nil)
	_ ext.WorkflowFailed     = (*Extension)(nil)
	_ ext.ReminderSent       = (*Extension)(nil)
	_ ext.ReminderSkipped    = (*Extension)(nil)
	_ ext.SweepCompleted     = (*Extension)(nil)
)

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Extension records lifecycle events through a Recorder.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// Option configures an Extension.
type Option func(*Extension)

// WithActions limits recording to the named actions, for example
// ActionReminderSent and ActionWorkflowFailed only.
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, a := range actions {
			e.enabled[a] = true
		}
	}
}

// WithLogger sets where recorder failures are reported.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}

// New creates an Extension.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{recorder: r, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Timer job hooks ─────────────────────────────────

// OnJobRetrying implements ext.JobRetrying.
func (e *Extension) OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error {
	return e.record(ctx, ActionJobRetrying, SeverityWarning, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryTimer, nil,
		"job_name", j.Name,
		"job_key", j.Key,
		"attempt", attempt,
		"next_run_at", nextRunAt.Format(time.RFC3339),
	)
}

// OnJobFailed implements ext.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error {
	return e.record(ctx, ActionJobFailed, SeverityCritical, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryTimer, jobErr,
		"job_name", j.Name,
		"job_key", j.Key,
		"retry_count", j.RetryCount,
	)
}

// OnJobDLQ implements ext.JobDLQ.
func (e *Extension) OnJobDLQ(ctx context.Context, j *job.Job, jobErr error) error {
	return e.record(ctx, ActionJobDLQ, SeverityCritical, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryTimer, jobErr,
		"job_name", j.Name,
		"job_key", j.Key,
	)
}

// ── Workflow run hooks ──────────────────────────────

// OnWorkflowStarted implements ext.WorkflowStarted.
func (e *Extension) OnWorkflowStarted(ctx context.Context, r *workflow.Run) error {
	return e.record(ctx, ActionWorkflowStarted, SeverityInfo, OutcomeSuccess,
		ResourceWorkflow, r.ID.String(), CategoryWorkflow, nil,
		"workflow_name", r.Name,
		"input", string(r.Input),
	)
}

// OnWorkflowSuspended implements ext.WorkflowSuspended.
func (e *Extension) OnWorkflowSuspended(ctx context.Context, r *workflow.Run, wakeAt time.Time) error {
	return e.record(ctx, ActionWorkflowSuspended, SeverityInfo, OutcomeSuccess,
		ResourceWorkflow, r.ID.String(), CategoryWorkflow, nil,
		"workflow_name", r.Name,
		"sleep_step", r.SleepStep,
		"wake_at", wakeAt.Format(time.RFC3339),
	)
}

// OnWorkflowResumed implements ext.WorkflowResumed.
func (e *Extension) OnWorkflowResumed(ctx context.Context, r *workflow.Run) error {
	return e.record(ctx, ActionWorkflowResumed, SeverityInfo, OutcomeSuccess,
		ResourceWorkflow, r.ID.String(), CategoryWorkflow, nil,
		"workflow_name", r.Name,
		"activations", r.Activations,
	)
}

// OnWorkflowStepFailed implements ext.WorkflowStepFailed.
func (e *Extension) OnWorkflowStepFailed(ctx context.Context, r *workflow.Run, stepName string, stepErr error) error {
	return e.record(ctx, ActionWorkflowStepFailed, SeverityWarning, OutcomeFailure,
		ResourceWorkflow, r.ID.String(), CategoryWorkflow, stepErr,
		"workflow_name", r.Name,
		"step_name", stepName,
	)
}

// OnWorkflowCompleted implements ext.WorkflowCompleted.
func (e *Extension) OnWorkflowCompleted(ctx context.Context, r *workflow.Run, elapsed time.Duration) error {
	return e.record(ctx, ActionWorkflowCompleted, SeverityInfo, OutcomeSuccess,
		ResourceWorkflow, r.ID.String(), CategoryWorkflow, nil,
		"workflow_name", r.Name,
		"activations", r.Activations,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnWorkflowFailed implements ext.WorkflowFailed.
func (e *Extension) OnWorkflowFailed(ctx context.Context, r *workflow.Run, runErr error) error {
	return e.record(ctx, ActionWorkflowFailed, SeverityCritical, OutcomeFailure,
		ResourceWorkflow, r.ID.String(), CategoryWorkflow, runErr,
		"workflow_name", r.Name,
	)
}

// ── Reminder hooks ──────────────────────────────────

// OnReminderSent implements ext.ReminderSent.
func (e *Extension) OnReminderSent(ctx context.Context, r *workflow.Run, sub *subscription.Subscription, label string) error {
	return e.record(ctx, ActionReminderSent, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID, CategoryReminder, nil,
		"run_id", r.ID.String(),
		"label", label,
		"user_id", sub.User.ID,
		"renewal_date", sub.RenewalDate.Format(time.DateOnly),
	)
}

// OnReminderSkipped implements ext.ReminderSkipped.
func (e *Extension) OnReminderSkipped(ctx context.Context, r *workflow.Run, subscriptionID, label, reason string) error {
	return e.record(ctx, ActionReminderSkipped, SeverityWarning, OutcomeSkipped,
		ResourceSubscription, subscriptionID, CategoryReminder, nil,
		"run_id", r.ID.String(),
		"label", label,
		"skip_reason", reason,
	)
}

// OnSweepCompleted implements ext.SweepCompleted. Sweeps that found
// nothing are not recorded.
func (e *Extension) OnSweepCompleted(ctx context.Context, rescheduled int) error {
	if rescheduled == 0 {
		return nil
	}
	return e.record(ctx, ActionSweepCompleted, SeverityWarning, OutcomeSuccess,
		ResourceJob, "", CategoryTimer, nil,
		"rescheduled", rescheduled,
	)
}

// record builds and sends an event if its action is enabled. kvPairs
// become the event metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprint(kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = reason
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}
	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
