package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/Pasan-pramu/remind/job"
	"github.com/Pasan-pramu/remind/subscription"
	"github.com/Pasan-pramu/remind/workflow"
)

// Registry is handed to the workflow runner as its event sink.
var _ workflow.RunEmitter = (*Registry)(nil)

// entry pairs a hook with the extension name captured at registration,
// so emit never has to type-assert back to Extension.
type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered extensions and fans lifecycle events out to
// them. Extensions are type-cached at registration so each emit only
// walks the extensions that implement its hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobEnqueued     []entry[JobEnqueued]
	jobStarted      []entry[JobStarted]
	jobCompleted    []entry[JobCompleted]
	jobFailed       []entry[JobFailed]
	jobRetrying     []entry[JobRetrying]
	jobDLQ          []entry[JobDLQ]
	runStarted      []entry[WorkflowStarted]
	stepCompleted   []entry[WorkflowStepCompleted]
	stepFailed      []entry[WorkflowStepFailed]
	runSuspended    []entry[WorkflowSuspended]
	runResumed      []entry[WorkflowResumed]
	runCompleted    []entry[WorkflowCompleted]
	runFailed       []entry[WorkflowFailed]
	reminderSent    []entry[ReminderSent]
	reminderSkipped []entry[ReminderSkipped]
	sweepCompleted  []entry[SweepCompleted]
	shutdown        []entry[Shutdown]
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

func cache[H any](list []entry[H], name string, e Extension) []entry[H] {
	if h, ok := e.(H); ok {
		return append(list, entry[H]{name: name, hook: h})
	}
	return list
}

// Register adds an extension to every hook cache it implements.
// Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	r.jobEnqueued = cache(r.jobEnqueued, name, e)
	r.jobStarted = cache(r.jobStarted, name, e)
	r.jobCompleted = cache(r.jobCompleted, name, e)
	r.jobFailed = cache(r.jobFailed, name, e)
	r.jobRetrying = cache(r.jobRetrying, name, e)
	r.jobDLQ = cache(r.jobDLQ, name, e)
	r.runStarted = cache(r.runStarted, name, e)
	r.stepCompleted = cache(r.stepCompleted, name, e)
	r.stepFailed = cache(r.stepFailed, name, e)
	r.runSuspended = cache(r.runSuspended, name, e)
	r.runResumed = cache(r.runResumed, name, e)
	r.runCompleted = cache(r.runCompleted, name, e)
	r.runFailed = cache(r.runFailed, name, e)
	r.reminderSent = cache(r.reminderSent, name, e)
	r.reminderSkipped = cache(r.reminderSkipped, name, e)
	r.sweepCompleted = cache(r.sweepCompleted, name, e)
	r.shutdown = cache(r.shutdown, name, e)
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// emit calls fn for every entry. Hook errors are logged, never returned.
func emit[H any](r *Registry, hook string, list []entry[H], fn func(H) error) {
	for _, e := range list {
		if err := fn(e.hook); err != nil {
			r.logger.Warn("extension hook error",
				slog.String("hook", hook),
				slog.String("extension", e.name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// ──────────────────────────────────────────────────
// Timer job events
// ──────────────────────────────────────────────────

// EmitJobEnqueued notifies JobEnqueued hooks.
func (r *Registry) EmitJobEnqueued(ctx context.Context, j *job.Job) {
	emit(r, "OnJobEnqueued", r.jobEnqueued, func(h JobEnqueued) error { return h.OnJobEnqueued(ctx, j) })
}

// EmitJobStarted notifies JobStarted hooks.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	emit(r, "OnJobStarted", r.jobStarted, func(h JobStarted) error { return h.OnJobStarted(ctx, j) })
}

// EmitJobCompleted notifies JobCompleted hooks.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	emit(r, "OnJobCompleted", r.jobCompleted, func(h JobCompleted) error { return h.OnJobCompleted(ctx, j, elapsed) })
}

// EmitJobFailed notifies JobFailed hooks.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	emit(r, "OnJobFailed", r.jobFailed, func(h JobFailed) error { return h.OnJobFailed(ctx, j, jobErr) })
}

// EmitJobRetrying notifies JobRetrying hooks.
func (r *Registry) EmitJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) {
	emit(r, "OnJobRetrying", r.jobRetrying, func(h JobRetrying) error { return h.OnJobRetrying(ctx, j, attempt, nextRunAt) })
}

// EmitJobDLQ notifies JobDLQ hooks.
func (r *Registry) EmitJobDLQ(ctx context.Context, j *job.Job, jobErr error) {
	emit(r, "OnJobDLQ", r.jobDLQ, func(h JobDLQ) error { return h.OnJobDLQ(ctx, j, jobErr) })
}

// ──────────────────────────────────────────────────
// Workflow run events
// ──────────────────────────────────────────────────

// EmitWorkflowStarted notifies WorkflowStarted hooks.
func (r *Registry) EmitWorkflowStarted(ctx context.Context, run *workflow.Run) {
	emit(r, "OnWorkflowStarted", r.runStarted, func(h WorkflowStarted) error { return h.OnWorkflowStarted(ctx, run) })
}

// EmitStepCompleted notifies WorkflowStepCompleted hooks.
func (r *Registry) EmitStepCompleted(ctx context.Context, run *workflow.Run, stepName string, elapsed time.Duration) {
	emit(r, "OnWorkflowStepCompleted", r.stepCompleted, func(h WorkflowStepCompleted) error {
		return h.OnWorkflowStepCompleted(ctx, run, stepName, elapsed)
	})
}

// EmitStepFailed notifies WorkflowStepFailed hooks.
func (r *Registry) EmitStepFailed(ctx context.Context, run *workflow.Run, stepName string, stepErr error) {
	emit(r, "OnWorkflowStepFailed", r.stepFailed, func(h WorkflowStepFailed) error {
		return h.OnWorkflowStepFailed(ctx, run, stepName, stepErr)
	})
}

// EmitWorkflowSuspended notifies WorkflowSuspended hooks.
func (r *Registry) EmitWorkflowSuspended(ctx context.Context, run *workflow.Run, wakeAt time.Time) {
	emit(r, "OnWorkflowSuspended", r.runSuspended, func(h WorkflowSuspended) error {
		return h.OnWorkflowSuspended(ctx, run, wakeAt)
	})
}

// EmitWorkflowResumed notifies WorkflowResumed hooks.
func (r *Registry) EmitWorkflowResumed(ctx context.Context, run *workflow.Run) {
	emit(r, "OnWorkflowResumed", r.runResumed, func(h WorkflowResumed) error { return h.OnWorkflowResumed(ctx, run) })
}

// EmitWorkflowCompleted notifies WorkflowCompleted hooks.
func (r *Registry) EmitWorkflowCompleted(ctx context.Context, run *workflow.Run, elapsed time.Duration) {
	emit(r, "OnWorkflowCompleted", r.runCompleted, func(h WorkflowCompleted) error {
		return h.OnWorkflowCompleted(ctx, run, elapsed)
	})
}

// EmitWorkflowFailed notifies WorkflowFailed hooks.
func (r *Registry) EmitWorkflowFailed(ctx context.Context, run *workflow.Run, runErr error) {
	emit(r, "OnWorkflowFailed", r.runFailed, func(h WorkflowFailed) error { return h.OnWorkflowFailed(ctx, run, runErr) })
}

// ──────────────────────────────────────────────────
// Reminder events
// ──────────────────────────────────────────────────

// EmitReminderSent notifies ReminderSent hooks.
func (r *Registry) EmitReminderSent(ctx context.Context, run *workflow.Run, sub *subscription.Subscription, label string) {
	emit(r, "OnReminderSent", r.reminderSent, func(h ReminderSent) error { return h.OnReminderSent(ctx, run, sub, label) })
}

// EmitReminderSkipped notifies ReminderSkipped hooks.
func (r *Registry) EmitReminderSkipped(ctx context.Context, run *workflow.Run, subscriptionID, label, reason string) {
	emit(r, "OnReminderSkipped", r.reminderSkipped, func(h ReminderSkipped) error {
		return h.OnReminderSkipped(ctx, run, subscriptionID, label, reason)
	})
}

// ──────────────────────────────────────────────────
// Other events
// ──────────────────────────────────────────────────

// EmitSweepCompleted notifies SweepCompleted hooks.
func (r *Registry) EmitSweepCompleted(ctx context.Context, rescheduled int) {
	emit(r, "OnSweepCompleted", r.sweepCompleted, func(h SweepCompleted) error { return h.OnSweepCompleted(ctx, rescheduled) })
}

// EmitShutdown notifies Shutdown hooks.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(r, "OnShutdown", r.shutdown, func(h Shutdown) error { return h.OnShutdown(ctx) })
}
