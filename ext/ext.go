package ext

import (
	"context"
	"time"

	"github.com/Pasan-pramu/remind/job"
	"github.com/Pasan-pramu/remind/subscription"
	"github.com/Pasan-pramu/remind/workflow"
)

// Extension is anything registered with a Registry. It opts into
// events by also implementing any of the hook interfaces below.
type Extension interface {
	Name() string
}

// Timer job hooks. OnJobFailed and OnJobDLQ fire together once retries
// are spent; OnJobRetrying fires instead while attempts remain.
type (
	JobEnqueued interface {
		OnJobEnqueued(ctx context.Context, j *job.Job) error
	}
	JobStarted interface {
		OnJobStarted(ctx context.Context, j *job.Job) error
	}
	JobCompleted interface {
		OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
	}
	JobFailed interface {
		OnJobFailed(ctx context.Context, j *job.Job, err error) error
	}
	JobRetrying interface {
		OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error
	}
	JobDLQ interface {
		OnJobDLQ(ctx context.Context, j *job.Job, err error) error
	}
)

// Workflow run hooks. A run is started once, may be suspended and
// resumed many times, and ends in exactly one of completed or failed.
type (
	WorkflowStarted interface {
		OnWorkflowStarted(ctx context.Context, r *workflow.Run) error
	}
	WorkflowStepCompleted interface {
		OnWorkflowStepCompleted(ctx context.Context, r *workflow.Run, stepName string, elapsed time.Duration) error
	}
	WorkflowStepFailed interface {
		OnWorkflowStepFailed(ctx context.Context, r *workflow.Run, stepName string, err error) error
	}
	WorkflowSuspended interface {
		OnWorkflowSuspended(ctx context.Context, r *workflow.Run, wakeAt time.Time) error
	}
	WorkflowResumed interface {
		OnWorkflowResumed(ctx context.Context, r *workflow.Run) error
	}
	WorkflowCompleted interface {
		OnWorkflowCompleted(ctx context.Context, r *workflow.Run, elapsed time.Duration) error
	}
	WorkflowFailed interface {
		OnWorkflowFailed(ctx context.Context, r *workflow.Run, err error) error
	}
)

// Reminder hooks. label is the reminder's step label, such as
// "7 days before reminder". OnReminderSkipped carries why a due
// reminder was not sent.
type (
	ReminderSent interface {
		OnReminderSent(ctx context.Context, r *workflow.Run, sub *subscription.Subscription, label string) error
	}
	ReminderSkipped interface {
		OnReminderSkipped(ctx context.Context, r *workflow.Run, subscriptionID, label, reason string) error
	}
)

// SweepCompleted fires after each overdue-run sweep with the number of
// runs it rescheduled.
type SweepCompleted interface {
	OnSweepCompleted(ctx context.Context, rescheduled int) error
}

// Shutdown fires once while the engine stops.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
