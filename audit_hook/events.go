package audithook

// Audit actions. Each corresponds to one ext lifecycle hook and becomes
// the Action of the recorded event.
const (
	ActionJobRetrying        = "job.retrying"
	ActionJobFailed          = "job.failed"
	ActionJobDLQ             = "job.dlq"
	ActionWorkflowStarted    = "workflow.started"
	ActionWorkflowSuspended  = "workflow.suspended"
	ActionWorkflowResumed    = "workflow.resumed"
	ActionWorkflowStepFailed = "workflow.step_failed"
	ActionWorkflowCompleted  = "workflow.completed"
	ActionWorkflowFailed     = "workflow.failed"
	ActionReminderSent       = "reminder.sent"
	ActionReminderSkipped    = "reminder.skipped"
	ActionSweepCompleted     = "sweep.completed"
)

// Audit categories group related actions.
const (
	CategoryTimer    = "remind.timer"
	CategoryWorkflow = "remind.workflow"
	CategoryReminder = "remind.reminder"
)

// Resource types.
const (
	ResourceJob          = "job"
	ResourceWorkflow     = "workflow_run"
	ResourceSubscription = "subscription"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobRetrying,
		ActionJobFailed,
		ActionJobDLQ,
		ActionWorkflowStarted,
		ActionWorkflowSuspended,
		ActionWorkflowResumed,
		ActionWorkflowStepFailed,
		ActionWorkflowCompleted,
		ActionWorkflowFailed,
		ActionReminderSent,
		ActionReminderSkipped,
		ActionSweepCompleted,
	}
}
