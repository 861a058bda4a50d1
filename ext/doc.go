// Package ext is the extension system. Extensions are notified of
// lifecycle events and react to them: recording metrics, writing audit
// logs, forwarding reminder outcomes. Each hook is its own interface so
// an extension opts in only to the events it cares about.
//
//	type Counter struct{ sent atomic.Int64 }
//
//	func (c *Counter) Name() string { return "counter" }
//
//	func (c *Counter) OnReminderSent(context.Context, *workflow.Run, *subscription.Subscription, string) error {
//	    c.sent.Add(1)
//	    return nil
//	}
//
// # Timer Job Hooks
//
//   - [JobEnqueued], [JobStarted], [JobCompleted]
//   - [JobFailed], [JobRetrying], [JobDLQ]
//
// # Workflow Run Hooks
//
//   - [WorkflowStarted], [WorkflowCompleted], [WorkflowFailed]
//   - [WorkflowSuspended] and [WorkflowResumed] bracket each durable sleep
//   - [WorkflowStepCompleted] and [WorkflowStepFailed]
//
// # Reminder Hooks
//
//   - [ReminderSent]: a reminder was accepted for delivery
//   - [ReminderSkipped]: a due reminder was not sent
//
// # Other Hooks
//
//   - [SweepCompleted]: the overdue-timer sweep finished
//   - [Shutdown]: the service is stopping
//
// The [Registry] fans each event out to the extensions implementing it.
// A hook error is logged and never interrupts the pipeline.
package ext
