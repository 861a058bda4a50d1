// Package job defines timer jobs: the durable queue entries that wake
// sleeping workflow runs and start new ones. A job carries a JSON
// payload, becomes eligible at RunAt, and moves through:
//
//	pending → running → completed
//	pending → running → retrying → running → ...
//	pending → running → failed → dlq
//	pending → cancelled
//
// A non-empty Key makes enqueueing idempotent: a second job with the
// same key is rejected with remind.ErrJobAlreadyExists while the first
// one is still pending or running.
//
// [Registry] maps job names to type-erased [HandlerFunc] values:
//
//	job.RegisterDefinition(registry, job.NewDefinition("workflow.wake",
//	    func(ctx context.Context, p WakePayload) error {
//	        return runner.Wake(ctx, p.RunID)
//	    },
//	))
package job
