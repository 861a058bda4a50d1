package middleware

import (
	"context"

	"github.com/Pasan-pramu/remind/backoff"
	"github.com/Pasan-pramu/remind/job"
)

// Handler is the terminal step of an execution: the job's decoded handler.
type Handler func(ctx context.Context) error

// Middleware sees every execution of a timer job. It must call next
// exactly once unless it fails the execution itself.
type Middleware func(ctx context.Context, j *job.Job, next Handler) error

// Chain composes mws so that mws[0] runs outermost.
func Chain(mws ...Middleware) Middleware {
	if len(mws) == 0 {
		return func(ctx context.Context, _ *job.Job, next Handler) error {
			return next(ctx)
		}
	}
	return func(ctx context.Context, j *job.Job, next Handler) error {
		return wrap(mws, j, next)(ctx)
	}
}

func wrap(mws []Middleware, j *job.Job, terminal Handler) Handler {
	if len(mws) == 0 {
		return terminal
	}
	outer, inner := mws[0], wrap(mws[1:], j, terminal)
	return func(ctx context.Context) error {
		return outer(ctx, j, inner)
	}
}

// Outcome labels of a finished execution.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomePermanent = "permanent"
	OutcomeSnoozed   = "snoozed"
)

// outcome classifies err. Permanent errors skip the retry schedule.
func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case isSnooze(err):
		return OutcomeSnoozed
	case backoff.IsPermanent(err):
		return OutcomePermanent
	default:
		return OutcomeError
	}
}

func isSnooze(err error) bool {
	_, ok := job.SnoozedUntil(err)
	return ok
}
