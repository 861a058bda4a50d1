package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Pasan-pramu/remind/job"
)

// Timeout gives the handler a deadline of j.Timeout. Jobs without a
// timeout run under the caller's context unchanged.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if j.Timeout <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, j.Timeout)
		defer cancel()

		err := next(ctx)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Warn("timer job exceeded its timeout",
				slog.String("job_id", j.ID.String()),
				slog.String("job_name", j.Name),
				slog.Duration("timeout", j.Timeout),
			)
		}
		return err
	}
}
