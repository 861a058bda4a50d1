package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/Pasan-pramu/remind/job"
)

// Logging records each execution at debug level on start and at a level
// matching its outcome on finish. Lateness is how long after RunAt the
// job was picked up.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		started := time.Now()
		log := logger.With(
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("job_key", j.Key),
			slog.Int("attempt", j.RetryCount+1),
		)
		log.Debug("timer job firing", slog.Duration("lateness", lateness(j, started)))

		err := next(ctx)
		elapsed := slog.Duration("elapsed", time.Since(started))
		switch outcome(err) {
		case OutcomeOK:
			log.Info("timer job done", elapsed)
		case OutcomeSnoozed:
			log.Debug("timer job fired early", elapsed, slog.String("reason", err.Error()))
		case OutcomePermanent:
			log.Warn("timer job failed permanently", elapsed, slog.String("error", err.Error()))
		default:
			log.Error("timer job failed", elapsed, slog.String("error", err.Error()))
		}
		return err
	}
}

func lateness(j *job.Job, at time.Time) time.Duration {
	if j.RunAt.IsZero() || at.Before(j.RunAt) {
		return 0
	}
	return at.Sub(j.RunAt)
}
