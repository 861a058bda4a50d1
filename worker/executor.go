// Package worker runs timer jobs. An Executor invokes a registered
// handler through middleware and settles the outcome; a Pool polls the
// store and feeds due jobs to the Executor.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/backoff"
	"github.com/Pasan-pramu/remind/dlq"
	"github.com/Pasan-pramu/remind/ext"
	"github.com/Pasan-pramu/remind/id"
	"github.com/Pasan-pramu/remind/job"
	"github.com/Pasan-pramu/remind/middleware"
)

// Executor runs a single job and settles it: completed, rescheduled
// with backoff, or failed and dead-lettered.
type Executor struct {
	handlers   *job.Registry
	extensions *ext.Registry
	store      job.Store
	dead       *dlq.Service
	backoff    backoff.Strategy
	chain      middleware.Middleware
	logger     *slog.Logger
	now        func() time.Time
}

// NewExecutor creates an Executor. A nil strategy selects
// backoff.DefaultStrategy.
func NewExecutor(
	handlers *job.Registry,
	extensions *ext.Registry,
	store job.Store,
	dead *dlq.Service,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	if bo == nil {
		bo = backoff.DefaultStrategy()
	}
	return &Executor{
		handlers:   handlers,
		extensions: extensions,
		store:      store,
		dead:       dead,
		backoff:    bo,
		chain:      middleware.Chain(mws...),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetNow replaces the clock used to stamp completions and retry times.
func (e *Executor) SetNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Execute runs j through the middleware chain and its handler. A job
// with no registered handler, or whose handler returns a permanent
// error, is dead-lettered without retrying.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	started := time.Now()
	err := e.invoke(ctx, j)
	elapsed := time.Since(started)

	now := e.now()
	j.Touch()

	if at, ok := job.SnoozedUntil(err); ok {
		return e.snooze(ctx, j, at)
	}

	switch {
	case err == nil:
		return e.complete(ctx, j, now, elapsed)
	case j.RetryCount+1 <= j.MaxRetries && !backoff.IsPermanent(err):
		return e.retry(ctx, j, err, now)
	default:
		return e.bury(ctx, j, err)
	}
}

func (e *Executor) invoke(ctx context.Context, j *job.Job) error {
	handler, ok := e.handlers.Get(j.Name)
	if !ok {
		return backoff.Permanent(fmt.Errorf("%w: no handler registered for job %q", remind.ErrJobNotFound, j.Name))
	}
	return e.chain(ctx, j, func(ctx context.Context) error {
		return handler(ctx, j.Payload)
	})
}

func (e *Executor) complete(ctx context.Context, j *job.Job, now time.Time, elapsed time.Duration) error {
	j.State = job.StateCompleted
	j.CompletedAt = &now
	if err := e.save(ctx, j, "completed"); err != nil {
		return err
	}
	e.extensions.EmitJobCompleted(ctx, j, elapsed)
	return nil
}

func (e *Executor) retry(ctx context.Context, j *job.Job, cause error, now time.Time) error {
	j.RetryCount++
	j.LastError = cause.Error()

	delay := e.backoff.Delay(j.RetryCount)
	j.RunAt = now.Add(delay)
	j.State = job.StateRetrying
	if err := e.save(ctx, j, "retrying"); err != nil {
		return err
	}

	e.extensions.EmitJobRetrying(ctx, j, j.RetryCount, j.RunAt)
	e.logger.Info("timer job rescheduled",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Int("attempt", j.RetryCount),
		slog.Int("max_retries", j.MaxRetries),
		slog.Duration("delay", delay),
	)
	return fmt.Errorf("job %s retry %d/%d: %w", j.Name, j.RetryCount, j.MaxRetries, cause)
}

// snooze puts j back on its queue due at at. RetryCount is unchanged.
func (e *Executor) snooze(ctx context.Context, j *job.Job, at time.Time) error {
	j.State = job.StatePending
	j.RunAt = at.UTC()
	j.WorkerID = id.Nil
	j.StartedAt = nil
	j.HeartbeatAt = nil
	if err := e.save(ctx, j, "snoozed"); err != nil {
		return err
	}
	e.logger.Debug("timer job snoozed",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Time("run_at", j.RunAt),
	)
	return nil
}

// bury marks j failed and moves it to the dead letter queue.
func (e *Executor) bury(ctx context.Context, j *job.Job, cause error) error {
	j.RetryCount++
	j.LastError = cause.Error()
	j.State = job.StateFailed
	if err := e.save(ctx, j, "failed"); err != nil {
		return err
	}

	if e.dead != nil {
		if err := e.dead.Push(ctx, j, cause); err != nil {
			e.logger.Error("dead letter push failed",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	e.extensions.EmitJobFailed(ctx, j, cause)
	e.extensions.EmitJobDLQ(ctx, j, cause)

	e.logger.Warn("timer job dead-lettered",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.String("job_key", j.Key),
		slog.Int("retry_count", j.RetryCount),
		slog.String("error", cause.Error()),
	)
	return fmt.Errorf("%w: %w", remind.ErrMaxRetriesExceeded, cause)
}

func (e *Executor) save(ctx context.Context, j *job.Job, state string) error {
	if err := e.store.UpdateJob(ctx, j); err != nil {
		e.logger.Error("failed to persist job outcome",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("outcome", state),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}
