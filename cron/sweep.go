package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Pasan-pramu/remind/workflow"
)

// RunLister lists workflow runs. workflow.Store satisfies it.
type RunLister interface {
	ListRuns(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Run, error)
}

// SweepEmitter is notified after each sweep.
// ext.Registry satisfies this interface via EmitSweepCompleted.
type SweepEmitter interface {
	EmitSweepCompleted(ctx context.Context, rescheduled int)
}

// Sweeper finds sleeping runs whose wake-up is overdue and schedules a
// fresh one. It recovers runs whose timer was lost between being
// persisted as sleeping and the wake job being enqueued.
type Sweeper struct {
	runs    RunLister
	waker   workflow.Waker
	emitter SweepEmitter
	grace   time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewSweeper creates a Sweeper. Runs are considered lost once they are
// more than grace past their WakeAt.
func NewSweeper(runs RunLister, waker workflow.Waker, emitter SweepEmitter, grace time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		runs:    runs,
		waker:   waker,
		emitter: emitter,
		grace:   grace,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// SetNow overrides the sweeper's time source.
func (s *Sweeper) SetNow(now func() time.Time) { s.now = now }

// Sweep reschedules every overdue sleeping run and returns how many it
// rescheduled. A run whose reschedule fails is logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.grace)
	runs, err := s.runs.ListRuns(ctx, workflow.ListOpts{
		State:      workflow.RunStateSleeping,
		WakeBefore: cutoff,
	})
	if err != nil {
		return 0, fmt.Errorf("list overdue runs: %w", err)
	}

	rescheduled := 0
	for _, run := range runs {
		if run.WakeAt == nil {
			continue
		}
		if err := s.waker.ScheduleWake(ctx, run.ID, *run.WakeAt); err != nil {
			s.logger.Error("failed to reschedule overdue run",
				slog.String("run_id", run.ID.String()),
				slog.Time("wake_at", *run.WakeAt),
				slog.String("error", err.Error()),
			)
			continue
		}
		rescheduled++
	}

	if rescheduled > 0 {
		s.logger.Warn("rescheduled overdue sleeping runs",
			slog.Int("count", rescheduled),
			slog.Time("cutoff", cutoff),
		)
	}
	if s.emitter != nil {
		s.emitter.EmitSweepCompleted(ctx, rescheduled)
	}
	return rescheduled, nil
}

// Task adapts Sweep to a TaskFunc.
func (s *Sweeper) Task() TaskFunc {
	return func(ctx context.Context) error {
		_, err := s.Sweep(ctx)
		return err
	}
}

// DLQPurger removes dead-letter entries. dlq.Service satisfies it.
type DLQPurger interface {
	Purge(ctx context.Context, age time.Duration) (int64, error)
}

// PurgeDLQTask returns a task that drops dead-letter entries older than age.
func PurgeDLQTask(purger DLQPurger, age time.Duration, logger *slog.Logger) TaskFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context) error {
		n, err := purger.Purge(ctx, age)
		if err != nil {
			return fmt.Errorf("purge dlq: %w", err)
		}
		if n > 0 {
			logger.Info("purged dlq entries",
				slog.Int64("count", n),
				slog.Duration("older_than", age),
			)
		}
		return nil
	}
}
