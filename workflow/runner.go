package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/backoff"
	"github.com/Pasan-pramu/remind/id"
)

// RunEmitter emits workflow-level lifecycle events.
// It is satisfied by an adapter over ext.Registry in the engine package.
type RunEmitter interface {
	StepEmitter
	EmitWorkflowStarted(ctx context.Context, run *Run)
	EmitWorkflowSuspended(ctx context.Context, run *Run, wakeAt time.Time)
	EmitWorkflowResumed(ctx context.Context, run *Run)
	EmitWorkflowCompleted(ctx context.Context, run *Run, elapsed time.Duration)
	EmitWorkflowFailed(ctx context.Context, run *Run, err error)
}

// Waker schedules the reactivation of a sleeping run.
type Waker interface {
	ScheduleWake(ctx context.Context, runID id.RunID, at time.Time) error
}

// WakerFunc adapts a function to Waker.
type WakerFunc func(ctx context.Context, runID id.RunID, at time.Time) error

// ScheduleWake calls f.
func (f WakerFunc) ScheduleWake(ctx context.Context, runID id.RunID, at time.Time) error {
	return f(ctx, runID, at)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock sets the clock handed to handlers and used for deadlines.
func WithClock(c Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithWaker sets the timer service that reactivates sleeping runs.
func WithWaker(w Waker) RunnerOption {
	return func(r *Runner) { r.waker = w }
}

// WithStepRetry sets the transient retry policy applied to every step.
func WithStepRetry(p backoff.Policy) RunnerOption {
	return func(r *Runner) { r.retry = p }
}

// WithResumeConcurrency bounds how many runs ResumeAll drives at once.
func WithResumeConcurrency(n int) RunnerOption {
	return func(r *Runner) { r.resumeLimit = n }
}

// Runner orchestrates workflow execution: creating runs, building the
// Workflow context, invoking handlers, and persisting state between
// activations.
type Runner struct {
	registry    *Registry
	store       Store
	emitter     RunEmitter
	logger      *slog.Logger
	clock       Clock
	waker       Waker
	retry       backoff.Policy
	resumeLimit int
}

// NewRunner creates a workflow runner.
func NewRunner(
	registry *Registry,
	store Store,
	emitter RunEmitter,
	logger *slog.Logger,
	opts ...RunnerOption,
) *Runner {
	r := &Runner{
		registry:    registry,
		store:       store,
		emitter:     emitter,
		logger:      logger,
		clock:       SystemClock(),
		retry:       backoff.DefaultPolicy(),
		resumeLimit: 8,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the workflow registry.
func (r *Runner) Registry() *Registry { return r.registry }

// Clock returns the runner's clock.
func (r *Runner) Clock() Clock { return r.clock }

// Start starts a new workflow run with a typed input.
// The input is JSON-marshaled and stored on the Run.
func Start[T any](ctx context.Context, runner *Runner, name string, input T) (*Run, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal input for workflow %q: %w", name, err)
	}
	return runner.StartRaw(ctx, name, data)
}

// StartRaw creates a run with pre-serialized JSON input and executes it
// until it completes, fails or suspends. The returned run reflects the
// state it was left in.
func (r *Runner) StartRaw(ctx context.Context, name string, input []byte) (*Run, error) {
	handler, ok := r.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", remind.ErrWorkflowNotFound, name)
	}

	run := &Run{
		Entity:    remind.NewEntity(),
		ID:        id.NewRunID(),
		Name:      name,
		State:     RunStateRunning,
		Input:     input,
		StartedAt: r.clock.Now().UTC(),
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run for workflow %q: %w", name, err)
	}

	r.emitter.EmitWorkflowStarted(ctx, run)
	r.executeRun(ctx, run, handler)
	return run, nil
}

// Resume re-executes a run left in the running state by a crashed
// process. Checkpointed steps are skipped. Unlike Wake it does not claim
// the run, so it must only be called for runs no live process is
// executing.
func (r *Runner) Resume(ctx context.Context, runID id.RunID) error {
	run, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("get run %s: %w", runID, err)
	}
	if run.State != RunStateRunning {
		return fmt.Errorf("%w: run %s is %q, not running", remind.ErrInvalidState, runID, run.State)
	}
	handler, ok := r.registry.Get(run.Name)
	if !ok {
		return fmt.Errorf("%w: %q (run %s)", remind.ErrWorkflowNotFound, run.Name, runID)
	}

	r.emitter.EmitWorkflowResumed(ctx, run)
	r.executeRun(ctx, run, handler)
	return nil
}

// Wake reactivates a sleeping run whose deadline has passed. It is safe
// to call more than once for the same deadline: a run that is no longer
// sleeping is left alone, and a run woken early is put back to sleep.
func (r *Runner) Wake(ctx context.Context, runID id.RunID) error {
	run, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("get run %s: %w", runID, err)
	}
	if run.State != RunStateSleeping {
		r.logger.Debug("ignoring wake for run that is not sleeping",
			slog.String("run_id", runID.String()),
			slog.String("state", string(run.State)),
		)
		return nil
	}

	now := r.clock.Now()
	if run.WakeAt != nil && now.Before(*run.WakeAt) {
		r.logger.Debug("early wake, rescheduling",
			slog.String("run_id", runID.String()),
			slog.Time("wake_at", *run.WakeAt),
		)
		return r.scheduleWake(ctx, run.ID, *run.WakeAt)
	}

	handler, ok := r.registry.Get(run.Name)
	if !ok {
		return fmt.Errorf("%w: %q (run %s)", remind.ErrWorkflowNotFound, run.Name, runID)
	}

	sleepStep := run.SleepStep
	claimed, err := r.store.ClaimRun(ctx, runID, RunStateSleeping)
	if errors.Is(err, remind.ErrInvalidState) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim run %s: %w", runID, err)
	}

	if sleepStep != "" {
		if err := r.store.SaveCheckpoint(ctx, runID, sleepKey(sleepStep), []byte{}); err != nil {
			return fmt.Errorf("save sleep checkpoint %q for run %s: %w", sleepStep, runID, err)
		}
	}

	r.emitter.EmitWorkflowResumed(ctx, claimed)
	r.executeRun(ctx, claimed, handler)
	return nil
}

// ResumeAll resumes every run left in the running state. Called at
// startup for crash recovery.
func (r *Runner) ResumeAll(ctx context.Context) error {
	runs, err := r.store.ListRuns(ctx, ListOpts{State: RunStateRunning})
	if err != nil {
		return fmt.Errorf("list running workflow runs: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.resumeLimit, 1))
	for _, run := range runs {
		g.Go(func() error {
			r.logger.Info("resuming workflow run",
				slog.String("run_id", run.ID.String()),
				slog.String("workflow", run.Name),
			)
			if resumeErr := r.Resume(gctx, run.ID); resumeErr != nil {
				r.logger.Error("failed to resume workflow run",
					slog.String("run_id", run.ID.String()),
					slog.String("error", resumeErr.Error()),
				)
			}
			return nil
		})
	}
	return g.Wait()
}

// Get returns a run by ID.
func (r *Runner) Get(ctx context.Context, runID id.RunID) (*Run, error) {
	return r.store.GetRun(ctx, runID)
}

// List returns runs matching opts.
func (r *Runner) List(ctx context.Context, opts ListOpts) ([]*Run, error) {
	return r.store.ListRuns(ctx, opts)
}

// executeRun runs the handler once and records how the activation ended.
func (r *Runner) executeRun(ctx context.Context, run *Run, handler RunnerFunc) {
	start := time.Now()
	run.Activations++

	wf := NewWorkflowContext(ctx, run, r.store, r.emitter, r.logger, r.clock, r.retry)
	err := handler(wf, run.Input)
	elapsed := time.Since(start)

	if s, ok := asSuspended(err); ok {
		r.suspend(ctx, run, s)
		return
	}

	now := r.clock.Now().UTC()
	run.CompletedAt = &now
	run.SleepStep = ""
	run.WakeAt = nil
	run.Touch()

	if err != nil {
		r.logger.Error("workflow run failed",
			slog.String("run_id", run.ID.String()),
			slog.String("workflow", run.Name),
			slog.String("error", err.Error()),
		)
		run.State = RunStateFailed
		run.Error = err.Error()
		if updateErr := r.store.UpdateRun(ctx, run); updateErr != nil {
			r.logger.Error("failed to update run as failed",
				slog.String("run_id", run.ID.String()),
				slog.String("error", updateErr.Error()),
			)
		}
		r.emitter.EmitWorkflowFailed(ctx, run, err)
		return
	}

	run.State = RunStateCompleted
	if updateErr := r.store.UpdateRun(ctx, run); updateErr != nil {
		r.logger.Error("failed to update run as completed",
			slog.String("run_id", run.ID.String()),
			slog.String("error", updateErr.Error()),
		)
	}
	r.emitter.EmitWorkflowCompleted(ctx, run, elapsed)
}

// suspend persists the run as sleeping before the wake-up is scheduled.
// A lost schedule is recovered by sweeping overdue sleeping runs.
func (r *Runner) suspend(ctx context.Context, run *Run, s *suspendError) {
	wakeAt := s.wakeAt.UTC()
	run.State = RunStateSleeping
	run.SleepStep = s.step
	run.WakeAt = &wakeAt
	run.Touch()

	if err := r.store.UpdateRun(ctx, run); err != nil {
		r.logger.Error("failed to persist sleeping run",
			slog.String("run_id", run.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := r.scheduleWake(ctx, run.ID, wakeAt); err != nil {
		r.logger.Error("failed to schedule wake-up",
			slog.String("run_id", run.ID.String()),
			slog.Time("wake_at", wakeAt),
			slog.String("error", err.Error()),
		)
	}
	r.emitter.EmitWorkflowSuspended(ctx, run, wakeAt)
}

func (r *Runner) scheduleWake(ctx context.Context, runID id.RunID, at time.Time) error {
	if r.waker == nil {
		return nil
	}
	return r.waker.ScheduleWake(ctx, runID, at)
}
