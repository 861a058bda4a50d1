package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/Pasan-pramu/remind/backoff"
	"github.com/Pasan-pramu/remind/id"
)

// StepEmitter is called by the Workflow to emit step lifecycle events.
// It is satisfied by an adapter over ext.Registry in the engine package.
type StepEmitter interface {
	EmitStepCompleted(ctx context.Context, run *Run, stepName string, elapsed time.Duration)
	EmitStepFailed(ctx context.Context, run *Run, stepName string, err error)
}

// Workflow is the execution context passed to workflow handler functions.
// Every step it runs is checkpointed so a later activation skips it.
type Workflow struct {
	ctx     context.Context
	run     *Run
	store   Store
	emitter StepEmitter
	logger  *slog.Logger
	clock   Clock
	retry   backoff.Policy
}

// NewWorkflowContext creates a new Workflow execution context.
// This is called by the Runner, and by tests that drive a handler
// directly.
func NewWorkflowContext(
	ctx context.Context,
	run *Run,
	store Store,
	emitter StepEmitter,
	logger *slog.Logger,
	clock Clock,
	retry backoff.Policy,
) *Workflow {
	if clock == nil {
		clock = SystemClock()
	}
	return &Workflow{
		ctx:     ctx,
		run:     run,
		store:   store,
		emitter: emitter,
		logger:  logger,
		clock:   clock,
		retry:   retry,
	}
}

// Context returns the underlying context.Context.
func (w *Workflow) Context() context.Context { return w.ctx }

// RunID returns the workflow run ID.
func (w *Workflow) RunID() id.RunID { return w.run.ID }

// Run returns the workflow run.
func (w *Workflow) Run() *Run { return w.run }

// Logger returns a logger carrying the run id and workflow name.
func (w *Workflow) Logger() *slog.Logger {
	return w.logger.With(
		slog.String("run_id", w.run.ID.String()),
		slog.String("workflow", w.run.Name),
	)
}

// Now returns the current time from the runner's clock. Handlers must
// only use it inside a step, where the observation is checkpointed.
func (w *Workflow) Now() time.Time { return w.clock.Now() }
