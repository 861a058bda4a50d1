package workflow_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Pasan-pramu/remind/backoff"
	"github.com/Pasan-pramu/remind/id"
	"github.com/Pasan-pramu/remind/store/memory"
	"github.com/Pasan-pramu/remind/workflow"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noopEmitter satisfies workflow.RunEmitter and discards everything.
type noopEmitter struct{}

func (noopEmitter) EmitStepCompleted(context.Context, *workflow.Run, string, time.Duration) {}
func (noopEmitter) EmitStepFailed(context.Context, *workflow.Run, string, error)            {}
func (noopEmitter) EmitWorkflowStarted(context.Context, *workflow.Run)                      {}
func (noopEmitter) EmitWorkflowSuspended(context.Context, *workflow.Run, time.Time)         {}
func (noopEmitter) EmitWorkflowResumed(context.Context, *workflow.Run)                      {}
func (noopEmitter) EmitWorkflowCompleted(context.Context, *workflow.Run, time.Duration)     {}
func (noopEmitter) EmitWorkflowFailed(context.Context, *workflow.Run, error)                {}

// trackingEmitter counts lifecycle events.
type trackingEmitter struct {
	noopEmitter
	stepCompleted atomic.Int32
	stepFailed    atomic.Int32
	suspended     atomic.Int32
	resumed       atomic.Int32
}

func (e *trackingEmitter) EmitStepCompleted(context.Context, *workflow.Run, string, time.Duration) {
	e.stepCompleted.Add(1)
}

func (e *trackingEmitter) EmitStepFailed(context.Context, *workflow.Run, string, error) {
	e.stepFailed.Add(1)
}

func (e *trackingEmitter) EmitWorkflowSuspended(context.Context, *workflow.Run, time.Time) {
	e.suspended.Add(1)
}

func (e *trackingEmitter) EmitWorkflowResumed(context.Context, *workflow.Run) {
	e.resumed.Add(1)
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// recordingWaker remembers scheduled wake-ups.
type recordingWaker struct {
	mu    sync.Mutex
	wakes map[string]time.Time
}

func newRecordingWaker() *recordingWaker {
	return &recordingWaker{wakes: make(map[string]time.Time)}
}

func (w *recordingWaker) ScheduleWake(_ context.Context, runID id.RunID, at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.wakes[runID.String()] = at
	return nil
}

func (w *recordingWaker) get(runID id.RunID) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	at, ok := w.wakes[runID.String()]
	return at, ok
}

// newTestRunner wires a runner over a fresh memory store with a fake
// clock and no step retry delay.
func newTestRunner(emitter workflow.RunEmitter, clock workflow.Clock, waker workflow.Waker) (*workflow.Runner, *workflow.Registry, *memory.Store) {
	s := memory.New()
	reg := workflow.NewRegistry()
	opts := []workflow.RunnerOption{
		workflow.WithClock(clock),
		workflow.WithStepRetry(backoff.Policy{MaxAttempts: 3, Strategy: backoff.NewConstant(0)}),
	}
	if waker != nil {
		opts = append(opts, workflow.WithWaker(waker))
	}
	return workflow.NewRunner(reg, s, emitter, testLogger(), opts...), reg, s
}

func workflowRunID() id.RunID { return id.NewRunID() }
