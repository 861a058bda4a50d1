package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/workflow"
)

type sleepyInput struct {
	Name string `json:"name"`
}

// registerSleepy registers a workflow that does work, sleeps until a
// fixed deadline, then does more work.
func registerSleepy(reg *workflow.Registry, deadline time.Time, before, after *int) {
	workflow.RegisterDefinition(reg, workflow.NewWorkflow("sleepy", func(wf *workflow.Workflow, in sleepyInput) error {
		if err := wf.Step("before", func(context.Context) error { *before++; return nil }); err != nil {
			return err
		}
		if err := wf.SleepUntil("wait", deadline); err != nil {
			return err
		}
		return wf.Step("after "+in.Name, func(context.Context) error { *after++; return nil })
	}))
}

func TestRunner_SuspendsAndWakes(t *testing.T) {
	clock := newFakeClock(epoch)
	waker := newRecordingWaker()
	emitter := &trackingEmitter{}
	runner, reg, _ := newTestRunner(emitter, clock, waker)

	deadline := epoch.Add(48 * time.Hour)
	var before, after int
	registerSleepy(reg, deadline, &before, &after)

	run, err := workflow.Start(context.Background(), runner, "sleepy", sleepyInput{Name: "x"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.State != workflow.RunStateSleeping {
		t.Fatalf("State = %q, want sleeping", run.State)
	}
	if run.WakeAt == nil || !run.WakeAt.Equal(deadline) || run.SleepStep != "wait" {
		t.Fatalf("WakeAt/SleepStep = %v/%q", run.WakeAt, run.SleepStep)
	}
	if at, ok := waker.get(run.ID); !ok || !at.Equal(deadline) {
		t.Fatalf("scheduled wake = %v, %v", at, ok)
	}
	if before != 1 || after != 0 {
		t.Fatalf("before/after = %d/%d", before, after)
	}

	clock.Set(deadline.Add(time.Minute))
	if err := runner.Wake(context.Background(), run.ID); err != nil {
		t.Fatalf("Wake: %v", err)
	}

	got, _ := runner.Get(context.Background(), run.ID)
	if got.State != workflow.RunStateCompleted {
		t.Fatalf("State = %q, want completed", got.State)
	}
	if before != 1 || after != 1 {
		t.Errorf("before/after = %d/%d, want 1/1", before, after)
	}
	if got.Activations != 2 {
		t.Errorf("Activations = %d, want 2", got.Activations)
	}
	if emitter.suspended.Load() != 1 || emitter.resumed.Load() != 1 {
		t.Errorf("suspended/resumed = %d/%d", emitter.suspended.Load(), emitter.resumed.Load())
	}
}

func TestRunner_EarlyWakeReschedules(t *testing.T) {
	clock := newFakeClock(epoch)
	waker := newRecordingWaker()
	runner, reg, _ := newTestRunner(noopEmitter{}, clock, waker)

	deadline := epoch.Add(time.Hour)
	var before, after int
	registerSleepy(reg, deadline, &before, &after)

	run, _ := workflow.Start(context.Background(), runner, "sleepy", sleepyInput{})

	clock.Set(epoch.Add(30 * time.Minute))
	if err := runner.Wake(context.Background(), run.ID); err != nil {
		t.Fatalf("Wake: %v", err)
	}
	got, _ := runner.Get(context.Background(), run.ID)
	if got.State != workflow.RunStateSleeping || after != 0 {
		t.Fatalf("early wake ran the handler: state %q, after %d", got.State, after)
	}
}

func TestRunner_DuplicateWakeIsIgnored(t *testing.T) {
	clock := newFakeClock(epoch)
	runner, reg, _ := newTestRunner(noopEmitter{}, clock, newRecordingWaker())

	deadline := epoch.Add(time.Hour)
	var before, after int
	registerSleepy(reg, deadline, &before, &after)

	run, _ := workflow.Start(context.Background(), runner, "sleepy", sleepyInput{})
	clock.Set(deadline)
	for i := 0; i < 3; i++ {
		if err := runner.Wake(context.Background(), run.ID); err != nil {
			t.Fatalf("Wake %d: %v", i, err)
		}
	}
	if after != 1 {
		t.Errorf("after = %d, want 1", after)
	}
}

func TestRunner_StartFailsForUnknownWorkflow(t *testing.T) {
	runner, _, _ := newTestRunner(noopEmitter{}, newFakeClock(epoch), nil)
	_, err := runner.StartRaw(context.Background(), "missing", nil)
	if !errors.Is(err, remind.ErrWorkflowNotFound) {
		t.Fatalf("err = %v, want ErrWorkflowNotFound", err)
	}
}

func TestRunner_HandlerErrorMarksFailed(t *testing.T) {
	runner, reg, _ := newTestRunner(noopEmitter{}, newFakeClock(epoch), nil)
	workflow.RegisterDefinition(reg, workflow.NewWorkflow("boom", func(*workflow.Workflow, struct{}) error {
		return errors.New("kaboom")
	}))

	run, err := workflow.Start(context.Background(), runner, "boom", struct{}{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.State != workflow.RunStateFailed || run.Error != "kaboom" || run.CompletedAt == nil {
		t.Errorf("run = %+v", run)
	}
}

func TestRunner_ResumeRejectsSleepingRun(t *testing.T) {
	runner, reg, _ := newTestRunner(noopEmitter{}, newFakeClock(epoch), newRecordingWaker())
	var before, after int
	registerSleepy(reg, epoch.Add(time.Hour), &before, &after)

	run, _ := workflow.Start(context.Background(), runner, "sleepy", sleepyInput{})
	if err := runner.Resume(context.Background(), run.ID); !errors.Is(err, remind.ErrInvalidState) {
		t.Fatalf("Resume(sleeping) err = %v", err)
	}
}

func TestRunner_ResumeAllRecoversCrashedRuns(t *testing.T) {
	runner, reg, s := newTestRunner(noopEmitter{}, newFakeClock(epoch), nil)

	calls := 0
	workflow.RegisterDefinition(reg, workflow.NewWorkflow("crashy", func(wf *workflow.Workflow, _ struct{}) error {
		if err := wf.Step("first", func(context.Context) error { calls++; return nil }); err != nil {
			return err
		}
		return wf.Step("second", func(context.Context) error { calls++; return nil })
	}))

	// Simulate a process that died after the first step checkpointed.
	run := &workflow.Run{
		Entity:    remind.NewEntity(),
		ID:        workflowRunID(),
		Name:      "crashy",
		State:     workflow.RunStateRunning,
		StartedAt: epoch,
	}
	ctx := context.Background()
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := s.SaveCheckpoint(ctx, run.ID, "first", []byte{}); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	if err := runner.ResumeAll(ctx); err != nil {
		t.Fatalf("ResumeAll: %v", err)
	}
	got, _ := runner.Get(ctx, run.ID)
	if got.State != workflow.RunStateCompleted {
		t.Fatalf("State = %q, want completed", got.State)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (first step was checkpointed)", calls)
	}

	runs, err := runner.List(ctx, workflow.ListOpts{Name: "crashy"})
	if err != nil || len(runs) != 1 {
		t.Errorf("List = %d, %v", len(runs), err)
	}
}
