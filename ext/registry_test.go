package ext_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/Pasan-pramu/remind/ext"
	"github.com/Pasan-pramu/remind/job"
	"github.com/Pasan-pramu/remind/subscription"
	"github.com/Pasan-pramu/remind/workflow"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// recorder implements every lifecycle hook and records call order.
type recorder struct {
	name  string
	calls []string
}

func (e *recorder) Name() string { return e.name }

func (e *recorder) hit(hook string) error {
	e.calls = append(e.calls, hook)
	return nil
}

func (e *recorder) OnJobEnqueued(context.Context, *job.Job) error { return e.hit("OnJobEnqueued") }
func (e *recorder) OnJobStarted(context.Context, *job.Job) error  { return e.hit("OnJobStarted") }
func (e *recorder) OnJobCompleted(context.Context, *job.Job, time.Duration) error {
	return e.hit("OnJobCompleted")
}
func (e *recorder) OnJobFailed(context.Context, *job.Job, error) error { return e.hit("OnJobFailed") }
func (e *recorder) OnJobRetrying(context.Context, *job.Job, int, time.Time) error {
	return e.hit("OnJobRetrying")
}
func (e *recorder) OnJobDLQ(context.Context, *job.Job, error) error { return e.hit("OnJobDLQ") }
func (e *recorder) OnWorkflowStarted(context.Context, *workflow.Run) error {
	return e.hit("OnWorkflowStarted")
}
func (e *recorder) OnWorkflowStepCompleted(context.Context, *workflow.Run, string, time.Duration) error {
	return e.hit("OnWorkflowStepCompleted")
}
func (e *recorder) OnWorkflowStepFailed(context.Context, *workflow.Run, string, error) error {
	return e.hit("OnWorkflowStepFailed")
}
func (e *recorder) OnWorkflowSuspended(context.Context, *workflow.Run, time.Time) error {
	return e.hit("OnWorkflowSuspended")
}
func (e *recorder) OnWorkflowResumed(context.Context, *workflow.Run) error {
	return e.hit("OnWorkflowResumed")
}
func (e *recorder) OnWorkflowCompleted(context.Context, *workflow.Run, time.Duration) error {
	return e.hit("OnWorkflowCompleted")
}
func (e *recorder) OnWorkflowFailed(context.Context, *workflow.Run, error) error {
	return e.hit("OnWorkflowFailed")
}
func (e *recorder) OnReminderSent(context.Context, *workflow.Run, *subscription.Subscription, string) error {
	return e.hit("OnReminderSent")
}
func (e *recorder) OnReminderSkipped(context.Context, *workflow.Run, string, string, string) error {
	return e.hit("OnReminderSkipped")
}
func (e *recorder) OnSweepCompleted(context.Context, int) error { return e.hit("OnSweepCompleted") }
func (e *recorder) OnShutdown(context.Context) error            { return e.hit("OnShutdown") }

// sentOnly implements a single hook.
type sentOnly struct{ labels []string }

func (e *sentOnly) Name() string { return "sent-only" }

func (e *sentOnly) OnReminderSent(_ context.Context, _ *workflow.Run, _ *subscription.Subscription, label string) error {
	e.labels = append(e.labels, label)
	return nil
}

// failing returns errors from its hooks.
type failing struct{}

func (failing) Name() string                                 { return "failing" }
func (failing) OnJobEnqueued(context.Context, *job.Job) error { return errors.New("boom") }
func (failing) OnShutdown(context.Context) error              { return errors.New("shutdown boom") }

func TestRegistry_Register(t *testing.T) {
	r := ext.NewRegistry(quietLogger())
	r.Register(&recorder{name: "all-hooks"})

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(quietLogger())
	all := &recorder{name: "all"}
	sent := &sentOnly{}
	r.Register(all)
	r.Register(sent)

	ctx := context.Background()
	run := &workflow.Run{Name: "subscription-reminders"}
	r.EmitReminderSent(ctx, run, &subscription.Subscription{ID: "sub_1"}, "7 days before reminder")
	r.EmitWorkflowStarted(ctx, run)

	if !slices.Equal(all.calls, []string{"OnReminderSent", "OnWorkflowStarted"}) {
		t.Fatalf("all: got %v", all.calls)
	}
	if !slices.Equal(sent.labels, []string{"7 days before reminder"}) {
		t.Fatalf("sent-only: got %v", sent.labels)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(quietLogger())
	all := &recorder{name: "all"}
	r.Register(all)

	ctx := context.Background()
	j := &job.Job{Name: "workflow.wake"}
	run := &workflow.Run{Name: "subscription-reminders"}
	boom := errors.New("boom")

	r.EmitJobEnqueued(ctx, j)
	r.EmitJobStarted(ctx, j)
	r.EmitJobCompleted(ctx, j, time.Second)
	r.EmitJobFailed(ctx, j, boom)
	r.EmitJobRetrying(ctx, j, 1, time.Now())
	r.EmitJobDLQ(ctx, j, boom)
	r.EmitWorkflowStarted(ctx, run)
	r.EmitStepCompleted(ctx, run, "get subscription", time.Millisecond)
	r.EmitStepFailed(ctx, run, "7 days before reminder", boom)
	r.EmitWorkflowSuspended(ctx, run, time.Now())
	r.EmitWorkflowResumed(ctx, run)
	r.EmitWorkflowCompleted(ctx, run, time.Second)
	r.EmitWorkflowFailed(ctx, run, boom)
	r.EmitReminderSent(ctx, run, &subscription.Subscription{}, "1 days before reminder")
	r.EmitReminderSkipped(ctx, run, "sub_1", "5 days before reminder", "missed reminder day")
	r.EmitSweepCompleted(ctx, 2)
	r.EmitShutdown(ctx)

	want := []string{
		"OnJobEnqueued", "OnJobStarted", "OnJobCompleted",
		"OnJobFailed", "OnJobRetrying", "OnJobDLQ",
		"OnWorkflowStarted", "OnWorkflowStepCompleted", "OnWorkflowStepFailed",
		"OnWorkflowSuspended", "OnWorkflowResumed",
		"OnWorkflowCompleted", "OnWorkflowFailed",
		"OnReminderSent", "OnReminderSkipped",
		"OnSweepCompleted", "OnShutdown",
	}
	if !slices.Equal(all.calls, want) {
		t.Fatalf("calls:\n got %v\nwant %v", all.calls, want)
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(quietLogger())
	all := &recorder{name: "all"}
	r.Register(failing{})
	r.Register(all)

	ctx := context.Background()
	r.EmitJobEnqueued(ctx, &job.Job{})
	r.EmitShutdown(ctx)

	if !slices.Equal(all.calls, []string{"OnJobEnqueued", "OnShutdown"}) {
		t.Fatalf("all: expected hooks despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(nil)
	ctx := context.Background()

	r.EmitJobEnqueued(ctx, &job.Job{})
	r.EmitJobDLQ(ctx, &job.Job{}, errors.New("x"))
	r.EmitWorkflowSuspended(ctx, &workflow.Run{}, time.Now())
	r.EmitReminderSkipped(ctx, &workflow.Run{}, "", "", "")
	r.EmitSweepCompleted(ctx, 0)
	r.EmitShutdown(ctx)
}

func TestRegistry_OrderPreserved(t *testing.T) {
	r := ext.NewRegistry(quietLogger())
	var order []string
	first := &orderExt{name: "first", order: &order}
	second := &orderExt{name: "second", order: &order}
	r.Register(first)
	r.Register(second)

	r.EmitWorkflowResumed(context.Background(), &workflow.Run{})

	if !slices.Equal(order, []string{"first", "second"}) {
		t.Fatalf("order = %v", order)
	}
}

type orderExt struct {
	name  string
	order *[]string
}

func (e *orderExt) Name() string { return e.name }

func (e *orderExt) OnWorkflowResumed(context.Context, *workflow.Run) error {
	*e.order = append(*e.order, e.name)
	return nil
}
