package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/backoff"
	"github.com/Pasan-pramu/remind/dlq"
	"github.com/Pasan-pramu/remind/ext"
	"github.com/Pasan-pramu/remind/id"
	"github.com/Pasan-pramu/remind/job"
	"github.com/Pasan-pramu/remind/middleware"
	"github.com/Pasan-pramu/remind/queue"
	"github.com/Pasan-pramu/remind/store/memory"
	"github.com/Pasan-pramu/remind/worker"
)

type wakePayload struct {
	RunID string `json:"run_id"`
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fixture struct {
	store      *memory.Store
	registry   *job.Registry
	extensions *ext.Registry
	executor   *worker.Executor
}

func newFixture() *fixture {
	logger := quietLogger()
	s := memory.New()
	reg := job.NewRegistry()
	extensions := ext.NewRegistry(logger)
	executor := worker.NewExecutor(
		reg, extensions, s, dlq.NewService(s, s), backoff.NewConstant(10*time.Millisecond), logger,
		middleware.Recover(logger),
	)
	return &fixture{store: s, registry: reg, extensions: extensions, executor: executor}
}

func (f *fixture) pool(opts ...worker.PoolOption) *worker.Pool {
	opts = append([]worker.PoolOption{
		worker.WithPoolConcurrency(1),
		worker.WithPollInterval(10 * time.Millisecond),
	}, opts...)
	return worker.NewPool(f.store, f.executor, f.extensions, quietLogger(), opts...)
}

func (f *fixture) enqueue(t *testing.T, name string, maxRetries int) *job.Job {
	t.Helper()
	j := job.New(name, []byte(`{"run_id":"wfrun_01"}`), job.Options{
		Queue:      job.DefaultQueue,
		MaxRetries: maxRetries,
	})
	if err := f.store.EnqueueJob(context.Background(), j); err != nil {
		t.Fatalf("enqueue error: %v", err)
	}
	return j
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for condition")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func stop(t *testing.T, p *worker.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("stop error: %v", err)
	}
}

func TestPool_StartStop(t *testing.T) {
	p := newFixture().pool(worker.WithPoolConcurrency(2))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("unexpected double-start error: %v", err)
	}
	stop(t, p)
	stop(t, p)
}

func TestPool_ProcessesWakeJob(t *testing.T) {
	f := newFixture()
	var got atomic.Value
	job.RegisterDefinition(f.registry, job.NewDefinition("workflow.wake", func(_ context.Context, p wakePayload) error {
		got.Store(p.RunID)
		return nil
	}))
	j := f.enqueue(t, "workflow.wake", 3)

	p := f.pool()
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitFor(t, func() bool { return got.Load() != nil })
	stop(t, p)

	if got.Load() != "wfrun_01" {
		t.Errorf("payload run_id = %v", got.Load())
	}
	stored, err := f.store.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get job error: %v", err)
	}
	if stored.State != job.StateCompleted || stored.CompletedAt == nil {
		t.Errorf("job state = %q completed_at=%v", stored.State, stored.CompletedAt)
	}
}

func TestPool_ExhaustedJobIsDeadLettered(t *testing.T) {
	f := newFixture()
	var calls atomic.Int32
	job.RegisterDefinition(f.registry, job.NewDefinition("workflow.wake", func(context.Context, wakePayload) error {
		calls.Add(1)
		return errors.New("store unavailable")
	}))
	j := f.enqueue(t, "workflow.wake", 1)

	p := f.pool()
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitFor(t, func() bool {
		got, _ := f.store.GetJob(context.Background(), j.ID)
		return got != nil && got.State == job.StateFailed
	})
	stop(t, p)

	if n := calls.Load(); n != 2 {
		t.Errorf("handler calls = %d, want 2", n)
	}
	entries, err := f.store.ListDLQ(context.Background(), dlq.ListOpts{})
	if err != nil {
		t.Fatalf("list dlq: %v", err)
	}
	if len(entries) != 1 || entries[0].JobID != j.ID || entries[0].Error != "store unavailable" {
		t.Fatalf("unexpected dlq entries %+v", entries)
	}
}

func TestExecutor_UnknownJobSkipsRetries(t *testing.T) {
	f := newFixture()
	j := f.enqueue(t, "unregistered", 5)

	err := f.executor.Execute(context.Background(), j)
	if !errors.Is(err, remind.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if j.State != job.StateFailed || j.RetryCount != 1 {
		t.Fatalf("state=%q retries=%d", j.State, j.RetryCount)
	}
}

func TestExecutor_PermanentErrorSkipsRetries(t *testing.T) {
	f := newFixture()
	job.RegisterDefinition(f.registry, job.NewDefinition("workflow.wake", func(context.Context, wakePayload) error {
		return backoff.Permanent(remind.ErrRunNotFound)
	}))
	j := f.enqueue(t, "workflow.wake", 5)

	err := f.executor.Execute(context.Background(), j)
	if !errors.Is(err, remind.ErrMaxRetriesExceeded) || !errors.Is(err, remind.ErrRunNotFound) {
		t.Fatalf("unexpected error %v", err)
	}
	if j.State != job.StateFailed {
		t.Fatalf("state=%q", j.State)
	}
}

func TestExecutor_RetrySchedulesBackoff(t *testing.T) {
	f := newFixture()
	job.RegisterDefinition(f.registry, job.NewDefinition("workflow.wake", func(context.Context, wakePayload) error {
		return errors.New("flaky")
	}))
	j := f.enqueue(t, "workflow.wake", 3)
	before := time.Now()

	if err := f.executor.Execute(context.Background(), j); err == nil {
		t.Fatal("expected retry error")
	}
	if j.State != job.StateRetrying || j.RetryCount != 1 || j.LastError != "flaky" {
		t.Fatalf("state=%q retries=%d last=%q", j.State, j.RetryCount, j.LastError)
	}
	if !j.RunAt.After(before) {
		t.Fatalf("RunAt %v should be pushed past %v", j.RunAt, before)
	}
}

func TestExecutor_RecoversPanic(t *testing.T) {
	f := newFixture()
	job.RegisterDefinition(f.registry, job.NewDefinition("workflow.wake", func(context.Context, wakePayload) error {
		panic("nil map")
	}))
	j := f.enqueue(t, "workflow.wake", 0)

	if err := f.executor.Execute(context.Background(), j); err == nil {
		t.Fatal("expected error from panicking handler")
	}
	if j.State != job.StateFailed {
		t.Fatalf("state=%q", j.State)
	}
}

func TestPool_ThrottledJobIsHandedBack(t *testing.T) {
	f := newFixture()
	var calls atomic.Int32
	job.RegisterDefinition(f.registry, job.NewDefinition("workflow.wake", func(context.Context, wakePayload) error {
		calls.Add(1)
		return nil
	}))
	f.enqueue(t, "workflow.wake", 0)
	f.enqueue(t, "workflow.wake", 0)

	qm := queue.NewManager(queue.Config{Name: job.DefaultQueue, RateLimit: 0.5, RateBurst: 1})
	p := f.pool(worker.WithQueueManager(qm))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitFor(t, func() bool { return calls.Load() == 1 })
	time.Sleep(100 * time.Millisecond)
	stop(t, p)

	if n := calls.Load(); n != 1 {
		t.Fatalf("handler calls = %d, want 1 under rate limit", n)
	}
	pending, err := f.store.CountJobs(context.Background(), job.CountOpts{State: job.StatePending})
	if err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if pending != 1 {
		t.Fatalf("pending jobs = %d, want 1", pending)
	}
}

func TestPool_ExtensionFires(t *testing.T) {
	f := newFixture()
	tracker := &trackingExt{}
	f.extensions.Register(tracker)
	job.RegisterDefinition(f.registry, job.NewDefinition("workflow.wake", func(context.Context, wakePayload) error {
		return nil
	}))
	f.enqueue(t, "workflow.wake", 0)

	p := f.pool()
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitFor(t, tracker.completed.Load)
	stop(t, p)

	if !tracker.started.Load() {
		t.Error("expected OnJobStarted to fire")
	}
}

func TestPool_WorkerID(t *testing.T) {
	p := newFixture().pool()
	if p.WorkerID().Prefix() != id.PrefixWorker {
		t.Fatalf("worker id prefix = %q", p.WorkerID().Prefix())
	}
}

type trackingExt struct {
	started   atomic.Bool
	completed atomic.Bool
}

func (e *trackingExt) Name() string { return "tracker" }

func (e *trackingExt) OnJobStarted(context.Context, *job.Job) error {
	e.started.Store(true)
	return nil
}

func (e *trackingExt) OnJobCompleted(context.Context, *job.Job, time.Duration) error {
	e.completed.Store(true)
	return nil
}
