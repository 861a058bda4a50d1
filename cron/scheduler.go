package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// TaskFunc is a periodic maintenance task.
type TaskFunc func(ctx context.Context) error

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due tasks.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithNow overrides the scheduler's time source.
func WithNow(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

type task struct {
	name     string
	expr     string
	schedule cronlib.Schedule
	fn       TaskFunc
	next     time.Time
	running  bool
}

// Scheduler runs registered tasks on their cron schedules. A task whose
// previous run has not returned is skipped for that tick.
type Scheduler struct {
	logger       *slog.Logger
	tickInterval time.Duration
	now          func() time.Time

	mu    sync.Mutex
	tasks []*task

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		logger:       logger,
		tickInterval: 1 * time.Second,
		now:          func() time.Time { return time.Now().UTC() },
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a named task fired on the given cron expression.
func (s *Scheduler) Register(name, expr string, fn TaskFunc) error {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return fmt.Errorf("parse schedule %q for task %q: %w", expr, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.name == name {
			return fmt.Errorf("cron task %q already registered", name)
		}
	}
	s.tasks = append(s.tasks, &task{
		name:     name,
		expr:     expr,
		schedule: sched,
		fn:       fn,
		next:     sched.Next(s.now()),
	})
	return nil
}

// Next reports when the named task fires next.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.name == name {
			return t.next, true
		}
	}
	return time.Time{}, false
}

// Start launches the tick goroutine.
func (s *Scheduler) Start(_ context.Context) error {
	s.wg.Add(1)
	go s.tickLoop()
	s.logger.Info("cron scheduler started",
		slog.Int("tasks", len(s.tasks)),
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop signals the scheduler to stop and waits for running tasks to
// finish. Calling it more than once is safe.
func (s *Scheduler) Stop(_ context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.logger.Info("cron scheduler stopped")
	})
	return nil
}

// tickLoop fires on each tick interval and runs due tasks.
func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopCh
		cancel()
	}()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick fires every task that is due at the current time. Due tasks run
// concurrently; Tick waits for all of them.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*task
	for _, t := range s.tasks {
		if t.running || t.next.After(now) {
			continue
		}
		t.running = true
		t.next = t.schedule.Next(now)
		due = append(due, t)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range due {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.fire(ctx, t)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) fire(ctx context.Context, t *task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cron task panicked",
				slog.String("task", t.name),
				slog.Any("panic", r),
			)
		}
		s.mu.Lock()
		t.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	if err := t.fn(ctx); err != nil {
		s.logger.Error("cron task failed",
			slog.String("task", t.name),
			slog.String("schedule", t.expr),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Debug("cron task fired",
		slog.String("task", t.name),
		slog.Duration("elapsed", time.Since(start)),
	)
}
