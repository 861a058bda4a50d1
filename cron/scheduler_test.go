package cron_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Pasan-pramu/remind/cron"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// manualClock is a settable time source.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestParseSchedule(t *testing.T) {
	for _, expr := range []string{"*/5 * * * *", "@every 1m", "@daily", "0 3 * * 1-5"} {
		if _, err := cron.ParseSchedule(expr); err != nil {
			t.Errorf("ParseSchedule(%q): %v", expr, err)
		}
	}
	for _, expr := range []string{"", "not a schedule", "* * * * * *"} {
		if _, err := cron.ParseSchedule(expr); err == nil {
			t.Errorf("ParseSchedule(%q): expected error", expr)
		}
	}
}

func TestScheduler_RegisterRejectsBadInput(t *testing.T) {
	s := cron.NewScheduler(testLogger())
	noop := func(context.Context) error { return nil }

	if err := s.Register("sweep", "bogus", noop); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if err := s.Register("sweep", "@every 1m", noop); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register("sweep", "@every 5m", noop); err == nil {
		t.Fatal("expected error for duplicate task name")
	}
}

func TestScheduler_TickFiresDueTasks(t *testing.T) {
	clock := &manualClock{now: epoch}
	s := cron.NewScheduler(testLogger(), cron.WithNow(clock.Now))

	var fast, slow atomic.Int32
	if err := s.Register("fast", "@every 1m", func(context.Context) error { fast.Add(1); return nil }); err != nil {
		t.Fatal(err)
	}
	if err := s.Register("slow", "@every 1h", func(context.Context) error { slow.Add(1); return nil }); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	s.Tick(ctx)
	if fast.Load() != 0 || slow.Load() != 0 {
		t.Fatalf("nothing should be due yet: fast=%d slow=%d", fast.Load(), slow.Load())
	}

	clock.Advance(time.Minute)
	s.Tick(ctx)
	if fast.Load() != 1 || slow.Load() != 0 {
		t.Fatalf("after 1m: fast=%d slow=%d", fast.Load(), slow.Load())
	}

	next, ok := s.Next("fast")
	if !ok || !next.Equal(epoch.Add(2*time.Minute)) {
		t.Fatalf("Next(fast) = %v, %v", next, ok)
	}

	clock.Advance(time.Hour)
	s.Tick(ctx)
	if fast.Load() != 2 || slow.Load() != 1 {
		t.Fatalf("after 1h1m: fast=%d slow=%d", fast.Load(), slow.Load())
	}

	if _, ok := s.Next("missing"); ok {
		t.Fatal("Next should report unknown task")
	}
}

func TestScheduler_FailingTaskKeepsSchedule(t *testing.T) {
	clock := &manualClock{now: epoch}
	s := cron.NewScheduler(testLogger(), cron.WithNow(clock.Now))

	var calls atomic.Int32
	if err := s.Register("flaky", "@every 1m", func(context.Context) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return errors.New("still failing")
	}); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for range 3 {
		clock.Advance(time.Minute)
		s.Tick(ctx)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := cron.NewScheduler(testLogger(), cron.WithTickInterval(10*time.Millisecond))

	fired := make(chan struct{}, 1)
	if err := s.Register("every-second", "@every 1s", func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("task did not fire")
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
