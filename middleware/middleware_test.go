package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Pasan-pramu/remind/backoff"
	"github.com/Pasan-pramu/remind/id"
	"github.com/Pasan-pramu/remind/job"
	"github.com/Pasan-pramu/remind/middleware"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func wakeJob() *job.Job {
	return &job.Job{
		ID:         id.NewJobID(),
		Name:       "workflow.wake",
		Key:        "wake:wfrun_01:1700000000",
		Queue:      "timers",
		RetryCount: 2,
		RunAt:      time.Now().Add(-time.Second),
	}
}

// tag records its name around next so a chain's nesting can be read back.
func tag(name string, trail *[]string) middleware.Middleware {
	return func(ctx context.Context, _ *job.Job, next middleware.Handler) error {
		*trail = append(*trail, name+">")
		err := next(ctx)
		*trail = append(*trail, "<"+name)
		return err
	}
}

func TestChainNesting(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  string
	}{
		{"empty", nil, "fire"},
		{"single", []string{"a"}, "a> fire <a"},
		{"three", []string{"a", "b", "c"}, "a> b> c> fire <c <b <a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var trail []string
			mws := make([]middleware.Middleware, 0, len(tt.names))
			for _, n := range tt.names {
				mws = append(mws, tag(n, &trail))
			}
			err := middleware.Chain(mws...)(context.Background(), wakeJob(), func(context.Context) error {
				trail = append(trail, "fire")
				return nil
			})
			if err != nil {
				t.Fatalf("chain: %v", err)
			}
			if got := strings.Join(trail, " "); got != tt.want {
				t.Fatalf("trail = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChainShortCircuit(t *testing.T) {
	refuse := errors.New("refused")
	gate := func(context.Context, *job.Job, middleware.Handler) error { return refuse }

	fired := false
	err := middleware.Chain(gate)(context.Background(), wakeJob(), func(context.Context) error {
		fired = true
		return nil
	})
	if !errors.Is(err, refuse) || fired {
		t.Fatalf("err=%v fired=%v, want refused without firing", err, fired)
	}
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	rec := middleware.Recover(slog.New(slog.NewTextHandler(&buf, nil)))

	err := rec(context.Background(), wakeJob(), func(context.Context) error {
		panic("renewal date missing")
	})

	var pe *middleware.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *PanicError", err)
	}
	if pe.Value != "renewal date missing" || len(pe.Stack) == 0 {
		t.Fatalf("panic error = %+v", pe)
	}
	if got := err.Error(); got != "job workflow.wake panicked: renewal date missing" {
		t.Fatalf("message = %q", got)
	}
	if backoff.IsPermanent(err) {
		t.Fatal("a panic must stay retryable")
	}
	if !strings.Contains(buf.String(), "timer job panicked") {
		t.Fatalf("log = %q", buf.String())
	}

	if err := rec(context.Background(), wakeJob(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("clean handler: %v", err)
	}
}

func TestLoggingLevels(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
		msg   string
	}{
		{"ok", nil, "level=INFO", "timer job done"},
		{"transient", errors.New("smtp 421"), "level=ERROR", "timer job failed"},
		{"permanent", backoff.Permanent(errors.New("bad address")), "level=WARN", "timer job failed permanently"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			err := middleware.Logging(logger)(context.Background(), wakeJob(), func(context.Context) error {
				return tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			out := buf.String()
			for _, want := range []string{"timer job firing", tt.level, tt.msg, "job_key=wake:wfrun_01:1700000000", "attempt=3"} {
				if !strings.Contains(out, want) {
					t.Errorf("log missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestTimeout(t *testing.T) {
	t.Run("applies job deadline", func(t *testing.T) {
		j := wakeJob()
		j.Timeout = 20 * time.Millisecond
		err := middleware.Timeout(quietLogger())(context.Background(), j, func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("handler context has no deadline")
			}
			<-ctx.Done()
			return ctx.Err()
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("err = %v, want DeadlineExceeded", err)
		}
	})

	t.Run("no deadline when unset", func(t *testing.T) {
		err := middleware.Timeout(quietLogger())(context.Background(), wakeJob(), func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); ok {
				t.Error("unexpected deadline")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("err = %v", err)
		}
	})
}
