package dlq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/dlq"
	"github.com/Pasan-pramu/remind/job"
	"github.com/Pasan-pramu/remind/store/memory"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*dlq.Service, *memory.Store, *time.Time) {
	t.Helper()
	now := epoch
	s := memory.New()
	svc := dlq.NewService(s, s)
	svc.SetNow(func() time.Time { return now })
	return svc, s, &now
}

func failedWakeJob() *job.Job {
	j := job.New("workflow.wake", []byte(`{"run_id":"wfrun_x"}`), job.Options{
		Queue:      "timers",
		MaxRetries: 3,
		Key:        "wake:wfrun_x:1700000000",
	})
	j.State = job.StateFailed
	j.RetryCount = 3
	j.LastError = "store unavailable"
	return j
}

func pushOne(t *testing.T, svc *dlq.Service) *dlq.Entry {
	t.Helper()
	ctx := context.Background()
	if err := svc.Push(ctx, failedWakeJob(), errors.New("store unavailable")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	entries, err := svc.List(ctx, dlq.ListOpts{Limit: 1})
	if err != nil || len(entries) != 1 {
		t.Fatalf("List = %d, %v", len(entries), err)
	}
	return entries[0]
}

func TestPushCopiesJob(t *testing.T) {
	svc, _, _ := newService(t)
	e := pushOne(t, svc)

	if e.JobName != "workflow.wake" || e.Queue != "timers" || e.JobKey != "wake:wfrun_x:1700000000" {
		t.Errorf("identity = %s/%s/%s", e.JobName, e.Queue, e.JobKey)
	}
	if e.Error != "store unavailable" || e.RetryCount != 3 || e.MaxRetries != 3 {
		t.Errorf("failure = %q %d/%d", e.Error, e.RetryCount, e.MaxRetries)
	}
	if !e.FailedAt.Equal(epoch) || e.Replayed() {
		t.Errorf("FailedAt=%v replayed=%v", e.FailedAt, e.Replayed())
	}
	if n, err := svc.Count(context.Background()); err != nil || n != 1 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestReplay(t *testing.T) {
	svc, s, now := newService(t)
	ctx := context.Background()
	e := pushOne(t, svc)
	*now = epoch.Add(time.Hour)

	j, err := svc.Replay(ctx, e.ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if j.ID == e.JobID || j.State != job.StatePending || j.RetryCount != 0 {
		t.Errorf("replayed job = %+v", j)
	}
	if !j.RunAt.Equal(*now) || j.Key != e.JobKey {
		t.Errorf("RunAt=%v Key=%q", j.RunAt, j.Key)
	}

	stored, err := s.GetJob(ctx, j.ID)
	if err != nil || string(stored.Payload) != `{"run_id":"wfrun_x"}` {
		t.Fatalf("GetJob = %+v, %v", stored, err)
	}
	entry, _ := s.GetDLQ(ctx, e.ID)
	if !entry.Replayed() {
		t.Error("entry not marked replayed")
	}

	if _, err := svc.Replay(ctx, e.ID); !errors.Is(err, remind.ErrAlreadyReplayed) {
		t.Fatalf("second Replay = %v, want ErrAlreadyReplayed", err)
	}
}

func TestReplayKeyStillHeld(t *testing.T) {
	svc, s, _ := newService(t)
	ctx := context.Background()
	e := pushOne(t, svc)

	// A fresh wake for the same run and time is already queued.
	holder := job.New("workflow.wake", nil, job.Options{Queue: "timers", Key: e.JobKey})
	if err := s.EnqueueJob(ctx, holder); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	if _, err := svc.Replay(ctx, e.ID); !errors.Is(err, remind.ErrJobAlreadyExists) {
		t.Fatalf("Replay = %v, want ErrJobAlreadyExists", err)
	}
	entry, _ := s.GetDLQ(ctx, e.ID)
	if entry.Replayed() {
		t.Error("entry marked replayed although nothing was enqueued")
	}
}

func TestPurgeUsesClock(t *testing.T) {
	svc, _, now := newService(t)
	ctx := context.Background()
	pushOne(t, svc)

	*now = epoch.Add(30 * time.Minute)
	if n, err := svc.Purge(ctx, time.Hour); err != nil || n != 0 {
		t.Fatalf("Purge after 30m = %d, %v; want 0", n, err)
	}
	*now = epoch.Add(2 * time.Hour)
	if n, err := svc.Purge(ctx, time.Hour); err != nil || n != 1 {
		t.Fatalf("Purge after 2h = %d, %v; want 1", n, err)
	}
}

func TestReplayUnknown(t *testing.T) {
	svc, _, _ := newService(t)
	e := &dlq.Entry{}
	if _, err := svc.Replay(context.Background(), e.ID); !errors.Is(err, remind.ErrDLQNotFound) {
		t.Fatalf("Replay = %v, want ErrDLQNotFound", err)
	}
}
