package dlq

import (
	"context"
	"fmt"
	"time"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/id"
	"github.com/Pasan-pramu/remind/job"
)

// Service moves failed jobs into the dead letter queue and back.
type Service struct {
	entries Store
	jobs    job.Store
	now     func() time.Time
}

// NewService creates a Service over entries, replaying into jobs.
func NewService(entries Store, jobs job.Store) *Service {
	return &Service{
		entries: entries,
		jobs:    jobs,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetNow replaces the clock used for failure times, replays and purge
// cutoffs.
func (s *Service) SetNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Push records j as dead-lettered because of cause.
func (s *Service) Push(ctx context.Context, j *job.Job, cause error) error {
	at := s.now()
	return s.entries.PushDLQ(ctx, &Entry{
		ID:         id.NewDLQID(),
		JobID:      j.ID,
		JobName:    j.Name,
		JobKey:     j.Key,
		Queue:      j.Queue,
		Payload:    j.Payload,
		Error:      cause.Error(),
		RetryCount: j.RetryCount,
		MaxRetries: j.MaxRetries,
		FailedAt:   at,
		CreatedAt:  at,
	})
}

// Replay enqueues a fresh copy of the entry's job, due now, under the
// original key. An entry replays once; a second attempt returns
// remind.ErrAlreadyReplayed. If the key is still held by an active job
// the enqueue fails with remind.ErrJobAlreadyExists and the entry is
// left untouched.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID) (*job.Job, error) {
	entry, err := s.entries.GetDLQ(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Replayed() {
		return nil, fmt.Errorf("%w: %s", remind.ErrAlreadyReplayed, entryID)
	}

	j := job.New(entry.JobName, entry.Payload, job.Options{
		Queue:      entry.Queue,
		MaxRetries: entry.MaxRetries,
		Key:        entry.JobKey,
		RunAt:      s.now(),
	})
	if err := s.jobs.EnqueueJob(ctx, j); err != nil {
		return nil, err
	}
	return j, s.entries.ReplayDLQ(ctx, entryID)
}

// Purge deletes entries that failed more than age ago.
func (s *Service) Purge(ctx context.Context, age time.Duration) (int64, error) {
	return s.entries.PurgeDLQ(ctx, s.now().Add(-age))
}

// List returns entries matching opts.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return s.entries.ListDLQ(ctx, opts)
}

// Count returns how many entries are held.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.entries.CountDLQ(ctx)
}
