package dlq

import (
	"context"
	"time"

	"github.com/Pasan-pramu/remind/id"
)

// Entry is the record a failed timer job leaves behind. It keeps enough
// of the job to enqueue it again.
type Entry struct {
	ID         id.DLQID   `json:"id"`
	JobID      id.JobID   `json:"job_id"`
	JobName    string     `json:"job_name"`
	JobKey     string     `json:"job_key,omitempty"`
	Queue      string     `json:"queue"`
	Payload    []byte     `json:"payload"`
	Error      string     `json:"error"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
	FailedAt   time.Time  `json:"failed_at"`
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Replayed reports whether the entry has already been enqueued again.
func (e *Entry) Replayed() bool { return e.ReplayedAt != nil }

// ListOpts pages through entries, newest failure first. Zero Limit
// returns everything; empty Queue matches every queue.
type ListOpts struct {
	Limit  int
	Offset int
	Queue  string
}

// Store persists dead-lettered entries.
//
// ReplayDLQ only stamps ReplayedAt; the Service does the enqueue.
// PurgeDLQ deletes entries that failed before the cutoff and reports
// how many went.
type Store interface {
	PushDLQ(ctx context.Context, entry *Entry) error
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)
	GetDLQ(ctx context.Context, entryID id.DLQID) (*Entry, error)
	ReplayDLQ(ctx context.Context, entryID id.DLQID) error
	PurgeDLQ(ctx context.Context, before time.Time) (int64, error)
	CountDLQ(ctx context.Context) (int64, error)
}
