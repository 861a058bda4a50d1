package job

import (
	"context"
	"time"

	"github.com/Pasan-pramu/remind/id"
)

// ListOpts pages through jobs. Zero Limit returns everything; empty
// Queue matches every queue.
type ListOpts struct {
	Limit  int
	Offset int
	Queue  string
}

// CountOpts filters CountJobs. Zero fields do not filter.
type CountOpts struct {
	Queue string
	State State
}

// Store persists timer jobs.
//
// EnqueueJob rejects a job whose Key is held by another active job with
// remind.ErrJobAlreadyExists; this is what keeps one wake per run and
// deadline. DequeueJobs claims at most limit jobs whose RunAt has passed
// on the store's clock, earliest first and then by priority, and marks
// them running so no other worker sees them.
//
// HeartbeatJob and ReapStaleJobs track liveness: a running job whose
// last heartbeat is older than threshold is returned by ReapStaleJobs
// for the caller to hand back.
type Store interface {
	EnqueueJob(ctx context.Context, j *Job) error
	DequeueJobs(ctx context.Context, queues []string, limit int) ([]*Job, error)
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)
	UpdateJob(ctx context.Context, j *Job) error
	DeleteJob(ctx context.Context, jobID id.JobID) error
	ListJobsByState(ctx context.Context, state State, opts ListOpts) ([]*Job, error)
	HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error
	ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*Job, error)
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)
}
