package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is waiting for its RunAt.
	StatePending State = "pending"
	// StateRunning means a worker holds the job.
	StateRunning State = "running"
	// StateCompleted means the handler returned nil.
	StateCompleted State = "completed"
	// StateFailed means retries were exhausted.
	StateFailed State = "failed"
	// StateRetrying means the job failed and is scheduled again.
	StateRetrying State = "retrying"
	// StateCancelled means the job was withdrawn before it ran.
	StateCancelled State = "cancelled"
)

// Active reports whether the job may still run.
func (s State) Active() bool {
	return s == StatePending || s == StateRunning || s == StateRetrying
}

// Job is one queued unit of work.
type Job struct {
	remind.Entity

	ID          id.JobID      `json:"id"`
	Name        string        `json:"name"`
	Key         string        `json:"key,omitempty"`
	Queue       string        `json:"queue"`
	Payload     []byte        `json:"payload"`
	State       State         `json:"state"`
	Priority    int           `json:"priority"`
	MaxRetries  int           `json:"max_retries"`
	RetryCount  int           `json:"retry_count"`
	LastError   string        `json:"last_error,omitempty"`
	WorkerID    id.WorkerID   `json:"worker_id,omitempty"`
	RunAt       time.Time     `json:"run_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	HeartbeatAt *time.Time    `json:"heartbeat_at,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// New builds a pending job from opts. RunAt defaults to now.
func New(name string, payload []byte, opts Options) *Job {
	runAt := opts.RunAt
	if runAt.IsZero() {
		runAt = time.Now().UTC()
	}
	return &Job{
		Entity:     remind.NewEntity(),
		ID:         id.NewJobID(),
		Name:       name,
		Key:        opts.Key,
		Queue:      opts.Queue,
		Payload:    payload,
		State:      StatePending,
		Priority:   opts.Priority,
		MaxRetries: opts.MaxRetries,
		RunAt:      runAt.UTC(),
		Timeout:    opts.Timeout,
	}
}

// SnoozeError is returned by a handler that ran before it should have.
// The job goes back to its queue due at At and the attempt is not
// counted.
type SnoozeError struct {
	At time.Time
}

func (e *SnoozeError) Error() string {
	return fmt.Sprintf("job snoozed until %s", e.At.UTC().Format(time.RFC3339))
}

// Snooze returns a SnoozeError for at.
func Snooze(at time.Time) error { return &SnoozeError{At: at} }

// SnoozedUntil reports whether err asks for a snooze, and until when.
func SnoozedUntil(err error) (time.Time, bool) {
	var s *SnoozeError
	if errors.As(err, &s) {
		return s.At, true
	}
	return time.Time{}, false
}
