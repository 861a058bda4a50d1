package workflow

import (
	"context"
	"time"

	"github.com/Pasan-pramu/remind/id"
)

// Checkpoint is the recorded outcome of one completed step. Data is the
// gob encoding of the step's result, empty for steps without one.
type Checkpoint struct {
	ID        id.CheckpointID `json:"id"`
	RunID     id.RunID        `json:"run_id"`
	StepName  string          `json:"step_name"`
	Data      []byte          `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// ListOpts selects runs. Zero fields do not filter; zero Limit returns
// every match. WakeBefore keeps sleeping runs due before it, which is
// how overdue runs are found after downtime.
type ListOpts struct {
	Limit      int
	Offset     int
	State      RunState
	Name       string
	WakeBefore time.Time
}

// Store persists runs and their checkpoints.
//
// ClaimRun is the only way an activation takes ownership of a run: it
// moves the run from `from` to running and clears its sleep fields in
// one atomic step, returning remind.ErrInvalidState when the run has
// already left `from`. Two wakes for the same sleep therefore activate
// the run once.
//
// SaveCheckpoint replaces any checkpoint for the same step without
// changing its position; ListCheckpoints returns them in the order they
// were first saved. GetCheckpoint returns nil data when the step has not
// completed and non-nil (possibly empty) data when it has.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, runID id.RunID) (*Run, error)
	UpdateRun(ctx context.Context, run *Run) error
	ClaimRun(ctx context.Context, runID id.RunID, from RunState) (*Run, error)
	ListRuns(ctx context.Context, opts ListOpts) ([]*Run, error)

	SaveCheckpoint(ctx context.Context, runID id.RunID, stepName string, data []byte) error
	GetCheckpoint(ctx context.Context, runID id.RunID, stepName string) ([]byte, error)
	ListCheckpoints(ctx context.Context, runID id.RunID) ([]*Checkpoint, error)
}
