package workflow

import (
	"time"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/id"
)

// RunState represents the lifecycle state of a workflow run.
type RunState string

const (
	// RunStateRunning means the workflow is executing, or was executing
	// when its process died.
	RunStateRunning RunState = "running"
	// RunStateSleeping means the workflow is suspended until WakeAt.
	RunStateSleeping RunState = "sleeping"
	// RunStateCompleted means the workflow finished successfully.
	RunStateCompleted RunState = "completed"
	// RunStateFailed means a step failed and the run was aborted.
	RunStateFailed RunState = "failed"
)

// Terminal reports whether no further activation will happen.
func (s RunState) Terminal() bool {
	return s == RunStateCompleted || s == RunStateFailed
}

// Run represents a single execution of a workflow.
type Run struct {
	remind.Entity

	ID    id.RunID `json:"id"`
	Name  string   `json:"name"`
	State RunState `json:"state"`
	Input []byte   `json:"input,omitempty"`
	Error string   `json:"error,omitempty"`

	// SleepStep names the sleep step the run is suspended in.
	SleepStep string `json:"sleep_step,omitempty"`
	// WakeAt is the deadline of the current sleep.
	WakeAt *time.Time `json:"wake_at,omitempty"`
	// Activations counts how many times the handler has been entered.
	Activations int `json:"activations"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
