package remind

import (
	"fmt"
	"time"

	"github.com/Pasan-pramu/remind/policy"
)

// Config holds configuration for the Dispatcher.
type Config struct {
	// Concurrency is the maximum number of timer jobs processed concurrently.
	Concurrency int

	// Queues is the list of queues this dispatcher will poll.
	Queues []string

	// PollInterval is how often to poll for due timer jobs.
	PollInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// HeartbeatInterval is how often running jobs send heartbeats.
	HeartbeatInterval time.Duration

	// StaleJobThreshold is how long before a job without heartbeat is
	// considered stale and handed back to the queue.
	StaleJobThreshold time.Duration

	// Offsets is the reminder offset set, in days before renewal,
	// processed largest first.
	Offsets policy.Offsets

	// StepAttempts bounds how many times a failing run-step is attempted
	// before the failure aborts the run.
	StepAttempts int

	// WakeGrace is how far past its deadline a sleeping run may be before
	// the sweeper schedules a fresh wake-up for it.
	WakeGrace time.Duration

	// SweepSchedule is the cron expression for the overdue-run sweeper.
	SweepSchedule string

	// DedupTTL is how long a notification dedup key is retained.
	DedupTTL time.Duration

	// ResumeOnStart re-drives runs left in the running state when the
	// engine starts. Resume takes no lease, so when several engines share
	// a store exactly one of them should have it set.
	ResumeOnStart bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       10,
		Queues:            []string{"timers"},
		PollInterval:      1 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		StaleJobThreshold: 30 * time.Second,
		Offsets:           policy.DefaultOffsets(),
		StepAttempts:      3,
		WakeGrace:         5 * time.Minute,
		SweepSchedule:     "@every 1m",
		DedupTTL:          30 * 24 * time.Hour,
		ResumeOnStart:     true,
	}
}

// Validate reports the first invalid field in c.
func (c Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("remind: concurrency must be positive, got %d", c.Concurrency)
	}
	if len(c.Queues) == 0 {
		return fmt.Errorf("remind: at least one queue is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("remind: poll interval must be positive")
	}
	if c.StepAttempts <= 0 {
		return fmt.Errorf("remind: step attempts must be positive, got %d", c.StepAttempts)
	}
	if err := c.Offsets.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOffsets, err)
	}
	return nil
}
