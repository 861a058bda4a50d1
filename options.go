package remind

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Pasan-pramu/remind/policy"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

func configure(fn func(*Config)) Option {
	return func(d *Dispatcher) error {
		fn(&d.config)
		return nil
	}
}

// WithConfig replaces the whole configuration. Options after it still
// apply on top.
func WithConfig(cfg Config) Option {
	return configure(func(c *Config) { *c = cfg })
}

// WithConcurrency sets how many timer jobs run at once.
func WithConcurrency(n int) Option {
	return configure(func(c *Config) { c.Concurrency = n })
}

// WithQueues sets the queues the worker pool claims from.
func WithQueues(queues []string) Option {
	return configure(func(c *Config) { c.Queues = queues })
}

// WithPollInterval sets how long an idle worker waits between polls.
func WithPollInterval(interval time.Duration) Option {
	return configure(func(c *Config) { c.PollInterval = interval })
}

// WithStepAttempts bounds the attempts of each workflow step.
func WithStepAttempts(n int) Option {
	return configure(func(c *Config) { c.StepAttempts = n })
}

// WithResumeOnStart sets whether Start recovers runs left running.
func WithResumeOnStart(resume bool) Option {
	return configure(func(c *Config) { c.ResumeOnStart = resume })
}

// WithOffsets sets the days-before-renewal at which reminders go out.
// The offsets are checked here so a bad set fails New with
// ErrInvalidOffsets.
func WithOffsets(offsets policy.Offsets) Option {
	return func(d *Dispatcher) error {
		if err := offsets.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOffsets, err)
		}
		d.config.Offsets = offsets.Clone()
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) error {
		d.logger = l
		return nil
	}
}

// WithStore sets the store. Engine construction requires it to be a
// full store.Store.
func WithStore(s Storer) Option {
	return func(d *Dispatcher) error {
		d.store = s
		return nil
	}
}
