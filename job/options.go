package job

import "time"

// DefaultQueue is the queue wake-up jobs are placed on.
const DefaultQueue = "timers"

// Options holds per-job configuration.
type Options struct {
	// MaxRetries is how many times a failed job is retried before it is
	// moved to the dead letter queue.
	MaxRetries int
	// Queue is the queue the job is placed on.
	Queue string
	// Priority orders jobs with the same RunAt; higher runs first.
	Priority int
	// Timeout bounds one execution. Zero means unlimited.
	Timeout time.Duration
	// RunAt is the earliest time the job may be dequeued.
	RunAt time.Time
	// Key deduplicates active jobs.
	Key string
}

// DefaultOptions returns the defaults for timer jobs.
func DefaultOptions() Options {
	return Options{
		MaxRetries: 5,
		Queue:      DefaultQueue,
		Timeout:    2 * time.Minute,
	}
}

// Option configures Options.
type Option func(*Options)

// WithMaxRetries sets the retry budget.
func WithMaxRetries(n int) Option {
	return func(o *Options) { o.MaxRetries = n }
}

// WithQueue sets the queue.
func WithQueue(q string) Option {
	return func(o *Options) { o.Queue = q }
}

// WithPriority sets the priority.
func WithPriority(p int) Option {
	return func(o *Options) { o.Priority = p }
}

// WithTimeout sets the execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithRunAt delays the job until t.
func WithRunAt(t time.Time) Option {
	return func(o *Options) { o.RunAt = t }
}

// WithKey sets the dedup key.
func WithKey(key string) Option {
	return func(o *Options) { o.Key = key }
}
