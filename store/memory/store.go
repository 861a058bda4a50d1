// Package memory is a fully in-memory implementation of store.Store.
// It is safe for concurrent access and intended for tests and local
// development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Pasan-pramu/remind/dlq"
	"github.com/Pasan-pramu/remind/job"
	"github.com/Pasan-pramu/remind/notify"
	"github.com/Pasan-pramu/remind/subscription"
	"github.com/Pasan-pramu/remind/workflow"
)

// Ensure Store implements each subsystem store at compile time.
// store.Store can't be imported here (import cycle).
var (
	_ job.Store          = (*Store)(nil)
	_ workflow.Store     = (*Store)(nil)
	_ dlq.Store          = (*Store)(nil)
	_ subscription.Store = (*Store)(nil)
	_ notify.DedupStore  = (*Store)(nil)
)

// Store holds every record in maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	jobs          map[string]*job.Job
	jobKeys       map[string]string // job key -> job ID of its latest holder
	runs          map[string]*workflow.Run
	checkpoints   map[string]*workflow.Checkpoint // key: "runID:stepName"
	ckptSeq       map[string]int64
	seq           int64
	dlqs          map[string]*dlq.Entry
	subscriptions map[string]*subscription.Subscription
	dedup         map[string]time.Time

	now func() time.Time
}

// Option configures a memory Store.
type Option func(*Store)

// WithNow overrides the clock used for dedup expiry and job due times.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		jobs:          make(map[string]*job.Job),
		jobKeys:       make(map[string]string),
		runs:          make(map[string]*workflow.Run),
		checkpoints:   make(map[string]*workflow.Checkpoint),
		ckptSeq:       make(map[string]int64),
		dlqs:          make(map[string]*dlq.Entry),
		subscriptions: make(map[string]*subscription.Subscription),
		dedup:         make(map[string]time.Time),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
