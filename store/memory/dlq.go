package memory

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/dlq"
	"github.com/Pasan-pramu/remind/id"
)

func copyEntry(e *dlq.Entry) *dlq.Entry {
	cp := *e
	cp.Payload = cloneBytes(e.Payload)
	if e.ReplayedAt != nil {
		at := *e.ReplayedAt
		cp.ReplayedAt = &at
	}
	return &cp
}

// PushDLQ stores an entry.
func (m *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	m.dlqs[entry.ID.String()] = copyEntry(entry)
	m.mu.Unlock()
	return nil
}

// ListDLQ returns entries newest failure first.
func (m *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*dlq.Entry
	for _, e := range m.dlqs {
		if opts.Queue == "" || e.Queue == opts.Queue {
			out = append(out, copyEntry(e))
		}
	}
	slices.SortFunc(out, func(a, b *dlq.Entry) int { return b.FailedAt.Compare(a.FailedAt) })
	return paginate(out, opts.Offset, opts.Limit), nil
}

// GetDLQ returns one entry.
func (m *Store) GetDLQ(_ context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return nil, remind.ErrDLQNotFound
	}
	return copyEntry(e), nil
}

// ReplayDLQ stamps an entry as replayed on the store clock.
func (m *Store) ReplayDLQ(_ context.Context, entryID id.DLQID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return remind.ErrDLQNotFound
	}
	at := m.now()
	e.ReplayedAt = &at
	return nil
}

// PurgeDLQ deletes entries that failed before the cutoff.
func (m *Store) PurgeDLQ(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.dlqs)
	maps.DeleteFunc(m.dlqs, func(_ string, e *dlq.Entry) bool { return e.FailedAt.Before(before) })
	return int64(n - len(m.dlqs)), nil
}

// CountDLQ returns the number of entries.
func (m *Store) CountDLQ(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.dlqs)), nil
}
