package memory

import (
	"context"
	"slices"
	"time"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/id"
	"github.com/Pasan-pramu/remind/job"
)

func copyJob(j *job.Job) *job.Job {
	cp := *j
	cp.Payload = cloneBytes(j.Payload)
	return &cp
}

// keyHeld reports whether an active job other than self holds key.
func (m *Store) keyHeld(key, self string) bool {
	holder, ok := m.jobKeys[key]
	if !ok || holder == self {
		return false
	}
	j, ok := m.jobs[holder]
	return ok && j.State.Active()
}

// EnqueueJob stores j. A Key held by another active job is rejected.
func (m *Store) EnqueueJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	jid := j.ID.String()
	if _, dup := m.jobs[jid]; dup {
		return remind.ErrJobAlreadyExists
	}
	if j.Key != "" {
		if m.keyHeld(j.Key, jid) {
			return remind.ErrJobAlreadyExists
		}
		m.jobKeys[j.Key] = jid
	}
	m.jobs[jid] = copyJob(j)
	return nil
}

// DequeueJobs claims up to limit jobs due on the store clock.
func (m *Store) DequeueJobs(_ context.Context, queues []string, limit int) ([]*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var due []*job.Job
	for _, j := range m.jobs {
		waiting := j.State == job.StatePending || j.State == job.StateRetrying
		if !waiting || j.RunAt.After(now) {
			continue
		}
		if len(queues) > 0 && !slices.Contains(queues, j.Queue) {
			continue
		}
		due = append(due, j)
	}

	slices.SortFunc(due, func(a, b *job.Job) int {
		if c := a.RunAt.Compare(b.RunAt); c != 0 {
			return c
		}
		return b.Priority - a.Priority
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*job.Job, 0, len(due))
	for _, j := range due {
		at := now
		j.State = job.StateRunning
		j.StartedAt = &at
		j.HeartbeatAt = &at
		claimed = append(claimed, copyJob(j))
	}
	return claimed, nil
}

// GetJob returns the job with jobID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, remind.ErrJobNotFound
	}
	return copyJob(j), nil
}

// UpdateJob replaces a stored job.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	jid := j.ID.String()
	if _, ok := m.jobs[jid]; !ok {
		return remind.ErrJobNotFound
	}
	cp := copyJob(j)
	cp.UpdatedAt = m.now()
	m.jobs[jid] = cp
	return nil
}

// DeleteJob removes a job and releases its key.
func (m *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	jid := jobID.String()
	j, ok := m.jobs[jid]
	if !ok {
		return remind.ErrJobNotFound
	}
	if j.Key != "" && m.jobKeys[j.Key] == jid {
		delete(m.jobKeys, j.Key)
	}
	delete(m.jobs, jid)
	return nil
}

// ListJobsByState returns jobs in state by creation time.
func (m *Store) ListJobsByState(_ context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*job.Job
	for _, j := range m.jobs {
		if j.State == state && (opts.Queue == "" || j.Queue == opts.Queue) {
			out = append(out, copyJob(j))
		}
	}
	slices.SortFunc(out, func(a, b *job.Job) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return paginate(out, opts.Offset, opts.Limit), nil
}

// HeartbeatJob stamps the job as held by workerID now.
func (m *Store) HeartbeatJob(_ context.Context, jobID id.JobID, workerID id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return remind.ErrJobNotFound
	}
	at := m.now()
	j.HeartbeatAt = &at
	j.WorkerID = workerID
	return nil
}

// ReapStaleJobs returns running jobs not heartbeated within threshold.
func (m *Store) ReapStaleJobs(_ context.Context, threshold time.Duration) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := m.now().Add(-threshold)
	var stale []*job.Job
	for _, j := range m.jobs {
		if j.State == job.StateRunning && j.HeartbeatAt != nil && j.HeartbeatAt.Before(cutoff) {
			stale = append(stale, copyJob(j))
		}
	}
	return stale, nil
}

// CountJobs counts jobs matching opts.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, j := range m.jobs {
		if (opts.Queue == "" || j.Queue == opts.Queue) && (opts.State == "" || j.State == opts.State) {
			n++
		}
	}
	return n, nil
}
