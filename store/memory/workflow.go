package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/id"
	"github.com/Pasan-pramu/remind/workflow"
)

func copyRun(r *workflow.Run) *workflow.Run {
	cp := *r
	cp.Input = cloneBytes(r.Input)
	if r.WakeAt != nil {
		t := *r.WakeAt
		cp.WakeAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// CreateRun persists a new workflow run.
func (m *Store) CreateRun(_ context.Context, run *workflow.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := run.ID.String()
	if _, exists := m.runs[key]; exists {
		return remind.ErrRunAlreadyExists
	}
	m.runs[key] = copyRun(run)
	return nil
}

// GetRun retrieves a workflow run by ID.
func (m *Store) GetRun(_ context.Context, runID id.RunID) (*workflow.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[runID.String()]
	if !ok {
		return nil, remind.ErrRunNotFound
	}
	return copyRun(r), nil
}

// UpdateRun persists changes to an existing workflow run.
func (m *Store) UpdateRun(_ context.Context, run *workflow.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := run.ID.String()
	if _, ok := m.runs[key]; !ok {
		return remind.ErrRunNotFound
	}
	run.UpdatedAt = time.Now().UTC()
	m.runs[key] = copyRun(run)
	return nil
}

// ClaimRun moves a run from state "from" to running.
func (m *Store) ClaimRun(_ context.Context, runID id.RunID, from workflow.RunState) (*workflow.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[runID.String()]
	if !ok {
		return nil, remind.ErrRunNotFound
	}
	if r.State != from {
		return nil, remind.ErrInvalidState
	}
	r.State = workflow.RunStateRunning
	r.SleepStep = ""
	r.WakeAt = nil
	r.UpdatedAt = time.Now().UTC()
	return copyRun(r), nil
}

// ListRuns returns runs matching opts, oldest first.
func (m *Store) ListRuns(_ context.Context, opts workflow.ListOpts) ([]*workflow.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*workflow.Run, 0, len(m.runs))
	for _, r := range m.runs {
		if opts.State != "" && r.State != opts.State {
			continue
		}
		if opts.Name != "" && r.Name != opts.Name {
			continue
		}
		if !opts.WakeBefore.IsZero() && (r.WakeAt == nil || !r.WakeAt.Before(opts.WakeBefore)) {
			continue
		}
		result = append(result, copyRun(r))
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

func checkpointKey(runID id.RunID, stepName string) string {
	return runID.String() + ":" + stepName
}

// SaveCheckpoint persists checkpoint data, replacing an existing one.
func (m *Store) SaveCheckpoint(_ context.Context, runID id.RunID, stepName string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := checkpointKey(runID, stepName)
	if data == nil {
		data = []byte{}
	}
	m.seq++
	m.ckptSeq[key] = m.seq
	m.checkpoints[key] = &workflow.Checkpoint{
		ID:        id.NewCheckpointID(),
		RunID:     runID,
		StepName:  stepName,
		Data:      cloneBytes(data),
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetCheckpoint returns checkpoint data, or nil if none exists.
func (m *Store) GetCheckpoint(_ context.Context, runID id.RunID, stepName string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.checkpoints[checkpointKey(runID, stepName)]
	if !ok {
		return nil, nil
	}
	return cloneBytes(cp.Data), nil
}

// ListCheckpoints returns the run's checkpoints in creation order.
func (m *Store) ListCheckpoints(_ context.Context, runID id.RunID) ([]*workflow.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type seqCkpt struct {
		seq int64
		cp  *workflow.Checkpoint
	}
	var found []seqCkpt
	for key, cp := range m.checkpoints {
		if cp.RunID.String() != runID.String() {
			continue
		}
		c := *cp
		c.Data = cloneBytes(cp.Data)
		found = append(found, seqCkpt{seq: m.ckptSeq[key], cp: &c})
	}
	sort.Slice(found, func(i, k int) bool { return found[i].seq < found[k].seq })

	result := make([]*workflow.Checkpoint, len(found))
	for i, f := range found {
		result[i] = f.cp
	}
	return result, nil
}
