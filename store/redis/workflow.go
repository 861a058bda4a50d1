package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/id"
	"github.com/Pasan-pramu/remind/workflow"
)

// claimRunScript moves a run from ARGV[1] to running and clears its
// sleep fields. It returns -1 when the run is missing and 0 when the run
// is in another state.
var claimRunScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
if redis.call('HGET', KEYS[1], 'state') ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'state', ARGV[2], 'updated_at', ARGV[3])
redis.call('HDEL', KEYS[1], 'sleep_step', 'wake_at')
return 1
`)

// CreateRun persists a new workflow run.
func (s *Store) CreateRun(ctx context.Context, run *workflow.Run) error {
	rID := run.ID.String()
	key := runKey(rID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("remind/redis: create run exists: %w", err)
	}
	if exists > 0 {
		return remind.ErrRunAlreadyExists
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, runToMap(run))
	pipe.SAdd(ctx, runIDsKey, rID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remind/redis: create run: %w", err)
	}
	return nil
}

// GetRun retrieves a workflow run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*workflow.Run, error) {
	vals, err := s.client.HGetAll(ctx, runKey(runID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("remind/redis: get run: %w", err)
	}
	if len(vals) == 0 {
		return nil, remind.ErrRunNotFound
	}
	return mapToRun(vals)
}

// UpdateRun persists changes to an existing workflow run.
func (s *Store) UpdateRun(ctx context.Context, run *workflow.Run) error {
	key := runKey(run.ID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("remind/redis: update run exists: %w", err)
	}
	if exists == 0 {
		return remind.ErrRunNotFound
	}

	m := runToMap(run)
	m["updated_at"] = formatTime(time.Now())

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, m)
	if cleared := emptyRunFields(run); len(cleared) > 0 {
		pipe.HDel(ctx, key, cleared...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remind/redis: update run: %w", err)
	}
	return nil
}

// ClaimRun atomically moves a run from "from" to running.
func (s *Store) ClaimRun(ctx context.Context, runID id.RunID, from workflow.RunState) (*workflow.Run, error) {
	res, err := claimRunScript.Run(ctx, s.client,
		[]string{runKey(runID.String())},
		string(from), string(workflow.RunStateRunning), formatTime(time.Now()),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("remind/redis: claim run: %w", err)
	}
	switch res {
	case -1:
		return nil, remind.ErrRunNotFound
	case 0:
		return nil, fmt.Errorf("%w: run %s is not %q", remind.ErrInvalidState, runID, from)
	}
	return s.GetRun(ctx, runID)
}

// ListRuns returns workflow runs matching the given options, oldest first.
func (s *Store) ListRuns(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Run, error) {
	ids, err := s.client.SMembers(ctx, runIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("remind/redis: list runs smembers: %w", err)
	}

	var runs []*workflow.Run
	for _, rID := range ids {
		vals, getErr := s.client.HGetAll(ctx, runKey(rID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		r, convErr := mapToRun(vals)
		if convErr != nil {
			continue
		}
		if opts.State != "" && r.State != opts.State {
			continue
		}
		if opts.Name != "" && r.Name != opts.Name {
			continue
		}
		if !opts.WakeBefore.IsZero() && (r.WakeAt == nil || !r.WakeAt.Before(opts.WakeBefore)) {
			continue
		}
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, k int) bool {
		return runs[i].CreatedAt.Before(runs[k].CreatedAt)
	})
	return paginate(runs, opts.Offset, opts.Limit), nil
}

// SaveCheckpoint persists checkpoint data for a workflow step. The step
// keeps its original position when saved again.
func (s *Store) SaveCheckpoint(ctx context.Context, runID id.RunID, stepName string, data []byte) error {
	rID := runID.String()
	now := time.Now().UTC()

	seq, err := s.client.Incr(ctx, checkpointSeqKey(rID)).Result()
	if err != nil {
		return fmt.Errorf("remind/redis: checkpoint sequence: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, checkpointKey(rID, stepName),
		"id", id.NewCheckpointID().String(),
		"run_id", rID,
		"step_name", stepName,
		"data", string(data),
		"created_at", formatTime(now),
	)
	pipe.ZAddNX(ctx, checkpointIndexKey(rID), goredis.Z{Score: float64(seq), Member: stepName})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remind/redis: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves checkpoint data for a specific workflow step.
func (s *Store) GetCheckpoint(ctx context.Context, runID id.RunID, stepName string) ([]byte, error) {
	data, err := s.client.HGet(ctx, checkpointKey(runID.String(), stepName), "data").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil // no checkpoint is not an error
		}
		return nil, fmt.Errorf("remind/redis: get checkpoint: %w", err)
	}
	if data == "" {
		// Sleep checkpoints carry no data but must read as present.
		return []byte{}, nil
	}
	return []byte(data), nil
}

// ListCheckpoints returns all checkpoints for a workflow run in the
// order they were first saved.
func (s *Store) ListCheckpoints(ctx context.Context, runID id.RunID) ([]*workflow.Checkpoint, error) {
	rID := runID.String()
	steps, err := s.client.ZRange(ctx, checkpointIndexKey(rID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("remind/redis: list checkpoints: %w", err)
	}

	checkpoints := make([]*workflow.Checkpoint, 0, len(steps))
	for _, step := range steps {
		vals, getErr := s.client.HGetAll(ctx, checkpointKey(rID, step)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		cpID, _ := id.ParseCheckpointID(vals["id"]) //nolint:errcheck // best-effort parse from trusted Redis data
		checkpoints = append(checkpoints, &workflow.Checkpoint{
			ID:        cpID,
			RunID:     runID,
			StepName:  vals["step_name"],
			Data:      []byte(vals["data"]),
			CreatedAt: parseTime(vals["created_at"]),
		})
	}
	return checkpoints, nil
}

// ── helpers ──

func runToMap(r *workflow.Run) map[string]any {
	m := map[string]any{
		"id":          r.ID.String(),
		"name":        r.Name,
		"state":       string(r.State),
		"input":       string(r.Input),
		"error":       r.Error,
		"activations": strconv.Itoa(r.Activations),
		"started_at":  formatTime(r.StartedAt),
		"created_at":  formatTime(r.CreatedAt),
		"updated_at":  formatTime(r.UpdatedAt),
	}
	if r.SleepStep != "" {
		m["sleep_step"] = r.SleepStep
	}
	if r.WakeAt != nil {
		m["wake_at"] = formatTime(*r.WakeAt)
	}
	if r.CompletedAt != nil {
		m["completed_at"] = formatTime(*r.CompletedAt)
	}
	return m
}

func emptyRunFields(r *workflow.Run) []string {
	var fields []string
	if r.SleepStep == "" {
		fields = append(fields, "sleep_step")
	}
	if r.WakeAt == nil {
		fields = append(fields, "wake_at")
	}
	if r.CompletedAt == nil {
		fields = append(fields, "completed_at")
	}
	return fields
}

func mapToRun(m map[string]string) (*workflow.Run, error) {
	rID, err := id.ParseRunID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("remind/redis: parse run id: %w", err)
	}
	activations, _ := strconv.Atoi(m["activations"]) //nolint:errcheck // best-effort parse from trusted Redis data

	return &workflow.Run{
		Entity: remind.Entity{
			CreatedAt: parseTime(m["created_at"]),
			UpdatedAt: parseTime(m["updated_at"]),
		},
		ID:          rID,
		Name:        m["name"],
		State:       workflow.RunState(m["state"]),
		Input:       []byte(m["input"]),
		Error:       m["error"],
		SleepStep:   m["sleep_step"],
		WakeAt:      parseTimePtr(m["wake_at"]),
		Activations: activations,
		StartedAt:   parseTime(m["started_at"]),
		CompletedAt: parseTimePtr(m["completed_at"]),
	}, nil
}
