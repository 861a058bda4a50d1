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
	"github.com/Pasan-pramu/remind/job"
)

// popDueScript removes and returns up to ARGV[2] members of the queue
// whose score (RunAt in unix ms) is at most ARGV[1].
var popDueScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(ids) do
	redis.call('ZREM', KEYS[1], member)
end
return ids
`)

// releaseKeyScript deletes a job dedup key only while it still points at
// the given job.
var releaseKeyScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// EnqueueJob stores the job as a Hash and adds it to the queue's Sorted
// Set scored by RunAt. A Key held by another active job blocks it.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("remind/redis: enqueue check exists: %w", err)
	}
	if exists > 0 {
		return remind.ErrJobAlreadyExists
	}

	if j.Key != "" {
		if err := s.reserveJobKey(ctx, j); err != nil {
			return err
		}
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, jobToMap(j))
	pipe.SAdd(ctx, jobIDsKey, jID)
	pipe.ZAdd(ctx, queueKey(j.Queue), goredis.Z{Score: jobScore(j.RunAt), Member: jID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remind/redis: enqueue job: %w", err)
	}
	return nil
}

// reserveJobKey claims j.Key for j. A key left behind by a job that is no
// longer active is taken over.
func (s *Store) reserveJobKey(ctx context.Context, j *job.Job) error {
	dk := jobDedupKey(j.Key)
	ok, err := s.client.SetNX(ctx, dk, j.ID.String(), 0).Result()
	if err != nil {
		return fmt.Errorf("remind/redis: reserve job key: %w", err)
	}
	if ok {
		return nil
	}

	holder, err := s.client.Get(ctx, dk).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("remind/redis: read job key: %w", err)
	}
	if holder != "" {
		other, getErr := s.getJobByKey(ctx, jobKey(holder))
		if getErr == nil && other.State.Active() {
			return remind.ErrJobAlreadyExists
		}
	}
	if err := s.client.Set(ctx, dk, j.ID.String(), 0).Err(); err != nil {
		return fmt.Errorf("remind/redis: take over job key: %w", err)
	}
	return nil
}

func (s *Store) releaseJobKey(ctx context.Context, j *job.Job) error {
	if j.Key == "" {
		return nil
	}
	if err := releaseKeyScript.Run(ctx, s.client, []string{jobDedupKey(j.Key)}, j.ID.String()).Err(); err != nil {
		return fmt.Errorf("remind/redis: release job key: %w", err)
	}
	return nil
}

// DequeueJobs atomically pops up to limit due jobs from the given queues
// and marks them running.
func (s *Store) DequeueJobs(ctx context.Context, queues []string, limit int) ([]*job.Job, error) {
	now := s.now()
	cutoff := strconv.FormatInt(now.UnixMilli(), 10)
	var jobs []*job.Job

	for _, q := range queues {
		if len(jobs) >= limit {
			break
		}
		remaining := limit - len(jobs)

		ids, err := popDueScript.Run(ctx, s.client, []string{queueKey(q)}, cutoff, remaining).StringSlice()
		if err != nil {
			return nil, fmt.Errorf("remind/redis: dequeue pop: %w", err)
		}

		for _, jID := range ids {
			key := jobKey(jID)
			ts := formatTime(now)
			if err := s.client.HSet(ctx, key,
				"state", string(job.StateRunning),
				"started_at", ts,
				"heartbeat_at", ts,
				"updated_at", ts,
			).Err(); err != nil {
				return nil, fmt.Errorf("remind/redis: dequeue update: %w", err)
			}

			j, getErr := s.getJobByKey(ctx, key)
			if getErr != nil {
				return nil, getErr
			}
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, jobKey(jobID.String()))
}

// UpdateJob persists changes to an existing job. A pending or retrying
// job is put back on its queue at its RunAt; a finished job releases its
// Key.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("remind/redis: update job exists: %w", err)
	}
	if exists == 0 {
		return remind.ErrJobNotFound
	}

	fields := jobToMap(j)
	fields["updated_at"] = formatTime(time.Now())

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.HDel(ctx, key, emptyJobFields(j)...)
	switch j.State {
	case job.StatePending, job.StateRetrying:
		pipe.ZAdd(ctx, queueKey(j.Queue), goredis.Z{Score: jobScore(j.RunAt), Member: jID})
	default:
		pipe.ZRem(ctx, queueKey(j.Queue), jID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remind/redis: update job: %w", err)
	}

	if !j.State.Active() {
		return s.releaseJobKey(ctx, j)
	}
	return nil
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	key := jobKey(jID)

	j, err := s.getJobByKey(ctx, key)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, jobIDsKey, jID)
	pipe.ZRem(ctx, queueKey(j.Queue), jID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remind/redis: delete job: %w", err)
	}
	return s.releaseJobKey(ctx, j)
}

// ListJobsByState returns jobs matching the given state, oldest first.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	all, err := s.allJobs(ctx)
	if err != nil {
		return nil, err
	}

	jobs := make([]*job.Job, 0, len(all))
	for _, j := range all {
		if j.State != state {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
	return paginate(jobs, opts.Offset, opts.Limit), nil
}

// HeartbeatJob updates the heartbeat timestamp for a running job.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error {
	key := jobKey(jobID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("remind/redis: heartbeat exists: %w", err)
	}
	if exists == 0 {
		return remind.ErrJobNotFound
	}

	now := formatTime(time.Now())
	if err := s.client.HSet(ctx, key,
		"heartbeat_at", now,
		"worker_id", workerID.String(),
		"updated_at", now,
	).Err(); err != nil {
		return fmt.Errorf("remind/redis: heartbeat job: %w", err)
	}
	return nil
}

// ReapStaleJobs returns running jobs whose last heartbeat is older than
// the threshold.
func (s *Store) ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	all, err := s.allJobs(ctx)
	if err != nil {
		return nil, err
	}
	var stale []*job.Job
	for _, j := range all {
		if j.State != job.StateRunning {
			continue
		}
		if j.HeartbeatAt != nil && j.HeartbeatAt.Before(cutoff) {
			stale = append(stale, j)
		}
	}
	return stale, nil
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	all, err := s.allJobs(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	for _, j := range all {
		if opts.State != "" && j.State != opts.State {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		count++
	}
	return count, nil
}

// ── helpers ──

// jobScore orders a queue by RunAt.
func jobScore(runAt time.Time) float64 {
	return float64(runAt.UnixMilli())
}

func (s *Store) allJobs(ctx context.Context) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("remind/redis: list job ids: %w", err)
	}
	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue // skip missing
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func jobToMap(j *job.Job) map[string]any {
	m := map[string]any{
		"id":          j.ID.String(),
		"name":        j.Name,
		"key":         j.Key,
		"queue":       j.Queue,
		"payload":     string(j.Payload),
		"state":       string(j.State),
		"priority":    strconv.Itoa(j.Priority),
		"max_retries": strconv.Itoa(j.MaxRetries),
		"retry_count": strconv.Itoa(j.RetryCount),
		"last_error":  j.LastError,
		"run_at":      formatTime(j.RunAt),
		"timeout":     strconv.FormatInt(int64(j.Timeout), 10),
		"created_at":  formatTime(j.CreatedAt),
		"updated_at":  formatTime(j.UpdatedAt),
	}
	if !j.WorkerID.IsNil() {
		m["worker_id"] = j.WorkerID.String()
	}
	if j.StartedAt != nil {
		m["started_at"] = formatTime(*j.StartedAt)
	}
	if j.CompletedAt != nil {
		m["completed_at"] = formatTime(*j.CompletedAt)
	}
	if j.HeartbeatAt != nil {
		m["heartbeat_at"] = formatTime(*j.HeartbeatAt)
	}
	return m
}

// emptyJobFields lists optional hash fields that must be cleared because
// the job no longer carries them.
func emptyJobFields(j *job.Job) []string {
	var fields []string
	if j.WorkerID.IsNil() {
		fields = append(fields, "worker_id")
	}
	if j.StartedAt == nil {
		fields = append(fields, "started_at")
	}
	if j.CompletedAt == nil {
		fields = append(fields, "completed_at")
	}
	if j.HeartbeatAt == nil {
		fields = append(fields, "heartbeat_at")
	}
	if len(fields) == 0 {
		// HDEL needs at least one field.
		fields = append(fields, "_")
	}
	return fields
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("remind/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, remind.ErrJobNotFound
	}
	return mapToJob(vals)
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("remind/redis: parse job id: %w", err)
	}

	priority, _ := strconv.Atoi(m["priority"])           //nolint:errcheck // best-effort parse from trusted Redis data
	maxRetries, _ := strconv.Atoi(m["max_retries"])      //nolint:errcheck // best-effort parse from trusted Redis data
	retryCount, _ := strconv.Atoi(m["retry_count"])      //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		Entity: remind.Entity{
			CreatedAt: parseTime(m["created_at"]),
			UpdatedAt: parseTime(m["updated_at"]),
		},
		ID:          jID,
		Name:        m["name"],
		Key:         m["key"],
		Queue:       m["queue"],
		Payload:     []byte(m["payload"]),
		State:       job.State(m["state"]),
		Priority:    priority,
		MaxRetries:  maxRetries,
		RetryCount:  retryCount,
		LastError:   m["last_error"],
		RunAt:       parseTime(m["run_at"]),
		Timeout:     time.Duration(timeout),
		StartedAt:   parseTimePtr(m["started_at"]),
		CompletedAt: parseTimePtr(m["completed_at"]),
		HeartbeatAt: parseTimePtr(m["heartbeat_at"]),
	}
	if wid := m["worker_id"]; wid != "" {
		j.WorkerID, _ = id.ParseWorkerID(wid) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	return j, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
