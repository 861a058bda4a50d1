package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/id"
	"github.com/Pasan-pramu/remind/job"
)

const jobColumns = `
	id, name, job_key, queue, payload, state, priority, max_retries, retry_count,
	last_error, worker_id, run_at, started_at, completed_at, heartbeat_at,
	timeout, created_at, updated_at`

// EnqueueJob persists a new job. The partial unique index on job_key
// rejects a second active job with the same key.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO remind_jobs (`+jobColumns+`
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15,
			$16, $17, $18
		)`,
		j.ID.String(), j.Name, j.Key, j.Queue, j.Payload, string(j.State),
		j.Priority, j.MaxRetries, j.RetryCount,
		j.LastError, j.WorkerID.String(), j.RunAt, j.StartedAt, j.CompletedAt, j.HeartbeatAt,
		j.Timeout.Nanoseconds(), j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return remind.ErrJobAlreadyExists
		}
		return fmt.Errorf("remind/postgres: enqueue job: %w", err)
	}
	return nil
}

// DequeueJobs atomically claims up to limit due jobs from the given
// queues and marks them running. SKIP LOCKED lets concurrent workers
// claim disjoint sets.
func (s *Store) DequeueJobs(ctx context.Context, queues []string, limit int) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx, `
		WITH dequeued AS (
			UPDATE remind_jobs
			SET state = 'running', started_at = $3, heartbeat_at = $3, updated_at = $3
			WHERE id IN (
				SELECT id FROM remind_jobs
				WHERE state IN ('pending', 'retrying')
				  AND queue = ANY($1)
				  AND run_at <= $3
				ORDER BY run_at ASC, priority DESC
				FOR UPDATE SKIP LOCKED
				LIMIT $2
			)
			RETURNING `+jobColumns+`
		)
		SELECT * FROM dequeued ORDER BY run_at ASC, priority DESC`,
		queues, limit, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("remind/postgres: dequeue jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM remind_jobs WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, remind.ErrJobNotFound
		}
		return nil, fmt.Errorf("remind/postgres: get job: %w", err)
	}
	return j, nil
}

// UpdateJob persists changes to an existing job. Moving a job out of an
// active state frees its key.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE remind_jobs SET
			name = $2, job_key = $3, queue = $4, payload = $5, state = $6,
			priority = $7, max_retries = $8, retry_count = $9,
			last_error = $10, worker_id = $11, run_at = $12, started_at = $13,
			completed_at = $14, heartbeat_at = $15, timeout = $16,
			updated_at = NOW()
		WHERE id = $1`,
		j.ID.String(), j.Name, j.Key, j.Queue, j.Payload, string(j.State),
		j.Priority, j.MaxRetries, j.RetryCount,
		j.LastError, j.WorkerID.String(), j.RunAt, j.StartedAt,
		j.CompletedAt, j.HeartbeatAt, j.Timeout.Nanoseconds(),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return remind.ErrJobAlreadyExists
		}
		return fmt.Errorf("remind/postgres: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return remind.ErrJobNotFound
	}
	return nil
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM remind_jobs WHERE id = $1`, jobID.String())
	if err != nil {
		return fmt.Errorf("remind/postgres: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return remind.ErrJobNotFound
	}
	return nil
}

// ListJobsByState returns jobs matching the given state, oldest first.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	q := newQuery(`SELECT ` + jobColumns + ` FROM remind_jobs`).
		where("state = ?", string(state))
	if opts.Queue != "" {
		q.where("queue = ?", opts.Queue)
	}
	sqlText, args := q.orderBy("created_at ASC").page(opts.Limit, opts.Offset).build()

	rows, err := s.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("remind/postgres: list jobs by state: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// HeartbeatJob updates the heartbeat timestamp for a running job.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE remind_jobs SET heartbeat_at = NOW(), worker_id = $2, updated_at = NOW() WHERE id = $1`,
		jobID.String(), workerID.String(),
	)
	if err != nil {
		return fmt.Errorf("remind/postgres: heartbeat job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return remind.ErrJobNotFound
	}
	return nil
}

// ReapStaleJobs returns running jobs whose last heartbeat is older than
// the given threshold.
func (s *Store) ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM remind_jobs
		WHERE state = 'running'
		  AND heartbeat_at IS NOT NULL
		  AND heartbeat_at < $1`,
		time.Now().UTC().Add(-threshold),
	)
	if err != nil {
		return nil, fmt.Errorf("remind/postgres: reap stale jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	q := newQuery(`SELECT COUNT(*) FROM remind_jobs`)
	if opts.Queue != "" {
		q.where("queue = ?", opts.Queue)
	}
	if opts.State != "" {
		q.where("state = ?", string(opts.State))
	}
	sqlText, args := q.build()

	var count int64
	if err := s.pool.QueryRow(ctx, sqlText, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("remind/postgres: count jobs: %w", err)
	}
	return count, nil
}

// scanJob scans a single job row.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j         job.Job
		idStr     string
		stateStr  string
		workerStr string
		timeoutNs int64
	)
	err := row.Scan(
		&idStr, &j.Name, &j.Key, &j.Queue, &j.Payload, &stateStr,
		&j.Priority, &j.MaxRetries, &j.RetryCount,
		&j.LastError, &workerStr, &j.RunAt, &j.StartedAt, &j.CompletedAt, &j.HeartbeatAt,
		&timeoutNs, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.State = job.State(stateStr)
	j.Timeout = time.Duration(timeoutNs)

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("remind/postgres: parse job id %q: %w", idStr, parseErr)
	}
	j.ID = parsedID

	if workerStr != "" {
		if parsedWorker, workerErr := id.ParseWorkerID(workerStr); workerErr == nil {
			j.WorkerID = parsedWorker
		}
	}

	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("remind/postgres: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("remind/postgres: iterate job rows: %w", err)
	}
	return jobs, nil
}
