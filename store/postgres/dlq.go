package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/dlq"
	"github.com/Pasan-pramu/remind/id"
)

const dlqColumns = `id, job_id, job_name, job_key, queue, payload, error,
	retry_count, max_retries, failed_at, replayed_at, created_at`

// PushDLQ inserts an entry.
func (s *Store) PushDLQ(ctx context.Context, e *dlq.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO remind_dlq (`+dlqColumns+`)
		VALUES (@id, @job_id, @job_name, @job_key, @queue, @payload, @error,
			@retry_count, @max_retries, @failed_at, @replayed_at, @created_at)`,
		pgx.NamedArgs{
			"id":          e.ID,
			"job_id":      e.JobID,
			"job_name":    e.JobName,
			"job_key":     e.JobKey,
			"queue":       e.Queue,
			"payload":     e.Payload,
			"error":       e.Error,
			"retry_count": e.RetryCount,
			"max_retries": e.MaxRetries,
			"failed_at":   e.FailedAt,
			"replayed_at": e.ReplayedAt,
			"created_at":  e.CreatedAt,
		})
	if err != nil {
		return fmt.Errorf("remind/postgres: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns entries newest failure first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	q := newQuery(`SELECT ` + dlqColumns + ` FROM remind_dlq`)
	if opts.Queue != "" {
		q.where("queue = ?", opts.Queue)
	}
	sqlText, args := q.orderBy("failed_at DESC").page(opts.Limit, opts.Offset).build()

	rows, err := s.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("remind/postgres: list dlq: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*dlq.Entry, error) {
		return scanDLQ(row)
	})
	if err != nil {
		return nil, fmt.Errorf("remind/postgres: list dlq: %w", err)
	}
	return entries, nil
}

// GetDLQ returns one entry.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	e, err := scanDLQ(s.pool.QueryRow(ctx,
		`SELECT `+dlqColumns+` FROM remind_dlq WHERE id = $1`, entryID))
	switch {
	case isNoRows(err):
		return nil, remind.ErrDLQNotFound
	case err != nil:
		return nil, fmt.Errorf("remind/postgres: get dlq: %w", err)
	}
	return e, nil
}

// ReplayDLQ stamps the entry as replayed on the store clock.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.DLQID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE remind_dlq SET replayed_at = $2 WHERE id = $1`, entryID, s.now())
	if err != nil {
		return fmt.Errorf("remind/postgres: replay dlq: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return remind.ErrDLQNotFound
	}
	return nil
}

// PurgeDLQ deletes entries that failed before the cutoff.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM remind_dlq WHERE failed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("remind/postgres: purge dlq: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountDLQ returns the number of entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM remind_dlq`).Scan(&n); err != nil {
		return 0, fmt.Errorf("remind/postgres: count dlq: %w", err)
	}
	return n, nil
}

// scanDLQ reads one row of dlqColumns. The ID columns scan through
// id.ID's sql.Scanner.
func scanDLQ(row pgx.Row) (*dlq.Entry, error) {
	var e dlq.Entry
	err := row.Scan(
		&e.ID, &e.JobID, &e.JobName, &e.JobKey, &e.Queue, &e.Payload, &e.Error,
		&e.RetryCount, &e.MaxRetries, &e.FailedAt, &e.ReplayedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
