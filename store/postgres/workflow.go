package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/id"
	"github.com/Pasan-pramu/remind/workflow"
)

const runColumns = `
	id, name, state, input, error, sleep_step, wake_at, activations,
	started_at, completed_at, created_at, updated_at`

// CreateRun persists a new workflow run.
func (s *Store) CreateRun(ctx context.Context, run *workflow.Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO remind_runs (`+runColumns+`
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID.String(), run.Name, string(run.State), run.Input, run.Error,
		run.SleepStep, run.WakeAt, run.Activations,
		run.StartedAt, run.CompletedAt, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return remind.ErrRunAlreadyExists
		}
		return fmt.Errorf("remind/postgres: create run: %w", err)
	}
	return nil
}

// GetRun retrieves a workflow run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*workflow.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM remind_runs WHERE id = $1`,
		runID.String(),
	)
	r, err := scanRun(row)
	if err != nil {
		if isNoRows(err) {
			return nil, remind.ErrRunNotFound
		}
		return nil, fmt.Errorf("remind/postgres: get run: %w", err)
	}
	return r, nil
}

// UpdateRun persists changes to an existing workflow run.
func (s *Store) UpdateRun(ctx context.Context, run *workflow.Run) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE remind_runs SET
			name = $2, state = $3, input = $4, error = $5,
			sleep_step = $6, wake_at = $7, activations = $8,
			started_at = $9, completed_at = $10, updated_at = NOW()
		WHERE id = $1`,
		run.ID.String(), run.Name, string(run.State), run.Input, run.Error,
		run.SleepStep, run.WakeAt, run.Activations,
		run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("remind/postgres: update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return remind.ErrRunNotFound
	}
	return nil
}

// ClaimRun moves a run from state "from" to running in one conditional
// UPDATE so only one activation wins.
func (s *Store) ClaimRun(ctx context.Context, runID id.RunID, from workflow.RunState) (*workflow.Run, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE remind_runs SET
			state = $3, sleep_step = '', wake_at = NULL, updated_at = NOW()
		WHERE id = $1 AND state = $2
		RETURNING `+runColumns,
		runID.String(), string(from), string(workflow.RunStateRunning),
	)
	r, err := scanRun(row)
	if err == nil {
		return r, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("remind/postgres: claim run: %w", err)
	}

	// Distinguish a missing run from one in another state.
	if _, getErr := s.GetRun(ctx, runID); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: run %s is not %q", remind.ErrInvalidState, runID, from)
}

// ListRuns returns workflow runs matching the given options, oldest first.
func (s *Store) ListRuns(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Run, error) {
	q := newQuery(`SELECT ` + runColumns + ` FROM remind_runs`)
	if opts.State != "" {
		q.where("state = ?", string(opts.State))
	}
	if opts.Name != "" {
		q.where("name = ?", opts.Name)
	}
	if !opts.WakeBefore.IsZero() {
		q.where("wake_at < ?", opts.WakeBefore)
	}
	sqlText, args := q.orderBy("created_at ASC").page(opts.Limit, opts.Offset).build()

	rows, err := s.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("remind/postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []*workflow.Run
	for rows.Next() {
		r, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("remind/postgres: scan run row: %w", scanErr)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("remind/postgres: iterate run rows: %w", err)
	}
	return runs, nil
}

// SaveCheckpoint persists checkpoint data for a workflow step.
// If a checkpoint already exists for the same run/step, its data is
// replaced and it keeps its position.
func (s *Store) SaveCheckpoint(ctx context.Context, runID id.RunID, stepName string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO remind_checkpoints (id, run_id, step_name, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, step_name) DO UPDATE SET data = EXCLUDED.data`,
		id.NewCheckpointID().String(), runID.String(), stepName, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("remind/postgres: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves checkpoint data for a specific workflow step.
// Returns nil data if no checkpoint exists.
func (s *Store) GetCheckpoint(ctx context.Context, runID id.RunID, stepName string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM remind_checkpoints WHERE run_id = $1 AND step_name = $2`,
		runID.String(), stepName,
	).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, nil // no checkpoint is not an error
		}
		return nil, fmt.Errorf("remind/postgres: get checkpoint: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// ListCheckpoints returns all checkpoints for a workflow run in the order
// they were first saved.
func (s *Store) ListCheckpoints(ctx context.Context, runID id.RunID) ([]*workflow.Checkpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, step_name, data, created_at
		FROM remind_checkpoints
		WHERE run_id = $1
		ORDER BY seq ASC`,
		runID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("remind/postgres: list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*workflow.Checkpoint
	for rows.Next() {
		var (
			cp    = workflow.Checkpoint{RunID: runID}
			idStr string
		)
		if err := rows.Scan(&idStr, &cp.StepName, &cp.Data, &cp.CreatedAt); err != nil {
			return nil, fmt.Errorf("remind/postgres: scan checkpoint row: %w", err)
		}
		cpID, parseErr := id.ParseCheckpointID(idStr)
		if parseErr != nil {
			return nil, fmt.Errorf("remind/postgres: parse checkpoint id %q: %w", idStr, parseErr)
		}
		cp.ID = cpID
		checkpoints = append(checkpoints, &cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("remind/postgres: iterate checkpoint rows: %w", err)
	}
	return checkpoints, nil
}

// scanRun scans a single run row.
func scanRun(row pgx.Row) (*workflow.Run, error) {
	var (
		r        workflow.Run
		idStr    string
		stateStr string
	)
	err := row.Scan(
		&idStr, &r.Name, &stateStr, &r.Input, &r.Error,
		&r.SleepStep, &r.WakeAt, &r.Activations,
		&r.StartedAt, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.ParseRunID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("remind/postgres: parse run id %q: %w", idStr, parseErr)
	}
	r.ID = parsedID
	r.State = workflow.RunState(stateStr)
	return &r, nil
}
