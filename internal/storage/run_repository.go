package storage

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"

	"github.com/coindata-pipeline/internal/errors"
	"github.com/coindata-pipeline/internal/types"
)

// RunRepository stores pipeline run history in Postgres
type RunRepository struct {
	db *PostgresDB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *PostgresDB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run record
func (r *RunRepository) Create(ctx context.Context, run *types.Run) error {
	query := `
		INSERT INTO pipeline_runs (id, started_at, status, row_count)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Pool().Exec(ctx, query, run.ID, run.StartedAt, run.Status, run.RowCount)
	if err != nil {
		return errors.NewDatabaseError("create run", err)
	}
	return nil
}

// Update persists the run's final state
func (r *RunRepository) Update(ctx context.Context, run *types.Run) error {
	query := `
		UPDATE pipeline_runs
		SET finished_at = $2,
		    status = $3,
		    failed_step = $4,
		    row_count = $5,
		    csv_object_key = $6,
		    log_object_key = $7,
		    error_message = $8
		WHERE id = $1
	`
	tag, err := r.db.Pool().Exec(ctx, query,
		run.ID, run.FinishedAt, run.Status, run.FailedStep,
		run.RowCount, run.CSVObjectKey, run.LogObjectKey, run.ErrorMessage,
	)
	if err != nil {
		return errors.NewDatabaseError("update run", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewDatabaseError("update run", pgx.ErrNoRows)
	}
	return nil
}

// GetByID fetches one run, or nil when absent
func (r *RunRepository) GetByID(ctx context.Context, id string) (*types.Run, error) {
	query := selectRunColumns + " WHERE id = $1"

	run, err := r.scanRun(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewDatabaseError("get run", err)
	}
	return run, nil
}

// Latest fetches the most recently started run, or nil when history is empty
func (r *RunRepository) Latest(ctx context.Context) (*types.Run, error) {
	query := selectRunColumns + " ORDER BY started_at DESC LIMIT 1"

	run, err := r.scanRun(r.db.Pool().QueryRow(ctx, query))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewDatabaseError("latest run", err)
	}
	return run, nil
}

// List fetches runs newest-first
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*types.Run, error) {
	query := selectRunColumns + " ORDER BY started_at DESC LIMIT $1 OFFSET $2"

	rows, err := r.db.Pool().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, errors.NewDatabaseError("list runs", err)
	}
	defer rows.Close()

	var runs []*types.Run
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, errors.NewDatabaseError("list runs", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("list runs", err)
	}

	return runs, nil
}

const selectRunColumns = `
	SELECT id, started_at, finished_at, status, failed_step,
	       row_count, csv_object_key, log_object_key, error_message
	FROM pipeline_runs
`

// rowScanner is satisfied by both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRun maps one row into a Run
func (r *RunRepository) scanRun(row rowScanner) (*types.Run, error) {
	var run types.Run
	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Status,
		&run.FailedStep,
		&run.RowCount,
		&run.CSVObjectKey,
		&run.LogObjectKey,
		&run.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
