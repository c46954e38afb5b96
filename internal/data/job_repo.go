// Package data provides postgres-backed repositories for import jobs and
// catalog products.
package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pricewise/catalog-ingest/internal/dberr"
	"github.com/pricewise/catalog-ingest/internal/domain/model"
)

const jobColumns = `
  id,
  status,
  total_rows,
  processed_rows,
  failure_reason,
  source_key,
  rate_snapshot,
  created_at,
  updated_at
`

// JobRepoConfig holds configuration options for the job repository.
type JobRepoConfig struct {
	Logger *slog.Logger
}

// JobRepo provides database operations for import job management.
type JobRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewJobRepo creates a new JobRepo with the given database connection.
func NewJobRepo(db *sql.DB, cfg JobRepoConfig) *JobRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRepo{DB: db, logger: logger}
}

// Create inserts a new pending import job.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.ImportJob, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO import_jobs (id, status, source_key)
		VALUES ($1, 'pending', $2)
		RETURNING `+jobColumns,
		uuid.NewString(), req.SourceKey)

	job, err := scanJob(row)
	if err != nil {
		return nil, dberr.Describe("insert import job", err)
	}
	return job, nil
}

// GetByID returns the job with the given id or ErrJobNotFound.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.ImportJob, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM import_jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, dberr.Describe("get import job", err)
	}
	return job, nil
}

// ListByStatus returns all jobs currently in the given status, oldest first.
func (r *JobRepo) ListByStatus(ctx context.Context, status model.JobStatus) ([]*model.ImportJob, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM import_jobs WHERE status = $1 ORDER BY created_at ASC`,
		status)
	if err != nil {
		return nil, dberr.Describe("list import jobs", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var jobs []*model.ImportJob
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan import job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if err = rows.Err(); err != nil {
		return nil, dberr.Describe("list import jobs", err)
	}
	return jobs, nil
}

// MarkProcessing transitions the job to processing status.
func (r *JobRepo) MarkProcessing(ctx context.Context, id string) error {
	return r.update(ctx, "mark job processing", `
		UPDATE import_jobs
		SET status = 'processing', updated_at = now()
		WHERE id = $1`, id)
}

// SetTotalRows records the counted input size for the current run.
func (r *JobRepo) SetTotalRows(ctx context.Context, id string, totalRows int) error {
	return r.update(ctx, "set total rows", `
		UPDATE import_jobs
		SET total_rows = $2, updated_at = now()
		WHERE id = $1`, id, totalRows)
}

// SetProcessedRows records progress after a batch commit.
func (r *JobRepo) SetProcessedRows(ctx context.Context, id string, processedRows int) error {
	return r.update(ctx, "set processed rows", `
		UPDATE import_jobs
		SET processed_rows = $2, updated_at = now()
		WHERE id = $1`, id, processedRows)
}

// ResetProgress zeroes processed_rows. Used by cleanup after a cancelled or
// failed run.
func (r *JobRepo) ResetProgress(ctx context.Context, id string) error {
	return r.update(ctx, "reset job progress", `
		UPDATE import_jobs
		SET processed_rows = 0, updated_at = now()
		WHERE id = $1`, id)
}

// SaveRateSnapshot persists the captured rate table for auditability.
// Write-once: a job that already carries a snapshot is left untouched.
func (r *JobRepo) SaveRateSnapshot(ctx context.Context, id string, snapshot json.RawMessage) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE import_jobs
		SET rate_snapshot = $2, updated_at = now()
		WHERE id = $1 AND rate_snapshot IS NULL`,
		id, []byte(snapshot))
	if err != nil {
		return dberr.Describe("save rate snapshot", err)
	}
	return nil
}

// MarkFailed sets status failed with a bounded failure reason.
func (r *JobRepo) MarkFailed(ctx context.Context, id, reason string) error {
	return r.update(ctx, "mark job failed", `
		UPDATE import_jobs
		SET status = 'failed', failure_reason = $2, updated_at = now()
		WHERE id = $1`, id, model.TruncateFailureReason(reason))
}

// CompleteIfNotFailed sets status completed unless a concurrent cancellation
// already marked the job failed. Returns true when the transition happened.
func (r *JobRepo) CompleteIfNotFailed(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE import_jobs
		SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status <> 'failed'`, id)
	if err != nil {
		return false, dberr.Describe("complete job", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete job rows affected: %w", err)
	}
	return affected > 0, nil
}

// Cancel marks a non-terminal job failed with the user-cancellation reason.
// The running pipeline observes the marker at its next batch boundary.
func (r *JobRepo) Cancel(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE import_jobs
		SET status = 'failed', failure_reason = $2, updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'processing')`,
		id, model.CancelledByUserReason)
	if err != nil {
		return dberr.Describe("cancel job", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel job rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrJobNotCancellable
	}
	return nil
}

// Delete removes a job. Only pending jobs may be deleted.
func (r *JobRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM import_jobs WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return dberr.Describe("delete job", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrJobNotDeletable
	}
	return nil
}

// update runs an UPDATE that must touch exactly one job.
func (r *JobRepo) update(ctx context.Context, op, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return dberr.Describe(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.ImportJob, error) {
	var (
		job      model.ImportJob
		reason   sql.NullString
		snapshot []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.Status,
		&job.TotalRows,
		&job.ProcessedRows,
		&reason,
		&job.SourceKey,
		&snapshot,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if reason.Valid {
		job.FailureReason = &reason.String
	}
	if len(snapshot) > 0 {
		job.RateSnapshot = json.RawMessage(snapshot)
	}
	return &job, nil
}
