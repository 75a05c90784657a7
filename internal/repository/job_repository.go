// Package repository implements PostgreSQL persistence for jobs, batches,
// alerts, MAP prices, UPC lists, and scheduler settings.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
)

const jobColumns = `id, category, description, identifier_count, batch_size, total_batches,
	       completed_batches, status, recipients, report_status, report_token,
	       error_message, created_at, started_at, completed_at`

// JobRepository handles database operations for jobs.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job. The partial unique index on active categories
// makes concurrent creates race at the database; the loser gets
// domain.ErrDuplicateActiveJob.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (id, category, description, identifier_count, batch_size,
		                  total_batches, status, recipients)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		job.ID,
		job.Category,
		job.Description,
		job.IdentifierCount,
		job.BatchSize,
		job.TotalBatches,
		job.Status,
		job.Recipients,
	).Scan(&job.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return fmt.Errorf("%w: category %s", domain.ErrDuplicateActiveJob, job.Category)
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	err := r.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// List retrieves jobs newest-first with optional status and category filters.
func (r *JobRepository) List(ctx context.Context, status, category string, limit, offset int) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var conditions []string
	var args []any

	if status != "" {
		args = append(args, status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if category != "" {
		args = append(args, category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var jobs []*domain.Job
	err := r.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	if jobs == nil {
		jobs = []*domain.Job{}
	}

	return jobs, nil
}

// MarkProcessing transitions a pending job to processing and stamps started_at.
func (r *JobRepository) MarkProcessing(ctx context.Context, id string) error {
	query := `
		UPDATE jobs
		SET status = 'processing', started_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	return requireRows(result, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id))
}

// IncrementCompletedBatches bumps the completed batch counter atomically.
func (r *JobRepository) IncrementCompletedBatches(ctx context.Context, id string) error {
	query := `UPDATE jobs SET completed_batches = completed_batches + 1 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment completed batches: %w", err)
	}
	return requireRows(result, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id))
}

// Finalize records the terminal job status and stamps completed_at.
func (r *JobRepository) Finalize(ctx context.Context, id string, status domain.JobStatus, errorMessage *string) error {
	query := `
		UPDATE jobs
		SET status = $2, error_message = $3, completed_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}
	return requireRows(result, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id))
}

// ClaimReportToken attempts to claim exclusive finalization rights for a job.
// Exactly one caller wins per job; the winner generates the report and sends
// the email. Returns false when the token was already claimed.
func (r *JobRepository) ClaimReportToken(ctx context.Context, id, token string) (bool, error) {
	query := `UPDATE jobs SET report_token = $2 WHERE id = $1 AND report_token IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, token)
	if err != nil {
		return false, fmt.Errorf("failed to claim report token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// SetReportStatus records report generation and delivery progress.
func (r *JobRepository) SetReportStatus(ctx context.Context, id string, status domain.ReportStatus) error {
	query := `UPDATE jobs SET report_status = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to set report status: %w", err)
	}
	return requireRows(result, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id))
}

// Delete removes a terminal job and, via cascade, its batches, items, and
// alerts. Active jobs are not deletable.
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM jobs WHERE id = $1 AND status IN ('completed', 'failed')`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return requireRows(result, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id))
}
