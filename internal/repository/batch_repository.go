package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
)

const batchColumns = `id, job_id, sequence_index, identifiers, status, stop_requested,
	       error_message, started_at, finished_at`

// BatchRepository handles database operations for batches.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository creates a new batch repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// CreateMany inserts all batches of a job in one transaction, so a job never
// becomes visible with a partial batch set.
func (r *BatchRepository) CreateMany(ctx context.Context, batches []*domain.Batch) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch insert transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	query := `
		INSERT INTO batches (id, job_id, sequence_index, identifiers, status)
		VALUES ($1, $2, $3, $4, $5)
	`

	for _, batch := range batches {
		if _, execErr := tx.ExecContext(
			ctx, query,
			batch.ID, batch.JobID, batch.SequenceIndex, batch.Identifiers, batch.Status,
		); execErr != nil {
			return fmt.Errorf("failed to insert batch %d: %w", batch.SequenceIndex, execErr)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit batch inserts: %w", commitErr)
	}

	return nil
}

// GetByID retrieves a batch by its ID.
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var batch domain.Batch
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1`

	err := r.db.GetContext(ctx, &batch, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBatchNotFound, id)
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	return &batch, nil
}

// ListByJob retrieves all batches of a job in partition order.
func (r *BatchRepository) ListByJob(ctx context.Context, jobID string) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	query := `SELECT ` + batchColumns + ` FROM batches WHERE job_id = $1 ORDER BY sequence_index`

	err := r.db.SelectContext(ctx, &batches, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	if batches == nil {
		batches = []*domain.Batch{}
	}

	return batches, nil
}

// MarkProcessing transitions a pending batch to processing and stamps started_at.
func (r *BatchRepository) MarkProcessing(ctx context.Context, id string) error {
	query := `
		UPDATE batches
		SET status = 'processing', started_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark batch processing: %w", err)
	}
	return requireRows(result, fmt.Errorf("%w: %s", domain.ErrBatchNotFound, id))
}

// MarkTerminal records the terminal batch status and stamps finished_at.
func (r *BatchRepository) MarkTerminal(ctx context.Context, id string, status domain.BatchStatus, errorMessage *string) error {
	query := `
		UPDATE batches
		SET status = $2, error_message = $3, finished_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to mark batch terminal: %w", err)
	}
	return requireRows(result, fmt.Errorf("%w: %s", domain.ErrBatchNotFound, id))
}

// RequestStop raises the stop flag on a live batch. The executor owns the
// status column and observes the flag between identifiers, so this never
// mutates status directly. Terminal batches return domain.ErrBatchNotStoppable.
func (r *BatchRepository) RequestStop(ctx context.Context, id string) error {
	query := `
		UPDATE batches
		SET stop_requested = TRUE
		WHERE id = $1 AND status IN ('pending', 'processing')
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to request batch stop: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Zero rows means the batch is terminal or missing; look it up to say which.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return getErr
	}
	return fmt.Errorf("%w: %s", domain.ErrBatchNotStoppable, id)
}

// StopRequested reads the current stop flag. The executor polls this between
// identifiers; it is the only cancellation channel besides the context.
func (r *BatchRepository) StopRequested(ctx context.Context, id string) (bool, error) {
	var stop bool
	query := `SELECT stop_requested FROM batches WHERE id = $1`

	err := r.db.GetContext(ctx, &stop, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("%w: %s", domain.ErrBatchNotFound, id)
		}
		return false, fmt.Errorf("failed to read stop flag: %w", err)
	}

	return stop, nil
}

// StatusCounts returns how many batches of a job are in each state.
func (r *BatchRepository) StatusCounts(ctx context.Context, jobID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM batches WHERE job_id = $1 GROUP BY status`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to count batch states: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan batch state count: %w", scanErr)
		}
		counts[status] = count
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate batch state counts: %w", rowsErr)
	}

	return counts, nil
}

// Summaries returns the per-batch status rows served by the job status endpoint.
func (r *BatchRepository) Summaries(ctx context.Context, jobID string) ([]domain.BatchSummary, error) {
	var summaries []domain.BatchSummary
	query := `
		SELECT b.id, b.sequence_index, b.status,
		       cardinality(b.identifiers) AS identifier_count,
		       COUNT(i.id) AS item_count
		FROM batches b
		LEFT JOIN batch_items i ON i.batch_id = b.id
		WHERE b.job_id = $1
		GROUP BY b.id
		ORDER BY b.sequence_index
	`

	err := r.db.SelectContext(ctx, &summaries, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch summaries: %w", err)
	}

	if summaries == nil {
		summaries = []domain.BatchSummary{}
	}

	return summaries, nil
}
