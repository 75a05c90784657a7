package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
)

// ItemRepository handles database operations for batch items.
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository creates a new batch item repository.
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// RecordOutcome persists one processed identifier and its alerts in a single
// transaction. An identifier is either fully recorded or not recorded at all;
// there is no state where alerts exist without their item row.
func (r *ItemRepository) RecordOutcome(ctx context.Context, item *domain.BatchItem, alerts []*domain.PriceAlert) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin item transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	itemQuery := `
		INSERT INTO batch_items (batch_id, identifier, outcome, attempt_count,
		                         alert_count, map_found, snapshot, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, processed_at
	`

	err = tx.QueryRowContext(
		ctx, itemQuery,
		item.BatchID, item.Identifier, item.Outcome, item.AttemptCount,
		item.AlertCount, item.MAPFound, item.Snapshot, item.ErrorMessage,
	).Scan(&item.ID, &item.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to insert batch item: %w", err)
	}

	alertQuery := `
		INSERT INTO price_alerts (job_id, batch_id, identifier, seller_name,
		                          observed_price, map_price, delta, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	for _, alert := range alerts {
		scanErr := tx.QueryRowContext(
			ctx, alertQuery,
			alert.JobID, alert.BatchID, alert.Identifier, alert.SellerName,
			alert.ObservedPrice, alert.MAPPrice, alert.Delta, alert.DetectedAt,
		).Scan(&alert.ID)
		if scanErr != nil {
			return fmt.Errorf("failed to insert price alert: %w", scanErr)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit item transaction: %w", commitErr)
	}

	return nil
}

// ListByBatch retrieves all recorded items of a batch in processing order.
func (r *ItemRepository) ListByBatch(ctx context.Context, batchID string) ([]*domain.BatchItem, error) {
	var items []*domain.BatchItem
	query := `
		SELECT id, batch_id, identifier, outcome, attempt_count, alert_count,
		       map_found, snapshot, error_message, processed_at
		FROM batch_items
		WHERE batch_id = $1
		ORDER BY id
	`

	err := r.db.SelectContext(ctx, &items, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch items: %w", err)
	}

	if items == nil {
		items = []*domain.BatchItem{}
	}

	return items, nil
}

// CountByBatch returns how many identifiers of a batch have been recorded.
func (r *ItemRepository) CountByBatch(ctx context.Context, batchID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM batch_items WHERE batch_id = $1`, batchID)
	if err != nil {
		return 0, fmt.Errorf("failed to count batch items: %w", err)
	}
	return count, nil
}
