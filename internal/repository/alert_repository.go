package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
)

// AlertRepository handles database operations for price alerts.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates a new price alert repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// ListByJob retrieves all alerts of a job in report order. The ordering is
// total (id as final tiebreaker), so two reads of an unchanged job return the
// rows in the same sequence.
func (r *AlertRepository) ListByJob(ctx context.Context, jobID string) ([]*domain.PriceAlert, error) {
	var alerts []*domain.PriceAlert
	query := `
		SELECT id, job_id, batch_id, identifier, seller_name,
		       observed_price, map_price, delta, detected_at
		FROM price_alerts
		WHERE job_id = $1
		ORDER BY identifier, seller_name, detected_at, id
	`

	err := r.db.SelectContext(ctx, &alerts, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list price alerts: %w", err)
	}

	if alerts == nil {
		alerts = []*domain.PriceAlert{}
	}

	return alerts, nil
}

// CountByJob returns the number of alerts recorded for a job.
func (r *AlertRepository) CountByJob(ctx context.Context, jobID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM price_alerts WHERE job_id = $1`, jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to count price alerts: %w", err)
	}
	return count, nil
}
