package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
)

// ScheduleRepository handles database operations for scheduler settings.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new scheduler settings repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Get retrieves the schedule for a category. A category with no stored row
// returns (nil, nil); the caller falls back to configured defaults.
func (r *ScheduleRepository) Get(ctx context.Context, category domain.Category) (*domain.SchedulerSetting, error) {
	var setting domain.SchedulerSetting
	query := `
		SELECT category, timezone, hour, minute, enabled, updated_at
		FROM scheduler_settings
		WHERE category = $1
	`

	err := r.db.GetContext(ctx, &setting, query, category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get scheduler setting: %w", err)
	}

	return &setting, nil
}

// List retrieves all stored schedules.
func (r *ScheduleRepository) List(ctx context.Context) ([]*domain.SchedulerSetting, error) {
	var settings []*domain.SchedulerSetting
	query := `
		SELECT category, timezone, hour, minute, enabled, updated_at
		FROM scheduler_settings
		ORDER BY category
	`

	err := r.db.SelectContext(ctx, &settings, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduler settings: %w", err)
	}

	if settings == nil {
		settings = []*domain.SchedulerSetting{}
	}

	return settings, nil
}

// Upsert stores or replaces a category's schedule.
func (r *ScheduleRepository) Upsert(ctx context.Context, setting *domain.SchedulerSetting) error {
	query := `
		INSERT INTO scheduler_settings (category, timezone, hour, minute, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (category) DO UPDATE
		SET timezone = EXCLUDED.timezone,
		    hour = EXCLUDED.hour,
		    minute = EXCLUDED.minute,
		    enabled = EXCLUDED.enabled,
		    updated_at = NOW()
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		setting.Category, setting.Timezone, setting.Hour, setting.Minute, setting.Enabled,
	).Scan(&setting.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert scheduler setting: %w", err)
	}

	return nil
}
