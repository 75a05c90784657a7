package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements are applied in order at startup. Every statement is
// idempotent so restarts are safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		category TEXT NOT NULL,
		description TEXT,
		identifier_count INTEGER NOT NULL,
		batch_size INTEGER NOT NULL,
		total_batches INTEGER NOT NULL,
		completed_batches INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		recipients TEXT[] NOT NULL DEFAULT '{}',
		report_status TEXT NOT NULL DEFAULT 'none',
		report_token UUID,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ
	)`,

	// One live job per category. The database, not application code, is
	// the arbiter: concurrent creators race on this index and exactly one
	// insert wins.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_active_category
		ON jobs (category)
		WHERE status IN ('pending', 'processing')`,

	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status)`,

	`CREATE TABLE IF NOT EXISTS batches (
		id UUID PRIMARY KEY,
		job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		sequence_index INTEGER NOT NULL,
		identifiers TEXT[] NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		stop_requested BOOLEAN NOT NULL DEFAULT FALSE,
		error_message TEXT,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		UNIQUE (job_id, sequence_index)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_batches_job_id ON batches (job_id)`,

	`CREATE TABLE IF NOT EXISTS batch_items (
		id BIGSERIAL PRIMARY KEY,
		batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		identifier TEXT NOT NULL,
		outcome TEXT NOT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		alert_count INTEGER NOT NULL DEFAULT 0,
		map_found BOOLEAN NOT NULL DEFAULT FALSE,
		snapshot JSONB,
		error_message TEXT,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (batch_id, identifier)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_batch_items_batch_id ON batch_items (batch_id)`,

	`CREATE TABLE IF NOT EXISTS price_alerts (
		id BIGSERIAL PRIMARY KEY,
		job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		identifier TEXT NOT NULL,
		seller_name TEXT NOT NULL,
		observed_price NUMERIC(12,2) NOT NULL,
		map_price NUMERIC(12,2) NOT NULL,
		delta NUMERIC(12,2) NOT NULL,
		detected_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_price_alerts_job_id ON price_alerts (job_id)`,

	`CREATE TABLE IF NOT EXISTS map_prices (
		id BIGSERIAL PRIMARY KEY,
		category TEXT NOT NULL,
		identifier TEXT NOT NULL,
		map_price NUMERIC(12,2) NOT NULL,
		product_name TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (category, identifier)
	)`,

	`CREATE TABLE IF NOT EXISTS upc_records (
		id BIGSERIAL PRIMARY KEY,
		category TEXT NOT NULL,
		identifier TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (category, identifier)
	)`,

	`CREATE TABLE IF NOT EXISTS scheduler_settings (
		category TEXT PRIMARY KEY,
		timezone TEXT NOT NULL,
		hour INTEGER NOT NULL,
		minute INTEGER NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates all tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
