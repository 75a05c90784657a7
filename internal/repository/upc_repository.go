package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
)

// UPCRepository handles database operations for category UPC lists.
type UPCRepository struct {
	db *sqlx.DB
}

// NewUPCRepository creates a new UPC list repository.
func NewUPCRepository(db *sqlx.DB) *UPCRepository {
	return &UPCRepository{db: db}
}

// ListIdentifiers returns a category's UPCs in insertion order. Scheduled jobs
// partition this exact sequence, so the order must be stable across reads.
func (r *UPCRepository) ListIdentifiers(ctx context.Context, category domain.Category) ([]string, error) {
	var identifiers []string
	query := `SELECT identifier FROM upc_records WHERE category = $1 ORDER BY id`

	err := r.db.SelectContext(ctx, &identifiers, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list UPC identifiers: %w", err)
	}

	if identifiers == nil {
		identifiers = []string{}
	}

	return identifiers, nil
}

// List retrieves UPC records for a category with pagination.
func (r *UPCRepository) List(ctx context.Context, category domain.Category, limit, offset int) ([]*domain.UPCRecord, error) {
	var records []*domain.UPCRecord
	query := `
		SELECT id, category, identifier, created_at
		FROM upc_records
		WHERE category = $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`

	err := r.db.SelectContext(ctx, &records, query, category, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list UPC records: %w", err)
	}

	if records == nil {
		records = []*domain.UPCRecord{}
	}

	return records, nil
}

// ReplaceForCategory swaps a category's whole UPC list in one transaction.
func (r *UPCRepository) ReplaceForCategory(ctx context.Context, category domain.Category, identifiers []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin UPC replace transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, execErr := tx.ExecContext(ctx,
		`DELETE FROM upc_records WHERE category = $1`, category); execErr != nil {
		return fmt.Errorf("failed to clear UPC records: %w", execErr)
	}

	for _, chunk := range chunkStrings(identifiers, upsertChunkSize) {
		if insertErr := insertUPCChunk(ctx, tx, category, chunk); insertErr != nil {
			return insertErr
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit UPC replace: %w", commitErr)
	}

	return nil
}

// AddMany appends identifiers to a category's list, ignoring ones already present.
func (r *UPCRepository) AddMany(ctx context.Context, category domain.Category, identifiers []string) error {
	for _, chunk := range chunkStrings(identifiers, upsertChunkSize) {
		placeholders := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*2)
		for i, id := range chunk {
			placeholders = append(placeholders, fmt.Sprintf("($%d, $%d)", i*2+1, i*2+2))
			args = append(args, category, id)
		}

		query := `
			INSERT INTO upc_records (category, identifier)
			VALUES ` + strings.Join(placeholders, ", ") + `
			ON CONFLICT (category, identifier) DO NOTHING
		`

		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to add UPC records: %w", err)
		}
	}

	return nil
}

// Count returns how many UPCs a category has on file.
func (r *UPCRepository) Count(ctx context.Context, category domain.Category) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM upc_records WHERE category = $1`, category)
	if err != nil {
		return 0, fmt.Errorf("failed to count UPC records: %w", err)
	}
	return count, nil
}

// Delete removes one UPC from a category's list.
func (r *UPCRepository) Delete(ctx context.Context, category domain.Category, identifier string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM upc_records WHERE category = $1 AND identifier = $2`, category, identifier)
	if err != nil {
		return fmt.Errorf("failed to delete UPC record: %w", err)
	}
	return requireRows(result, fmt.Errorf("%w: upc record %s/%s", domain.ErrRecordNotFound, category, identifier))
}

func insertUPCChunk(ctx context.Context, tx *sqlx.Tx, category domain.Category, chunk []string) error {
	placeholders := make([]string, 0, len(chunk))
	args := make([]any, 0, len(chunk)*2)
	for i, id := range chunk {
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d)", i*2+1, i*2+2))
		args = append(args, category, id)
	}

	query := `
		INSERT INTO upc_records (category, identifier)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (category, identifier) DO NOTHING
	`

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert UPC records: %w", err)
	}
	return nil
}
