package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
)

// upsertChunkSize bounds how many MAP rows go into one multi-value insert.
const upsertChunkSize = 500

// MAPPriceRepository handles database operations for MAP price floors.
type MAPPriceRepository struct {
	db *sqlx.DB
}

// NewMAPPriceRepository creates a new MAP price repository.
func NewMAPPriceRepository(db *sqlx.DB) *MAPPriceRepository {
	return &MAPPriceRepository{db: db}
}

// FloorsForIdentifiers returns the MAP floor for each identifier that has one
// on file. Identifiers without a floor are simply absent from the map.
func (r *MAPPriceRepository) FloorsForIdentifiers(ctx context.Context, category domain.Category, identifiers []string) (map[string]decimal.Decimal, error) {
	floors := make(map[string]decimal.Decimal, len(identifiers))
	if len(identifiers) == 0 {
		return floors, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT identifier, map_price FROM map_prices WHERE category = $1 AND identifier = ANY($2)`,
		category, pq.Array(identifiers))
	if err != nil {
		return nil, fmt.Errorf("failed to query MAP floors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var identifier string
		var price decimal.Decimal
		if scanErr := rows.Scan(&identifier, &price); scanErr != nil {
			return nil, fmt.Errorf("failed to scan MAP floor: %w", scanErr)
		}
		floors[identifier] = price
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate MAP floors: %w", rowsErr)
	}

	return floors, nil
}

// UpsertMany inserts or refreshes MAP floors in chunks. Existing rows for the
// same (category, identifier) get the new price, name, and updated_at.
func (r *MAPPriceRepository) UpsertMany(ctx context.Context, prices []*domain.MAPPrice) error {
	const cols = 4

	for start := 0; start < len(prices); start += upsertChunkSize {
		end := min(start+upsertChunkSize, len(prices))
		chunk := prices[start:end]

		placeholders := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*cols)
		for i, p := range chunk {
			base := i * cols
			placeholders = append(placeholders,
				fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
			args = append(args, p.Category, p.Identifier, p.MAPPrice, p.ProductName)
		}

		query := `
			INSERT INTO map_prices (category, identifier, map_price, product_name)
			VALUES ` + strings.Join(placeholders, ", ") + `
			ON CONFLICT (category, identifier) DO UPDATE
			SET map_price = EXCLUDED.map_price,
			    product_name = EXCLUDED.product_name,
			    updated_at = NOW()
		`

		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to upsert MAP prices: %w", err)
		}
	}

	return nil
}

// List retrieves MAP floors for a category ordered by identifier. A
// non-empty search matches identifier or product name, case-insensitively.
func (r *MAPPriceRepository) List(ctx context.Context, category domain.Category, search string, limit, offset int) ([]*domain.MAPPrice, error) {
	where, args := buildMAPPriceWhere(category, search)
	query := fmt.Sprintf(`
		SELECT id, category, identifier, map_price, product_name, updated_at
		FROM map_prices
		%s
		ORDER BY identifier
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var prices []*domain.MAPPrice
	err := r.db.SelectContext(ctx, &prices, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list MAP prices: %w", err)
	}

	if prices == nil {
		prices = []*domain.MAPPrice{}
	}

	return prices, nil
}

// Count returns how many MAP floors match List's category and search filter.
func (r *MAPPriceRepository) Count(ctx context.Context, category domain.Category, search string) (int, error) {
	where, args := buildMAPPriceWhere(category, search)

	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM map_prices `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count MAP prices: %w", err)
	}
	return count, nil
}

func buildMAPPriceWhere(category domain.Category, search string) (string, []any) {
	where := `WHERE category = $1`
	args := []any{category}
	if search != "" {
		where += ` AND (identifier ILIKE $2 OR product_name ILIKE $2)`
		args = append(args, "%"+search+"%")
	}
	return where, args
}

// Delete removes one MAP floor.
func (r *MAPPriceRepository) Delete(ctx context.Context, category domain.Category, identifier string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM map_prices WHERE category = $1 AND identifier = $2`, category, identifier)
	if err != nil {
		return fmt.Errorf("failed to delete MAP price: %w", err)
	}
	return requireRows(result, fmt.Errorf("%w: map price %s/%s", domain.ErrRecordNotFound, category, identifier))
}
