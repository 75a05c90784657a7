package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
)

// MAPPriceStore persists imported MAP prices.
type MAPPriceStore interface {
	UpsertMany(ctx context.Context, prices []*domain.MAPPrice) error
}

// UPCStore persists imported roster identifiers.
type UPCStore interface {
	AddMany(ctx context.Context, category domain.Category, identifiers []string) error
	ReplaceForCategory(ctx context.Context, category domain.Category, identifiers []string) error
}

// ImportResult summarizes an import: how many rows were applied and which
// rows were rejected.
type ImportResult struct {
	Imported int           `json:"imported"`
	Errors   []ImportError `json:"errors,omitempty"`
}

// Service parses uploaded spreadsheets and applies the valid rows.
type Service struct {
	mapPrices MAPPriceStore
	upcs      UPCStore
	log       logger.Logger
}

func NewService(mapPrices MAPPriceStore, upcs UPCStore, log logger.Logger) *Service {
	return &Service{
		mapPrices: mapPrices,
		upcs:      upcs,
		log:       log,
	}
}

// ImportMAPPrices parses a MAP price spreadsheet and upserts every valid
// row under the category. Rejected rows are reported in the result and do
// not block the rest of the file; only a store failure is fatal.
func (s *Service) ImportMAPPrices(ctx context.Context, category domain.Category, r io.Reader) (*ImportResult, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}

	rows, rowErrors := ParseMAPFile(r)

	// A UPC repeated in the file would collide inside one upsert
	// statement, so later occurrences are rejected rather than applied.
	seen := make(map[string]int, len(rows))
	prices := make([]*domain.MAPPrice, 0, len(rows))
	for _, row := range rows {
		if first, ok := seen[row.Identifier]; ok {
			rowErrors = append(rowErrors, ImportError{
				Row:   row.Row,
				Error: fmt.Sprintf("duplicate upc %s, first used on row %d", row.Identifier, first),
			})
			continue
		}
		seen[row.Identifier] = row.Row

		price, err := ToMAPPrice(row, category)
		if err != nil {
			rowErrors = append(rowErrors, ImportError{Row: row.Row, Error: err.Error()})
			continue
		}
		prices = append(prices, price)
	}

	if len(prices) > 0 {
		if err := s.mapPrices.UpsertMany(ctx, prices); err != nil {
			return nil, fmt.Errorf("upsert MAP prices: %w", err)
		}
	}

	s.log.Info("MAP price import finished",
		logger.String("category", string(category)),
		logger.Int("imported", len(prices)),
		logger.Int("rejected", len(rowErrors)))

	return &ImportResult{Imported: len(prices), Errors: rowErrors}, nil
}

// ImportUPCs parses a roster spreadsheet for the category. With replace
// set the stored roster is swapped for the file's contents, otherwise the
// identifiers are merged into it. A replace that would leave the roster
// empty is refused so a bad upload cannot wipe a scheduled category.
func (s *Service) ImportUPCs(ctx context.Context, category domain.Category, r io.Reader, replace bool) (*ImportResult, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}

	rows, rowErrors := ParseUPCFile(r)

	seen := make(map[string]int, len(rows))
	identifiers := make([]string, 0, len(rows))
	for _, row := range rows {
		if first, ok := seen[row.Identifier]; ok {
			rowErrors = append(rowErrors, ImportError{
				Row:   row.Row,
				Error: fmt.Sprintf("duplicate upc %s, first used on row %d", row.Identifier, first),
			})
			continue
		}
		seen[row.Identifier] = row.Row
		identifiers = append(identifiers, row.Identifier)
	}

	switch {
	case replace && len(identifiers) == 0:
		return nil, fmt.Errorf("%w: refusing to replace %s roster with an empty file", domain.ErrNoIdentifiers, category)
	case replace:
		if err := s.upcs.ReplaceForCategory(ctx, category, identifiers); err != nil {
			return nil, fmt.Errorf("replace %s roster: %w", category, err)
		}
	case len(identifiers) > 0:
		if err := s.upcs.AddMany(ctx, category, identifiers); err != nil {
			return nil, fmt.Errorf("add to %s roster: %w", category, err)
		}
	}

	s.log.Info("UPC roster import finished",
		logger.String("category", string(category)),
		logger.Bool("replace", replace),
		logger.Int("imported", len(identifiers)),
		logger.Int("rejected", len(rowErrors)))

	return &ImportResult{Imported: len(identifiers), Errors: rowErrors}, nil
}
