// Package importer parses MAP price and UPC roster spreadsheets.
// Uploads are validated row by row: bad rows are reported back with
// their spreadsheet row number while the remaining rows are applied.
package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
)

// headerRowIndex is the spreadsheet row carrying the column names.
// Excel rows are 1-based, data starts on row 2.
const headerRowIndex = 1

// MAPRow represents a parsed row from a MAP price spreadsheet. Cell text
// is kept raw; ValidateMAPRow and ToMAPPrice handle interpretation.
type MAPRow struct {
	Row         int // spreadsheet row number (for error reporting)
	Identifier  string
	MAPPrice    string
	ProductName string
}

// UPCRow represents a parsed row from a UPC roster spreadsheet.
type UPCRow struct {
	Row        int
	Identifier string
}

// ImportError reports why a specific spreadsheet row was rejected.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// columnMap holds the resolved 0-based index of each recognized column,
// -1 when the header row does not carry it.
type columnMap struct {
	upc         int
	mapPrice    int
	productName int
}

// ParseMAPFile reads a MAP price spreadsheet and returns the parsed rows
// plus one error per rejected row. Columns are resolved by header name
// (`upc`, `map_price`, optional `product_name`), so column order does not
// matter. A structurally broken file yields no rows and a single error.
func ParseMAPFile(r io.Reader) ([]MAPRow, []ImportError) {
	rows, err := openExcelRows(r)
	if err != nil {
		return nil, []ImportError{{Row: headerRowIndex, Error: err.Error()}}
	}
	if len(rows) == 0 {
		return nil, []ImportError{{Row: headerRowIndex, Error: "header row is missing"}}
	}

	cols := resolveColumns(rows[0])
	if colErr := validateMAPColumns(cols); colErr != nil {
		return nil, []ImportError{*colErr}
	}

	var (
		parsed    []MAPRow
		rowErrors []ImportError
	)
	for i, cells := range rows[1:] {
		rowNum := headerRowIndex + 1 + i
		if blankRow(cells) {
			continue
		}
		row := MAPRow{
			Row:         rowNum,
			Identifier:  cellAt(cells, cols.upc),
			MAPPrice:    cellAt(cells, cols.mapPrice),
			ProductName: cellAt(cells, cols.productName),
		}
		if msg := ValidateMAPRow(row); msg != "" {
			rowErrors = append(rowErrors, ImportError{Row: rowNum, Error: msg})
			continue
		}
		parsed = append(parsed, row)
	}
	return parsed, rowErrors
}

// ParseUPCFile reads a UPC roster spreadsheet (single `upc` column) and
// returns the parsed rows plus one error per rejected row.
func ParseUPCFile(r io.Reader) ([]UPCRow, []ImportError) {
	rows, err := openExcelRows(r)
	if err != nil {
		return nil, []ImportError{{Row: headerRowIndex, Error: err.Error()}}
	}
	if len(rows) == 0 {
		return nil, []ImportError{{Row: headerRowIndex, Error: "header row is missing"}}
	}

	cols := resolveColumns(rows[0])
	if colErr := validateUPCColumns(cols); colErr != nil {
		return nil, []ImportError{*colErr}
	}

	var (
		parsed    []UPCRow
		rowErrors []ImportError
	)
	for i, cells := range rows[1:] {
		rowNum := headerRowIndex + 1 + i
		if blankRow(cells) {
			continue
		}
		row := UPCRow{
			Row:        rowNum,
			Identifier: cellAt(cells, cols.upc),
		}
		if msg := ValidateUPCRow(row); msg != "" {
			rowErrors = append(rowErrors, ImportError{Row: rowNum, Error: msg})
			continue
		}
		parsed = append(parsed, row)
	}
	return parsed, rowErrors
}

// ValidateMAPRow validates a single row and returns an error message or
// empty string.
func ValidateMAPRow(row MAPRow) string {
	if row.Identifier == "" {
		return "upc is required"
	}
	if !isDigits(row.Identifier) {
		return "upc must contain only digits"
	}
	if row.MAPPrice == "" {
		return "map_price is required"
	}
	price, err := decimal.NewFromString(row.MAPPrice)
	if err != nil {
		return "map_price must be a decimal number"
	}
	if !price.IsPositive() {
		return "map_price must be greater than zero"
	}
	return ""
}

// ValidateUPCRow validates a single roster row and returns an error
// message or empty string.
func ValidateUPCRow(row UPCRow) string {
	if row.Identifier == "" {
		return "upc is required"
	}
	if !isDigits(row.Identifier) {
		return "upc must contain only digits"
	}
	return ""
}

// ToMAPPrice converts a validated row into a domain MAP price.
func ToMAPPrice(row MAPRow, category domain.Category) (*domain.MAPPrice, error) {
	price, err := decimal.NewFromString(row.MAPPrice)
	if err != nil {
		return nil, fmt.Errorf("parse map_price %q: %w", row.MAPPrice, err)
	}

	p := &domain.MAPPrice{
		Category:   category,
		Identifier: row.Identifier,
		MAPPrice:   price,
	}
	if row.ProductName != "" {
		name := row.ProductName
		p.ProductName = &name
	}
	return p, nil
}

// openExcelRows loads the first sheet of an xlsx stream as raw cell text.
func openExcelRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if rows == nil {
		rows = [][]string{}
	}
	return rows, nil
}

// resolveColumns maps header names to column indices, case-insensitively.
func resolveColumns(header []string) columnMap {
	cols := columnMap{upc: -1, mapPrice: -1, productName: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "upc":
			cols.upc = i
		case "map_price":
			cols.mapPrice = i
		case "product_name":
			cols.productName = i
		}
	}
	return cols
}

func validateMAPColumns(cols columnMap) *ImportError {
	missing := make([]string, 0, 2)
	if cols.upc < 0 {
		missing = append(missing, "upc")
	}
	if cols.mapPrice < 0 {
		missing = append(missing, "map_price")
	}
	return missingColumnError(missing)
}

func validateUPCColumns(cols columnMap) *ImportError {
	if cols.upc < 0 {
		return missingColumnError([]string{"upc"})
	}
	return nil
}

func missingColumnError(missing []string) *ImportError {
	switch len(missing) {
	case 0:
		return nil
	case 1:
		return &ImportError{Row: headerRowIndex, Error: fmt.Sprintf("missing required column %q", missing[0])}
	default:
		return &ImportError{Row: headerRowIndex, Error: "missing required columns " + strings.Join(missing, ", ")}
	}
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
