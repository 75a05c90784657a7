// Command gentemplate generates the Excel import templates for MAP prices
// and UPC rosters.
// Usage: go run cmd/gentemplate/main.go
package main

import (
	"log"
	"os"

	"github.com/xuri/excelize/v2"
)

func main() {
	if err := os.MkdirAll("examples", 0755); err != nil {
		log.Fatal(err)
	}

	if err := writeMAPTemplate("examples/map-price-import-template.xlsx"); err != nil {
		log.Fatal(err)
	}
	log.Println("Created examples/map-price-import-template.xlsx")

	if err := writeUPCTemplate("examples/upc-import-template.xlsx"); err != nil {
		log.Fatal(err)
	}
	log.Println("Created examples/upc-import-template.xlsx")
}

func writeMAPTemplate(path string) error {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", "MAP Prices"); err != nil {
		return err
	}

	rows := [][]string{
		{"upc", "map_price", "product_name"},
		{"885909950805", "24.99", "Example Widget 12oz"},
		{"036000291452", "9.50", ""},
	}
	if err := writeRows(f, "MAP Prices", rows); err != nil {
		return err
	}

	instructions := []string{
		"Column Descriptions:",
		"",
		"upc - Required. Digits only, one product per row",
		"map_price - Required. Minimum advertised price as a decimal number, must be greater than zero",
		"product_name - Optional. Display name carried into reports",
		"",
		"Column order does not matter; columns are matched by header name.",
		"Rows that fail validation are reported back with their row number and skipped.",
	}
	if err := writeInstructions(f, instructions); err != nil {
		return err
	}

	return f.SaveAs(path)
}

func writeUPCTemplate(path string) error {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", "UPCs"); err != nil {
		return err
	}

	rows := [][]string{
		{"upc"},
		{"885909950805"},
		{"036000291452"},
	}
	if err := writeRows(f, "UPCs", rows); err != nil {
		return err
	}

	instructions := []string{
		"Column Descriptions:",
		"",
		"upc - Required. Digits only, one identifier per row",
		"",
		"Import with replace=true to swap the category's whole roster for this file,",
		"or without it to merge these identifiers into the existing roster.",
	}
	if err := writeInstructions(f, instructions); err != nil {
		return err
	}

	return f.SaveAs(path)
}

func writeRows(f *excelize.File, sheet string, rows [][]string) error {
	for rowIdx, row := range rows {
		for colIdx, v := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeInstructions(f *excelize.File, lines []string) error {
	if _, err := f.NewSheet("Instructions"); err != nil {
		return err
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue("Instructions", cell, line); err != nil {
			return err
		}
	}
	return nil
}
