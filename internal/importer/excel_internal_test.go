package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func Test_resolveColumns(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   columnMap
	}{
		{
			name:   "canonical order",
			header: []string{"upc", "map_price", "product_name"},
			want:   columnMap{upc: 0, mapPrice: 1, productName: 2},
		},
		{
			name:   "shuffled with casing and padding",
			header: []string{" Product_Name ", "UPC", "Map_Price"},
			want:   columnMap{upc: 1, mapPrice: 2, productName: 0},
		},
		{
			name:   "unrecognized headers ignored",
			header: []string{"sku", "upc", "price"},
			want:   columnMap{upc: 1, mapPrice: -1, productName: -1},
		},
		{
			name:   "empty header",
			header: nil,
			want:   columnMap{upc: -1, mapPrice: -1, productName: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveColumns(tt.header)
			if got != tt.want {
				t.Errorf("resolveColumns() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func Test_validateMAPColumns(t *testing.T) {
	tests := []struct {
		name    string
		colMap  columnMap
		wantErr bool
		wantMsg string
	}{
		{
			name:    "both present",
			colMap:  columnMap{upc: 0, mapPrice: 1, productName: -1},
			wantErr: false,
		},
		{
			name:    "missing both",
			colMap:  columnMap{upc: -1, mapPrice: -1, productName: -1},
			wantErr: true,
			wantMsg: "missing required columns",
		},
		{
			name:    "missing upc",
			colMap:  columnMap{upc: -1, mapPrice: 1, productName: -1},
			wantErr: true,
			wantMsg: "missing required column",
		},
		{
			name:    "missing map_price",
			colMap:  columnMap{upc: 0, mapPrice: -1, productName: -1},
			wantErr: true,
			wantMsg: "missing required column",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validateMAPColumns(tt.colMap)
			if (got != nil) != tt.wantErr {
				t.Errorf("validateMAPColumns() = %v, wantErr %v", got, tt.wantErr)
				return
			}
			if got != nil && tt.wantMsg != "" && !strings.Contains(got.Error, tt.wantMsg) {
				t.Errorf("validateMAPColumns() error = %q, want to contain %q", got.Error, tt.wantMsg)
			}
		})
	}
}

func Test_validateUPCColumns(t *testing.T) {
	if err := validateUPCColumns(columnMap{upc: 0, mapPrice: -1, productName: -1}); err != nil {
		t.Errorf("validateUPCColumns() = %v, want nil", err)
	}

	err := validateUPCColumns(columnMap{upc: -1, mapPrice: -1, productName: -1})
	if err == nil {
		t.Fatal("validateUPCColumns() expected error for missing upc column")
	}
	if !strings.Contains(err.Error, `missing required column "upc"`) {
		t.Errorf("validateUPCColumns() error = %q, want missing upc column", err.Error)
	}
}

func Test_openExcelRows(t *testing.T) {
	t.Run("invalid reader", func(t *testing.T) {
		reader := bytes.NewReader([]byte("not excel"))
		rows, err := openExcelRows(reader)
		if err == nil {
			t.Error("openExcelRows() expected error for invalid input")
		}
		if rows != nil {
			t.Errorf("openExcelRows() expected nil rows on error, got len %d", len(rows))
		}
	})

	t.Run("empty sheet", func(t *testing.T) {
		f := excelize.NewFile()
		var buf bytes.Buffer
		if err := f.Write(&buf); err != nil {
			t.Fatalf("write excel: %v", err)
		}
		rows, err := openExcelRows(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Errorf("openExcelRows() unexpected error: %v", err)
		}
		if rows == nil || len(rows) != 0 {
			t.Errorf("openExcelRows() expected empty slice, got %v", rows)
		}
	})

	t.Run("valid one row", func(t *testing.T) {
		f := excelize.NewFile()
		_ = f.SetCellValue("Sheet1", "A1", "upc")
		_ = f.SetCellValue("Sheet1", "B1", "map_price")
		var buf bytes.Buffer
		if err := f.Write(&buf); err != nil {
			t.Fatalf("write excel: %v", err)
		}
		rows, err := openExcelRows(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Errorf("openExcelRows() unexpected error: %v", err)
		}
		if len(rows) != 1 {
			t.Errorf("openExcelRows() got %d rows, want 1", len(rows))
		}
	})
}

func Test_cellAt(t *testing.T) {
	cells := []string{" 885909950805 ", "24.99"}

	if got := cellAt(cells, 0); got != "885909950805" {
		t.Errorf("cellAt(0) = %q, want trimmed value", got)
	}
	if got := cellAt(cells, 5); got != "" {
		t.Errorf("cellAt(5) = %q, want empty for out-of-range index", got)
	}
	if got := cellAt(cells, -1); got != "" {
		t.Errorf("cellAt(-1) = %q, want empty for missing column", got)
	}
}
