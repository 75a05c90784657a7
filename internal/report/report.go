// Package report builds the off-price CSV report for a finished job.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
)

// csvHeader is the fixed column set of every report.
var csvHeader = []string{"identifier", "seller", "observed_price", "map_price", "delta", "detected_at"}

// AlertLister supplies the stored alerts of a job.
type AlertLister interface {
	ListByJob(ctx context.Context, jobID string) ([]*domain.PriceAlert, error)
}

// Generator renders job reports from stored alerts. Reports are derived
// purely from persisted rows, so regenerating a report never recomputes
// detections and always yields identical bytes for an unchanged job.
type Generator struct {
	alerts AlertLister
}

// NewGenerator creates a report generator.
func NewGenerator(alerts AlertLister) *Generator {
	return &Generator{alerts: alerts}
}

// Generate returns the CSV report for a job.
func (g *Generator) Generate(ctx context.Context, jobID string) ([]byte, error) {
	alerts, err := g.alerts.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load alerts for report: %w", err)
	}

	var buf bytes.Buffer
	if writeErr := WriteCSV(&buf, alerts); writeErr != nil {
		return nil, writeErr
	}

	return buf.Bytes(), nil
}

// WriteCSV renders alerts as CSV. Rows are sorted here in addition to the
// query, so the byte output never depends on the caller's row order. Prices
// are fixed to two decimals and timestamps to UTC RFC3339.
func WriteCSV(w io.Writer, alerts []*domain.PriceAlert) error {
	sorted := make([]*domain.PriceAlert, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Identifier != b.Identifier {
			return a.Identifier < b.Identifier
		}
		if a.SellerName != b.SellerName {
			return a.SellerName < b.SellerName
		}
		if !a.DetectedAt.Equal(b.DetectedAt) {
			return a.DetectedAt.Before(b.DetectedAt)
		}
		return a.ID < b.ID
	})

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	for _, alert := range sorted {
		record := []string{
			alert.Identifier,
			alert.SellerName,
			alert.ObservedPrice.StringFixed(2),
			alert.MAPPrice.StringFixed(2),
			alert.Delta.StringFixed(2),
			alert.DetectedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}

	return nil
}

// Filename returns the download name for a job's report.
func Filename(job *domain.Job) string {
	return fmt.Sprintf("off_price_report_%s_%s.csv",
		strings.ToLower(string(job.Category)),
		job.CreatedAt.UTC().Format("20060102"),
	)
}
