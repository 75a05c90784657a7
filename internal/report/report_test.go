package report_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/report"
)

type stubAlertLister struct {
	alerts []*domain.PriceAlert
	err    error
}

func (s *stubAlertLister) ListByJob(_ context.Context, _ string) ([]*domain.PriceAlert, error) {
	return s.alerts, s.err
}

func alertRow(id int64, identifier, seller, observed, floor, delta string, detectedAt time.Time) *domain.PriceAlert {
	return &domain.PriceAlert{
		ID:            id,
		JobID:         "job-1",
		BatchID:       "batch-1",
		Identifier:    identifier,
		SellerName:    seller,
		ObservedPrice: decimal.RequireFromString(observed),
		MAPPrice:      decimal.RequireFromString(floor),
		Delta:         decimal.RequireFromString(delta),
		DetectedAt:    detectedAt,
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	detected := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	alerts := []*domain.PriceAlert{
		alertRow(1, "123456789012", "Seller A", "9.50", "10.00", "0.50", detected),
		alertRow(2, "123456789013", "Seller B", "7.5", "9", "1.5", detected.Add(time.Minute)),
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf, alerts))

	want := "identifier,seller,observed_price,map_price,delta,detected_at\n" +
		"123456789012,Seller A,9.50,10.00,0.50,2026-03-14T12:00:00Z\n" +
		"123456789013,Seller B,7.50,9.00,1.50,2026-03-14T12:01:00Z\n"
	require.Equal(t, want, buf.String())
}

func TestWriteCSVSortsRows(t *testing.T) {
	t.Parallel()

	detected := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	// Deliberately unsorted input: by identifier then seller.
	alerts := []*domain.PriceAlert{
		alertRow(3, "222", "Seller B", "5.00", "6.00", "1.00", detected),
		alertRow(1, "111", "Seller Z", "5.00", "6.00", "1.00", detected),
		alertRow(2, "222", "Seller A", "5.00", "6.00", "1.00", detected),
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf, alerts))

	want := "identifier,seller,observed_price,map_price,delta,detected_at\n" +
		"111,Seller Z,5.00,6.00,1.00,2026-03-14T12:00:00Z\n" +
		"222,Seller A,5.00,6.00,1.00,2026-03-14T12:00:00Z\n" +
		"222,Seller B,5.00,6.00,1.00,2026-03-14T12:00:00Z\n"
	require.Equal(t, want, buf.String())
}

func TestWriteCSVEmptyJobProducesHeaderOnly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf, nil))
	require.Equal(t, "identifier,seller,observed_price,map_price,delta,detected_at\n", buf.String())
}

func TestGenerateIsByteIdenticalAcrossRuns(t *testing.T) {
	t.Parallel()

	detected := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	lister := &stubAlertLister{alerts: []*domain.PriceAlert{
		alertRow(1, "123456789012", "Seller A", "9.50", "10.00", "0.50", detected),
	}}
	gen := report.NewGenerator(lister)

	first, err := gen.Generate(context.Background(), "job-1")
	require.NoError(t, err)

	second, err := gen.Generate(context.Background(), "job-1")
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestGeneratePropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	lister := &stubAlertLister{err: errors.New("connection refused")}
	gen := report.NewGenerator(lister)

	_, err := gen.Generate(context.Background(), "job-1")
	require.Error(t, err)
}

func TestFilename(t *testing.T) {
	t.Parallel()

	job := &domain.Job{
		ID:        "job-1",
		Category:  domain.CategoryDNK,
		CreatedAt: time.Date(2026, 3, 14, 4, 30, 0, 0, time.UTC),
	}

	require.Equal(t, "off_price_report_dnk_20260314.csv", report.Filename(job))
}
