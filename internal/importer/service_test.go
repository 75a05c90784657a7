package importer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/importer"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
)

type fakeMAPStore struct {
	upserted []*domain.MAPPrice
	err      error
}

func (f *fakeMAPStore) UpsertMany(_ context.Context, prices []*domain.MAPPrice) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, prices...)
	return nil
}

type fakeUPCStore struct {
	added    map[domain.Category][]string
	replaced map[domain.Category][]string
	err      error
}

func newFakeUPCStore() *fakeUPCStore {
	return &fakeUPCStore{
		added:    make(map[domain.Category][]string),
		replaced: make(map[domain.Category][]string),
	}
}

func (f *fakeUPCStore) AddMany(_ context.Context, category domain.Category, identifiers []string) error {
	if f.err != nil {
		return f.err
	}
	f.added[category] = append(f.added[category], identifiers...)
	return nil
}

func (f *fakeUPCStore) ReplaceForCategory(_ context.Context, category domain.Category, identifiers []string) error {
	if f.err != nil {
		return f.err
	}
	f.replaced[category] = identifiers
	return nil
}

func newTestService(mapStore *fakeMAPStore, upcStore *fakeUPCStore) *importer.Service {
	return importer.NewService(mapStore, upcStore, logger.NewNop())
}

func TestImportMAPPricesAppliesValidRows(t *testing.T) {
	reader := createTestExcel(t, mapHeaders(), [][]string{
		{"885909950805", "24.99", "Widget"},
		{"036000291452", "bad-price", ""},
		{"786936224306", "9.50", "Gadget"},
	})
	mapStore := &fakeMAPStore{}
	svc := newTestService(mapStore, newFakeUPCStore())

	result, err := svc.ImportMAPPrices(context.Background(), domain.CategoryDNK, reader)
	if err != nil {
		t.Fatalf("ImportMAPPrices() unexpected error: %v", err)
	}

	if result.Imported != 2 {
		t.Errorf("Imported = %d, want 2", result.Imported)
	}
	if len(result.Errors) != 1 || result.Errors[0].Row != 3 {
		t.Errorf("Errors = %+v, want one error on row 3", result.Errors)
	}
	if len(mapStore.upserted) != 2 {
		t.Fatalf("store received %d prices, want 2", len(mapStore.upserted))
	}
	first := mapStore.upserted[0]
	if first.Category != domain.CategoryDNK || first.Identifier != "885909950805" {
		t.Errorf("first upsert = %+v, want DNK 885909950805", first)
	}
	if !first.MAPPrice.Equal(decimal.RequireFromString("24.99")) {
		t.Errorf("first MAPPrice = %s, want 24.99", first.MAPPrice)
	}
}

func TestImportMAPPricesRejectsDuplicateUPCInFile(t *testing.T) {
	reader := createTestExcel(t, mapHeaders(), [][]string{
		{"885909950805", "24.99", "Widget"},
		{"885909950805", "19.99", "Widget again"},
	})
	mapStore := &fakeMAPStore{}
	svc := newTestService(mapStore, newFakeUPCStore())

	result, err := svc.ImportMAPPrices(context.Background(), domain.CategoryDNK, reader)
	if err != nil {
		t.Fatalf("ImportMAPPrices() unexpected error: %v", err)
	}

	if result.Imported != 1 {
		t.Errorf("Imported = %d, want 1", result.Imported)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %+v, want one duplicate error", result.Errors)
	}
	if result.Errors[0].Row != 3 || !strings.Contains(result.Errors[0].Error, "duplicate upc") {
		t.Errorf("error = %+v, want duplicate on row 3", result.Errors[0])
	}
	if len(mapStore.upserted) != 1 || !mapStore.upserted[0].MAPPrice.Equal(decimal.RequireFromString("24.99")) {
		t.Errorf("store received %+v, want only the first occurrence", mapStore.upserted)
	}
}

func TestImportMAPPricesStoreFailureIsFatal(t *testing.T) {
	reader := createTestExcel(t, mapHeaders(), [][]string{
		{"885909950805", "24.99", "Widget"},
	})
	mapStore := &fakeMAPStore{err: errors.New("connection reset")}
	svc := newTestService(mapStore, newFakeUPCStore())

	_, err := svc.ImportMAPPrices(context.Background(), domain.CategoryDNK, reader)
	if err == nil || !strings.Contains(err.Error(), "upsert MAP prices") {
		t.Errorf("ImportMAPPrices() error = %v, want wrapped store failure", err)
	}
}

func TestImportMAPPricesRejectsUnknownCategory(t *testing.T) {
	reader := createTestExcel(t, mapHeaders(), nil)
	svc := newTestService(&fakeMAPStore{}, newFakeUPCStore())

	_, err := svc.ImportMAPPrices(context.Background(), domain.Category("SHOES"), reader)
	if !errors.Is(err, domain.ErrInvalidCategory) {
		t.Errorf("ImportMAPPrices() error = %v, want ErrInvalidCategory", err)
	}
}

func TestImportUPCsMergesIntoRoster(t *testing.T) {
	reader := createTestExcel(t, []string{"upc"}, [][]string{
		{"885909950805"},
		{"036000291452"},
	})
	upcStore := newFakeUPCStore()
	svc := newTestService(&fakeMAPStore{}, upcStore)

	result, err := svc.ImportUPCs(context.Background(), domain.CategoryCLK, reader, false)
	if err != nil {
		t.Fatalf("ImportUPCs() unexpected error: %v", err)
	}

	if result.Imported != 2 {
		t.Errorf("Imported = %d, want 2", result.Imported)
	}
	if got := upcStore.added[domain.CategoryCLK]; len(got) != 2 {
		t.Errorf("AddMany received %v, want 2 identifiers", got)
	}
	if len(upcStore.replaced) != 0 {
		t.Errorf("ReplaceForCategory called in merge mode: %v", upcStore.replaced)
	}
}

func TestImportUPCsReplaceSwapsRoster(t *testing.T) {
	reader := createTestExcel(t, []string{"upc"}, [][]string{
		{"885909950805"},
	})
	upcStore := newFakeUPCStore()
	svc := newTestService(&fakeMAPStore{}, upcStore)

	result, err := svc.ImportUPCs(context.Background(), domain.CategoryDNK, reader, true)
	if err != nil {
		t.Fatalf("ImportUPCs() unexpected error: %v", err)
	}

	if result.Imported != 1 {
		t.Errorf("Imported = %d, want 1", result.Imported)
	}
	if got := upcStore.replaced[domain.CategoryDNK]; len(got) != 1 || got[0] != "885909950805" {
		t.Errorf("ReplaceForCategory received %v, want [885909950805]", got)
	}
	if len(upcStore.added[domain.CategoryDNK]) != 0 {
		t.Errorf("AddMany called in replace mode: %v", upcStore.added)
	}
}

func TestImportUPCsRefusesEmptyReplace(t *testing.T) {
	reader := createTestExcel(t, []string{"upc"}, [][]string{
		{"not-a-upc"},
	})
	upcStore := newFakeUPCStore()
	svc := newTestService(&fakeMAPStore{}, upcStore)

	_, err := svc.ImportUPCs(context.Background(), domain.CategoryDNK, reader, true)
	if err == nil || !strings.Contains(err.Error(), "refusing to replace") {
		t.Errorf("ImportUPCs() error = %v, want empty-replace refusal", err)
	}
	if !errors.Is(err, domain.ErrNoIdentifiers) {
		t.Errorf("ImportUPCs() error = %v, want ErrNoIdentifiers", err)
	}
	if len(upcStore.replaced) != 0 {
		t.Errorf("roster was replaced despite refusal: %v", upcStore.replaced)
	}
}

func TestImportUPCsDeduplicatesWithinFile(t *testing.T) {
	reader := createTestExcel(t, []string{"upc"}, [][]string{
		{"885909950805"},
		{"885909950805"},
		{"036000291452"},
	})
	upcStore := newFakeUPCStore()
	svc := newTestService(&fakeMAPStore{}, upcStore)

	result, err := svc.ImportUPCs(context.Background(), domain.CategoryCLK, reader, false)
	if err != nil {
		t.Fatalf("ImportUPCs() unexpected error: %v", err)
	}

	if result.Imported != 2 {
		t.Errorf("Imported = %d, want 2 after dedup", result.Imported)
	}
	if len(result.Errors) != 1 || result.Errors[0].Row != 3 {
		t.Errorf("Errors = %+v, want duplicate reported on row 3", result.Errors)
	}
}
