package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/api"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/importer"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/notifier"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/orchestrator"
)

type fakeJobs struct {
	submitFunc      func(req orchestrator.CreateRequest) (*domain.Job, error)
	triggerFunc     func(category domain.Category, recipients []string, trigger string) (*domain.Job, error)
	getFunc         func(jobID string) (*domain.Job, error)
	listFunc        func(status, category string, limit, offset int) ([]*domain.Job, error)
	statusFunc      func(jobID string) (*domain.JobStatusSummary, error)
	deleteFunc      func(jobID string) error
	getBatchFunc    func(batchID string) (*domain.Batch, error)
	listBatchesFunc func(jobID string) ([]*domain.Batch, error)
	stopBatchFunc   func(batchID string) error
	resendFunc      func(jobID string) error
}

func (f *fakeJobs) Submit(_ context.Context, req orchestrator.CreateRequest) (*domain.Job, error) {
	if f.submitFunc != nil {
		return f.submitFunc(req)
	}
	return testJob(domain.JobStatusPending), nil
}

func (f *fakeJobs) TriggerCategory(_ context.Context, category domain.Category, recipients []string, trigger string) (*domain.Job, error) {
	if f.triggerFunc != nil {
		return f.triggerFunc(category, recipients, trigger)
	}
	return testJob(domain.JobStatusPending), nil
}

func (f *fakeJobs) Get(_ context.Context, jobID string) (*domain.Job, error) {
	if f.getFunc != nil {
		return f.getFunc(jobID)
	}
	return nil, domain.ErrJobNotFound
}

func (f *fakeJobs) List(_ context.Context, status, category string, limit, offset int) ([]*domain.Job, error) {
	if f.listFunc != nil {
		return f.listFunc(status, category, limit, offset)
	}
	return []*domain.Job{}, nil
}

func (f *fakeJobs) Status(_ context.Context, jobID string) (*domain.JobStatusSummary, error) {
	if f.statusFunc != nil {
		return f.statusFunc(jobID)
	}
	return nil, domain.ErrJobNotFound
}

func (f *fakeJobs) Delete(_ context.Context, jobID string) error {
	if f.deleteFunc != nil {
		return f.deleteFunc(jobID)
	}
	return nil
}

func (f *fakeJobs) GetBatch(_ context.Context, batchID string) (*domain.Batch, error) {
	if f.getBatchFunc != nil {
		return f.getBatchFunc(batchID)
	}
	return nil, domain.ErrBatchNotFound
}

func (f *fakeJobs) ListBatches(_ context.Context, jobID string) ([]*domain.Batch, error) {
	if f.listBatchesFunc != nil {
		return f.listBatchesFunc(jobID)
	}
	return []*domain.Batch{}, nil
}

func (f *fakeJobs) StopBatch(_ context.Context, batchID string) error {
	if f.stopBatchFunc != nil {
		return f.stopBatchFunc(batchID)
	}
	return nil
}

func (f *fakeJobs) ResendEmail(_ context.Context, jobID string) error {
	if f.resendFunc != nil {
		return f.resendFunc(jobID)
	}
	return nil
}

type fakeReports struct {
	generateFunc func(jobID string) ([]byte, error)
}

func (f *fakeReports) Generate(_ context.Context, jobID string) ([]byte, error) {
	if f.generateFunc != nil {
		return f.generateFunc(jobID)
	}
	return []byte{}, nil
}

type fakeAlerts struct {
	listFunc func(jobID string) ([]*domain.PriceAlert, error)
}

func (f *fakeAlerts) ListByJob(_ context.Context, jobID string) ([]*domain.PriceAlert, error) {
	if f.listFunc != nil {
		return f.listFunc(jobID)
	}
	return []*domain.PriceAlert{}, nil
}

type fakeItems struct {
	listFunc func(batchID string) ([]*domain.BatchItem, error)
}

func (f *fakeItems) ListByBatch(_ context.Context, batchID string) ([]*domain.BatchItem, error) {
	if f.listFunc != nil {
		return f.listFunc(batchID)
	}
	return []*domain.BatchItem{}, nil
}

type fakeScheduler struct {
	settingsFunc func() ([]*domain.SchedulerSetting, error)
	updateFunc   func(setting *domain.SchedulerSetting) error
	nextRunFunc  func(category domain.Category) (*domain.NextRun, error)
}

func (f *fakeScheduler) Settings(_ context.Context) ([]*domain.SchedulerSetting, error) {
	if f.settingsFunc != nil {
		return f.settingsFunc()
	}
	return []*domain.SchedulerSetting{}, nil
}

func (f *fakeScheduler) UpdateSetting(_ context.Context, setting *domain.SchedulerSetting) error {
	if f.updateFunc != nil {
		return f.updateFunc(setting)
	}
	return nil
}

func (f *fakeScheduler) NextRun(_ context.Context, category domain.Category) (*domain.NextRun, error) {
	if f.nextRunFunc != nil {
		return f.nextRunFunc(category)
	}
	return &domain.NextRun{Category: category}, nil
}

type fakeMailer struct {
	sendFunc func(msg notifier.Message) error
	sent     []notifier.Message
}

func (f *fakeMailer) Send(_ context.Context, msg notifier.Message) error {
	if f.sendFunc != nil {
		return f.sendFunc(msg)
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeMAPStore struct {
	listFunc   func(category domain.Category, search string, limit, offset int) ([]*domain.MAPPrice, error)
	countFunc  func(category domain.Category, search string) (int, error)
	upsertFunc func(prices []*domain.MAPPrice) error
	deleteFunc func(category domain.Category, identifier string) error
}

func (f *fakeMAPStore) List(_ context.Context, category domain.Category, search string, limit, offset int) ([]*domain.MAPPrice, error) {
	if f.listFunc != nil {
		return f.listFunc(category, search, limit, offset)
	}
	return []*domain.MAPPrice{}, nil
}

func (f *fakeMAPStore) Count(_ context.Context, category domain.Category, search string) (int, error) {
	if f.countFunc != nil {
		return f.countFunc(category, search)
	}
	return 0, nil
}

func (f *fakeMAPStore) UpsertMany(_ context.Context, prices []*domain.MAPPrice) error {
	if f.upsertFunc != nil {
		return f.upsertFunc(prices)
	}
	return nil
}

func (f *fakeMAPStore) Delete(_ context.Context, category domain.Category, identifier string) error {
	if f.deleteFunc != nil {
		return f.deleteFunc(category, identifier)
	}
	return nil
}

type fakeUPCStore struct {
	listFunc   func(category domain.Category, limit, offset int) ([]*domain.UPCRecord, error)
	countFunc  func(category domain.Category) (int, error)
	addFunc    func(category domain.Category, identifiers []string) error
	deleteFunc func(category domain.Category, identifier string) error
}

func (f *fakeUPCStore) List(_ context.Context, category domain.Category, limit, offset int) ([]*domain.UPCRecord, error) {
	if f.listFunc != nil {
		return f.listFunc(category, limit, offset)
	}
	return []*domain.UPCRecord{}, nil
}

func (f *fakeUPCStore) Count(_ context.Context, category domain.Category) (int, error) {
	if f.countFunc != nil {
		return f.countFunc(category)
	}
	return 0, nil
}

func (f *fakeUPCStore) AddMany(_ context.Context, category domain.Category, identifiers []string) error {
	if f.addFunc != nil {
		return f.addFunc(category, identifiers)
	}
	return nil
}

func (f *fakeUPCStore) Delete(_ context.Context, category domain.Category, identifier string) error {
	if f.deleteFunc != nil {
		return f.deleteFunc(category, identifier)
	}
	return nil
}

type fakeImporter struct {
	importMAPFunc func(category domain.Category, r io.Reader) (*importer.ImportResult, error)
	importUPCFunc func(category domain.Category, r io.Reader, replace bool) (*importer.ImportResult, error)
}

func (f *fakeImporter) ImportMAPPrices(_ context.Context, category domain.Category, r io.Reader) (*importer.ImportResult, error) {
	if f.importMAPFunc != nil {
		return f.importMAPFunc(category, r)
	}
	return &importer.ImportResult{}, nil
}

func (f *fakeImporter) ImportUPCs(_ context.Context, category domain.Category, r io.Reader, replace bool) (*importer.ImportResult, error) {
	if f.importUPCFunc != nil {
		return f.importUPCFunc(category, r, replace)
	}
	return &importer.ImportResult{}, nil
}

type fakePinger struct {
	pingFunc func() error
}

func (f *fakePinger) PingContext(_ context.Context) error {
	if f.pingFunc != nil {
		return f.pingFunc()
	}
	return nil
}

// testDeps bundles one fake per handler dependency. Tests override the
// func fields they care about and leave the rest on defaults.
type testDeps struct {
	jobs      *fakeJobs
	reports   *fakeReports
	alerts    *fakeAlerts
	items     *fakeItems
	scheduler *fakeScheduler
	mailer    *fakeMailer
	mapStore  *fakeMAPStore
	upcStore  *fakeUPCStore
	importer  *fakeImporter
	pinger    *fakePinger
}

func newTestDeps() *testDeps {
	return &testDeps{
		jobs:      &fakeJobs{},
		reports:   &fakeReports{},
		alerts:    &fakeAlerts{},
		items:     &fakeItems{},
		scheduler: &fakeScheduler{},
		mailer:    &fakeMailer{},
		mapStore:  &fakeMAPStore{},
		upcStore:  &fakeUPCStore{},
		importer:  &fakeImporter{},
		pinger:    &fakePinger{},
	}
}

func (d *testDeps) router(t *testing.T, jwtSecret string) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)

	handler := api.NewHandler(api.Deps{
		Jobs:      d.jobs,
		Reports:   d.reports,
		Alerts:    d.alerts,
		Items:     d.items,
		Scheduler: d.scheduler,
		Mailer:    d.mailer,
		MAPPrices: d.mapStore,
		UPCs:      d.upcStore,
		Importer:  d.importer,
		DB:        d.pinger,
		Logger:    logger.NewNop(),
	})

	router := gin.New()
	metricsHandler := promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	handler.Routes(router, jwtSecret, metricsHandler)
	return router
}

func testJob(status domain.JobStatus) *domain.Job {
	return &domain.Job{
		ID:              "1f0a8d9e-7c64-4b12-9d3a-5e8b2f6c4a01",
		Category:        domain.CategoryDNK,
		IdentifierCount: 250,
		BatchSize:       119,
		TotalBatches:    3,
		Status:          status,
		Recipients:      pq.StringArray{"ops@example.com"},
		ReportStatus:    domain.ReportStatusNone,
		CreatedAt:       time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC),
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
	}
	return doRaw(t, router, method, path, "application/json", payload)
}

func doRaw(t *testing.T, router *gin.Engine, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newRecorderFor(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
	return body
}

// multipartBody builds a multipart form with string fields plus an optional
// file part, returning the encoded body and its content type.
func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, content []byte) ([]byte, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("write form field %s: %v", key, err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write file content: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return buf.Bytes(), mw.FormDataContentType()
}
