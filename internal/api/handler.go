package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/importer"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/notifier"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/orchestrator"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
	maxImportBytes   = 10 << 20 // 10 MiB upload ceiling
)

// JobService is the orchestrator surface the handlers drive.
type JobService interface {
	Submit(ctx context.Context, req orchestrator.CreateRequest) (*domain.Job, error)
	TriggerCategory(ctx context.Context, category domain.Category, recipients []string, trigger string) (*domain.Job, error)
	Get(ctx context.Context, jobID string) (*domain.Job, error)
	List(ctx context.Context, status, category string, limit, offset int) ([]*domain.Job, error)
	Status(ctx context.Context, jobID string) (*domain.JobStatusSummary, error)
	Delete(ctx context.Context, jobID string) error
	GetBatch(ctx context.Context, batchID string) (*domain.Batch, error)
	ListBatches(ctx context.Context, jobID string) ([]*domain.Batch, error)
	StopBatch(ctx context.Context, batchID string) error
	ResendEmail(ctx context.Context, jobID string) error
}

// ReportGenerator renders the deterministic CSV for a job.
type ReportGenerator interface {
	Generate(ctx context.Context, jobID string) ([]byte, error)
}

// AlertStore reads recorded off-price findings.
type AlertStore interface {
	ListByJob(ctx context.Context, jobID string) ([]*domain.PriceAlert, error)
}

// ItemStore reads per-identifier outcomes.
type ItemStore interface {
	ListByBatch(ctx context.Context, batchID string) ([]*domain.BatchItem, error)
}

// SchedulerService exposes per-category schedule control.
type SchedulerService interface {
	Settings(ctx context.Context) ([]*domain.SchedulerSetting, error)
	UpdateSetting(ctx context.Context, setting *domain.SchedulerSetting) error
	NextRun(ctx context.Context, category domain.Category) (*domain.NextRun, error)
}

// Mailer sends operator-facing email.
type Mailer interface {
	Send(ctx context.Context, msg notifier.Message) error
}

// MAPStore manages per-product price floors.
type MAPStore interface {
	List(ctx context.Context, category domain.Category, search string, limit, offset int) ([]*domain.MAPPrice, error)
	Count(ctx context.Context, category domain.Category, search string) (int, error)
	UpsertMany(ctx context.Context, prices []*domain.MAPPrice) error
	Delete(ctx context.Context, category domain.Category, identifier string) error
}

// UPCStore manages category rosters.
type UPCStore interface {
	List(ctx context.Context, category domain.Category, limit, offset int) ([]*domain.UPCRecord, error)
	Count(ctx context.Context, category domain.Category) (int, error)
	AddMany(ctx context.Context, category domain.Category, identifiers []string) error
	Delete(ctx context.Context, category domain.Category, identifier string) error
}

// ImportService applies uploaded spreadsheets.
type ImportService interface {
	ImportMAPPrices(ctx context.Context, category domain.Category, r io.Reader) (*importer.ImportResult, error)
	ImportUPCs(ctx context.Context, category domain.Category, r io.Reader, replace bool) (*importer.ImportResult, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler carries the service dependencies for every route.
type Handler struct {
	jobs      JobService
	reports   ReportGenerator
	alerts    AlertStore
	items     ItemStore
	scheduler SchedulerService
	mailer    Mailer
	mapPrices MAPStore
	upcs      UPCStore
	importer  ImportService
	db        Pinger
	logger    logger.Logger
}

// Deps bundles the handler dependencies.
type Deps struct {
	Jobs      JobService
	Reports   ReportGenerator
	Alerts    AlertStore
	Items     ItemStore
	Scheduler SchedulerService
	Mailer    Mailer
	MAPPrices MAPStore
	UPCs      UPCStore
	Importer  ImportService
	DB        Pinger
	Logger    logger.Logger
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		jobs:      deps.Jobs,
		reports:   deps.Reports,
		alerts:    deps.Alerts,
		items:     deps.Items,
		scheduler: deps.Scheduler,
		mailer:    deps.Mailer,
		mapPrices: deps.MAPPrices,
		upcs:      deps.UPCs,
		importer:  deps.Importer,
		db:        deps.DB,
		logger:    deps.Logger,
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrBatchNotFound),
		errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateActiveJob),
		errors.Is(err, domain.ErrBatchNotStoppable),
		errors.Is(err, domain.ErrJobActive),
		errors.Is(err, domain.ErrReportNotReady):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidSchedule),
		errors.Is(err, domain.ErrNoIdentifiers),
		errors.Is(err, domain.ErrTooManyIdentifiers):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotificationFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error with its mapped status. Client errors keep
// the domain message; server errors get a generic body and an error log.
func (h *Handler) respondError(c *gin.Context, err error, action string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Failed to "+action, logger.Error(err))
		c.JSON(status, gin.H{"error": "failed to " + action})
		return
	}

	h.logger.Debug("Request rejected",
		logger.String("action", action),
		logger.Int("status", status),
		logger.Error(err),
	)
	c.JSON(status, gin.H{"error": err.Error()})
}

// categoryQuery parses the required category query parameter.
func categoryQuery(c *gin.Context) (domain.Category, bool) {
	raw := c.Query("category")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category query parameter is required"})
		return "", false
	}
	category, err := domain.ParseCategory(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return category, true
}

// pagination parses limit/offset query parameters with sane bounds.
func pagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = min(v, maxPageLimit)
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	}
	return limit, offset
}
