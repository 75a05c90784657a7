// Package orchestrator owns the job lifecycle: creation, partitioning,
// bounded batch execution, aggregation, and exactly-once report
// finalization.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/config"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/events"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/metrics"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/notifier"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/report"
)

// Trigger labels recorded on job creation.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// finalWriteTimeout bounds terminal persistence once the run context is gone.
const finalWriteTimeout = 5 * time.Second

// JobStore is the orchestrator's view of job persistence.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, status, category string, limit, offset int) ([]*domain.Job, error)
	MarkProcessing(ctx context.Context, id string) error
	IncrementCompletedBatches(ctx context.Context, id string) error
	Finalize(ctx context.Context, id string, status domain.JobStatus, errorMessage *string) error
	ClaimReportToken(ctx context.Context, id, token string) (bool, error)
	SetReportStatus(ctx context.Context, id string, status domain.ReportStatus) error
	Delete(ctx context.Context, id string) error
}

// BatchStore is the orchestrator's view of batch persistence.
type BatchStore interface {
	CreateMany(ctx context.Context, batches []*domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	ListByJob(ctx context.Context, jobID string) ([]*domain.Batch, error)
	RequestStop(ctx context.Context, id string) error
	StatusCounts(ctx context.Context, jobID string) (map[string]int, error)
	Summaries(ctx context.Context, jobID string) ([]domain.BatchSummary, error)
}

// AlertStore exposes alert aggregates for status and report payloads.
type AlertStore interface {
	CountByJob(ctx context.Context, jobID string) (int, error)
}

// RosterStore supplies the stored UPC roster for category-wide runs.
type RosterStore interface {
	ListIdentifiers(ctx context.Context, category domain.Category) ([]string, error)
}

// BatchRunner executes one batch to a terminal state.
type BatchRunner interface {
	Execute(ctx context.Context, job *domain.Job, batch *domain.Batch) (domain.BatchStatus, error)
}

// ReportGenerator renders a job's alert set as CSV bytes.
type ReportGenerator interface {
	Generate(ctx context.Context, jobID string) ([]byte, error)
}

// Notifier delivers the report email.
type Notifier interface {
	Send(ctx context.Context, msg notifier.Message) error
}

// Deps bundles the collaborators the orchestrator coordinates.
type Deps struct {
	Jobs      JobStore
	Batches   BatchStore
	Alerts    AlertStore
	Roster    RosterStore
	Runner    BatchRunner
	Reports   ReportGenerator
	Notifier  Notifier
	Publisher *events.Publisher
	Logger    logger.Logger
	Metrics   *metrics.Metrics
}

// Orchestrator runs detection jobs: it partitions identifiers into batches,
// executes them with bounded concurrency, aggregates the terminal state,
// and finalizes the report exactly once.
type Orchestrator struct {
	cfg       config.JobsConfig
	jobs      JobStore
	batches   BatchStore
	alerts    AlertStore
	roster    RosterStore
	runner    BatchRunner
	reports   ReportGenerator
	notifier  Notifier
	publisher *events.Publisher
	logger    logger.Logger
	metrics   *metrics.Metrics

	runCtx     context.Context
	cancelRuns context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a job orchestrator.
func New(cfg config.JobsConfig, deps Deps) *Orchestrator {
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 1
	}

	runCtx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		cfg:        cfg,
		jobs:       deps.Jobs,
		batches:    deps.Batches,
		alerts:     deps.Alerts,
		roster:     deps.Roster,
		runner:     deps.Runner,
		reports:    deps.Reports,
		notifier:   deps.Notifier,
		publisher:  deps.Publisher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		runCtx:     runCtx,
		cancelRuns: cancel,
	}
}

// Shutdown cancels running jobs and waits for them to wind down.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancelRuns()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("orchestrator shutdown: %w", ctx.Err())
	}
}

// CreateRequest describes a job to create.
type CreateRequest struct {
	Category    domain.Category
	Identifiers []string
	Recipients  []string
	Description string
	Trigger     string
}

// Create validates the request, partitions its identifiers, and persists the
// job with its batches. The job is left pending; Start launches execution.
// A category with an active job rejects with ErrDuplicateActiveJob.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (*domain.Job, error) {
	if !req.Category.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, string(req.Category))
	}

	identifiers := normalizeList(req.Identifiers)
	if len(identifiers) == 0 {
		return nil, domain.ErrNoIdentifiers
	}
	if len(identifiers) > o.cfg.MaxIdentifiers {
		return nil, fmt.Errorf("%w: %d identifiers, maximum is %d",
			domain.ErrTooManyIdentifiers, len(identifiers), o.cfg.MaxIdentifiers)
	}

	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerManual
	}

	parts := Partition(identifiers, o.cfg.BatchSize)

	job := &domain.Job{
		ID:              uuid.New().String(),
		Category:        req.Category,
		IdentifierCount: len(identifiers),
		BatchSize:       o.cfg.BatchSize,
		TotalBatches:    len(parts),
		Status:          domain.JobStatusPending,
		Recipients:      normalizeList(req.Recipients),
		ReportStatus:    domain.ReportStatusNone,
	}
	if req.Description != "" {
		desc := req.Description
		job.Description = &desc
	}

	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	batches := make([]*domain.Batch, 0, len(parts))
	for i, part := range parts {
		batches = append(batches, &domain.Batch{
			ID:            uuid.New().String(),
			JobID:         job.ID,
			SequenceIndex: i,
			Identifiers:   part,
			Status:        domain.BatchStatusPending,
		})
	}

	if err := o.batches.CreateMany(ctx, batches); err != nil {
		msg := "failed to persist batches"
		if ferr := o.jobs.Finalize(ctx, job.ID, domain.JobStatusFailed, &msg); ferr != nil {
			o.logger.Error("Failed to mark job failed after batch persistence error",
				logger.String("job_id", job.ID),
				logger.Error(ferr),
			)
		}
		return nil, fmt.Errorf("create batches: %w", err)
	}

	o.metrics.RecordJobCreated(string(job.Category), trigger)
	o.publisher.PublishAsync(events.NewJobEvent(events.JobCreated, job, nil))
	o.logger.Info("Job created",
		logger.String("job_id", job.ID),
		logger.String("category", string(job.Category)),
		logger.String("trigger", trigger),
		logger.Int("identifiers", len(identifiers)),
		logger.Int("batches", len(parts)),
	)

	return job, nil
}

// Start launches the job's batch execution in the background. Execution
// continues across request boundaries and is cancelled by Shutdown.
func (o *Orchestrator) Start(job *domain.Job) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(o.runCtx, job)
	}()
}

// Submit creates a job and starts it. This is the manual-trigger entry
// point.
func (o *Orchestrator) Submit(ctx context.Context, req CreateRequest) (*domain.Job, error) {
	job, err := o.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	o.Start(job)
	return job, nil
}

// TriggerCategory snapshots the category's stored UPC roster and submits a
// job covering all of it.
func (o *Orchestrator) TriggerCategory(ctx context.Context, category domain.Category, recipients []string, trigger string) (*domain.Job, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, string(category))
	}

	identifiers, err := o.roster.ListIdentifiers(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load %s roster: %w", category, err)
	}

	if trigger == "" {
		trigger = TriggerManual
	}

	return o.Submit(ctx, CreateRequest{
		Category:    category,
		Identifiers: identifiers,
		Recipients:  recipients,
		Description: fmt.Sprintf("%s run for the full %s roster", trigger, category),
		Trigger:     trigger,
	})
}

// run executes every batch of the job and finalizes it. Batch failures are
// absorbed: a failed batch never cancels its siblings, and the job fails
// only when every batch failed.
func (o *Orchestrator) run(ctx context.Context, job *domain.Job) {
	started := time.Now()

	if err := o.jobs.MarkProcessing(ctx, job.ID); err != nil {
		o.logger.Error("Failed to mark job processing",
			logger.String("job_id", job.ID),
			logger.Error(err),
		)
		return
	}
	o.metrics.RecordJobStarted()

	batches, err := o.batches.ListByJob(ctx, job.ID)
	if err != nil {
		o.finalizeFailed(ctx, job, started, fmt.Errorf("load batches: %w", err))
		return
	}

	var mu sync.Mutex
	statusCounts := make(map[domain.BatchStatus]int)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.BatchConcurrency)

	for i := range batches {
		batch := batches[i]
		if batch.Status.Terminal() {
			mu.Lock()
			statusCounts[batch.Status]++
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			status, execErr := o.runner.Execute(gctx, job, batch)
			if execErr != nil {
				o.logger.Error("Batch execution failed",
					logger.String("job_id", job.ID),
					logger.String("batch_id", batch.ID),
					logger.Error(execErr),
				)
			}

			writeCtx, cancel := finalWriteContext(gctx)
			if incErr := o.jobs.IncrementCompletedBatches(writeCtx, job.ID); incErr != nil {
				o.logger.Error("Failed to record batch progress",
					logger.String("job_id", job.ID),
					logger.Error(incErr),
				)
			}
			cancel()

			mu.Lock()
			statusCounts[status]++
			mu.Unlock()

			if status == domain.BatchStatusStopped {
				o.publisher.PublishAsync(events.NewJobEvent(events.BatchStopped, job, events.BatchStoppedPayload{
					BatchID:       batch.ID,
					SequenceIndex: batch.SequenceIndex,
				}))
			}

			return nil
		})
	}

	_ = g.Wait() // workers absorb their own failures

	writeCtx, cancel := finalWriteContext(ctx)
	defer cancel()

	status := domain.JobStatusCompleted
	var errorMessage *string
	if len(batches) > 0 && statusCounts[domain.BatchStatusFailed] == len(batches) {
		status = domain.JobStatusFailed
		msg := "all batches failed"
		errorMessage = &msg
	}

	if err := o.jobs.Finalize(writeCtx, job.ID, status, errorMessage); err != nil {
		o.logger.Error("Failed to finalize job",
			logger.String("job_id", job.ID),
			logger.Error(err),
		)
		return
	}

	o.metrics.RecordJobFinished(string(job.Category), string(status), time.Since(started))
	alertCount, countErr := o.alerts.CountByJob(writeCtx, job.ID)
	if countErr != nil {
		o.logger.Warn("Failed to count alerts for finished job",
			logger.String("job_id", job.ID),
			logger.Error(countErr),
		)
	}

	o.logger.Info("Job finished",
		logger.String("job_id", job.ID),
		logger.String("category", string(job.Category)),
		logger.String("status", string(status)),
		logger.Int("alerts", alertCount),
		logger.Duration("duration", time.Since(started)),
	)

	payload := events.JobFinishedPayload{
		Status:     string(status),
		AlertCount: alertCount,
		Batches:    len(batches),
	}

	if status == domain.JobStatusFailed {
		o.publisher.PublishAsync(events.NewJobEvent(events.JobFailed, job, payload))
		return
	}

	o.finalizeReport(writeCtx, job, statusCounts[domain.BatchStatusStopped])
	o.publisher.PublishAsync(events.NewJobEvent(events.JobCompleted, job, payload))
}

func (o *Orchestrator) finalizeFailed(ctx context.Context, job *domain.Job, started time.Time, cause error) {
	o.logger.Error("Job failed before batch execution",
		logger.String("job_id", job.ID),
		logger.Error(cause),
	)

	writeCtx, cancel := finalWriteContext(ctx)
	defer cancel()

	msg := cause.Error()
	if err := o.jobs.Finalize(writeCtx, job.ID, domain.JobStatusFailed, &msg); err != nil {
		o.logger.Error("Failed to finalize job",
			logger.String("job_id", job.ID),
			logger.Error(err),
		)
		return
	}

	o.metrics.RecordJobFinished(string(job.Category), string(domain.JobStatusFailed), time.Since(started))
	o.publisher.PublishAsync(events.NewJobEvent(events.JobFailed, job, events.JobFinishedPayload{
		Status: string(domain.JobStatusFailed),
	}))
}

// finalizeReport generates and emails the report at most once per job. The
// claimant is decided by a conditional token write; losing the claim means
// another finalizer already ran.
func (o *Orchestrator) finalizeReport(ctx context.Context, job *domain.Job, stoppedBatches int) {
	won, err := o.jobs.ClaimReportToken(ctx, job.ID, uuid.New().String())
	if err != nil {
		o.logger.Error("Failed to claim report token",
			logger.String("job_id", job.ID),
			logger.Error(err),
		)
		return
	}
	if !won {
		o.logger.Debug("Report already finalized",
			logger.String("job_id", job.ID),
		)
		return
	}

	csvBytes, err := o.reports.Generate(ctx, job.ID)
	if err != nil {
		o.logger.Error("Failed to generate report",
			logger.String("job_id", job.ID),
			logger.Error(err),
		)
		return
	}

	if err := o.jobs.SetReportStatus(ctx, job.ID, domain.ReportStatusGenerated); err != nil {
		o.logger.Error("Failed to record report generation",
			logger.String("job_id", job.ID),
			logger.Error(err),
		)
	}

	if stoppedBatches > 0 && !o.cfg.EmailOnPartial {
		o.logger.Info("Report email suppressed for partial job",
			logger.String("job_id", job.ID),
			logger.Int("stopped_batches", stoppedBatches),
		)
		return
	}

	if err := o.sendReport(ctx, job, csvBytes); err != nil {
		o.logger.Error("Report email failed",
			logger.String("job_id", job.ID),
			logger.Error(err),
		)
	}
}

// sendReport emails the CSV and records the delivery outcome. Delivery
// failure leaves the job completed with report_status email_failed.
func (o *Orchestrator) sendReport(ctx context.Context, job *domain.Job, csvBytes []byte) error {
	alertCount, err := o.alerts.CountByJob(ctx, job.ID)
	if err != nil {
		o.logger.Warn("Failed to count alerts for report body",
			logger.String("job_id", job.ID),
			logger.Error(err),
		)
	}

	filename := report.Filename(job)
	msg := notifier.Message{
		To:             job.Recipients,
		Subject:        fmt.Sprintf("Off-price report for %s (%s)", job.Category, job.CreatedAt.UTC().Format("2006-01-02")),
		Body:           reportBody(job, alertCount),
		AttachmentName: filename,
		Attachment:     csvBytes,
	}

	if sendErr := o.notifier.Send(ctx, msg); sendErr != nil {
		if stateErr := o.jobs.SetReportStatus(ctx, job.ID, domain.ReportStatusEmailFailed); stateErr != nil {
			o.logger.Error("Failed to record email failure",
				logger.String("job_id", job.ID),
				logger.Error(stateErr),
			)
		}
		return sendErr
	}

	if err := o.jobs.SetReportStatus(ctx, job.ID, domain.ReportStatusEmailed); err != nil {
		o.logger.Error("Failed to record email delivery",
			logger.String("job_id", job.ID),
			logger.Error(err),
		)
	}

	o.publisher.PublishAsync(events.NewJobEvent(events.ReportEmailed, job, events.ReportEmailedPayload{
		Recipients: job.Recipients,
		Filename:   filename,
	}))

	return nil
}

func reportBody(job *domain.Job, alertCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Attached is the off-price report for category %s.\r\n\r\n", job.Category)
	fmt.Fprintf(&b, "Job: %s\r\n", job.ID)
	fmt.Fprintf(&b, "Identifiers checked: %d\r\n", job.IdentifierCount)
	fmt.Fprintf(&b, "Off-price findings: %d\r\n", alertCount)
	return b.String()
}

// Partition splits identifiers into consecutive slices of at most size,
// preserving order. The result has ceil(len/size) slices; only the last may
// be short.
func Partition(identifiers []string, size int) [][]string {
	if len(identifiers) == 0 {
		return nil
	}
	if size <= 0 {
		size = 1
	}

	parts := make([][]string, 0, (len(identifiers)+size-1)/size)
	for start := 0; start < len(identifiers); start += size {
		end := min(start+size, len(identifiers))
		parts = append(parts, identifiers[start:end])
	}
	return parts
}

// normalizeList trims whitespace and drops blank entries, preserving order.
func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// finalWriteContext returns ctx while it is alive, or a short detached
// context so terminal writes can land during shutdown.
func finalWriteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.Background(), finalWriteTimeout)
}
