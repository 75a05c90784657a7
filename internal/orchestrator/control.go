package orchestrator

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
)

// Get returns one job by id.
func (o *Orchestrator) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return o.jobs.GetByID(ctx, jobID)
}

// List returns jobs filtered by optional status and category, newest first.
func (o *Orchestrator) List(ctx context.Context, status, category string, limit, offset int) ([]*domain.Job, error) {
	return o.jobs.List(ctx, status, category, limit, offset)
}

// Status assembles the aggregate view of a job: progress, alert count, and
// per-batch states.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*domain.JobStatusSummary, error) {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	states, err := o.batches.StatusCounts(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("count batch states: %w", err)
	}

	summaries, err := o.batches.Summaries(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("summarize batches: %w", err)
	}

	alertCount, err := o.alerts.CountByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}

	return &domain.JobStatusSummary{
		Job:             job,
		ProgressPercent: job.ProgressPercent(),
		AlertCount:      alertCount,
		BatchStates:     states,
		Batches:         summaries,
	}, nil
}

// GetBatch returns one batch by id.
func (o *Orchestrator) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	return o.batches.GetByID(ctx, batchID)
}

// ListBatches returns a job's batches in sequence order.
func (o *Orchestrator) ListBatches(ctx context.Context, jobID string) ([]*domain.Batch, error) {
	if _, err := o.jobs.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	return o.batches.ListByJob(ctx, jobID)
}

// StopBatch requests a cooperative stop. The executor observes the flag
// between identifiers; identifiers already in flight finish and are
// recorded. Terminal batches reject with ErrBatchNotStoppable.
func (o *Orchestrator) StopBatch(ctx context.Context, batchID string) error {
	if err := o.batches.RequestStop(ctx, batchID); err != nil {
		return err
	}

	o.logger.Info("Batch stop requested",
		logger.String("batch_id", batchID),
	)
	return nil
}

// ResendEmail regenerates the CSV from the stored alert set and emails it.
// It never re-runs detection. The job must be terminal.
func (o *Orchestrator) ResendEmail(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return fmt.Errorf("%w: job is %s", domain.ErrReportNotReady, job.Status)
	}

	csvBytes, err := o.reports.Generate(ctx, jobID)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	return o.sendReport(ctx, job, csvBytes)
}

// Delete removes a terminal job and, via cascade, its batches, items, and
// alerts. Active jobs reject with ErrJobActive.
func (o *Orchestrator) Delete(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return fmt.Errorf("%w: job is %s", domain.ErrJobActive, job.Status)
	}

	return o.jobs.Delete(ctx, jobID)
}
