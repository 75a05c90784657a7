// Package executor runs one batch of identifiers to a terminal state.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/detector"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/metrics"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/pricing"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/retry"
)

// terminalWriteTimeout bounds final persistence once the batch context is gone.
const terminalWriteTimeout = 5 * time.Second

// PricingClient fetches seller listings for one identifier.
type PricingClient interface {
	Fetch(ctx context.Context, identifier string) ([]domain.Listing, error)
}

// BatchStore is the executor's view of batch persistence. The executor is the
// only writer of batch status; the stop flag is written elsewhere and only
// read here.
type BatchStore interface {
	MarkProcessing(ctx context.Context, id string) error
	MarkTerminal(ctx context.Context, id string, status domain.BatchStatus, errorMessage *string) error
	StopRequested(ctx context.Context, id string) (bool, error)
}

// ItemStore persists one identifier outcome and its alerts atomically.
type ItemStore interface {
	RecordOutcome(ctx context.Context, item *domain.BatchItem, alerts []*domain.PriceAlert) error
}

// FloorSource supplies MAP floors for a batch of identifiers.
type FloorSource interface {
	FloorsForIdentifiers(ctx context.Context, category domain.Category, identifiers []string) (map[string]decimal.Decimal, error)
}

// Executor processes batches: fetch listings per identifier, run the
// off-price detector, and persist each outcome transactionally.
type Executor struct {
	pricing         PricingClient
	batches         BatchStore
	items           ItemStore
	floors          FloorSource
	retryCfg        retry.Config
	itemConcurrency int
	logger          logger.Logger
	metrics         *metrics.Metrics
}

// New creates a batch executor. The retry configuration's IsRetryable is
// forced to the provider's transient classification.
func New(
	pricingClient PricingClient,
	batches BatchStore,
	items ItemStore,
	floors FloorSource,
	retryCfg retry.Config,
	itemConcurrency int,
	log logger.Logger,
	m *metrics.Metrics,
) *Executor {
	retryCfg.IsRetryable = func(err error) bool {
		return errors.Is(err, pricing.ErrTransient)
	}
	if itemConcurrency <= 0 {
		itemConcurrency = 1
	}

	return &Executor{
		pricing:         pricingClient,
		batches:         batches,
		items:           items,
		floors:          floors,
		retryCfg:        retryCfg,
		itemConcurrency: itemConcurrency,
		logger:          log,
		metrics:         m,
	}
}

// tally accumulates per-batch outcome counts across item workers.
type tally struct {
	mu         sync.Mutex
	processed  int
	permanent  int
	alertTotal int
}

func (t *tally) record(outcome domain.ItemOutcome, alerts int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed++
	if outcome == domain.OutcomePermanentError {
		t.permanent++
	}
	t.alertTotal += alerts
}

// Execute runs one batch to a terminal state and returns that state.
//
// The stop flag is polled between identifier dispatches; identifiers already
// dispatched when a stop is observed still finish and are recorded, the rest
// are never touched. A store failure aborts the batch as failed. Provider
// failures never abort the batch; they become recorded item outcomes.
func (e *Executor) Execute(ctx context.Context, job *domain.Job, batch *domain.Batch) (domain.BatchStatus, error) {
	if err := e.batches.MarkProcessing(ctx, batch.ID); err != nil {
		return domain.BatchStatusFailed, fmt.Errorf("mark batch processing: %w", err)
	}

	e.logger.Info("Batch started",
		logger.String("job_id", job.ID),
		logger.String("batch_id", batch.ID),
		logger.Int("sequence_index", batch.SequenceIndex),
		logger.Int("identifiers", len(batch.Identifiers)),
	)

	floors, err := e.floors.FloorsForIdentifiers(ctx, job.Category, batch.Identifiers)
	if err != nil {
		return e.finishFailed(ctx, batch, fmt.Errorf("load MAP floors: %w", err))
	}

	status, execErr := e.runItems(ctx, job, batch, floors)
	return status, execErr
}

func (e *Executor) runItems(ctx context.Context, job *domain.Job, batch *domain.Batch, floors map[string]decimal.Decimal) (domain.BatchStatus, error) {
	counts := &tally{}
	stopped := false

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.itemConcurrency)

	var dispatchErr error
	for _, identifier := range batch.Identifiers {
		// A store failure in any worker cancels the group; stop dispatching.
		if gctx.Err() != nil {
			break
		}

		stop, stopErr := e.batches.StopRequested(ctx, batch.ID)
		if stopErr != nil {
			dispatchErr = fmt.Errorf("poll stop flag: %w", stopErr)
			break
		}
		if stop {
			stopped = true
			break
		}

		g.Go(func() error {
			return e.processItem(gctx, job, batch, identifier, floors, counts)
		})
	}

	waitErr := g.Wait()

	switch {
	case dispatchErr != nil:
		return e.finishFailed(ctx, batch, dispatchErr)
	case waitErr != nil:
		return e.finishFailed(ctx, batch, waitErr)
	case stopped:
		return e.finishTerminal(ctx, job, batch, domain.BatchStatusStopped, nil, counts)
	case ctx.Err() != nil && counts.processed < len(batch.Identifiers):
		// Cancelled before the traversal finished, without a stop request.
		msg := "interrupted before all identifiers were processed"
		return e.finishTerminal(ctx, job, batch, domain.BatchStatusFailed, &msg, counts)
	case counts.processed > 0 && counts.permanent == counts.processed && counts.processed == len(batch.Identifiers):
		msg := "all identifiers failed permanently"
		return e.finishTerminal(ctx, job, batch, domain.BatchStatusFailed, &msg, counts)
	default:
		return e.finishTerminal(ctx, job, batch, domain.BatchStatusCompleted, nil, counts)
	}
}

func (e *Executor) processItem(
	ctx context.Context,
	job *domain.Job,
	batch *domain.Batch,
	identifier string,
	floors map[string]decimal.Decimal,
	counts *tally,
) error {
	item, alerts := e.evaluate(ctx, job, batch, identifier, floors)

	writeCtx, cancel := terminalWriteContext(ctx)
	defer cancel()

	if err := e.items.RecordOutcome(writeCtx, item, alerts); err != nil {
		e.logger.Error("Failed to record item outcome",
			logger.String("batch_id", batch.ID),
			logger.String("identifier", identifier),
			logger.Error(err),
		)
		return fmt.Errorf("%w: record outcome for %s: %v", domain.ErrStoreUnavailable, identifier, err)
	}

	counts.record(item.Outcome, len(alerts))
	e.metrics.RecordItemProcessed(string(item.Outcome))
	e.metrics.RecordAlerts(string(job.Category), len(alerts))

	return nil
}

// evaluate fetches listings with retries and classifies the outcome. It never
// returns an error: every path yields a recordable item.
func (e *Executor) evaluate(
	ctx context.Context,
	job *domain.Job,
	batch *domain.Batch,
	identifier string,
	floors map[string]decimal.Decimal,
) (*domain.BatchItem, []*domain.PriceAlert) {
	item := &domain.BatchItem{
		BatchID:    batch.ID,
		Identifier: identifier,
	}

	if !validIdentifier(identifier) {
		item.Outcome = domain.OutcomeSkipped
		msg := "identifier is not a numeric UPC"
		item.ErrorMessage = &msg
		return item, nil
	}

	var attempts int
	var listings []domain.Listing
	err := retry.Retry(ctx, e.retryCfg, func() error {
		attempts++
		var fetchErr error
		listings, fetchErr = e.pricing.Fetch(ctx, identifier)
		return fetchErr
	})
	item.AttemptCount = attempts

	if err != nil {
		item.Outcome, item.ErrorMessage = classifyFailure(err)
		return item, nil
	}

	floor, hasFloor := floors[identifier]
	item.Outcome = domain.OutcomeSuccess
	item.MAPFound = hasFloor
	item.Snapshot = listingSnapshot(listings)

	if !hasFloor {
		// No MAP on file: recorded, never alerted.
		return item, nil
	}

	findings := detector.FindBelowFloor(listings, floor)
	item.AlertCount = len(findings)

	detectedAt := time.Now().UTC()
	alerts := make([]*domain.PriceAlert, 0, len(findings))
	for _, f := range findings {
		alerts = append(alerts, &domain.PriceAlert{
			JobID:         job.ID,
			BatchID:       batch.ID,
			Identifier:    identifier,
			SellerName:    f.SellerName,
			ObservedPrice: f.ObservedPrice,
			MAPPrice:      f.MAPPrice,
			Delta:         f.Delta,
			DetectedAt:    detectedAt,
		})
	}

	return item, alerts
}

func (e *Executor) finishTerminal(
	ctx context.Context,
	job *domain.Job,
	batch *domain.Batch,
	status domain.BatchStatus,
	errorMessage *string,
	counts *tally,
) (domain.BatchStatus, error) {
	writeCtx, cancel := terminalWriteContext(ctx)
	defer cancel()

	if err := e.batches.MarkTerminal(writeCtx, batch.ID, status, errorMessage); err != nil {
		return domain.BatchStatusFailed, fmt.Errorf("mark batch %s: %w", status, err)
	}

	e.metrics.RecordBatchFinished(string(status))
	e.logger.Info("Batch finished",
		logger.String("job_id", job.ID),
		logger.String("batch_id", batch.ID),
		logger.String("status", string(status)),
		logger.Int("processed", counts.processed),
		logger.Int("alerts", counts.alertTotal),
	)

	return status, nil
}

func (e *Executor) finishFailed(ctx context.Context, batch *domain.Batch, cause error) (domain.BatchStatus, error) {
	writeCtx, cancel := terminalWriteContext(ctx)
	defer cancel()

	msg := cause.Error()
	if err := e.batches.MarkTerminal(writeCtx, batch.ID, domain.BatchStatusFailed, &msg); err != nil {
		e.logger.Error("Failed to mark batch failed",
			logger.String("batch_id", batch.ID),
			logger.Error(err),
		)
	}

	e.metrics.RecordBatchFinished(string(domain.BatchStatusFailed))
	e.logger.Error("Batch failed",
		logger.String("batch_id", batch.ID),
		logger.Error(cause),
	)

	return domain.BatchStatusFailed, cause
}

// classifyFailure maps a fetch error to an item outcome.
//
// Exhausting the retry budget is a permanent outcome: the provider was given
// every allowed chance. An interrupted retry loop is transient: processing
// was cut short, not refused.
func classifyFailure(err error) (domain.ItemOutcome, *string) {
	msg := err.Error()
	switch {
	case errors.Is(err, pricing.ErrNotFound):
		return domain.OutcomeNotFound, nil
	case errors.Is(err, retry.ErrMaxAttemptsExceeded):
		return domain.OutcomePermanentError, &msg
	case errors.Is(err, retry.ErrContextCancelled), errors.Is(err, context.Canceled):
		return domain.OutcomeTransientError, &msg
	default:
		return domain.OutcomePermanentError, &msg
	}
}

// validIdentifier accepts non-empty all-digit UPCs; anything else is skipped
// locally without spending a provider call.
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// listingSnapshot condenses fetched listings into a small JSONB diagnostic.
func listingSnapshot(listings []domain.Listing) domain.JSONBMap {
	if len(listings) == 0 {
		return domain.JSONBMap{"listing_count": 0}
	}

	lowest := listings[0].Price
	for _, l := range listings[1:] {
		if l.Price.LessThan(lowest) {
			lowest = l.Price
		}
	}

	return domain.JSONBMap{
		"listing_count": len(listings),
		"lowest_price":  lowest.StringFixed(2),
	}
}

// terminalWriteContext returns ctx while it is alive, or a short detached
// context so final writes can land during shutdown.
func terminalWriteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.Background(), terminalWriteTimeout)
}
