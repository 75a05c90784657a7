package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/config"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/events"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/executor"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/importer"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/metrics"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/notifier"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/orchestrator"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/pricing"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/report"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/repository"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/retry"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/scheduler"
)

// Services bundles the wired application components handed to the HTTP
// server and the lifecycle loop.
type Services struct {
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *scheduler.Scheduler
	Importer     *importer.Service
	Notifier     *notifier.EmailNotifier
	Reports      *report.Generator
	Alerts       *repository.AlertRepository
	Items        *repository.ItemRepository
	MAPPrices    *repository.MAPPriceRepository
	UPCs         *repository.UPCRepository
}

// SetupServices wires repositories, the pricing client, the batch executor,
// the orchestrator, and the scheduler. The scheduler is started here so
// stored category schedules are armed before the server accepts traffic.
func SetupServices(
	cfg *config.Config,
	db *sqlx.DB,
	publisher *events.Publisher,
	log logger.Logger,
) (*Services, error) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	jobRepo := repository.NewJobRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	itemRepo := repository.NewItemRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	mapRepo := repository.NewMAPPriceRepository(db)
	upcRepo := repository.NewUPCRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)

	pricingClient := pricing.NewClient(pricing.Config{
		BaseURL:       cfg.Provider.BaseURL,
		APIKey:        cfg.Provider.APIKey,
		Timeout:       cfg.Provider.Timeout,
		MaxConcurrent: int64(cfg.Provider.MaxConcurrent),
	}, log, m)

	runner := executor.New(
		pricingClient,
		batchRepo,
		itemRepo,
		mapRepo,
		retry.Config{
			MaxAttempts:  cfg.Provider.Retry.MaxAttempts,
			InitialDelay: cfg.Provider.Retry.InitialDelay,
			MaxDelay:     cfg.Provider.Retry.MaxDelay,
			Multiplier:   cfg.Provider.Retry.Multiplier,
			Jitter:       cfg.Provider.Retry.Jitter,
		},
		cfg.Jobs.ItemConcurrency,
		log,
		m,
	)

	mailer := notifier.New(notifier.Config{
		Host:              cfg.SMTP.Host,
		Port:              cfg.SMTP.Port,
		Username:          cfg.SMTP.Username,
		Password:          cfg.SMTP.Password,
		From:              cfg.SMTP.From,
		DefaultRecipients: cfg.Jobs.DefaultRecipients,
	}, log, m)

	reports := report.NewGenerator(alertRepo)

	orch := orchestrator.New(cfg.Jobs, orchestrator.Deps{
		Jobs:      jobRepo,
		Batches:   batchRepo,
		Alerts:    alertRepo,
		Roster:    upcRepo,
		Runner:    runner,
		Reports:   reports,
		Notifier:  mailer,
		Publisher: publisher,
		Logger:    log,
		Metrics:   m,
	})

	sched := scheduler.New(cfg.Scheduler, scheduleRepo, orch, log, m)
	if err := sched.Start(); err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}

	return &Services{
		Registry:     registry,
		Metrics:      m,
		Orchestrator: orch,
		Scheduler:    sched,
		Importer:     importer.NewService(mapRepo, upcRepo, log),
		Notifier:     mailer,
		Reports:      reports,
		Alerts:       alertRepo,
		Items:        itemRepo,
		MAPPrices:    mapRepo,
		UPCs:         upcRepo,
	}, nil
}
