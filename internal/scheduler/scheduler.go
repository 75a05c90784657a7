// Package scheduler triggers daily category-wide detection jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/config"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/metrics"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/orchestrator"
)

const (
	// triggerTimeout bounds the job-creation call when a schedule fires.
	triggerTimeout = 30 * time.Second
	// defaultReloadInterval applies when the configured interval is unset.
	defaultReloadInterval = time.Minute
)

// Trigger creates and starts a category-wide detection job.
type Trigger interface {
	TriggerCategory(ctx context.Context, category domain.Category, recipients []string, trigger string) (*domain.Job, error)
}

// ScheduleStore persists per-category schedule settings.
type ScheduleStore interface {
	Get(ctx context.Context, category domain.Category) (*domain.SchedulerSetting, error)
	List(ctx context.Context) ([]*domain.SchedulerSetting, error)
	Upsert(ctx context.Context, setting *domain.SchedulerSetting) error
}

// Scheduler evaluates one daily trigger per category. Settings live in the
// database and are re-read on a reload ticker, so changes take effect
// without a restart. Disabling a category suppresses only the automatic
// trigger; manual triggers are unaffected.
type Scheduler struct {
	cfg     config.SchedulerConfig
	store   ScheduleStore
	trigger Trigger
	logger  logger.Logger
	metrics *metrics.Metrics

	cron    *cron.Cron
	parser  cron.Parser
	entries map[domain.Category]cron.EntryID
	mu      sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a category scheduler.
func New(
	cfg config.SchedulerConfig,
	store ScheduleStore,
	trigger Trigger,
	log logger.Logger,
	m *metrics.Metrics,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	// Standard 5-field cron parser (minute hour day month weekday); specs
	// carry a CRON_TZ prefix so each category keeps its own timezone.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	return &Scheduler{
		cfg:     cfg,
		store:   store,
		trigger: trigger,
		logger:  log,
		metrics: m,
		cron:    c,
		parser:  parser,
		entries: make(map[domain.Category]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers category schedules and begins evaluation.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("Scheduler disabled by configuration")
		return nil
	}

	s.cron.Start()

	if err := s.Reload(s.ctx); err != nil {
		s.logger.Error("Failed to load schedules", logger.Error(err))
	}

	s.wg.Add(1)
	go s.periodicReload()

	s.logger.Info("Scheduler started",
		logger.Duration("reload_interval", s.reloadInterval()),
	)
	return nil
}

// Stop halts evaluation and waits for an in-flight trigger to finish.
func (s *Scheduler) Stop() {
	s.cancel()

	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// Reload re-reads every category's settings and rebuilds the cron entries.
func (s *Scheduler) Reload(ctx context.Context) error {
	settings, err := s.Settings(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for category, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, category)
	}

	for _, setting := range settings {
		if !setting.Enabled {
			s.logger.Debug("Automatic trigger disabled",
				logger.String("category", string(setting.Category)),
			)
			continue
		}

		spec := cronSpec(setting)
		category := setting.Category
		entryID, addErr := s.cron.AddFunc(spec, func() {
			s.fire(category)
		})
		if addErr != nil {
			s.logger.Error("Failed to schedule category",
				logger.String("category", string(category)),
				logger.String("spec", spec),
				logger.Error(addErr),
			)
			continue
		}
		s.entries[category] = entryID

		if sched, parseErr := s.parser.Parse(spec); parseErr == nil {
			s.logger.Info("Category scheduled",
				logger.String("category", string(category)),
				logger.String("spec", spec),
				logger.Time("next_run", sched.Next(time.Now())),
			)
		}
	}

	return nil
}

// Settings returns the effective setting for every category, falling back
// to configured defaults where no row exists.
func (s *Scheduler) Settings(ctx context.Context) ([]*domain.SchedulerSetting, error) {
	out := make([]*domain.SchedulerSetting, 0, len(domain.Categories()))
	for _, category := range domain.Categories() {
		setting, err := s.effectiveSetting(ctx, category)
		if err != nil {
			return nil, err
		}
		out = append(out, setting)
	}
	return out, nil
}

// UpdateSetting validates and persists a category schedule, then rebuilds
// the cron entries so the change takes effect immediately.
func (s *Scheduler) UpdateSetting(ctx context.Context, setting *domain.SchedulerSetting) error {
	if err := validateSetting(setting); err != nil {
		return err
	}

	if err := s.store.Upsert(ctx, setting); err != nil {
		return fmt.Errorf("save schedule for %s: %w", setting.Category, err)
	}

	if err := s.Reload(ctx); err != nil {
		s.logger.Error("Failed to reload schedules after update",
			logger.String("category", string(setting.Category)),
			logger.Error(err),
		)
	}

	s.logger.Info("Schedule updated",
		logger.String("category", string(setting.Category)),
		logger.String("timezone", setting.Timezone),
		logger.Int("hour", setting.Hour),
		logger.Int("minute", setting.Minute),
		logger.Bool("enabled", setting.Enabled),
	)
	return nil
}

// NextRun reports the next trigger instant for a category. The instant is
// computed even when the category is disabled.
func (s *Scheduler) NextRun(ctx context.Context, category domain.Category) (*domain.NextRun, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, string(category))
	}

	setting, err := s.effectiveSetting(ctx, category)
	if err != nil {
		return nil, err
	}

	sched, err := s.parser.Parse(cronSpec(setting))
	if err != nil {
		return nil, fmt.Errorf("parse schedule for %s: %w", category, err)
	}

	next := sched.Next(time.Now())
	return &domain.NextRun{
		Category:     category,
		NextRunTime:  next,
		SecondsUntil: int64(time.Until(next).Seconds()),
		Enabled:      setting.Enabled,
	}, nil
}

func (s *Scheduler) effectiveSetting(ctx context.Context, category domain.Category) (*domain.SchedulerSetting, error) {
	setting, err := s.store.Get(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load schedule for %s: %w", category, err)
	}
	if setting == nil {
		setting = &domain.SchedulerSetting{
			Category: category,
			Timezone: s.cfg.DefaultTimezone,
			Hour:     s.cfg.DefaultHour,
			Minute:   s.cfg.DefaultMinute,
			Enabled:  true,
		}
	}
	return setting, nil
}

// fire runs when a category's daily instant passes. Rejections (an active
// job, an empty roster) are expected outcomes, not failures.
func (s *Scheduler) fire(category domain.Category) {
	ctx, cancel := context.WithTimeout(s.ctx, triggerTimeout)
	defer cancel()

	s.logger.Info("Daily trigger fired",
		logger.String("category", string(category)),
	)

	job, err := s.trigger.TriggerCategory(ctx, category, nil, orchestrator.TriggerScheduled)
	switch {
	case err == nil:
		s.metrics.RecordSchedulerTrigger(string(category), "triggered")
		s.logger.Info("Scheduled job created",
			logger.String("category", string(category)),
			logger.String("job_id", job.ID),
			logger.Int("identifiers", job.IdentifierCount),
		)
	case errors.Is(err, domain.ErrDuplicateActiveJob):
		s.metrics.RecordSchedulerTrigger(string(category), "rejected")
		s.logger.Warn("Scheduled trigger rejected, category already has an active job",
			logger.String("category", string(category)),
		)
	case errors.Is(err, domain.ErrNoIdentifiers):
		s.metrics.RecordSchedulerTrigger(string(category), "rejected")
		s.logger.Warn("Scheduled trigger skipped, category roster is empty",
			logger.String("category", string(category)),
		)
	default:
		s.metrics.RecordSchedulerTrigger(string(category), "failed")
		s.logger.Error("Scheduled trigger failed",
			logger.String("category", string(category)),
			logger.Error(err),
		)
	}
}

func (s *Scheduler) periodicReload() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.reloadInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reload(s.ctx); err != nil {
				s.logger.Error("Failed to reload schedules", logger.Error(err))
			}
		}
	}
}

func (s *Scheduler) reloadInterval() time.Duration {
	if s.cfg.ReloadInterval <= 0 {
		return defaultReloadInterval
	}
	return s.cfg.ReloadInterval
}

// cronSpec renders a setting as a five-field spec with a CRON_TZ prefix so
// the entry evaluates in the category's own timezone.
func cronSpec(setting *domain.SchedulerSetting) string {
	return fmt.Sprintf("CRON_TZ=%s %d %d * * *", setting.Timezone, setting.Minute, setting.Hour)
}

func validateSetting(setting *domain.SchedulerSetting) error {
	if !setting.Category.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCategory, string(setting.Category))
	}
	if setting.Hour < 0 || setting.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", domain.ErrInvalidSchedule, setting.Hour)
	}
	if setting.Minute < 0 || setting.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", domain.ErrInvalidSchedule, setting.Minute)
	}
	// LoadLocation treats "" as UTC, which would store a blank timezone.
	if setting.Timezone == "" {
		return fmt.Errorf("%w: timezone is required", domain.ErrInvalidSchedule)
	}
	if _, err := time.LoadLocation(setting.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", domain.ErrInvalidSchedule, setting.Timezone)
	}
	return nil
}
