// Package metrics provides Prometheus metrics for the price monitor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all price monitor metrics.
	MetricsNamespace = "price_monitor"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Job metrics
	JobsCreatedTotal  *prometheus.CounterVec
	JobsFinishedTotal *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
	JobsRunning       prometheus.Gauge

	// Batch metrics
	BatchesFinishedTotal *prometheus.CounterVec
	ItemsProcessedTotal  *prometheus.CounterVec
	AlertsDetectedTotal  *prometheus.CounterVec

	// Provider metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	ProviderInFlight        prometheus.Gauge

	// Report metrics
	ReportEmailsTotal *prometheus.CounterVec

	// Scheduler metrics
	SchedulerTriggersTotal *prometheus.CounterVec
}

// New creates and registers all price monitor metrics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initJobMetrics(factory)
	m.initBatchMetrics(factory)
	m.initProviderMetrics(factory)
	m.initReportMetrics(factory)
	m.initSchedulerMetrics(factory)

	return m
}

func (m *Metrics) initJobMetrics(factory promauto.Factory) {
	m.JobsCreatedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "jobs_created_total",
			Help:      "Total number of detection jobs created",
		},
		[]string{"category", "trigger"}, // trigger: manual, scheduled
	)

	m.JobsFinishedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "jobs_finished_total",
			Help:      "Total number of jobs that reached a terminal state",
		},
		[]string{"category", "status"},
	)

	m.JobDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of job execution in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3h
		},
		[]string{"category"},
	)

	m.JobsRunning = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "jobs_running",
			Help:      "Number of jobs currently executing",
		},
	)
}

func (m *Metrics) initBatchMetrics(factory promauto.Factory) {
	m.BatchesFinishedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "batches_finished_total",
			Help:      "Total number of batches that reached a terminal state",
		},
		[]string{"status"},
	)

	m.ItemsProcessedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "items_processed_total",
			Help:      "Total number of identifiers processed",
		},
		[]string{"outcome"},
	)

	m.AlertsDetectedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "alerts_detected_total",
			Help:      "Total number of below-MAP alerts detected",
		},
		[]string{"category"},
	)
}

func (m *Metrics) initProviderMetrics(factory promauto.Factory) {
	m.ProviderRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "provider_requests_total",
			Help:      "Total number of pricing provider requests",
		},
		[]string{"result"}, // success, not_found, transient_error, permanent_error
	)

	m.ProviderRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of pricing provider requests in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~102s
		},
		[]string{"result"},
	)

	m.ProviderInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "provider_requests_in_flight",
			Help:      "Number of pricing provider requests currently in flight",
		},
	)
}

func (m *Metrics) initReportMetrics(factory promauto.Factory) {
	m.ReportEmailsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "report_emails_total",
			Help:      "Total number of report email deliveries",
		},
		[]string{"result"}, // sent, failed
	)
}

func (m *Metrics) initSchedulerMetrics(factory promauto.Factory) {
	m.SchedulerTriggersTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "scheduler_triggers_total",
			Help:      "Total number of automatic scheduler triggers",
		},
		[]string{"category", "result"}, // result: triggered, rejected, failed
	)
}

// RecordJobCreated records a job creation.
func (m *Metrics) RecordJobCreated(category, trigger string) {
	m.JobsCreatedTotal.WithLabelValues(category, trigger).Inc()
}

// RecordJobStarted increments the running job count.
func (m *Metrics) RecordJobStarted() {
	m.JobsRunning.Inc()
}

// RecordJobFinished records a terminal job and its duration.
func (m *Metrics) RecordJobFinished(category, status string, duration time.Duration) {
	m.JobsFinishedTotal.WithLabelValues(category, status).Inc()
	m.JobDuration.WithLabelValues(category).Observe(duration.Seconds())
	m.JobsRunning.Dec()
}

// RecordBatchFinished records a terminal batch.
func (m *Metrics) RecordBatchFinished(status string) {
	m.BatchesFinishedTotal.WithLabelValues(status).Inc()
}

// RecordItemProcessed records one processed identifier.
func (m *Metrics) RecordItemProcessed(outcome string) {
	m.ItemsProcessedTotal.WithLabelValues(outcome).Inc()
}

// RecordAlerts records detected alerts for a category.
func (m *Metrics) RecordAlerts(category string, count int) {
	if count > 0 {
		m.AlertsDetectedTotal.WithLabelValues(category).Add(float64(count))
	}
}

// RecordProviderRequest records a provider call result and duration.
func (m *Metrics) RecordProviderRequest(result string, duration time.Duration) {
	m.ProviderRequestsTotal.WithLabelValues(result).Inc()
	m.ProviderRequestDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ProviderRequestStarted increments the in-flight gauge.
func (m *Metrics) ProviderRequestStarted() {
	m.ProviderInFlight.Inc()
}

// ProviderRequestDone decrements the in-flight gauge.
func (m *Metrics) ProviderRequestDone() {
	m.ProviderInFlight.Dec()
}

// RecordReportEmail records a report email delivery attempt.
func (m *Metrics) RecordReportEmail(success bool) {
	if success {
		m.ReportEmailsTotal.WithLabelValues("sent").Inc()
	} else {
		m.ReportEmailsTotal.WithLabelValues("failed").Inc()
	}
}

// RecordSchedulerTrigger records an automatic trigger attempt.
func (m *Metrics) RecordSchedulerTrigger(category, result string) {
	m.SchedulerTriggersTotal.WithLabelValues(category, result).Inc()
}
