package domain

import (
	"time"

	"github.com/lib/pq"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	// JobStatusPending means the job has been created but not started.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing means batches are being executed.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted means every batch reached a terminal state and at
	// least one batch did not fail.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed means every batch failed.
	JobStatusFailed JobStatus = "failed"
)

// Terminal reports whether the status is a terminal job state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ReportStatus tracks report generation and delivery for a terminal job.
type ReportStatus string

const (
	// ReportStatusNone means finalization has not run.
	ReportStatusNone ReportStatus = "none"
	// ReportStatusGenerated means the CSV was produced but not yet emailed.
	ReportStatusGenerated ReportStatus = "generated"
	// ReportStatusEmailed means the CSV was delivered to the recipients.
	ReportStatusEmailed ReportStatus = "emailed"
	// ReportStatusEmailFailed means the CSV is ready but delivery failed;
	// resend remains available.
	ReportStatusEmailFailed ReportStatus = "email_failed"
)

// Job represents one detection run for one category.
type Job struct {
	ID               string         `db:"id"                json:"id"`
	Category         Category       `db:"category"          json:"category"`
	Description      *string        `db:"description"       json:"description,omitempty"`
	IdentifierCount  int            `db:"identifier_count"  json:"identifier_count"`
	BatchSize        int            `db:"batch_size"        json:"batch_size"`
	TotalBatches     int            `db:"total_batches"     json:"total_batches"`
	CompletedBatches int            `db:"completed_batches" json:"completed_batches"`
	Status           JobStatus      `db:"status"            json:"status"`
	Recipients       pq.StringArray `db:"recipients"        json:"recipients"`
	ReportStatus     ReportStatus   `db:"report_status"     json:"report_status"`
	ReportToken      *string        `db:"report_token"      json:"-"`
	ErrorMessage     *string        `db:"error_message"     json:"error_message,omitempty"`
	CreatedAt        time.Time      `db:"created_at"        json:"created_at"`
	StartedAt        *time.Time     `db:"started_at"        json:"started_at,omitempty"`
	CompletedAt      *time.Time     `db:"completed_at"      json:"completed_at,omitempty"`
}

// ProgressPercent returns batch completion as a 0-100 percentage.
func (j *Job) ProgressPercent() float64 {
	if j.TotalBatches == 0 {
		return 0
	}
	return float64(j.CompletedBatches) / float64(j.TotalBatches) * 100
}

// JobStatusSummary is the aggregate view served by the status endpoint.
type JobStatusSummary struct {
	Job             *Job           `json:"job"`
	ProgressPercent float64        `json:"progress_percent"`
	AlertCount      int            `json:"alert_count"`
	BatchStates     map[string]int `json:"batch_states"`
	Batches         []BatchSummary `json:"batches"`
}

// BatchSummary is the per-batch slice of a job status response.
type BatchSummary struct {
	ID              string      `db:"id"               json:"id"`
	SequenceIndex   int         `db:"sequence_index"   json:"sequence_index"`
	Status          BatchStatus `db:"status"           json:"status"`
	IdentifierCount int         `db:"identifier_count" json:"identifier_count"`
	ItemCount       int         `db:"item_count"       json:"item_count"`
}
