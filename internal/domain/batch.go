package domain

import (
	"time"

	"github.com/lib/pq"
)

// BatchStatus is the lifecycle state of a batch.
type BatchStatus string

const (
	// BatchStatusPending means the batch has not started.
	BatchStatusPending BatchStatus = "pending"
	// BatchStatusProcessing means the batch is executing.
	BatchStatusProcessing BatchStatus = "processing"
	// BatchStatusCompleted means the full identifier list was traversed,
	// even if some items failed.
	BatchStatusCompleted BatchStatus = "completed"
	// BatchStatusFailed means every item failed permanently, or a store
	// failure aborted the batch.
	BatchStatusFailed BatchStatus = "failed"
	// BatchStatusStopped means a stop signal halted the batch between
	// identifiers. Stopped batches are terminal and never resumed.
	BatchStatusStopped BatchStatus = "stopped"
)

// Terminal reports whether the status is a terminal batch state.
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusStopped:
		return true
	default:
		return false
	}
}

// Batch is one bounded slice of a job's identifiers.
type Batch struct {
	ID            string         `db:"id"             json:"id"`
	JobID         string         `db:"job_id"         json:"job_id"`
	SequenceIndex int            `db:"sequence_index" json:"sequence_index"`
	Identifiers   pq.StringArray `db:"identifiers"    json:"identifiers"`
	Status        BatchStatus    `db:"status"         json:"status"`
	StopRequested bool           `db:"stop_requested" json:"stop_requested"`
	ErrorMessage  *string        `db:"error_message"  json:"error_message,omitempty"`
	StartedAt     *time.Time     `db:"started_at"     json:"started_at,omitempty"`
	FinishedAt    *time.Time     `db:"finished_at"    json:"finished_at,omitempty"`
}

// ItemOutcome is the terminal result of processing one identifier.
type ItemOutcome string

const (
	// OutcomeSuccess means listings were fetched and the detector ran.
	// Covers the no-MAP-on-file case, which is recorded, not failed.
	OutcomeSuccess ItemOutcome = "success"
	// OutcomeNotFound means the provider does not know the identifier.
	OutcomeNotFound ItemOutcome = "not_found"
	// OutcomeTransientError means processing was cut short (context
	// cancelled mid-retry) before the retry budget was exhausted.
	OutcomeTransientError ItemOutcome = "transient_error"
	// OutcomePermanentError means a non-retryable provider failure, or
	// transient failures that exhausted the retry budget.
	OutcomePermanentError ItemOutcome = "permanent_error"
	// OutcomeSkipped means the identifier failed local validation and was
	// never sent to the provider.
	OutcomeSkipped ItemOutcome = "skipped"
)

// BatchItem records the outcome of one identifier within a batch.
type BatchItem struct {
	ID           int64       `db:"id"            json:"id"`
	BatchID      string      `db:"batch_id"      json:"batch_id"`
	Identifier   string      `db:"identifier"    json:"identifier"`
	Outcome      ItemOutcome `db:"outcome"       json:"outcome"`
	AttemptCount int         `db:"attempt_count" json:"attempt_count"`
	AlertCount   int         `db:"alert_count"   json:"alert_count"`
	MAPFound     bool        `db:"map_found"     json:"map_found"`
	Snapshot     JSONBMap    `db:"snapshot"      json:"snapshot,omitempty"`
	ErrorMessage *string     `db:"error_message" json:"error_message,omitempty"`
	ProcessedAt  time.Time   `db:"processed_at"  json:"processed_at"`
}
