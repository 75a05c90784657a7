// Package events publishes job lifecycle events to Redis Streams.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
)

// StreamName is the Redis stream job events are published to.
const StreamName = "price-monitor:events"

// EventType identifies a job lifecycle event.
type EventType string

const (
	// JobCreated is emitted when a job and its batches are persisted.
	JobCreated EventType = "job.created"
	// JobCompleted is emitted when a job reaches the completed state.
	JobCompleted EventType = "job.completed"
	// JobFailed is emitted when every batch of a job failed.
	JobFailed EventType = "job.failed"
	// BatchStopped is emitted when a stop request halts a batch.
	BatchStopped EventType = "batch.stopped"
	// ReportEmailed is emitted when the off-price report is delivered.
	ReportEmailed EventType = "report.emailed"
)

// JobEvent is the envelope published for every lifecycle event.
type JobEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType EventType `json:"event_type"`
	JobID     string    `json:"job_id"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// JobFinishedPayload carries the terminal summary of a job.
type JobFinishedPayload struct {
	Status     string `json:"status"`
	AlertCount int    `json:"alert_count"`
	Batches    int    `json:"batches"`
}

// BatchStoppedPayload identifies the halted batch.
type BatchStoppedPayload struct {
	BatchID       string `json:"batch_id"`
	SequenceIndex int    `json:"sequence_index"`
}

// ReportEmailedPayload records where the report went.
type ReportEmailedPayload struct {
	Recipients []string `json:"recipients"`
	Filename   string   `json:"filename"`
}

// NewJobEvent builds an event envelope for a job.
func NewJobEvent(eventType EventType, job *domain.Job, payload any) JobEvent {
	return JobEvent{
		EventType: eventType,
		JobID:     job.ID,
		Category:  string(job.Category),
		Payload:   payload,
	}
}
