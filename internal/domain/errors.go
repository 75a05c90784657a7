package domain

import "errors"

var (
	// ErrDuplicateActiveJob is returned when a job is created for a category
	// that already has a pending or processing job. Triggers are rejected,
	// never queued.
	ErrDuplicateActiveJob = errors.New("an active job already exists for this category")

	// ErrStoreUnavailable indicates a store-level I/O failure. Fatal to the
	// batch that observes it; the job continues with its surviving batches.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrJobNotFound is returned when a job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrBatchNotFound is returned when a batch does not exist.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrRecordNotFound is returned when a MAP price or UPC record does
	// not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrBatchNotStoppable is returned when a stop is requested for a batch
	// that is already terminal.
	ErrBatchNotStoppable = errors.New("batch is not pending or processing")

	// ErrJobActive is returned when a destructive operation targets a job
	// that has not reached a terminal state.
	ErrJobActive = errors.New("job is still active")

	// ErrNotificationFailure marks a report email that could not be
	// delivered. The job stays completed; resend remains available.
	ErrNotificationFailure = errors.New("notification failure")

	// ErrInvalidCategory is returned for unknown category values.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrInvalidSchedule is returned for schedule settings with an
	// out-of-range hour or minute, or an unknown timezone.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrNoIdentifiers is returned when a job is created with an empty
	// identifier list.
	ErrNoIdentifiers = errors.New("no identifiers provided")

	// ErrTooManyIdentifiers is returned when a job exceeds the configured
	// identifier cap.
	ErrTooManyIdentifiers = errors.New("identifier count exceeds the configured maximum")

	// ErrReportNotReady is returned when a report is requested for a job
	// that has not reached a terminal state.
	ErrReportNotReady = errors.New("job has not reached a terminal state")
)
