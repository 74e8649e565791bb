package models

import "time"

// JobStatus represents the state of an extraction job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusStaging   JobStatus = "staging"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// TriggeredBy identifies what started a job
type TriggeredBy string

const (
	TriggeredByManual   TriggeredBy = "manual"
	TriggeredBySchedule TriggeredBy = "schedule"
	TriggeredByAPI      TriggeredBy = "api"
)

// ExtractionJob is one run of an assignment through the extraction pipeline.
//
// Lifecycle: pending -> running -> completed (auto mode), or
// pending -> running -> staging -> running -> completed (manual mode).
// Any transition may divert to failed; an external cancel during
// pending/running/staging yields cancelled. Terminal states are immutable.
//
// While status is staging exactly one of StagedDataInline / StagedDataPath
// is set.
type ExtractionJob struct {
	ID               string      `json:"id" badgerhold:"key"`
	AssignmentID     string      `json:"assignment_id" badgerhold:"index"`
	Status           JobStatus   `json:"status"`
	SyncMode         SyncMode    `json:"sync_mode"`
	TriggeredBy      TriggeredBy `json:"triggered_by"`
	PagesTotal       int         `json:"pages_total,omitempty"`
	PagesProcessed   int         `json:"pages_processed"`
	CurrentURL       string      `json:"current_url,omitempty"`
	RowsExtracted    int         `json:"rows_extracted"`
	RowsInserted     int         `json:"rows_inserted"`
	RowsFailed       int         `json:"rows_failed"`
	StagedRowCount   int         `json:"staged_row_count"`
	StagedDataInline string      `json:"staged_data_inline,omitempty"`
	StagedDataPath   string      `json:"staged_data_path,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	StartedAt        *time.Time  `json:"started_at,omitempty"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
	ErrorMessage     string      `json:"error_message,omitempty"`
	ErrorDetails     string      `json:"error_details,omitempty"`
}

// CanTransitionTo validates a status transition against the job state machine
func (j *ExtractionJob) CanTransitionTo(next JobStatus) bool {
	if j.Status.IsTerminal() {
		return false
	}
	switch j.Status {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusFailed || next == JobStatusCancelled
	case JobStatusRunning:
		return next == JobStatusStaging || next == JobStatusCompleted ||
			next == JobStatusFailed || next == JobStatusCancelled
	case JobStatusStaging:
		return next == JobStatusRunning || next == JobStatusFailed || next == JobStatusCancelled
	default:
		return false
	}
}
