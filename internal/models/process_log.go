package models

import "time"

// LogLevel is the severity of a process log entry
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ProcessLog is an append-only progress record owned by a job
type ProcessLog struct {
	ID        uint64    `json:"id" badgerhold:"key"`
	JobID     string    `json:"job_id" badgerhold:"index"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	URL       string    `json:"url,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditEvent is emitted through the AuditSink at job boundaries
type AuditEvent struct {
	ID           uint64    `json:"id" badgerhold:"key"`
	EventType    string    `json:"event_type"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	DataSourceID string    `json:"data_source_id,omitempty"`
	EventDetails string    `json:"event_details,omitempty"` // JSON
	CreatedAt    time.Time `json:"created_at"`
}

// Audit event types emitted by the extraction core
const (
	AuditSyncStarted         = "sync_started"
	AuditSyncCompleted       = "sync_completed"
	AuditSyncFailed          = "sync_failed"
	AuditSyncCancelled       = "sync_cancelled"
	AuditExtractionStarted   = "extraction_started"
	AuditExtractionCompleted = "extraction_completed"
	AuditExtractionFailed    = "extraction_failed"
	AuditExtractionCancelled = "extraction_cancelled"
)
