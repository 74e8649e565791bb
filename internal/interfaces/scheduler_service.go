package interfaces

import (
	"context"
	"time"

	"github.com/Fazmin/syncengine/internal/models"
)

// ScheduledEntry is an inspectable snapshot of one scheduled assignment
type ScheduledEntry struct {
	AssignmentID string     `json:"assignment_id"`
	CronSpec     string     `json:"cron_spec"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}

// SchedulerStatus is the snapshot returned by SchedulerService.Status
type SchedulerStatus struct {
	Scheduled []ScheduledEntry `json:"scheduled"`
	Running   []string         `json:"running"`
}

// SchedulerService fires assignments on cron triggers with single-flight
// per assignment. One in-process instance exists; schedules persist only
// as assignment records.
type SchedulerService interface {
	// Initialize schedules all active auto assignments and starts the cron.
	Initialize(ctx context.Context) error

	// Schedule registers (or replaces) the cron entry for an assignment.
	// Assignments with manual scheduling are unscheduled.
	Schedule(assignment *models.Assignment) error

	// Unschedule cancels any pending tick for the assignment.
	Unschedule(assignmentID string)

	// TriggerNow runs an assignment immediately, subject to the
	// single-flight guard. Returns the job id.
	TriggerNow(ctx context.Context, assignmentID string, mode models.SyncMode) (string, error)

	// Status returns the scheduled entries and the running set.
	Status() SchedulerStatus

	// Stop cancels every entry; in-flight runs finish.
	Stop()
}

// Clock abstracts time for deterministic tests
type Clock interface {
	Now() time.Time
}

// SecretBox decrypts data source credentials on demand
type SecretBox interface {
	Decrypt(ciphertext string) (string, error)
	IsEncrypted(s string) bool
}
