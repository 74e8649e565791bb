package interfaces

import (
	"context"

	"github.com/Fazmin/syncengine/internal/models"
)

// AssignmentStorage is the narrow read/write contract over assignments
type AssignmentStorage interface {
	Get(ctx context.Context, id string) (*models.Assignment, error)
	Save(ctx context.Context, assignment *models.Assignment) error
	// ListActiveAuto returns assignments eligible for scheduling:
	// status active, sync mode auto, schedule type not manual.
	ListActiveAuto(ctx context.Context) ([]*models.Assignment, error)
	UpdateExtractionMethod(ctx context.Context, id string, method models.ExtractionMethod) error
	UpdateCaptureConfig(ctx context.Context, id string, cfg *models.LLMCaptureConfig) error
}

// JobStorage persists extraction jobs
type JobStorage interface {
	Create(ctx context.Context, job *models.ExtractionJob) error
	Update(ctx context.Context, job *models.ExtractionJob) error
	Get(ctx context.Context, id string) (*models.ExtractionJob, error)
	// SetStatus transitions a job, enforcing the state machine.
	SetStatus(ctx context.Context, id string, status models.JobStatus, errorMessage string) error
	ListByStatus(ctx context.Context, status models.JobStatus) ([]*models.ExtractionJob, error)
}

// LogStorage is the append-only process log sink
type LogStorage interface {
	Append(ctx context.Context, log *models.ProcessLog) error
	ListByJob(ctx context.Context, jobID string, limit int) ([]*models.ProcessLog, error)
}

// RuleStorage persists extraction rules per assignment
type RuleStorage interface {
	// ReplaceAll atomically swaps the rule set of an assignment.
	// Idempotent: repeating with the same rules leaves the set unchanged.
	ReplaceAll(ctx context.Context, assignmentID string, rules []*models.ExtractionRule) error
	// List returns the active rules ordered by sort order.
	List(ctx context.Context, assignmentID string, activeOnly bool) ([]*models.ExtractionRule, error)
}

// SourceStorage resolves the shared source descriptors
type SourceStorage interface {
	GetDataSource(ctx context.Context, id string) (*models.DataSource, error)
	SaveDataSource(ctx context.Context, ds *models.DataSource) error
	GetWebSource(ctx context.Context, id string) (*models.WebSource, error)
	SaveWebSource(ctx context.Context, ws *models.WebSource) error
}

// Repository is the core persistence port. Each method group is
// transactional per call.
type Repository interface {
	Assignments() AssignmentStorage
	Jobs() JobStorage
	Logs() LogStorage
	Rules() RuleStorage
	Sources() SourceStorage
	Close() error
}

// AuditSink receives audit events emitted at job boundaries
type AuditSink interface {
	Record(ctx context.Context, event *models.AuditEvent) error
}
