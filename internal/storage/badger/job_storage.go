package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	clock  interfaces.Clock
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, clock interfaces.Clock, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		clock:  clock,
		logger: logger,
	}
}

func (s *JobStorage) Create(ctx context.Context, job *models.ExtractionJob) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.clock.Now()
	}

	if err := s.db.Store().Insert(job.ID, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (s *JobStorage) Update(ctx context.Context, job *models.ExtractionJob) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (s *JobStorage) Get(ctx context.Context, id string) (*models.ExtractionJob, error) {
	var job models.ExtractionJob
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// SetStatus transitions a job through its state machine. Invalid transitions
// are rejected without modifying the record.
func (s *JobStorage) SetStatus(ctx context.Context, id string, status models.JobStatus, errorMessage string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if !job.CanTransitionTo(status) {
		return fmt.Errorf("job %s cannot transition from %s to %s", id, job.Status, status)
	}

	job.Status = status
	if errorMessage != "" {
		job.ErrorMessage = errorMessage
	}

	now := s.clock.Now()
	switch status {
	case models.JobStatusRunning:
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
	case models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled:
		job.CompletedAt = &now
	}

	return s.Update(ctx, job)
}

func (s *JobStorage) ListByStatus(ctx context.Context, status models.JobStatus) ([]*models.ExtractionJob, error) {
	var jobs []models.ExtractionJob
	query := badgerhold.Where("Status").Eq(status).SortBy("CreatedAt").Reverse()
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs by status: %w", err)
	}

	result := make([]*models.ExtractionJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}
