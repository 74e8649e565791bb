package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// AssignmentStorage implements the AssignmentStorage interface for Badger
type AssignmentStorage struct {
	db     *BadgerDB
	clock  interfaces.Clock
	logger arbor.ILogger
}

// NewAssignmentStorage creates a new AssignmentStorage instance
func NewAssignmentStorage(db *BadgerDB, clock interfaces.Clock, logger arbor.ILogger) interfaces.AssignmentStorage {
	return &AssignmentStorage{
		db:     db,
		clock:  clock,
		logger: logger,
	}
}

func (s *AssignmentStorage) Get(ctx context.Context, id string) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := s.db.Store().Get(id, &assignment); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("assignment %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &assignment, nil
}

func (s *AssignmentStorage) Save(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		return fmt.Errorf("assignment ID is required")
	}
	now := s.clock.Now()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	if err := s.db.Store().Upsert(assignment.ID, assignment); err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

func (s *AssignmentStorage) ListActiveAuto(ctx context.Context) ([]*models.Assignment, error) {
	var assignments []models.Assignment
	query := badgerhold.Where("Status").Eq(models.AssignmentStatusActive).
		And("SyncMode").Eq(models.SyncModeAuto).
		And("ScheduleType").Ne(models.ScheduleTypeManual)
	if err := s.db.Store().Find(&assignments, query); err != nil {
		return nil, fmt.Errorf("failed to list schedulable assignments: %w", err)
	}

	result := make([]*models.Assignment, len(assignments))
	for i := range assignments {
		result[i] = &assignments[i]
	}
	return result, nil
}

func (s *AssignmentStorage) UpdateExtractionMethod(ctx context.Context, id string, method models.ExtractionMethod) error {
	assignment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	assignment.ExtractionMethod = method
	return s.Save(ctx, assignment)
}

func (s *AssignmentStorage) UpdateCaptureConfig(ctx context.Context, id string, cfg *models.LLMCaptureConfig) error {
	assignment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := assignment.SetCaptureConfig(cfg); err != nil {
		return fmt.Errorf("failed to encode capture config: %w", err)
	}
	return s.Save(ctx, assignment)
}
