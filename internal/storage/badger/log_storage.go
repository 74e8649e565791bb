package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// LogStorage implements the append-only LogStorage interface for Badger
type LogStorage struct {
	db     *BadgerDB
	clock  interfaces.Clock
	logger arbor.ILogger
}

// NewLogStorage creates a new LogStorage instance
func NewLogStorage(db *BadgerDB, clock interfaces.Clock, logger arbor.ILogger) interfaces.LogStorage {
	return &LogStorage{
		db:     db,
		clock:  clock,
		logger: logger,
	}
}

func (s *LogStorage) Append(ctx context.Context, log *models.ProcessLog) error {
	if log.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = s.clock.Now()
	}

	if err := s.db.Store().Insert(badgerhold.NextSequence(), log); err != nil {
		return fmt.Errorf("failed to append process log: %w", err)
	}
	return nil
}

// ListByJob returns a job's most recent logs in chronological order
func (s *LogStorage) ListByJob(ctx context.Context, jobID string, limit int) ([]*models.ProcessLog, error) {
	query := badgerhold.Where("JobID").Eq(jobID).Index("JobID").SortBy("ID").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var logs []models.ProcessLog
	if err := s.db.Store().Find(&logs, query); err != nil {
		return nil, fmt.Errorf("failed to list process logs: %w", err)
	}

	result := make([]*models.ProcessLog, len(logs))
	for i := range logs {
		result[len(logs)-1-i] = &logs[i]
	}
	return result, nil
}
