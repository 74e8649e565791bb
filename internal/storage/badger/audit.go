package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// AuditSink records audit events emitted at job boundaries
type AuditSink struct {
	db     *BadgerDB
	clock  interfaces.Clock
	logger arbor.ILogger
}

// NewAuditSink creates a new AuditSink instance
func NewAuditSink(db *BadgerDB, clock interfaces.Clock, logger arbor.ILogger) interfaces.AuditSink {
	return &AuditSink{
		db:     db,
		clock:  clock,
		logger: logger,
	}
}

func (s *AuditSink) Record(ctx context.Context, event *models.AuditEvent) error {
	if event.EventType == "" {
		return fmt.Errorf("event type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.clock.Now()
	}

	if err := s.db.Store().Insert(badgerhold.NextSequence(), event); err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// ListByResource returns the audit trail of one resource, oldest first
func (s *AuditSink) ListByResource(ctx context.Context, resourceType, resourceID string) ([]*models.AuditEvent, error) {
	var events []models.AuditEvent
	query := badgerhold.Where("ResourceType").Eq(resourceType).
		And("ResourceID").Eq(resourceID).SortBy("ID")
	if err := s.db.Store().Find(&events, query); err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}

	result := make([]*models.AuditEvent, len(events))
	for i := range events {
		result[i] = &events[i]
	}
	return result, nil
}
