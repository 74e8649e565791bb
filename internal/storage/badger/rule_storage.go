package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// RuleStorage implements the RuleStorage interface for Badger
type RuleStorage struct {
	db     *BadgerDB
	clock  interfaces.Clock
	logger arbor.ILogger
}

// NewRuleStorage creates a new RuleStorage instance
func NewRuleStorage(db *BadgerDB, clock interfaces.Clock, logger arbor.ILogger) interfaces.RuleStorage {
	return &RuleStorage{
		db:     db,
		clock:  clock,
		logger: logger,
	}
}

// ReplaceAll swaps an assignment's rule set in one transaction. Existing
// rules are removed and the new set inserted; repeating the call with the
// same rules leaves the set unchanged.
func (s *RuleStorage) ReplaceAll(ctx context.Context, assignmentID string, rules []*models.ExtractionRule) error {
	if assignmentID == "" {
		return fmt.Errorf("assignment ID is required")
	}

	now := s.clock.Now()
	err := s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
		if err := s.db.Store().TxDeleteMatching(tx, &models.ExtractionRule{},
			badgerhold.Where("AssignmentID").Eq(assignmentID).Index("AssignmentID")); err != nil {
			return fmt.Errorf("failed to clear existing rules: %w", err)
		}

		for _, rule := range rules {
			if rule.ID == "" {
				return fmt.Errorf("rule ID is required")
			}
			rule.AssignmentID = assignmentID
			if rule.CreatedAt.IsZero() {
				rule.CreatedAt = now
			}
			rule.UpdatedAt = now
			if err := s.db.Store().TxInsert(tx, rule.ID, rule); err != nil {
				return fmt.Errorf("failed to insert rule %s: %w", rule.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace rules for assignment %s: %w", assignmentID, err)
	}

	s.logger.Debug().
		Str("assignment_id", assignmentID).
		Int("rules", len(rules)).
		Msg("Replaced extraction rule set")
	return nil
}

// List returns an assignment's rules ordered by sort order
func (s *RuleStorage) List(ctx context.Context, assignmentID string, activeOnly bool) ([]*models.ExtractionRule, error) {
	query := badgerhold.Where("AssignmentID").Eq(assignmentID).Index("AssignmentID")
	if activeOnly {
		query = query.And("IsActive").Eq(true)
	}
	query = query.SortBy("SortOrder")

	var rules []models.ExtractionRule
	if err := s.db.Store().Find(&rules, query); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	result := make([]*models.ExtractionRule, len(rules))
	for i := range rules {
		result[i] = &rules[i]
	}
	return result, nil
}
