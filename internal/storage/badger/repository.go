package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/interfaces"
)

// Repository bundles the Badger-backed storage groups behind the
// persistence port
type Repository struct {
	db          *BadgerDB
	clock       interfaces.Clock
	assignments interfaces.AssignmentStorage
	jobs        interfaces.JobStorage
	logs        interfaces.LogStorage
	rules       interfaces.RuleStorage
	sources     interfaces.SourceStorage
}

// NewRepository opens the database and wires the storage groups on the
// system clock
func NewRepository(logger arbor.ILogger, config *common.BadgerConfig) (*Repository, error) {
	return NewRepositoryWithClock(logger, config, common.SystemClock{})
}

// NewRepositoryWithClock is NewRepository with an injected clock, so tests
// can pin record timestamps
func NewRepositoryWithClock(logger arbor.ILogger, config *common.BadgerConfig, clock interfaces.Clock) (*Repository, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}
	return &Repository{
		db:          db,
		clock:       clock,
		assignments: NewAssignmentStorage(db, clock, logger),
		jobs:        NewJobStorage(db, clock, logger),
		logs:        NewLogStorage(db, clock, logger),
		rules:       NewRuleStorage(db, clock, logger),
		sources:     NewSourceStorage(db, clock, logger),
	}, nil
}

func (r *Repository) Assignments() interfaces.AssignmentStorage { return r.assignments }

func (r *Repository) Jobs() interfaces.JobStorage { return r.jobs }

func (r *Repository) Logs() interfaces.LogStorage { return r.logs }

func (r *Repository) Rules() interfaces.RuleStorage { return r.rules }

func (r *Repository) Sources() interfaces.SourceStorage { return r.sources }

// AuditSink builds an audit sink over the repository's database
func (r *Repository) AuditSink(logger arbor.ILogger) interfaces.AuditSink {
	return NewAuditSink(r.db, r.clock, logger)
}

// Close closes the underlying database
func (r *Repository) Close() error {
	return r.db.Close()
}
