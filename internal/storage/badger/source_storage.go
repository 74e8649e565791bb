package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// SourceStorage implements the SourceStorage interface for Badger. Data
// source passwords are stored as given; decryption happens at the connector
// boundary, never here.
type SourceStorage struct {
	db     *BadgerDB
	clock  interfaces.Clock
	logger arbor.ILogger
}

// NewSourceStorage creates a new SourceStorage instance
func NewSourceStorage(db *BadgerDB, clock interfaces.Clock, logger arbor.ILogger) interfaces.SourceStorage {
	return &SourceStorage{
		db:     db,
		clock:  clock,
		logger: logger,
	}
}

func (s *SourceStorage) GetDataSource(ctx context.Context, id string) (*models.DataSource, error) {
	var ds models.DataSource
	if err := s.db.Store().Get(id, &ds); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("data source %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get data source: %w", err)
	}
	return &ds, nil
}

func (s *SourceStorage) SaveDataSource(ctx context.Context, ds *models.DataSource) error {
	if ds.ID == "" {
		return fmt.Errorf("data source ID is required")
	}
	now := s.clock.Now()
	if ds.CreatedAt.IsZero() {
		ds.CreatedAt = now
	}
	ds.UpdatedAt = now

	if err := s.db.Store().Upsert(ds.ID, ds); err != nil {
		return fmt.Errorf("failed to save data source: %w", err)
	}
	return nil
}

func (s *SourceStorage) GetWebSource(ctx context.Context, id string) (*models.WebSource, error) {
	var ws models.WebSource
	if err := s.db.Store().Get(id, &ws); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("web source %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get web source: %w", err)
	}
	return &ws, nil
}

func (s *SourceStorage) SaveWebSource(ctx context.Context, ws *models.WebSource) error {
	if ws.ID == "" {
		return fmt.Errorf("web source ID is required")
	}
	now := s.clock.Now()
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = now
	}
	ws.UpdatedAt = now

	if err := s.db.Store().Upsert(ws.ID, ws); err != nil {
		return fmt.Errorf("failed to save web source: %w", err)
	}
	return nil
}
