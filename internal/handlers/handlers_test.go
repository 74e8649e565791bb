package handlers

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
	"github.com/Fazmin/syncengine/internal/storage/badger"
)

func testLogger() arbor.ILogger {
	return common.GetLogger()
}

func newTestRepo(t *testing.T) *badger.Repository {
	t.Helper()
	repo, err := badger.NewRepository(testLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

// stubConnector records Exec calls and serves canned tables
type stubConnector struct {
	mu     sync.Mutex
	tables []models.TableInfo
	execs  []string
	fail   bool
}

func (c *stubConnector) Connect(ctx context.Context) error {
	if c.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func (c *stubConnector) TestConnection(ctx context.Context) interfaces.TestResult {
	if c.fail {
		return interfaces.TestResult{OK: false, Message: "connection refused"}
	}
	return interfaces.TestResult{OK: true, Message: "ok"}
}

func (c *stubConnector) ListTables(ctx context.Context) ([]models.TableInfo, error) {
	return c.tables, nil
}

func (c *stubConnector) Query(ctx context.Context, query string, params []interface{}) ([]interfaces.Row, error) {
	return nil, nil
}

func (c *stubConnector) Stream(ctx context.Context, query string, params []interface{}, batchSize int) (interfaces.RowStream, error) {
	return nil, nil
}

func (c *stubConnector) Exec(ctx context.Context, query string, params []interface{}) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, query)
	return 1, nil
}

func (c *stubConnector) Placeholder(index int) string { return "?" }

func (c *stubConnector) QuoteIdentifier(name string) string { return `"` + name + `"` }

func (c *stubConnector) DBType() models.DBType { return models.DBTypeSQLite }

func (c *stubConnector) Disconnect() error { return nil }

// stubScheduler records trigger and schedule calls
type stubScheduler struct {
	mu          sync.Mutex
	triggered   []string
	scheduled   []string
	unscheduled []string
	triggerErr  error
	jobID       string
}

func (s *stubScheduler) Initialize(ctx context.Context) error { return nil }

func (s *stubScheduler) Schedule(assignment *models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, assignment.ID)
	return nil
}

func (s *stubScheduler) Unschedule(assignmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unscheduled = append(s.unscheduled, assignmentID)
}

func (s *stubScheduler) TriggerNow(ctx context.Context, assignmentID string, mode models.SyncMode) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.triggerErr != nil {
		return "", s.triggerErr
	}
	s.triggered = append(s.triggered, assignmentID+":"+string(mode))
	if s.jobID != "" {
		return s.jobID, nil
	}
	return "job_test", nil
}

func (s *stubScheduler) Status() interfaces.SchedulerStatus {
	return interfaces.SchedulerStatus{Scheduled: []interfaces.ScheduledEntry{}, Running: []string{}}
}

func (s *stubScheduler) Stop() {}
