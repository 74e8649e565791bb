// -----------------------------------------------------------------------
// Extraction Executor - runs an assignment end to end
// -----------------------------------------------------------------------

package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/connectors"
	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

const insertBatchSize = 100

// ConnectorFactory builds a dialect connector for a data source. The
// password argument is plaintext, already decrypted by the caller.
type ConnectorFactory func(ds *models.DataSource, password string, logger arbor.ILogger) (interfaces.Connector, error)

// Deps carries the executor's collaborators. Scrapers, the LLM extractor
// and connectors are injected so tests can stub external effects.
type Deps struct {
	Repo       interfaces.Repository
	Audit      interfaces.AuditSink
	Staging    interfaces.StagingStore
	Scrapers   interfaces.ScraperFactory
	LLM        interfaces.StructuredExtractor
	Secrets    interfaces.SecretBox
	Connectors ConnectorFactory
	Clock      interfaces.Clock
	Logger     arbor.ILogger
}

// Service orchestrates extraction runs: URL expansion, fetching,
// extraction, staging or direct insert, and the job state machine.
type Service struct {
	repo     interfaces.Repository
	audit    interfaces.AuditSink
	staging  interfaces.StagingStore
	scrapers interfaces.ScraperFactory
	llm      interfaces.StructuredExtractor
	secrets  interfaces.SecretBox
	connect  ConnectorFactory
	clock    interfaces.Clock
	logger   arbor.ILogger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New wires an executor from its dependencies
func New(deps Deps) *Service {
	connect := deps.Connectors
	if connect == nil {
		connect = connectors.New
	}
	clock := deps.Clock
	if clock == nil {
		clock = common.SystemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		repo:     deps.Repo,
		audit:    deps.Audit,
		staging:  deps.Staging,
		scrapers: deps.Scrapers,
		llm:      deps.LLM,
		secrets:  deps.Secrets,
		connect:  connect,
		clock:    clock,
		logger:   logger,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// runState is the loaded configuration and live job of one run
type runState struct {
	assignment *models.Assignment
	dataSource *models.DataSource
	webSource  *models.WebSource
	rules      []*models.ExtractionRule
	capture    *models.LLMCaptureConfig
	job        *models.ExtractionJob
	ctx        context.Context
	cancel     context.CancelFunc
}

// startURL returns the assignment's start URL, falling back to the web
// source base URL
func (st *runState) startURL() string {
	if st.assignment.StartURL != "" {
		return st.assignment.StartURL
	}
	return st.webSource.BaseURL
}

// Run executes an assignment and blocks until the job reaches staging or a
// terminal state. Returns the job id; the error reflects the job outcome.
func (s *Service) Run(ctx context.Context, assignmentID string, mode models.SyncMode, trigger models.TriggeredBy) (string, error) {
	st, err := s.begin(ctx, assignmentID, mode, trigger)
	if err != nil {
		return "", err
	}
	return st.job.ID, s.execute(st)
}

// RunDetached creates and starts the job synchronously, then continues the
// run in the background. The returned channel closes when the run finishes.
func (s *Service) RunDetached(ctx context.Context, assignmentID string, mode models.SyncMode, trigger models.TriggeredBy) (string, <-chan struct{}, error) {
	st, err := s.begin(ctx, assignmentID, mode, trigger)
	if err != nil {
		return "", nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.execute(st); err != nil {
			s.logger.Warn().Err(err).Str("job_id", st.job.ID).Msg("Extraction run finished with error")
		}
	}()
	return st.job.ID, done, nil
}

// Cancel flips a non-terminal job to cancelled, cancels its context and
// removes any staged data. Cancelling a terminal job is a no-op.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	job, err := s.repo.Jobs().Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return nil
	}

	if err := s.repo.Jobs().SetStatus(ctx, jobID, models.JobStatusCancelled, "cancelled by operator"); err != nil {
		return err
	}
	s.cancelJob(jobID)

	if s.staging != nil {
		if err := s.staging.Delete(jobID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to remove staged data on cancel")
		}
	}
	if job.StagedDataInline != "" || job.StagedDataPath != "" {
		if fresh, err := s.repo.Jobs().Get(ctx, jobID); err == nil {
			fresh.StagedDataInline = ""
			fresh.StagedDataPath = ""
			if err := s.repo.Jobs().Update(ctx, fresh); err != nil {
				s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to clear staged payload on cancel")
			}
		}
	}

	s.appendLog(ctx, jobID, models.LogLevelInfo, "Job cancelled", "")
	s.recordAudit(ctx, models.AuditSyncCancelled, job.AssignmentID, jobID, "", nil)
	return nil
}

// begin loads configuration, creates the job and moves it to running.
// Configuration problems surface as ConfigError before any job exists.
func (s *Service) begin(ctx context.Context, assignmentID string, mode models.SyncMode, trigger models.TriggeredBy) (*runState, error) {
	st, err := s.loadConfig(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	job := &models.ExtractionJob{
		ID:           common.NewJobID(),
		AssignmentID: assignmentID,
		Status:       models.JobStatusPending,
		SyncMode:     mode,
		TriggeredBy:  trigger,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.Jobs().Create(ctx, job); err != nil {
		return nil, err
	}
	if err := s.repo.Jobs().SetStatus(ctx, job.ID, models.JobStatusRunning, ""); err != nil {
		return nil, err
	}
	// reload so the in-memory record carries the running status and start time
	job, err = s.repo.Jobs().Get(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	st.job = job

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	st.ctx = jobCtx
	st.cancel = cancel
	s.registerJob(job.ID, cancel)

	s.appendLog(jobCtx, job.ID, models.LogLevelInfo,
		fmt.Sprintf("Starting extraction job (%s)", st.assignment.ExtractionMethod), "")
	s.recordAudit(jobCtx, models.AuditExtractionStarted, assignmentID, job.ID, st.dataSource.ID, map[string]interface{}{
		"sync_mode":    string(mode),
		"triggered_by": string(trigger),
	})

	s.logger.Info().
		Str("job_id", job.ID).
		Str("assignment_id", assignmentID).
		Str("mode", string(mode)).
		Msg("Extraction job started")
	return st, nil
}

// loadConfig resolves the assignment with its sources and extraction
// configuration, failing fast with ConfigError on invalid state
func (s *Service) loadConfig(ctx context.Context, assignmentID string) (*runState, error) {
	assignment, err := s.repo.Assignments().Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	ds, err := s.repo.Sources().GetDataSource(ctx, assignment.DataSourceID)
	if err != nil {
		return nil, models.NewConfigError("data source %s not found", assignment.DataSourceID)
	}
	ws, err := s.repo.Sources().GetWebSource(ctx, assignment.WebSourceID)
	if err != nil {
		return nil, models.NewConfigError("web source %s not found", assignment.WebSourceID)
	}
	if assignment.TargetTable == "" {
		return nil, models.NewConfigError("assignment %s has no target table", assignmentID)
	}

	st := &runState{
		assignment: assignment,
		dataSource: ds,
		webSource:  ws,
	}

	switch assignment.ExtractionMethod {
	case models.ExtractionMethodSelector:
		rules, err := s.repo.Rules().List(ctx, assignmentID, true)
		if err != nil {
			return nil, err
		}
		if len(rules) == 0 {
			return nil, models.NewConfigError("assignment %s has no active extraction rules", assignmentID)
		}
		st.rules = rules
	case models.ExtractionMethodLLM:
		capture, err := assignment.GetCaptureConfig()
		if err != nil {
			return nil, models.NewConfigError("assignment %s: %v", assignmentID, err)
		}
		if capture == nil {
			return nil, models.NewConfigError("assignment %s has no capture config", assignmentID)
		}
		if s.llm == nil {
			return nil, models.NewConfigError("llm extraction is not configured")
		}
		st.capture = capture
	default:
		return nil, models.NewConfigError("assignment %s has unknown extraction method %q", assignmentID, assignment.ExtractionMethod)
	}
	return st, nil
}

func (s *Service) registerJob(jobID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[jobID] = cancel
}

func (s *Service) unregisterJob(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, jobID)
}

func (s *Service) cancelJob(jobID string) {
	s.mu.Lock()
	cancel := s.cancels[jobID]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// appendLog writes a process log entry, best effort
func (s *Service) appendLog(ctx context.Context, jobID string, level models.LogLevel, message, url string) {
	err := s.repo.Logs().Append(ctx, &models.ProcessLog{
		JobID:     jobID,
		Level:     level,
		Message:   message,
		URL:       url,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to append process log")
	}
}

// recordAudit emits an audit event, best effort
func (s *Service) recordAudit(ctx context.Context, eventType, assignmentID, jobID, dataSourceID string, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	if details == nil {
		details = map[string]interface{}{}
	}
	details["assignment_id"] = assignmentID
	encoded, _ := json.Marshal(details)

	err := s.audit.Record(ctx, &models.AuditEvent{
		EventType:    eventType,
		ResourceType: "job",
		ResourceID:   jobID,
		DataSourceID: dataSourceID,
		EventDetails: string(encoded),
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to record audit event")
	}
}

// updateJob persists the job's progress counters, best effort. Progress is
// merged onto the stored record so status and timestamps written through
// SetStatus are never clobbered; a job that has already reached a terminal
// state (a concurrent cancel) is left untouched.
func (s *Service) updateJob(st *runState) {
	stored, err := s.repo.Jobs().Get(st.ctx, st.job.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", st.job.ID).Msg("Failed to update job progress")
		return
	}
	if stored.Status.IsTerminal() {
		return
	}

	stored.PagesTotal = st.job.PagesTotal
	stored.PagesProcessed = st.job.PagesProcessed
	stored.RowsExtracted = st.job.RowsExtracted
	stored.RowsInserted = st.job.RowsInserted
	stored.RowsFailed = st.job.RowsFailed
	stored.CurrentURL = st.job.CurrentURL
	stored.ErrorDetails = st.job.ErrorDetails
	stored.StagedRowCount = st.job.StagedRowCount
	stored.StagedDataInline = st.job.StagedDataInline
	stored.StagedDataPath = st.job.StagedDataPath

	if err := s.repo.Jobs().Update(st.ctx, stored); err != nil {
		s.logger.Warn().Err(err).Str("job_id", st.job.ID).Msg("Failed to update job progress")
		return
	}
	st.job.Status = stored.Status
	st.job.StartedAt = stored.StartedAt
	st.job.CompletedAt = stored.CompletedAt
}
