// -----------------------------------------------------------------------
// Scheduler - cron-driven assignment runs with single-flight per assignment
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// Runner starts extraction runs. Satisfied by the executor; narrowed so
// tests can stub it.
type Runner interface {
	RunDetached(ctx context.Context, assignmentID string, mode models.SyncMode, trigger models.TriggeredBy) (string, <-chan struct{}, error)
}

type entry struct {
	spec string
	id   cron.EntryID
}

// Service is the in-process scheduler. Schedules live only as assignment
// records; the cron table is rebuilt from them at startup. The running set
// is the single-flight guard shared by cron ticks and manual triggers.
type Service struct {
	cron   *cron.Cron
	runner Runner
	repo   interfaces.Repository
	logger arbor.ILogger

	mu      sync.Mutex
	entries map[string]*entry
	running map[string]bool
}

// New creates a scheduler over the standard 5-field cron syntax
func New(runner Runner, repo interfaces.Repository, logger arbor.ILogger) *Service {
	return &Service{
		cron:    cron.New(),
		runner:  runner,
		repo:    repo,
		logger:  logger,
		entries: make(map[string]*entry),
		running: make(map[string]bool),
	}
}

// Initialize fails any jobs orphaned by a previous process, schedules all
// active auto assignments and starts the cron.
func (s *Service) Initialize(ctx context.Context) error {
	s.recoverOrphanedJobs(ctx)

	assignments, err := s.repo.Assignments().ListActiveAuto(ctx)
	if err != nil {
		return fmt.Errorf("failed to list schedulable assignments: %w", err)
	}
	for _, a := range assignments {
		if err := s.Schedule(a); err != nil {
			s.logger.Warn().Err(err).Str("assignment_id", a.ID).Msg("Skipping unschedulable assignment")
		}
	}

	s.cron.Start()
	s.logger.Info().Int("scheduled", len(assignments)).Msg("Scheduler started")
	return nil
}

// recoverOrphanedJobs fails pending and running jobs left behind by a
// previous process. Staged jobs survive restarts awaiting commit.
func (s *Service) recoverOrphanedJobs(ctx context.Context) {
	for _, status := range []models.JobStatus{models.JobStatusRunning, models.JobStatusPending} {
		jobs, err := s.repo.Jobs().ListByStatus(ctx, status)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to scan for orphaned jobs")
			continue
		}
		for _, job := range jobs {
			if err := s.repo.Jobs().SetStatus(ctx, job.ID, models.JobStatusFailed, "interrupted by process restart"); err != nil {
				s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to fail orphaned job")
				continue
			}
			s.logger.Info().Str("job_id", job.ID).Msg("Failed orphaned job from previous run")
		}
	}
}

// Schedule registers (or replaces) the cron entry for an assignment.
// Manual scheduling unschedules.
func (s *Service) Schedule(assignment *models.Assignment) error {
	spec := assignment.CronSpec()
	if spec == "" {
		s.Unschedule(assignment.ID)
		return nil
	}
	if err := common.ValidateCronSpec(spec); err != nil {
		s.logger.Error().Err(err).
			Str("assignment_id", assignment.ID).
			Msg("Refusing to schedule assignment with invalid cron expression")
		return err
	}

	assignmentID := assignment.ID
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[assignmentID]; ok {
		s.cron.Remove(existing.id)
	}
	id, err := s.cron.AddFunc(spec, func() { s.onTick(assignmentID) })
	if err != nil {
		return fmt.Errorf("failed to register cron entry: %w", err)
	}
	s.entries[assignmentID] = &entry{spec: spec, id: id}

	s.logger.Info().
		Str("assignment_id", assignmentID).
		Str("cron", spec).
		Msg("Assignment scheduled")
	return nil
}

// Unschedule cancels any pending tick for the assignment
func (s *Service) Unschedule(assignmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[assignmentID]; ok {
		s.cron.Remove(existing.id)
		delete(s.entries, assignmentID)
		s.logger.Info().Str("assignment_id", assignmentID).Msg("Assignment unscheduled")
	}
}

// onTick fires one scheduled run, skipping when the assignment is already
// running
func (s *Service) onTick(assignmentID string) {
	if !s.acquire(assignmentID) {
		s.logger.Info().Str("assignment_id", assignmentID).Msg("Tick skipped, assignment already running")
		return
	}

	ctx := context.Background()
	assignment, err := s.repo.Assignments().Get(ctx, assignmentID)
	if err != nil {
		s.release(assignmentID)
		s.logger.Warn().Err(err).Str("assignment_id", assignmentID).Msg("Scheduled assignment no longer loadable")
		return
	}

	jobID, done, err := s.runner.RunDetached(ctx, assignmentID, assignment.SyncMode, models.TriggeredBySchedule)
	if err != nil {
		s.release(assignmentID)
		s.logger.Error().Err(err).Str("assignment_id", assignmentID).Msg("Scheduled run failed to start")
		return
	}
	s.logger.Info().
		Str("assignment_id", assignmentID).
		Str("job_id", jobID).
		Msg("Scheduled run started")

	go func() {
		<-done
		s.release(assignmentID)
	}()
}

// TriggerNow runs an assignment immediately, subject to the single-flight
// guard. Returns the new job id.
func (s *Service) TriggerNow(ctx context.Context, assignmentID string, mode models.SyncMode) (string, error) {
	if !s.acquire(assignmentID) {
		return "", models.ErrAlreadyRunning
	}

	jobID, done, err := s.runner.RunDetached(ctx, assignmentID, mode, models.TriggeredByAPI)
	if err != nil {
		s.release(assignmentID)
		return "", err
	}
	go func() {
		<-done
		s.release(assignmentID)
	}()
	return jobID, nil
}

// acquire is the single-flight check-and-insert
func (s *Service) acquire(assignmentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[assignmentID] {
		return false
	}
	s.running[assignmentID] = true
	return true
}

func (s *Service) release(assignmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, assignmentID)
}

// Status returns a snapshot of scheduled entries and the running set
func (s *Service) Status() interfaces.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := interfaces.SchedulerStatus{
		Scheduled: make([]interfaces.ScheduledEntry, 0, len(s.entries)),
		Running:   make([]string, 0, len(s.running)),
	}
	for assignmentID, e := range s.entries {
		scheduled := interfaces.ScheduledEntry{
			AssignmentID: assignmentID,
			CronSpec:     e.spec,
		}
		if next := s.cron.Entry(e.id).Next; !next.IsZero() {
			scheduled.NextRun = &next
		}
		status.Scheduled = append(status.Scheduled, scheduled)
	}
	for assignmentID := range s.running {
		status.Running = append(status.Running, assignmentID)
	}
	return status
}

// Stop cancels every entry. In-flight runs finish on their own.
func (s *Service) Stop() {
	s.cron.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	for assignmentID, e := range s.entries {
		s.cron.Remove(e.id)
		delete(s.entries, assignmentID)
	}
	s.logger.Info().Msg("Scheduler stopped")
}
