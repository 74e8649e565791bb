package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

const defaultSampleRows = 10

// SampleResult is the outcome of a dry-run extraction of one page
type SampleResult struct {
	Rows      []interfaces.Row `json:"rows"`
	Columns   []string         `json:"columns,omitempty"`
	SourceURL string           `json:"source_url,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Commit inserts a staged job's rows into the target database. Only valid
// while the job is in staging. On failure the staged payload is retained so
// the operator can retry the commit.
func (s *Service) Commit(ctx context.Context, jobID string) (int, error) {
	job, err := s.repo.Jobs().Get(ctx, jobID)
	if err != nil {
		return 0, err
	}
	if job.Status != models.JobStatusStaging {
		return 0, fmt.Errorf("job %s is not awaiting commit (status %s)", jobID, job.Status)
	}

	pageSize := job.StagedRowCount
	if pageSize < 1 {
		pageSize = 1
	}
	page, err := s.staging.Get(ctx, jobID, 1, pageSize)
	if err != nil {
		if setErr := s.repo.Jobs().SetStatus(ctx, jobID, models.JobStatusFailed,
			fmt.Sprintf("staged payload unreadable: %v", err)); setErr != nil {
			s.logger.Warn().Err(setErr).Str("job_id", jobID).Msg("Failed to mark job failed")
		}
		s.recordAudit(ctx, models.AuditSyncFailed, job.AssignmentID, jobID, "", map[string]interface{}{
			"error": err.Error(),
		})
		return 0, err
	}

	if err := s.repo.Jobs().SetStatus(ctx, jobID, models.JobStatusRunning, ""); err != nil {
		return 0, err
	}
	// reload: the record fetched above still carries the staging status
	job, err = s.repo.Jobs().Get(ctx, jobID)
	if err != nil {
		return 0, err
	}

	st, err := s.loadConfig(ctx, job.AssignmentID)
	if err != nil {
		return 0, s.commitFailed(ctx, job, err)
	}
	st.job = job

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	st.ctx = jobCtx
	st.cancel = cancel
	s.registerJob(jobID, cancel)
	defer func() {
		s.unregisterJob(jobID)
		cancel()
	}()

	s.appendLog(jobCtx, jobID, models.LogLevelInfo,
		fmt.Sprintf("Committing %d staged rows", page.TotalRowCount), "")
	s.recordAudit(jobCtx, models.AuditSyncStarted, job.AssignmentID, jobID, st.dataSource.ID, map[string]interface{}{
		"rows": page.TotalRowCount,
	})

	inserted, failed, err := s.insertRows(st, page.Rows)
	st.job.RowsInserted = inserted
	st.job.RowsFailed = failed
	s.updateJob(st)

	if err != nil {
		if errors.Is(err, context.Canceled) || jobCtx.Err() != nil {
			// Cancel already transitioned the job and removed the staging data
			return inserted, context.Canceled
		}
		return inserted, s.commitFailed(jobCtx, job, err)
	}

	// The staged payload is consumed; the row count stays for reporting
	st.job.StagedDataInline = ""
	st.job.StagedDataPath = ""
	s.updateJob(st)
	if err := s.staging.Delete(jobID); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to remove staging file")
	}

	if err := s.repo.Jobs().SetStatus(jobCtx, jobID, models.JobStatusCompleted, ""); err != nil {
		return inserted, err
	}
	s.appendLog(jobCtx, jobID, models.LogLevelInfo,
		fmt.Sprintf("Commit complete: %d rows inserted, %d failed", inserted, failed), "")
	s.recordAudit(jobCtx, models.AuditSyncCompleted, job.AssignmentID, jobID, st.dataSource.ID, map[string]interface{}{
		"rows_inserted": inserted,
		"rows_failed":   failed,
	})
	s.logger.Info().
		Str("job_id", jobID).
		Int("rows_inserted", inserted).
		Int("rows_failed", failed).
		Msg("Staged job committed")
	return inserted, nil
}

// commitFailed marks a commit failure, keeping the staged payload
func (s *Service) commitFailed(ctx context.Context, job *models.ExtractionJob, cause error) error {
	if err := s.repo.Jobs().SetStatus(context.WithoutCancel(ctx), job.ID, models.JobStatusFailed, cause.Error()); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to mark job failed")
	}
	s.appendLog(context.WithoutCancel(ctx), job.ID, models.LogLevelError,
		fmt.Sprintf("Commit failed: %v", cause), "")
	s.recordAudit(context.WithoutCancel(ctx), models.AuditSyncFailed, job.AssignmentID, job.ID, "", map[string]interface{}{
		"error": cause.Error(),
	})
	s.logger.Error().Err(cause).Str("job_id", job.ID).Msg("Commit failed")
	return cause
}

// RunSample extracts one page for an assignment without creating a job or
// touching the target database. Pagination is not applied. Failures come
// back as an error string on the result.
func (s *Service) RunSample(ctx context.Context, assignmentID string, maxRows int) *SampleResult {
	if maxRows <= 0 {
		maxRows = defaultSampleRows
	}

	st, err := s.loadConfig(ctx, assignmentID)
	if err != nil {
		return &SampleResult{Error: err.Error()}
	}
	st.ctx = ctx

	scraper, err := s.scrapers(st.webSource)
	if err != nil {
		return &SampleResult{Error: err.Error()}
	}
	defer scraper.Close()

	pageURL := st.startURL()
	rows, err := s.extractPage(st, scraper, pageURL)
	if err != nil {
		return &SampleResult{SourceURL: pageURL, Error: err.Error()}
	}
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	return &SampleResult{
		Rows:      rows,
		Columns:   s.targetColumns(st),
		SourceURL: pageURL,
	}
}
