package handlers

import (
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
	"github.com/Fazmin/syncengine/internal/services/executor"
)

const (
	defaultLogLimit = 200
	defaultPageSize = 50
)

// ExtractionHandler exposes job triggering, staged data review, commit and
// cancellation. Triggers go through the scheduler so manual runs share the
// single-flight guard with cron ticks.
type ExtractionHandler struct {
	executor  *executor.Service
	scheduler interfaces.SchedulerService
	repo      interfaces.Repository
	staging   interfaces.StagingStore
	logger    arbor.ILogger
}

// NewExtractionHandler creates a new extraction handler
func NewExtractionHandler(exec *executor.Service, sched interfaces.SchedulerService, repo interfaces.Repository, staging interfaces.StagingStore, logger arbor.ILogger) *ExtractionHandler {
	return &ExtractionHandler{
		executor:  exec,
		scheduler: sched,
		repo:      repo,
		staging:   staging,
		logger:    logger,
	}
}

type triggerRequest struct {
	Mode string `json:"mode,omitempty"` // manual or auto, defaults to the assignment's sync mode
}

// TriggerHandler starts an extraction run for an assignment.
// POST /api/assignments/{id}/trigger
func (h *ExtractionHandler) TriggerHandler(w http.ResponseWriter, r *http.Request, assignmentID string) {
	var req triggerRequest
	if r.ContentLength > 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	mode := models.SyncMode(req.Mode)
	if mode == "" {
		assignment, err := h.repo.Assignments().Get(r.Context(), assignmentID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		mode = assignment.SyncMode
	}
	if mode != models.SyncModeManual && mode != models.SyncModeAuto {
		writeError(w, http.StatusBadRequest, "mode must be manual or auto")
		return
	}

	jobID, err := h.scheduler.TriggerNow(r.Context(), assignmentID, mode)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("assignment_id", assignmentID).
		Str("job_id", jobID).
		Str("mode", string(mode)).
		Msg("Extraction triggered via API")
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": jobID,
		"mode":   string(mode),
	})
}

// SampleHandler runs a dry extraction of the first page without creating a
// job or touching the target database.
// POST /api/assignments/{id}/sample?rows=10
func (h *ExtractionHandler) SampleHandler(w http.ResponseWriter, r *http.Request, assignmentID string) {
	maxRows := queryInt(r, "rows", 0)
	result := h.executor.RunSample(r.Context(), assignmentID, maxRows)
	writeJSON(w, http.StatusOK, result)
}

// GetJobHandler returns a job record.
// GET /api/jobs/{id}
func (h *ExtractionHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.repo.Jobs().Get(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListJobsHandler lists jobs filtered by status.
// GET /api/jobs?status=running
func (h *ExtractionHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	status := models.JobStatus(r.URL.Query().Get("status"))
	if status == "" {
		writeError(w, http.StatusBadRequest, "status query parameter is required")
		return
	}
	jobs, err := h.repo.Jobs().ListByStatus(r.Context(), status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// JobLogsHandler returns the most recent process logs for a job in
// chronological order.
// GET /api/jobs/{id}/logs?limit=200
func (h *ExtractionHandler) JobLogsHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, err := h.repo.Jobs().Get(r.Context(), jobID); err != nil {
		writeServiceError(w, err)
		return
	}
	limit := queryInt(r, "limit", defaultLogLimit)
	logs, err := h.repo.Logs().ListByJob(r.Context(), jobID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

// StagedDataHandler pages through the rows a manual-mode job staged for
// review.
// GET /api/jobs/{id}/staged?page=1&page_size=50
func (h *ExtractionHandler) StagedDataHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.repo.Jobs().Get(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if job.Status != models.JobStatusStaging {
		writeError(w, http.StatusConflict, "job "+jobID+" has no staged data awaiting review (status "+string(job.Status)+")")
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", defaultPageSize)
	staged, err := h.staging.Get(r.Context(), jobID, page, pageSize)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows":      staged.Rows,
		"columns":   staged.Columns,
		"total":     staged.TotalRowCount,
		"page":      page,
		"page_size": pageSize,
	})
}

// CommitHandler inserts a staging job's rows into the target database.
// POST /api/jobs/{id}/commit
func (h *ExtractionHandler) CommitHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	inserted, err := h.executor.Commit(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":        jobID,
		"rows_inserted": inserted,
	})
}

// CancelHandler cancels a pending, running or staging job. Cancelling a
// terminal job succeeds without effect.
// POST /api/jobs/{id}/cancel
func (h *ExtractionHandler) CancelHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := h.executor.Cancel(r.Context(), jobID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": jobID,
		"status": "cancelled",
	})
}

// queryInt parses an integer query parameter with a fallback
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
