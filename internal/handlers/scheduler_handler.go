package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/interfaces"
)

// SchedulerHandler exposes the scheduler's entry table and running set
type SchedulerHandler struct {
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(sched interfaces.SchedulerService, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{scheduler: sched, logger: logger}
}

// StatusHandler returns the scheduled entries with their next fire times
// and the assignments currently running.
// GET /api/scheduler/status
func (h *SchedulerHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// UnscheduleHandler removes an assignment's cron entry without touching the
// assignment record.
// POST /api/scheduler/unschedule/{assignmentId}
func (h *SchedulerHandler) UnscheduleHandler(w http.ResponseWriter, r *http.Request, assignmentID string) {
	h.scheduler.Unschedule(assignmentID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assignment_id": assignmentID,
		"scheduled":     false,
	})
}
