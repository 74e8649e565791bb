package server

import (
	"net/http"
	"strings"
)

// setupRoutes registers all API routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// System
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	// Sources
	mux.HandleFunc("/api/sources/data", s.app.SourceHandler.SaveDataSourceHandler) // POST
	mux.HandleFunc("/api/sources/data/", s.handleDataSourceRoutes)                 // GET /{id}, POST /{id}/test, GET /{id}/tables
	mux.HandleFunc("/api/sources/web", s.app.SourceHandler.SaveWebSourceHandler)   // POST
	mux.HandleFunc("/api/sources/web/", s.handleWebSourceRoutes)                   // GET /{id}

	// Assignments and analysis
	mux.HandleFunc("/api/assignments", s.app.SourceHandler.SaveAssignmentHandler) // POST
	mux.HandleFunc("/api/assignments/", s.handleAssignmentRoutes)

	// Jobs
	mux.HandleFunc("/api/jobs", s.app.ExtractionHandler.ListJobsHandler) // GET ?status=
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)

	// Scheduler
	mux.HandleFunc("/api/scheduler/status", s.app.SchedulerHandler.StatusHandler) // GET
	mux.HandleFunc("/api/scheduler/unschedule/", s.handleSchedulerRoutes)         // POST /{assignmentId}

	// Fallback
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// splitRoute returns the id and action segments of a subtree path.
// "/api/jobs/j1/commit" with prefix "/api/jobs/" yields ("j1", "commit").
func splitRoute(path, prefix string) (id, action string) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	parts := strings.SplitN(rest, "/", 2)
	id = parts[0]
	if len(parts) > 1 {
		action = parts[1]
	}
	return id, action
}

// handleDataSourceRoutes dispatches /api/sources/data/{id}[/...]
func (s *Server) handleDataSourceRoutes(w http.ResponseWriter, r *http.Request) {
	id, action := splitRoute(r.URL.Path, "/api/sources/data/")
	if id == "" {
		http.Error(w, "data source id required", http.StatusBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.app.SourceHandler.GetDataSourceHandler(w, r, id)
	case action == "test" && r.Method == http.MethodPost:
		s.app.SourceHandler.TestConnectionHandler(w, r, id)
	case action == "tables" && r.Method == http.MethodGet:
		s.app.SourceHandler.ListTablesHandler(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWebSourceRoutes dispatches /api/sources/web/{id}
func (s *Server) handleWebSourceRoutes(w http.ResponseWriter, r *http.Request) {
	id, action := splitRoute(r.URL.Path, "/api/sources/web/")
	if id == "" || action != "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.app.SourceHandler.GetWebSourceHandler(w, r, id)
}

// handleAssignmentRoutes dispatches /api/assignments/{id}[/...]
func (s *Server) handleAssignmentRoutes(w http.ResponseWriter, r *http.Request) {
	id, action := splitRoute(r.URL.Path, "/api/assignments/")
	if id == "" {
		http.Error(w, "assignment id required", http.StatusBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.app.SourceHandler.GetAssignmentHandler(w, r, id)
	case action == "rules" && r.Method == http.MethodGet:
		s.app.SourceHandler.ListRulesHandler(w, r, id)
	case action == "rules" && r.Method == http.MethodPut:
		s.app.SourceHandler.ReplaceRulesHandler(w, r, id)
	case action == "trigger" && r.Method == http.MethodPost:
		s.app.ExtractionHandler.TriggerHandler(w, r, id)
	case action == "sample" && r.Method == http.MethodPost:
		s.app.ExtractionHandler.SampleHandler(w, r, id)
	case action == "analyze/suggest" && r.Method == http.MethodPost:
		s.app.AnalysisHandler.SuggestMappingsHandler(w, r, id)
	case action == "analyze/schema" && r.Method == http.MethodPost:
		s.app.AnalysisHandler.AnalyzeWithSchemaHandler(w, r, id)
	case action == "llm/analyze" && r.Method == http.MethodPost:
		s.app.AnalysisHandler.LLMAnalyzeHandler(w, r, id)
	case action == "llm/capture" && r.Method == http.MethodPost:
		s.app.AnalysisHandler.LLMCreateCaptureHandler(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes dispatches /api/jobs/{id}[/...]
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	id, action := splitRoute(r.URL.Path, "/api/jobs/")
	if id == "" {
		http.Error(w, "job id required", http.StatusBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.app.ExtractionHandler.GetJobHandler(w, r, id)
	case action == "logs" && r.Method == http.MethodGet:
		s.app.ExtractionHandler.JobLogsHandler(w, r, id)
	case action == "staged" && r.Method == http.MethodGet:
		s.app.ExtractionHandler.StagedDataHandler(w, r, id)
	case action == "commit" && r.Method == http.MethodPost:
		s.app.ExtractionHandler.CommitHandler(w, r, id)
	case action == "cancel" && r.Method == http.MethodPost:
		s.app.ExtractionHandler.CancelHandler(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSchedulerRoutes dispatches /api/scheduler/unschedule/{assignmentId}
func (s *Server) handleSchedulerRoutes(w http.ResponseWriter, r *http.Request) {
	id, action := splitRoute(r.URL.Path, "/api/scheduler/unschedule/")
	if id == "" || action != "" {
		http.Error(w, "assignment id required", http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.app.SchedulerHandler.UnscheduleHandler(w, r, id)
}
