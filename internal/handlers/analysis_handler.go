package handlers

import (
	"context"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
	"github.com/Fazmin/syncengine/internal/services/executor"
	"github.com/Fazmin/syncengine/internal/services/llm"
	"github.com/Fazmin/syncengine/internal/services/mapper"
)

// AnalysisHandler runs structure analysis and mapping suggestion against an
// assignment's web source and target schema.
type AnalysisHandler struct {
	repo     interfaces.Repository
	scrapers interfaces.ScraperFactory
	mapper   *mapper.Mapper
	llm      *llm.Service
	secrets  interfaces.SecretBox
	connect  executor.ConnectorFactory
	logger   arbor.ILogger
}

// NewAnalysisHandler creates a new analysis handler. llmSvc may be nil when
// no LLM provider is configured; LLM endpoints then return 503.
func NewAnalysisHandler(repo interfaces.Repository, scrapers interfaces.ScraperFactory, m *mapper.Mapper, llmSvc *llm.Service, secrets interfaces.SecretBox, connect executor.ConnectorFactory, logger arbor.ILogger) *AnalysisHandler {
	return &AnalysisHandler{
		repo:     repo,
		scrapers: scrapers,
		mapper:   m,
		llm:      llmSvc,
		secrets:  secrets,
		connect:  connect,
		logger:   logger,
	}
}

// assignmentContext is the resolved triple an analysis operates on
type assignmentContext struct {
	assignment *models.Assignment
	dataSource *models.DataSource
	webSource  *models.WebSource
}

func (c *assignmentContext) startURL() string {
	if c.assignment.StartURL != "" {
		return c.assignment.StartURL
	}
	return c.webSource.BaseURL
}

func (h *AnalysisHandler) loadAssignment(ctx context.Context, assignmentID string) (*assignmentContext, error) {
	assignment, err := h.repo.Assignments().Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	ds, err := h.repo.Sources().GetDataSource(ctx, assignment.DataSourceID)
	if err != nil {
		return nil, models.NewConfigError("data source %s not found", assignment.DataSourceID)
	}
	ws, err := h.repo.Sources().GetWebSource(ctx, assignment.WebSourceID)
	if err != nil {
		return nil, models.NewConfigError("web source %s not found", assignment.WebSourceID)
	}
	return &assignmentContext{assignment: assignment, dataSource: ds, webSource: ws}, nil
}

// listTables opens a short-lived connection to the target database and
// discovers its tables. The password is decrypted here and goes straight
// into the connector.
func (h *AnalysisHandler) listTables(ctx context.Context, ds *models.DataSource) ([]models.TableInfo, error) {
	password := ds.Password
	if h.secrets != nil && password != "" {
		decrypted, err := h.secrets.Decrypt(password)
		if err != nil {
			return nil, models.NewConfigError("data source %s: credential decryption failed", ds.ID)
		}
		password = decrypted
	}

	conn, err := h.connect(ds, password, h.logger)
	if err != nil {
		return nil, err
	}
	defer conn.Disconnect()

	if err := conn.Connect(ctx); err != nil {
		return nil, &models.ConnectionError{Target: ds.ID, Err: err}
	}
	return conn.ListTables(ctx)
}

// analyze runs both halves of a schema-aware analysis: web structure
// detection and target schema discovery.
func (h *AnalysisHandler) analyze(ctx context.Context, ac *assignmentContext) (*models.WebsiteStructure, *models.DatabaseSchema, error) {
	scraper, err := h.scrapers(ac.webSource)
	if err != nil {
		return nil, nil, err
	}
	defer scraper.Close()

	structure, err := scraper.AnalyzeStructure(ctx, ac.startURL())
	if err != nil {
		return nil, nil, &models.ConnectionError{Target: "web source", Err: err}
	}

	tables, err := h.listTables(ctx, ac.dataSource)
	if err != nil {
		return nil, nil, err
	}
	schema := mapper.AnalyzeDatabase(ac.dataSource.ID, ac.dataSource.DBType, tables)
	return structure, schema, nil
}

// SuggestMappingsHandler proposes extraction rules for an assignment by
// matching the page's detected fields to the target table's columns.
// POST /api/assignments/{id}/analyze/suggest
func (h *AnalysisHandler) SuggestMappingsHandler(w http.ResponseWriter, r *http.Request, assignmentID string) {
	ctx := r.Context()
	ac, err := h.loadAssignment(ctx, assignmentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	structure, schema, err := h.analyze(ctx, ac)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	suggestions := h.mapper.SuggestMappings(ctx, schema, structure, ac.assignment.TargetTable)
	rules := mapper.MappingsToExtractionRules(suggestions, assignmentID, schema)

	h.logger.Info().
		Str("assignment_id", assignmentID).
		Int("suggestions", len(suggestions)).
		Msg("Mapping suggestion completed")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"proposed_rules": rules,
		"suggestions":    suggestions,
	})
}

// AnalyzeWithSchemaHandler returns the proposed mappings together with
// coverage statistics over the target table.
// POST /api/assignments/{id}/analyze/schema
func (h *AnalysisHandler) AnalyzeWithSchemaHandler(w http.ResponseWriter, r *http.Request, assignmentID string) {
	ctx := r.Context()
	ac, err := h.loadAssignment(ctx, assignmentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	structure, schema, err := h.analyze(ctx, ac)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	suggestions := h.mapper.SuggestMappings(ctx, schema, structure, ac.assignment.TargetTable)

	writeJSON(w, http.StatusOK, &models.SchemaAwareAnalysis{
		ProposedMappings: suggestions,
		Summary:          summarizeMappings(schema, ac.assignment.TargetTable, suggestions),
	})
}

// summarizeMappings computes column coverage for a suggestion set
func summarizeMappings(schema *models.DatabaseSchema, targetTable string, suggestions []models.MappingSuggestion) models.MappingSummary {
	summary := models.MappingSummary{}
	if t := schema.FindTable(targetTable); t != nil {
		summary.TotalColumns = len(t.Columns)
	}

	mapped := make(map[string]bool)
	var total float64
	for _, s := range suggestions {
		mapped[s.DBColumn] = true
		total += s.Confidence
	}
	summary.MappedColumns = len(mapped)
	if summary.TotalColumns > summary.MappedColumns {
		summary.UnmappedColumns = summary.TotalColumns - summary.MappedColumns
	}
	if len(suggestions) > 0 {
		summary.AverageConfidence = total / float64(len(suggestions))
	}
	return summary
}

// LLMAnalyzeHandler runs phase-1 column availability analysis for an
// assignment's target table against its start page.
// POST /api/assignments/{id}/llm/analyze
func (h *AnalysisHandler) LLMAnalyzeHandler(w http.ResponseWriter, r *http.Request, assignmentID string) {
	if h.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "no llm provider configured")
		return
	}

	ctx := r.Context()
	ac, err := h.loadAssignment(ctx, assignmentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	tables, err := h.listTables(ctx, ac.dataSource)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	schema := mapper.AnalyzeDatabase(ac.dataSource.ID, ac.dataSource.DBType, tables)
	table := schema.FindTable(ac.assignment.TargetTable)
	if table == nil {
		writeServiceError(w, models.NewConfigError("target table %s not found in data source %s", ac.assignment.TargetTable, ac.dataSource.ID))
		return
	}

	scraper, err := h.scrapers(ac.webSource)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer scraper.Close()

	pageURL := ac.startURL()
	html, err := scraper.FetchHTML(ctx, pageURL)
	if err != nil {
		writeServiceError(w, &models.ConnectionError{Target: "web source", Err: err})
		return
	}

	columns := h.llm.AnalyzePage(ctx, html, table.Columns, pageURL)

	result := &models.LLMAnalysisResult{
		AssignmentID:   assignmentID,
		AssignmentName: ac.assignment.Name,
		TargetTable:    ac.assignment.TargetTable,
		DataSourceName: ac.dataSource.Name,
		Columns:        columns,
	}
	for _, c := range columns {
		result.Summary.TotalColumns++
		if c.IsAvailable {
			result.Summary.AvailableColumns++
		} else {
			result.Summary.UnavailableColumns++
		}
	}
	writeJSON(w, http.StatusOK, result)
}

type createCaptureRequest struct {
	Columns []models.ColumnAnalysis `json:"columns"`
}

// LLMCreateCaptureHandler builds a capture config from accepted column
// analyses, stores it on the assignment and flips the extraction method
// to llm.
// POST /api/assignments/{id}/llm/capture
func (h *AnalysisHandler) LLMCreateCaptureHandler(w http.ResponseWriter, r *http.Request, assignmentID string) {
	if h.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "no llm provider configured")
		return
	}

	var req createCaptureRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Columns) == 0 {
		writeError(w, http.StatusBadRequest, "columns are required")
		return
	}

	ctx := r.Context()
	assignment, err := h.repo.Assignments().Get(ctx, assignmentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	cfg, err := h.llm.CreateCapture(ctx, assignment.TargetTable, req.Columns)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.repo.Assignments().UpdateCaptureConfig(ctx, assignmentID, cfg); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.repo.Assignments().UpdateExtractionMethod(ctx, assignmentID, models.ExtractionMethodLLM); err != nil {
		writeServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("assignment_id", assignmentID).
		Int("mappings", len(cfg.ColumnMappings)).
		Msg("LLM capture config created")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "capture config created, extraction method set to llm",
		"capture_config": cfg,
	})
}
