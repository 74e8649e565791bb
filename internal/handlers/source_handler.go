package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
	"github.com/Fazmin/syncengine/internal/services/executor"
)

// SourceHandler manages data sources, web sources, assignments and their
// extraction rules. Passwords are encrypted before they reach the store and
// never leave it unmasked.
type SourceHandler struct {
	repo      interfaces.Repository
	secrets   *common.AESSecretBox
	connect   executor.ConnectorFactory
	scheduler interfaces.SchedulerService
	validate  *validator.Validate
	logger    arbor.ILogger
}

// NewSourceHandler creates a new source handler. secrets may be nil, in
// which case passwords are stored as given.
func NewSourceHandler(repo interfaces.Repository, secrets *common.AESSecretBox, connect executor.ConnectorFactory, sched interfaces.SchedulerService, logger arbor.ILogger) *SourceHandler {
	return &SourceHandler{
		repo:      repo,
		secrets:   secrets,
		connect:   connect,
		scheduler: sched,
		validate:  validator.New(),
		logger:    logger,
	}
}

// SaveDataSourceHandler creates or updates a data source.
// POST /api/sources/data
func (h *SourceHandler) SaveDataSourceHandler(w http.ResponseWriter, r *http.Request) {
	var ds models.DataSource
	if !decodeBody(w, r, &ds) {
		return
	}
	if err := h.validate.Struct(&ds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ds.ID == "" {
		ds.ID = common.NewSourceID()
	}
	if ds.ConnectionStatus == "" {
		ds.ConnectionStatus = models.ConnectionStatusUnknown
	}

	// seal the password unless it is already ciphertext
	if h.secrets != nil && ds.Password != "" && !h.secrets.IsEncrypted(ds.Password) {
		sealed, err := h.secrets.Encrypt(ds.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to encrypt credentials")
			return
		}
		ds.Password = sealed
	}

	if err := h.repo.Sources().SaveDataSource(r.Context(), &ds); err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Info().Str("data_source_id", ds.ID).Str("db_type", string(ds.DBType)).Msg("Data source saved")
	writeJSON(w, http.StatusOK, ds.Masked())
}

// GetDataSourceHandler returns a data source with the password masked.
// GET /api/sources/data/{id}
func (h *SourceHandler) GetDataSourceHandler(w http.ResponseWriter, r *http.Request, id string) {
	ds, err := h.repo.Sources().GetDataSource(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds.Masked())
}

// openConnector decrypts the source's password and builds its dialect
// connector. The plaintext stays local to the call.
func (h *SourceHandler) openConnector(ds *models.DataSource) (interfaces.Connector, error) {
	password := ds.Password
	if h.secrets != nil && password != "" {
		decrypted, err := h.secrets.Decrypt(password)
		if err != nil {
			return nil, models.NewConfigError("data source %s: credential decryption failed", ds.ID)
		}
		password = decrypted
	}
	return h.connect(ds, password, h.logger)
}

// TestConnectionHandler probes the data source and records the outcome on
// the record.
// POST /api/sources/data/{id}/test
func (h *SourceHandler) TestConnectionHandler(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	ds, err := h.repo.Sources().GetDataSource(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	conn, err := h.openConnector(ds)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	result := conn.TestConnection(ctx)

	ds.ConnectionStatus = models.ConnectionStatusFailed
	if result.OK {
		ds.ConnectionStatus = models.ConnectionStatusConnected
	}
	now := common.SystemClock{}.Now()
	ds.LastTestedAt = &now
	if err := h.repo.Sources().SaveDataSource(ctx, ds); err != nil {
		h.logger.Warn().Err(err).Str("data_source_id", id).Msg("Failed to record connection test outcome")
	}

	writeJSON(w, http.StatusOK, result)
}

// ListTablesHandler discovers the source database's tables and columns.
// GET /api/sources/data/{id}/tables
func (h *SourceHandler) ListTablesHandler(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	ds, err := h.repo.Sources().GetDataSource(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	conn, err := h.openConnector(ds)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer conn.Disconnect()

	if err := conn.Connect(ctx); err != nil {
		writeServiceError(w, &models.ConnectionError{Target: id, Err: err})
		return
	}
	tables, err := conn.ListTables(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tables": tables,
		"count":  len(tables),
	})
}

// SaveWebSourceHandler creates or updates a web source.
// POST /api/sources/web
func (h *SourceHandler) SaveWebSourceHandler(w http.ResponseWriter, r *http.Request) {
	var ws models.WebSource
	if !decodeBody(w, r, &ws) {
		return
	}
	if ws.ScraperType == "" {
		ws.ScraperType = models.ScraperTypeHTTP
	}
	if ws.AuthType == "" {
		ws.AuthType = models.AuthTypeNone
	}
	if ws.MaxConcurrent == 0 {
		ws.MaxConcurrent = 1
	}
	if err := h.validate.Struct(&ws); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ws.ID == "" {
		ws.ID = common.NewSourceID()
	}

	if err := h.repo.Sources().SaveWebSource(r.Context(), &ws); err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Info().Str("web_source_id", ws.ID).Str("base_url", ws.BaseURL).Msg("Web source saved")
	writeJSON(w, http.StatusOK, &ws)
}

// GetWebSourceHandler returns a web source.
// GET /api/sources/web/{id}
func (h *SourceHandler) GetWebSourceHandler(w http.ResponseWriter, r *http.Request, id string) {
	ws, err := h.repo.Sources().GetWebSource(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// SaveAssignmentHandler creates or updates an assignment and keeps the
// scheduler in sync with its schedule.
// POST /api/assignments
func (h *SourceHandler) SaveAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	var assignment models.Assignment
	if !decodeBody(w, r, &assignment) {
		return
	}
	if assignment.SyncMode == "" {
		assignment.SyncMode = models.SyncModeManual
	}
	if assignment.ScheduleType == "" {
		assignment.ScheduleType = models.ScheduleTypeManual
	}
	if assignment.ExtractionMethod == "" {
		assignment.ExtractionMethod = models.ExtractionMethodSelector
	}
	if assignment.Status == "" {
		assignment.Status = models.AssignmentStatusDraft
	}
	if err := h.validate.Struct(&assignment); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if assignment.ScheduleType == models.ScheduleTypeCron {
		if err := common.ValidateCronSpec(assignment.CronExpression); err != nil {
			writeError(w, http.StatusBadRequest, "invalid cron expression: "+err.Error())
			return
		}
	}
	if assignment.ID == "" {
		assignment.ID = common.NewAssignmentID()
	}

	if err := h.repo.Assignments().Save(r.Context(), &assignment); err != nil {
		writeServiceError(w, err)
		return
	}

	// only active auto assignments hold a cron entry
	if h.scheduler != nil {
		if assignment.Status == models.AssignmentStatusActive && assignment.SyncMode == models.SyncModeAuto {
			if err := h.scheduler.Schedule(&assignment); err != nil {
				h.logger.Warn().Err(err).Str("assignment_id", assignment.ID).Msg("Assignment saved but not scheduled")
			}
		} else {
			h.scheduler.Unschedule(assignment.ID)
		}
	}

	h.logger.Info().Str("assignment_id", assignment.ID).Str("name", assignment.Name).Msg("Assignment saved")
	writeJSON(w, http.StatusOK, &assignment)
}

// GetAssignmentHandler returns an assignment.
// GET /api/assignments/{id}
func (h *SourceHandler) GetAssignmentHandler(w http.ResponseWriter, r *http.Request, id string) {
	assignment, err := h.repo.Assignments().Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

type replaceRulesRequest struct {
	Rules []*models.ExtractionRule `json:"rules"`
}

// ReplaceRulesHandler atomically swaps an assignment's rule set.
// PUT /api/assignments/{id}/rules
func (h *SourceHandler) ReplaceRulesHandler(w http.ResponseWriter, r *http.Request, assignmentID string) {
	ctx := r.Context()
	if _, err := h.repo.Assignments().Get(ctx, assignmentID); err != nil {
		writeServiceError(w, err)
		return
	}

	var req replaceRulesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	for i, rule := range req.Rules {
		rule.AssignmentID = assignmentID
		if rule.ID == "" {
			rule.ID = common.NewRuleID()
		}
		if rule.SelectorType == "" {
			rule.SelectorType = models.SelectorTypeCSS
		}
		if rule.Attribute == "" {
			rule.Attribute = models.AttributeText
		}
		if rule.DataType == "" {
			rule.DataType = models.RuleDataTypeString
		}
		if rule.SortOrder == 0 {
			rule.SortOrder = i
		}
		if err := h.validate.Struct(rule); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.repo.Rules().ReplaceAll(ctx, assignmentID, req.Rules); err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Info().Str("assignment_id", assignmentID).Int("rules", len(req.Rules)).Msg("Extraction rules replaced")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": req.Rules,
		"count": len(req.Rules),
	})
}

// ListRulesHandler returns an assignment's rules ordered by sort order.
// GET /api/assignments/{id}/rules?active=true
func (h *SourceHandler) ListRulesHandler(w http.ResponseWriter, r *http.Request, assignmentID string) {
	activeOnly := r.URL.Query().Get("active") == "true"
	rules, err := h.repo.Rules().List(r.Context(), assignmentID, activeOnly)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}
