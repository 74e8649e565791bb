package executor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
	"github.com/Fazmin/syncengine/internal/services/scraper"
	"github.com/Fazmin/syncengine/internal/services/staging"
	"github.com/Fazmin/syncengine/internal/storage/badger"
)

// stubConnector records executed statements and can fail selected rows
type stubConnector struct {
	mu        sync.Mutex
	execs     []execCall
	failWhen  func(params []interface{}) bool
	connected bool
}

type execCall struct {
	query  string
	params []interface{}
}

func (c *stubConnector) Connect(ctx context.Context) error { c.connected = true; return nil }
func (c *stubConnector) TestConnection(ctx context.Context) interfaces.TestResult {
	return interfaces.TestResult{OK: true}
}
func (c *stubConnector) ListTables(ctx context.Context) ([]models.TableInfo, error) {
	return nil, nil
}
func (c *stubConnector) Query(ctx context.Context, query string, params []interface{}) ([]interfaces.Row, error) {
	return nil, nil
}
func (c *stubConnector) Stream(ctx context.Context, query string, params []interface{}, batchSize int) (interfaces.RowStream, error) {
	return nil, fmt.Errorf("not supported")
}
func (c *stubConnector) Exec(ctx context.Context, query string, params []interface{}) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWhen != nil && c.failWhen(params) {
		return 0, fmt.Errorf("constraint violation")
	}
	c.execs = append(c.execs, execCall{query: query, params: params})
	return 1, nil
}
func (c *stubConnector) Placeholder(index int) string      { return fmt.Sprintf("$%d", index) }
func (c *stubConnector) QuoteIdentifier(name string) string { return `"` + name + `"` }
func (c *stubConnector) DBType() models.DBType              { return models.DBTypePostgres }
func (c *stubConnector) Disconnect() error                  { return nil }

func (c *stubConnector) execCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.execs)
}

// recordingAudit collects emitted audit event types
type recordingAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAudit) Record(_ context.Context, event *models.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event.EventType)
	return nil
}

func (a *recordingAudit) has(eventType string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.events {
		if e == eventType {
			return true
		}
	}
	return false
}

// stubExtractor is a canned StructuredExtractor
type stubExtractor struct {
	rows []interfaces.Row
	err  error
}

func (e *stubExtractor) ExtractStructured(_ context.Context, _ string, _ *models.LLMCaptureConfig, _ string) ([]interfaces.Row, error) {
	return e.rows, e.err
}

type testRig struct {
	svc       *Service
	repo      *badger.Repository
	staging   interfaces.StagingStore
	connector *stubConnector
	audit     *recordingAudit
}

func newRig(t *testing.T, llm interfaces.StructuredExtractor) *testRig {
	t.Helper()
	logger := common.GetLogger()

	repo, err := badger.NewRepository(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	store := staging.New(common.StagingConfig{Root: t.TempDir(), InlineThreshold: 1 << 20}, repo.Jobs(), logger)
	connector := &stubConnector{}
	audit := &recordingAudit{}

	cfg := common.NewDefaultConfig().Scraper
	cfg.RequestTimeout = 5 * time.Second

	svc := New(Deps{
		Repo:     repo,
		Audit:    audit,
		Staging:  store,
		Scrapers: scraper.Factory(cfg, logger),
		LLM:      llm,
		Connectors: func(_ *models.DataSource, _ string, _ arbor.ILogger) (interfaces.Connector, error) {
			return connector, nil
		},
		Logger: logger,
	})
	return &testRig{svc: svc, repo: repo, staging: store, connector: connector, audit: audit}
}

func productPage(items ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for i, name := range items {
		fmt.Fprintf(&b, `<li class="p"><span class="name">%s</span><span class="price">$%d.50</span></li>`, name, i+1)
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

func productRules() []*models.ExtractionRule {
	return []*models.ExtractionRule{
		{
			ID: "r_name", TargetColumn: "name", Selector: ".p .name",
			SelectorType: models.SelectorTypeCSS, Attribute: models.AttributeText,
			DataType: models.RuleDataTypeString, IsActive: true, SortOrder: 1,
		},
		{
			ID: "r_price", TargetColumn: "price", Selector: ".p .price",
			SelectorType: models.SelectorTypeCSS, Attribute: models.AttributeText,
			DataType: models.RuleDataTypeNumber, TransformType: models.TransformRegex,
			TransformConfig: `{"pattern":"\\$([0-9.]+)","group":1}`,
			IsActive:        true, SortOrder: 2,
		},
	}
}

// seed persists a data source, web source, assignment and rules
func (r *testRig) seed(t *testing.T, ws *models.WebSource, a *models.Assignment, rules []*models.ExtractionRule) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, r.repo.Sources().SaveDataSource(ctx, &models.DataSource{
		ID: "ds_1", Name: "warehouse", DBType: models.DBTypePostgres,
		Host: "localhost", Port: 5432, Database: "warehouse", Username: "etl",
	}))
	require.NoError(t, r.repo.Sources().SaveWebSource(ctx, ws))
	require.NoError(t, r.repo.Assignments().Save(ctx, a))
	if len(rules) > 0 {
		require.NoError(t, r.repo.Rules().ReplaceAll(ctx, a.ID, rules))
	}
}

func baseAssignment(mode models.SyncMode) *models.Assignment {
	return &models.Assignment{
		ID: "asg_1", Name: "products", DataSourceID: "ds_1", WebSourceID: "ws_1",
		TargetSchema: "public", TargetTable: "products",
		SyncMode: mode, ScheduleType: models.ScheduleTypeManual,
		Status: models.AssignmentStatusActive, ExtractionMethod: models.ExtractionMethodSelector,
	}
}

func TestRunAutoSelectorPaginated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "", "1":
			fmt.Fprint(w, productPage("Alpha", "Beta", "Gamma"))
		case "2":
			fmt.Fprint(w, productPage("Delta", "Epsilon", "Zeta"))
		default:
			fmt.Fprint(w, productPage())
		}
	}))
	defer server.Close()

	rig := newRig(t, nil)
	rig.seed(t, &models.WebSource{
		ID: "ws_1", BaseURL: server.URL + "/list", ScraperType: models.ScraperTypeHTTP,
		AuthType: models.AuthTypeNone, MaxConcurrent: 1,
		PaginationType:   models.PaginationTypeQueryParam,
		PaginationConfig: `{"type":"query_param","param_name":"page","max_pages":2}`,
	}, baseAssignment(models.SyncModeAuto), productRules())

	jobID, err := rig.svc.Run(context.Background(), "asg_1", models.SyncModeAuto, models.TriggeredByManual)
	require.NoError(t, err)

	job, err := rig.repo.Jobs().Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.PagesProcessed)
	assert.Equal(t, 6, job.RowsExtracted)
	assert.Equal(t, 6, job.RowsInserted)
	assert.Equal(t, 0, job.RowsFailed)

	require.Equal(t, 6, rig.connector.execCount())
	first := rig.connector.execs[0]
	assert.Equal(t, `INSERT INTO "public"."products" ("name", "price") VALUES ($1, $2)`, first.query)
	assert.Equal(t, "Alpha", first.params[0])
	assert.Equal(t, 1.50, first.params[1])

	assert.True(t, rig.audit.has(models.AuditExtractionStarted))
	assert.True(t, rig.audit.has(models.AuditSyncCompleted))
}

func TestRunManualStagingAndCommit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, productPage("Alpha", "Beta", "Gamma"))
	}))
	defer server.Close()

	rig := newRig(t, nil)
	rig.seed(t, &models.WebSource{
		ID: "ws_1", BaseURL: server.URL, ScraperType: models.ScraperTypeHTTP,
		AuthType: models.AuthTypeNone, MaxConcurrent: 1,
	}, baseAssignment(models.SyncModeManual), productRules())

	ctx := context.Background()
	jobID, err := rig.svc.Run(ctx, "asg_1", models.SyncModeManual, models.TriggeredByAPI)
	require.NoError(t, err)

	job, err := rig.repo.Jobs().Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusStaging, job.Status)
	assert.Equal(t, 3, job.StagedRowCount)
	assert.Equal(t, 0, rig.connector.execCount())

	page, err := rig.staging.Get(ctx, jobID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Rows, 3)

	inserted, err := rig.svc.Commit(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	job, err = rig.repo.Jobs().Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.RowsInserted)
	assert.Empty(t, job.StagedDataInline)
	assert.Empty(t, job.StagedDataPath)

	// staged payload is gone after commit
	_, err = rig.staging.Get(ctx, jobID, 1, 10)
	assert.Error(t, err)
}

func TestRunPerURLFailureContinues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "broken") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, productPage("Alpha", "Beta"))
	}))
	defer server.Close()

	rig := newRig(t, nil)
	rig.seed(t, &models.WebSource{
		ID: "ws_1", BaseURL: server.URL + "/a", IsListMode: true,
		URLList:     []string{server.URL + "/broken", server.URL + "/c"},
		ScraperType: models.ScraperTypeHTTP, AuthType: models.AuthTypeNone, MaxConcurrent: 1,
	}, baseAssignment(models.SyncModeAuto), productRules())

	ctx := context.Background()
	jobID, err := rig.svc.Run(ctx, "asg_1", models.SyncModeAuto, models.TriggeredByManual)
	require.NoError(t, err)

	job, err := rig.repo.Jobs().Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.PagesProcessed)
	assert.Equal(t, 4, job.RowsExtracted)
	assert.Equal(t, 4, job.RowsInserted)

	logs, err := rig.repo.Logs().ListByJob(ctx, jobID, 0)
	require.NoError(t, err)
	foundError := false
	for _, l := range logs {
		if l.Level == models.LogLevelError && strings.Contains(l.URL, "broken") {
			foundError = true
		}
	}
	assert.True(t, foundError, "expected an error log referencing the failing URL")
}

func TestRunFailsFastOnMissingRules(t *testing.T) {
	rig := newRig(t, nil)
	rig.seed(t, &models.WebSource{
		ID: "ws_1", BaseURL: "http://example.test", ScraperType: models.ScraperTypeHTTP,
		AuthType: models.AuthTypeNone, MaxConcurrent: 1,
	}, baseAssignment(models.SyncModeAuto), nil)

	ctx := context.Background()
	_, err := rig.svc.Run(ctx, "asg_1", models.SyncModeAuto, models.TriggeredByManual)
	require.Error(t, err)
	assert.True(t, models.IsConfigError(err))

	// no job was created
	for _, status := range []models.JobStatus{models.JobStatusPending, models.JobStatusRunning, models.JobStatusFailed} {
		jobs, err := rig.repo.Jobs().ListByStatus(ctx, status)
		require.NoError(t, err)
		assert.Empty(t, jobs)
	}
}

func TestRunFailsFastOnMissingCaptureConfig(t *testing.T) {
	rig := newRig(t, &stubExtractor{})
	a := baseAssignment(models.SyncModeAuto)
	a.ExtractionMethod = models.ExtractionMethodLLM
	rig.seed(t, &models.WebSource{
		ID: "ws_1", BaseURL: "http://example.test", ScraperType: models.ScraperTypeHTTP,
		AuthType: models.AuthTypeNone, MaxConcurrent: 1,
	}, a, nil)

	_, err := rig.svc.Run(context.Background(), "asg_1", models.SyncModeAuto, models.TriggeredByManual)
	require.Error(t, err)
	assert.True(t, models.IsConfigError(err))
}

func TestRunLLMPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>customer directory</body></html>")
	}))
	defer server.Close()

	extractor := &stubExtractor{rows: []interfaces.Row{
		{"email": "a@example.test"},
		{"email": "b@example.test"},
	}}
	rig := newRig(t, extractor)

	a := baseAssignment(models.SyncModeAuto)
	a.TargetSchema = ""
	a.TargetTable = "customers"
	a.ExtractionMethod = models.ExtractionMethodLLM
	require.NoError(t, a.SetCaptureConfig(&models.LLMCaptureConfig{
		SystemPrompt: "extract customers",
		ColumnMappings: []models.LLMColumnMapping{
			{ColumnName: "email", JSONField: "email", DataType: "string", IsRequired: true},
		},
	}))
	rig.seed(t, &models.WebSource{
		ID: "ws_1", BaseURL: server.URL, ScraperType: models.ScraperTypeHTTP,
		AuthType: models.AuthTypeNone, MaxConcurrent: 1,
	}, a, nil)

	ctx := context.Background()
	jobID, err := rig.svc.Run(ctx, "asg_1", models.SyncModeAuto, models.TriggeredByManual)
	require.NoError(t, err)

	job, err := rig.repo.Jobs().Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.RowsInserted)

	require.Equal(t, 2, rig.connector.execCount())
	assert.Equal(t, `INSERT INTO "customers" ("email") VALUES ($1)`, rig.connector.execs[0].query)
}

func TestRowConservationWithInsertFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, productPage("Alpha", "Beta", "Gamma"))
	}))
	defer server.Close()

	rig := newRig(t, nil)
	rig.connector.failWhen = func(params []interface{}) bool {
		return params[0] == "Beta"
	}
	rig.seed(t, &models.WebSource{
		ID: "ws_1", BaseURL: server.URL, ScraperType: models.ScraperTypeHTTP,
		AuthType: models.AuthTypeNone, MaxConcurrent: 1,
	}, baseAssignment(models.SyncModeAuto), productRules())

	ctx := context.Background()
	jobID, err := rig.svc.Run(ctx, "asg_1", models.SyncModeAuto, models.TriggeredByManual)
	require.NoError(t, err)

	job, err := rig.repo.Jobs().Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.RowsInserted)
	assert.Equal(t, 1, job.RowsFailed)
	assert.Equal(t, job.RowsExtracted, job.RowsInserted+job.RowsFailed)
}

func TestNextButtonChain(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/p1":
			fmt.Fprintf(w, `%s<a rel="next" href="%s/p2">Next</a>`, productPage("Alpha"), server.URL)
		case "/p2":
			fmt.Fprintf(w, `%s<a rel="next" href="%s/p3">Next</a>`, productPage("Beta"), server.URL)
		default:
			fmt.Fprint(w, productPage("Gamma"))
		}
	}))
	defer server.Close()

	rig := newRig(t, nil)
	rig.seed(t, &models.WebSource{
		ID: "ws_1", BaseURL: server.URL + "/p1", ScraperType: models.ScraperTypeHTTP,
		AuthType: models.AuthTypeNone, MaxConcurrent: 1,
		PaginationType:   models.PaginationTypeNextButton,
		PaginationConfig: `{"type":"next_button","max_pages":10}`,
	}, baseAssignment(models.SyncModeAuto), productRules())

	ctx := context.Background()
	jobID, err := rig.svc.Run(ctx, "asg_1", models.SyncModeAuto, models.TriggeredByManual)
	require.NoError(t, err)

	job, err := rig.repo.Jobs().Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.PagesProcessed)
	assert.Equal(t, 3, job.RowsExtracted)
}

func TestCancelDuringRun(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") >= "3" {
			once.Do(func() { close(release) })
			time.Sleep(200 * time.Millisecond)
		}
		fmt.Fprint(w, productPage("Alpha"))
	}))
	defer server.Close()

	rig := newRig(t, nil)
	rig.seed(t, &models.WebSource{
		ID: "ws_1", BaseURL: server.URL + "/list", ScraperType: models.ScraperTypeHTTP,
		AuthType: models.AuthTypeNone, MaxConcurrent: 1,
		PaginationType:   models.PaginationTypeQueryParam,
		PaginationConfig: `{"type":"query_param","param_name":"page","max_pages":20}`,
	}, baseAssignment(models.SyncModeManual), productRules())

	ctx := context.Background()
	jobID, done, err := rig.svc.RunDetached(ctx, "asg_1", models.SyncModeManual, models.TriggeredByAPI)
	require.NoError(t, err)

	<-release
	require.NoError(t, rig.svc.Cancel(ctx, jobID))

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	job, err := rig.repo.Jobs().Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, job.Status)
	assert.Empty(t, job.StagedDataInline)
	assert.Empty(t, job.StagedDataPath)
	assert.Less(t, job.PagesProcessed, 20)
}

func TestCancelTerminalJobIsNoop(t *testing.T) {
	rig := newRig(t, nil)
	ctx := context.Background()
	require.NoError(t, rig.repo.Jobs().Create(ctx, &models.ExtractionJob{ID: "job_t", AssignmentID: "asg"}))
	require.NoError(t, rig.repo.Jobs().SetStatus(ctx, "job_t", models.JobStatusFailed, "x"))

	require.NoError(t, rig.svc.Cancel(ctx, "job_t"))

	job, err := rig.repo.Jobs().Get(ctx, "job_t")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
}

func TestCommitRequiresStagingStatus(t *testing.T) {
	rig := newRig(t, nil)
	ctx := context.Background()
	require.NoError(t, rig.repo.Jobs().Create(ctx, &models.ExtractionJob{ID: "job_p", AssignmentID: "asg"}))

	_, err := rig.svc.Commit(ctx, "job_p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not awaiting commit")
}

func TestCommitParseFailureRetainsPayload(t *testing.T) {
	rig := newRig(t, nil)
	ctx := context.Background()

	job := &models.ExtractionJob{ID: "job_bad", AssignmentID: "asg_1", StagedRowCount: 2, StagedDataInline: "{not json"}
	require.NoError(t, rig.repo.Jobs().Create(ctx, job))
	require.NoError(t, rig.repo.Jobs().SetStatus(ctx, "job_bad", models.JobStatusRunning, ""))
	require.NoError(t, rig.repo.Jobs().SetStatus(ctx, "job_bad", models.JobStatusStaging, ""))

	_, err := rig.svc.Commit(ctx, "job_bad")
	require.Error(t, err)

	got, err := rig.repo.Jobs().Get(ctx, "job_bad")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, "{not json", got.StagedDataInline)
}

func TestRunSample(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, productPage("Alpha", "Beta", "Gamma"))
	}))
	defer server.Close()

	rig := newRig(t, nil)
	rig.seed(t, &models.WebSource{
		ID: "ws_1", BaseURL: server.URL, ScraperType: models.ScraperTypeHTTP,
		AuthType: models.AuthTypeNone, MaxConcurrent: 1,
	}, baseAssignment(models.SyncModeAuto), productRules())

	ctx := context.Background()
	result := rig.svc.RunSample(ctx, "asg_1", 2)
	assert.Empty(t, result.Error)
	assert.Len(t, result.Rows, 2)
	assert.Equal(t, []string{"name", "price"}, result.Columns)
	assert.Equal(t, server.URL, result.SourceURL)

	// a sample run never creates a job or touches the target database
	assert.Equal(t, 0, rig.connector.execCount())
	for _, status := range []models.JobStatus{models.JobStatusPending, models.JobStatusRunning, models.JobStatusCompleted} {
		jobs, err := rig.repo.Jobs().ListByStatus(ctx, status)
		require.NoError(t, err)
		assert.Empty(t, jobs)
	}
}

func TestRunStampsStartAndCompletionTimes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, productPage("Alpha"))
	}))
	defer server.Close()

	rig := newRig(t, nil)
	rig.seed(t, &models.WebSource{
		ID: "ws_1", BaseURL: server.URL, ScraperType: models.ScraperTypeHTTP,
		AuthType: models.AuthTypeNone, MaxConcurrent: 1,
	}, baseAssignment(models.SyncModeAuto), productRules())

	ctx := context.Background()
	jobID, err := rig.svc.Run(ctx, "asg_1", models.SyncModeAuto, models.TriggeredByManual)
	require.NoError(t, err)

	job, err := rig.repo.Jobs().Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)
	assert.False(t, job.CompletedAt.Before(*job.StartedAt))
}

func TestProgressUpdateKeepsCancelledStatus(t *testing.T) {
	rig := newRig(t, nil)
	ctx := context.Background()

	job := &models.ExtractionJob{ID: "job_c", AssignmentID: "asg_1", Status: models.JobStatusPending}
	require.NoError(t, rig.repo.Jobs().Create(ctx, job))
	require.NoError(t, rig.repo.Jobs().SetStatus(ctx, "job_c", models.JobStatusRunning, ""))

	// a worker's copy taken before the operator cancelled
	stale, err := rig.repo.Jobs().Get(ctx, "job_c")
	require.NoError(t, err)
	require.NoError(t, rig.repo.Jobs().SetStatus(ctx, "job_c", models.JobStatusCancelled, "cancelled by operator"))

	stale.PagesProcessed = 3
	rig.svc.updateJob(&runState{job: stale, ctx: ctx})

	got, err := rig.repo.Jobs().Get(ctx, "job_c")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, got.Status)
	assert.Equal(t, 0, got.PagesProcessed)
}

func TestRunSampleReportsFetchError(t *testing.T) {
	rig := newRig(t, nil)
	rig.seed(t, &models.WebSource{
		ID: "ws_1", BaseURL: "http://127.0.0.1:1/nope", ScraperType: models.ScraperTypeHTTP,
		AuthType: models.AuthTypeNone, MaxConcurrent: 1, TimeoutSeconds: 1,
	}, baseAssignment(models.SyncModeAuto), productRules())

	result := rig.svc.RunSample(context.Background(), "asg_1", 5)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.Rows)
}
