package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/connectors"
	"github.com/Fazmin/syncengine/internal/handlers"
	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/services/executor"
	"github.com/Fazmin/syncengine/internal/services/llm"
	"github.com/Fazmin/syncengine/internal/services/mapper"
	"github.com/Fazmin/syncengine/internal/services/scheduler"
	"github.com/Fazmin/syncengine/internal/services/scraper"
	"github.com/Fazmin/syncengine/internal/services/staging"
	"github.com/Fazmin/syncengine/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Core services
	Repo       *badger.Repository
	Audit      interfaces.AuditSink
	Secrets    *common.AESSecretBox
	Staging    *staging.Store
	Scrapers   interfaces.ScraperFactory
	LLMService *llm.Service
	Mapper     *mapper.Mapper
	Executor   *executor.Service
	Scheduler  *scheduler.Service

	// HTTP handlers
	APIHandler        *handlers.APIHandler
	SourceHandler     *handlers.SourceHandler
	ExtractionHandler *handlers.ExtractionHandler
	AnalysisHandler   *handlers.AnalysisHandler
	SchedulerHandler  *handlers.SchedulerHandler
}

// New composes the application from configuration
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	repo, err := badger.NewRepository(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a.Repo = repo
	a.Audit = repo.AuditSink(logger)

	if cfg.Security.EncryptionKey != "" {
		secrets, err := common.NewSecretBox(cfg.Security.EncryptionKey)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to initialize secret box: %w", err)
		}
		a.Secrets = secrets
	} else {
		logger.Warn().Msg("No encryption key configured, data source passwords will be stored in plaintext")
	}

	a.Staging = staging.New(cfg.Staging, repo.Jobs(), logger)
	a.Scrapers = scraper.Factory(cfg.Scraper, logger)

	// LLM features stay disabled without an API key; selector extraction
	// and the synonym mapper still work
	var llmClient interfaces.LLMClient
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewClient(cfg.LLM, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("LLM provider initialization failed, llm features disabled")
		} else {
			llmClient = client
			a.LLMService = llm.NewService(client, cfg.LLM, logger)
		}
	} else {
		logger.Info().Msg("No LLM API key configured, llm features disabled")
	}
	a.Mapper = mapper.New(llmClient, cfg.LLM, logger)

	deps := executor.Deps{
		Repo:     repo,
		Audit:    a.Audit,
		Staging:  a.Staging,
		Scrapers: a.Scrapers,
		Logger:   logger,
	}
	if a.LLMService != nil {
		deps.LLM = a.LLMService
	}
	if a.Secrets != nil {
		deps.Secrets = a.Secrets
	}
	a.Executor = executor.New(deps)
	a.Scheduler = scheduler.New(a.Executor, repo, logger)

	a.APIHandler = handlers.NewAPIHandler()
	a.SourceHandler = handlers.NewSourceHandler(repo, a.Secrets, connectors.New, a.Scheduler, logger)
	a.ExtractionHandler = handlers.NewExtractionHandler(a.Executor, a.Scheduler, repo, a.Staging, logger)
	a.AnalysisHandler = handlers.NewAnalysisHandler(repo, a.Scrapers, a.Mapper, a.LLMService, secretsOrNil(a.Secrets), connectors.New, logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.Scheduler, logger)

	return a, nil
}

// Initialize recovers orphaned jobs and starts the scheduler
func (a *App) Initialize(ctx context.Context) error {
	return a.Scheduler.Initialize(ctx)
}

// Close stops the scheduler and releases storage
func (a *App) Close() error {
	a.Scheduler.Stop()
	if err := a.Repo.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	a.Logger.Info().Msg("Application closed")
	return nil
}

// secretsOrNil avoids handing a typed nil to an interface field
func secretsOrNil(b *common.AESSecretBox) interfaces.SecretBox {
	if b == nil {
		return nil
	}
	return b
}
