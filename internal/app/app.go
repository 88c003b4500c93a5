package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/handlers"
	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/services/browser"
	"github.com/ternarybob/audiens/internal/services/email"
	"github.com/ternarybob/audiens/internal/services/events"
	"github.com/ternarybob/audiens/internal/services/imap"
	"github.com/ternarybob/audiens/internal/services/knowledge"
	"github.com/ternarybob/audiens/internal/services/llm"
	"github.com/ternarybob/audiens/internal/services/mailer"
	"github.com/ternarybob/audiens/internal/services/monitor"
	"github.com/ternarybob/audiens/internal/services/report"
	"github.com/ternarybob/audiens/internal/services/scheduler"
	"github.com/ternarybob/audiens/internal/services/voice"
	"github.com/ternarybob/audiens/internal/services/workflow"
	"github.com/ternarybob/audiens/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event bus
	EventService interfaces.EventService

	// LLM drafting
	LLMService       interfaces.LLMService
	Drafter          *llm.Drafter
	KnowledgeService *knowledge.Service

	// CRM automation
	BrowserPool    *browser.Pool
	BrowserService *browser.Service

	// Mail transports
	IMAPService   *imap.Service
	MailerService *mailer.Service

	// Reply pipeline
	EmailService *email.Service

	// Voice and workflow
	VoiceService *voice.Service
	Controller   *workflow.Controller

	// Background services
	Monitor          *monitor.Monitor
	SchedulerService *scheduler.Service
	ReportService    *report.Service

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	WSHandler        *handlers.WebSocketHandler
	WSWriter         *handlers.WebSocketWriter
	WorkflowHandler  *handlers.WorkflowHandler
	EmailHandler     *handlers.EmailHandler
	BrowserHandler   *handlers.BrowserHandler
	VoiceHandler     *handlers.VoiceHandler
	MetricsHandler   *handlers.MetricsHandler
	KnowledgeHandler *handlers.KnowledgeHandler
	KVHandler        *handlers.KVHandler
	MailHandler      *handlers.MailHandler
	SchedulerHandler *handlers.SchedulerHandler
	PageHandler      *handlers.PageHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Event bus and WebSocket handler come first so the log writer and
	// all services can publish from startup onward
	app.EventService = events.NewService(app.Logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, app.Logger, &cfg.WebSocket)

	wsWriter, err := handlers.NewWebSocketWriter(app.WSHandler, arbormodels.WriterConfiguration{
		TimeFormat: cfg.Logging.TimeFormat,
	}, &cfg.WebSocket)
	if err != nil {
		app.Logger.Warn().Err(err).Msg("Dashboard log streaming disabled")
	} else {
		app.WSWriter = wsWriter
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if err := app.Controller.Start(); err != nil {
		return nil, fmt.Errorf("failed to start workflow controller: %w", err)
	}

	if err := app.startVoice(); err != nil {
		app.Logger.Warn().Err(err).Msg("Voice listener unavailable, continuing without it")
	}

	if err := app.startScheduler(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info().
		Bool("voice_enabled", cfg.Voice.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage opens Badger and loads settings and knowledge from files
func (a *App) initStorage() error {
	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = manager

	ctx := context.Background()

	// API keys and mail credentials can live in .env instead of TOML
	if err := a.StorageManager.LoadEnvFile(ctx, ".env"); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load .env file")
	}

	if a.Config.Knowledge.LoadOnStartup {
		if err := a.StorageManager.LoadKnowledgeFromFiles(ctx, a.Config.Knowledge.Dir); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to load knowledge articles")
		}
	}

	return nil
}

// initServices builds the service graph in dependency order
func (a *App) initServices() error {
	var err error

	a.Monitor = monitor.NewMonitor(a.Logger)

	a.LLMService, err = llm.NewLLMService(a.Config, a.StorageManager, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	a.Drafter = llm.NewDrafter(a.LLMService, a.Logger)

	a.KnowledgeService = knowledge.NewService(
		&a.Config.Knowledge,
		a.StorageManager.KnowledgeStorage(),
		a.Logger,
	)

	a.BrowserPool = browser.NewPool(a.Logger)
	if err := a.BrowserPool.Init(browser.PoolConfig{
		MaxInstances: a.Config.CRM.PoolSize,
		Headless:     a.Config.CRM.Headless,
	}); err != nil {
		return fmt.Errorf("failed to initialize browser pool: %w", err)
	}

	a.BrowserService = browser.NewService(
		&a.Config.CRM,
		a.BrowserPool,
		a.StorageManager.CredentialStorage(),
		a.EventService,
		a.Logger,
	)

	a.IMAPService = imap.NewService(&a.Config.IMAP, a.StorageManager.KeyValueStorage(), a.Logger)
	a.MailerService = mailer.NewService(&a.Config.SMTP, a.StorageManager.KeyValueStorage(), a.Logger)

	a.EmailService = email.NewService(
		a.Config,
		a.BrowserService,
		a.IMAPService,
		a.MailerService,
		a.Drafter,
		a.KnowledgeService,
		a.StorageManager.DraftStorage(),
		a.EventService,
		a.Logger,
	)

	a.VoiceService = voice.NewService(&a.Config.Voice, a.EventService, a.Logger)

	a.Controller = workflow.NewController(
		a.Config,
		a.BrowserService,
		a.EmailService,
		a.StorageManager.SessionStorage(),
		a.EventService,
		a.Logger,
	)
	a.Controller.SetFeedback(a.VoiceService)

	// Request tracking for the metrics endpoint
	a.Controller.SetTracker(a.Monitor)
	a.BrowserService.SetTracker(a.Monitor)
	a.Drafter.SetTracker(a.Monitor)
	a.VoiceService.SetTracker(a.Monitor)

	a.ReportService = report.NewService(
		&a.Config.Report,
		a.StorageManager.SessionStorage(),
		a.StorageManager.DraftStorage(),
		a.Monitor,
		a.MailerService,
		a.Logger,
	)

	a.SchedulerService = scheduler.NewService(&a.Config.Scheduler, a.Logger)

	return nil
}

// initHandlers wires the HTTP layer
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.WorkflowHandler = handlers.NewWorkflowHandler(a.Controller, a.Logger)
	a.EmailHandler = handlers.NewEmailHandler(a.EmailService, a.StorageManager.DraftStorage(), a.Logger)
	a.BrowserHandler = handlers.NewBrowserHandler(a.BrowserService, a.StorageManager.CredentialStorage(), a.Logger)
	a.VoiceHandler = handlers.NewVoiceHandler(&a.Config.Voice, a.VoiceService, a.Controller, a.EventService, a.Logger)
	a.MetricsHandler = handlers.NewMetricsHandler(a.Monitor, a.Logger)
	a.KnowledgeHandler = handlers.NewKnowledgeHandler(a.KnowledgeService, a.Logger)
	a.KVHandler = handlers.NewKVHandler(a.StorageManager.KeyValueStorage(), a.Logger)
	a.MailHandler = handlers.NewMailHandler(a.MailerService, a.IMAPService, a.Logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService, a.Logger)
	a.PageHandler = handlers.NewPageHandler(a.Logger)
}

// startVoice starts the microphone listener when enabled
func (a *App) startVoice() error {
	if !a.Config.Voice.Enabled {
		a.Logger.Info().Msg("Voice listener disabled")
		return nil
	}
	return a.VoiceService.Start()
}

// startScheduler registers background jobs and starts the cron loop
func (a *App) startScheduler() error {
	if !a.Config.Scheduler.Enabled {
		a.Logger.Info().Msg("Scheduler disabled")
		return nil
	}

	if err := a.SchedulerService.RegisterJob("inbox_sync", a.Config.Scheduler.InboxSync, func() error {
		return a.Monitor.Track("email", func() error {
			_, err := a.EmailService.SyncInbox(context.Background(), "")
			return err
		})
	}); err != nil {
		return err
	}

	if err := a.SchedulerService.RegisterJob("stale_sweep", a.Config.Scheduler.StaleSweep, func() error {
		swept := a.Controller.SweepStale(context.Background())
		if swept > 0 {
			a.Logger.Info().Int("sessions", swept).Msg("Ended stale sessions")
		}
		return nil
	}); err != nil {
		return err
	}

	if err := a.SchedulerService.RegisterJob("status_log", a.Config.Scheduler.StatusLog, func() error {
		a.Monitor.LogStatus()
		return nil
	}); err != nil {
		return err
	}

	if err := a.SchedulerService.RegisterJob("daily_digest", a.Config.Scheduler.DailyDigest, func() error {
		if _, err := a.ReportService.GenerateDigest(context.Background()); err != nil {
			return err
		}
		a.EmailService.Attachments().Sweep(a.Config.Report.KeepDays)
		return nil
	}); err != nil {
		return err
	}

	return a.SchedulerService.Start()
}

// Close shuts down all application resources in reverse dependency order
func (a *App) Close() error {
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	if a.VoiceService != nil {
		a.VoiceService.Stop()
	}

	if a.Controller != nil {
		a.Controller.Shutdown(context.Background())
	}

	if a.BrowserService != nil {
		if err := a.BrowserService.Shutdown(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to shut down browser service")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	if a.WSWriter != nil {
		a.WSWriter.Close()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
