// -----------------------------------------------------------------------
// Application Wiring - Builds and tears down the service graph
// -----------------------------------------------------------------------

package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/Anmol33/jusfinn-sub000/internal/common"
	"github.com/Anmol33/jusfinn-sub000/internal/handlers"
	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
	"github.com/Anmol33/jusfinn-sub000/internal/queue"
	"github.com/Anmol33/jusfinn-sub000/internal/services/events"
	"github.com/Anmol33/jusfinn-sub000/internal/services/extraction"
	"github.com/Anmol33/jusfinn-sub000/internal/services/intake"
	"github.com/Anmol33/jusfinn-sub000/internal/services/pipeline"
	"github.com/Anmol33/jusfinn-sub000/internal/services/query"
	storagebadger "github.com/Anmol33/jusfinn-sub000/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService interfaces.EventService
	QueueManager interfaces.QueueManager

	// Document pipeline
	Extractor       interfaces.Extractor
	Processor       *pipeline.Processor
	StaleSweeper    *pipeline.StaleSweeper
	IntakeService   interfaces.IntakeService
	DocumentService interfaces.DocumentService
	QueryService    interfaces.QueryService

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	DocumentHandler *handlers.DocumentHandler
	WSHandler       *handlers.WebSocketHandler
}

// New wires the full service graph: storage, queue, events, pipeline, and
// handlers. Workers are not started yet; call Start after construction.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := storagebadger.NewManager(logger, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	queueManager, err := queue.NewBadgerManager(
		storageManager.DB().Store().Badger(),
		cfg.Queue.QueueName,
		cfg.VisibilityTimeout(),
		cfg.Queue.MaxReceive,
	)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}
	app.QueueManager = queueManager

	app.EventService = events.NewService(logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, logger, &cfg.WebSocket)

	app.Extractor = extraction.NewExtractor(&cfg.Extraction, storageManager.BlobStorage(), logger)

	app.Processor = pipeline.NewProcessor(cfg, storageManager, queueManager, app.EventService, app.Extractor, logger)
	app.StaleSweeper = pipeline.NewStaleSweeper(storageManager, app.Processor, app.EventService,
		cfg.StaleAfter(), cfg.Pipeline.SweepSchedule, logger)

	app.IntakeService = intake.NewService(&cfg.Intake, storageManager, queueManager, app.EventService, logger)
	app.DocumentService = pipeline.NewDocumentService(storageManager, queueManager, app.EventService, app.Processor, logger)
	app.QueryService = query.NewService(storageManager, logger)

	app.APIHandler = handlers.NewAPIHandler()
	app.DocumentHandler = handlers.NewDocumentHandler(app.IntakeService, app.DocumentService, app.QueryService, logger)

	logger.Info().
		Int("concurrency", cfg.Queue.Concurrency).
		Str("environment", cfg.Environment).
		Msg("Application initialization complete")

	return app, nil
}

// Start launches the pipeline workers and the stale sweep
func (a *App) Start() error {
	if err := a.QueueManager.Start(); err != nil {
		return fmt.Errorf("failed to start queue: %w", err)
	}
	if err := a.Processor.Start(); err != nil {
		return fmt.Errorf("failed to start pipeline processor: %w", err)
	}
	if err := a.StaleSweeper.Start(); err != nil {
		return fmt.Errorf("failed to start stale sweep: %w", err)
	}
	return nil
}

// Close shuts components down in reverse dependency order. In-flight
// attempts are cancelled; queued documents resume on next startup.
func (a *App) Close() error {
	if a.StaleSweeper != nil {
		if err := a.StaleSweeper.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop stale sweep")
		}
	}

	if a.Processor != nil {
		if err := a.Processor.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop pipeline processor")
		} else {
			a.Logger.Info().Msg("Pipeline processor stopped")
		}
	}

	if a.QueueManager != nil {
		if err := a.QueueManager.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop queue")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		} else {
			a.Logger.Info().Msg("Storage closed")
		}
	}

	return nil
}
