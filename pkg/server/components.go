package server

import (
	"fmt"

	"github.com/mbflow/automation-engine/internal/application/engine"
	"github.com/mbflow/automation-engine/internal/application/filestorage"
	"github.com/mbflow/automation-engine/internal/application/observer"
	"github.com/mbflow/automation-engine/internal/application/trigger"
	"github.com/mbflow/automation-engine/internal/infrastructure/cache"
	"github.com/mbflow/automation-engine/internal/infrastructure/storage"
	"github.com/mbflow/automation-engine/pkg/executor"
	"github.com/mbflow/automation-engine/pkg/executor/builtin"
)

func (s *Server) initComponents() error {
	if err := s.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := s.initRedisCache(); err != nil {
		s.logger.Warn("Failed to initialize Redis cache", "error", err)
	}

	// Repositories before the executor manager: file-backed executors need
	// the file storage manager, which is initialized right after.
	if err := s.initRepositories(); err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := s.initFileStorageManager(); err != nil {
		return fmt.Errorf("failed to initialize file storage manager: %w", err)
	}

	if err := s.initRuntimeLayer(); err != nil {
		return fmt.Errorf("failed to initialize runtime layer: %w", err)
	}

	if err := s.initExecutorManager(); err != nil {
		return fmt.Errorf("failed to initialize executor manager: %w", err)
	}

	if err := s.initObserverManager(); err != nil {
		return fmt.Errorf("failed to initialize observer manager: %w", err)
	}

	if err := s.initExecutionEngine(); err != nil {
		return fmt.Errorf("failed to initialize execution engine: %w", err)
	}

	if err := s.initTriggerManager(); err != nil {
		s.logger.Warn("Failed to initialize trigger manager", "error", err)
	}

	return nil
}

func (s *Server) initDatabase() error {
	dbConfig := &storage.Config{
		DSN:             s.config.Database.URL,
		MaxOpenConns:    s.config.Database.MaxConnections,
		MaxIdleConns:    s.config.Database.MinConnections,
		ConnMaxLifetime: s.config.Database.MaxConnLifetime,
		ConnMaxIdleTime: s.config.Database.MaxIdleTime,
		Debug:           s.config.Logging.Level == "debug",
	}

	db, err := storage.NewDB(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	s.data.DB = db
	s.logger.Info("Database connected",
		"max_conns", s.config.Database.MaxConnections,
	)

	return nil
}

func (s *Server) initRedisCache() error {
	redisCache, err := cache.NewRedisCache(s.config.Redis)
	if err != nil {
		return fmt.Errorf("failed to create redis cache: %w", err)
	}

	s.data.RedisCache = redisCache
	s.logger.Info("Redis cache connected")
	return nil
}

func (s *Server) initRepositories() error {
	s.data.WorkflowRepo = storage.NewWorkflowRepository(s.data.DB)
	s.data.ExecutionRepo = storage.NewExecutionRepository(s.data.DB)
	s.data.EventRepo = storage.NewEventRepository(s.data.DB)
	s.data.TriggerRepo = storage.NewTriggerRepository(s.data.DB)
	s.data.FileRepo = storage.NewFileRepository(s.data.DB)

	s.logger.Info("Repositories initialized")
	return nil
}

func (s *Server) initFileStorageManager() error {
	fileStorageConfig := filestorage.DefaultManagerConfig()
	fileStorageConfig.BasePath = s.config.FileStorage.StoragePath
	fileStorageConfig.MaxFileSize = s.config.FileStorage.MaxFileSize

	s.fileStorage.FileStorageManager = filestorage.NewStorageManager(fileStorageConfig)

	s.logger.Info("File storage manager initialized",
		"base_path", s.config.FileStorage.StoragePath,
		"max_file_size", s.config.FileStorage.MaxFileSize,
	)

	return nil
}

func (s *Server) initExecutorManager() error {
	s.execution.ExecutorManager = executor.NewManager()

	if err := builtin.RegisterBuiltins(s.execution.ExecutorManager); err != nil {
		return fmt.Errorf("failed to register built-in executors: %w", err)
	}

	if err := builtin.RegisterFileStorage(s.execution.ExecutorManager, s.fileStorage.FileStorageManager); err != nil {
		return fmt.Errorf("failed to register file_storage executor: %w", err)
	}

	if err := builtin.RegisterFileAdapters(s.execution.ExecutorManager, s.fileStorage.FileStorageManager); err != nil {
		return fmt.Errorf("failed to register file adapter executors: %w", err)
	}

	if err := builtin.RegisterSpecNodes(s.execution.ExecutorManager, builtin.SpecNodeDeps{
		Actions:    s.runtime.ActionExecutor,
		Conditions: s.runtime.ConditionEvaluator,
		EventBus:   s.runtime.EventBus,
		DB:         s.data.DB,
		Files:      s.fileStorage.FileStorageManager,
		Dispatcher: s.dispatchWorkflowForWebhook,
		Logger:     s.logger,
	}); err != nil {
		return fmt.Errorf("failed to register node-type executors: %w", err)
	}

	s.logger.Info("Registered executors", "types", s.execution.ExecutorManager.List())
	return nil
}

func (s *Server) initObserverManager() error {
	if s.config.Observer.EnableWebSocket {
		s.execution.WSHub = observer.NewWebSocketHub(s.logger)
		s.logger.Info("WebSocket hub initialized")
	}

	s.execution.ObserverManager = observer.NewObserverManager(
		observer.WithLogger(s.logger),
		observer.WithBufferSize(s.config.Observer.BufferSize),
	)

	if s.config.Observer.EnableDatabase {
		dbObserver := observer.NewDatabaseObserver(s.data.EventRepo)
		if err := s.execution.ObserverManager.Register(dbObserver); err != nil {
			s.logger.Error("Failed to register database observer", "error", err)
		} else {
			s.logger.Info("Database observer registered")
		}
	}

	if s.config.Observer.EnableHTTP && s.config.Observer.HTTPCallbackURL != "" {
		httpObserver := observer.NewHTTPCallbackObserver(
			s.config.Observer.HTTPCallbackURL,
			observer.WithHTTPMethod(s.config.Observer.HTTPMethod),
			observer.WithHTTPHeaders(s.config.Observer.HTTPHeaders),
			observer.WithHTTPTimeout(s.config.Observer.HTTPTimeout),
			observer.WithHTTPRetry(
				s.config.Observer.HTTPMaxRetries,
				s.config.Observer.HTTPRetryDelay,
				2.0,
			),
		)
		if err := s.execution.ObserverManager.Register(httpObserver); err != nil {
			s.logger.Error("Failed to register HTTP observer", "error", err)
		} else {
			s.logger.Info("HTTP callback observer registered",
				"url", s.config.Observer.HTTPCallbackURL,
				"method", s.config.Observer.HTTPMethod,
			)
		}
	}

	if s.config.Observer.EnableLogger {
		loggerObserver := observer.NewLoggerObserver(
			observer.WithLoggerInstance(s.logger),
		)
		if err := s.execution.ObserverManager.Register(loggerObserver); err != nil {
			s.logger.Error("Failed to register logger observer", "error", err)
		} else {
			s.logger.Info("Logger observer registered")
		}
	}

	if s.config.Observer.EnableWebSocket && s.execution.WSHub != nil {
		wsObserver := observer.NewWebSocketObserver(
			s.execution.WSHub,
			observer.WithWebSocketLogger(s.logger),
		)
		if err := s.execution.ObserverManager.Register(wsObserver); err != nil {
			s.logger.Error("Failed to register WebSocket observer", "error", err)
		} else {
			s.logger.Info("WebSocket observer registered")
		}
	}

	s.logger.Info("Observer system initialized",
		"observer_count", s.execution.ObserverManager.Count(),
	)

	return nil
}

func (s *Server) initExecutionEngine() error {
	s.execution.ExecutionManager = engine.NewExecutionManager(
		s.execution.ExecutorManager,
		s.data.WorkflowRepo,
		s.data.ExecutionRepo,
		s.data.EventRepo,
		s.execution.ObserverManager,
		s.runtime.StateManager,
		s.runtime.ConditionEvaluator,
	)

	s.logger.Info("Execution engine initialized")
	return nil
}

func (s *Server) initTriggerManager() error {
	if s.data.RedisCache == nil {
		return fmt.Errorf("trigger manager disabled - Redis cache not available")
	}

	triggerManager, err := trigger.NewManager(trigger.ManagerConfig{
		TriggerRepo:  s.data.TriggerRepo,
		WorkflowRepo: s.data.WorkflowRepo,
		ExecutionMgr: s.execution.ExecutionManager,
		Cache:        s.data.RedisCache,
	})
	if err != nil {
		return fmt.Errorf("failed to create trigger manager: %w", err)
	}

	s.triggers.TriggerManager = triggerManager
	s.logger.Info("Trigger manager initialized")

	if err := s.triggers.TriggerManager.Start(); err != nil {
		return fmt.Errorf("failed to start trigger manager: %w", err)
	}

	s.logger.Info("Trigger manager started")
	return nil
}
