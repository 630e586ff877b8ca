package server

import (
	"github.com/uptrace/bun"

	"github.com/mbflow/automation-engine/internal/actionexecutor"
	"github.com/mbflow/automation-engine/internal/application/engine"
	"github.com/mbflow/automation-engine/internal/application/filestorage"
	"github.com/mbflow/automation-engine/internal/application/observer"
	"github.com/mbflow/automation-engine/internal/application/trigger"
	"github.com/mbflow/automation-engine/internal/application/webhook"
	"github.com/mbflow/automation-engine/internal/domain/repository"
	"github.com/mbflow/automation-engine/internal/errorhandler"
	"github.com/mbflow/automation-engine/internal/eventbus"
	"github.com/mbflow/automation-engine/internal/infrastructure/cache"
	"github.com/mbflow/automation-engine/internal/infrastructure/storage"
	"github.com/mbflow/automation-engine/internal/infrastructure/tracing"
	"github.com/mbflow/automation-engine/internal/monitoring"
	"github.com/mbflow/automation-engine/internal/statemanager"
	conditioneval "github.com/mbflow/automation-engine/pkg/engine"
	"github.com/mbflow/automation-engine/pkg/executor"
)

// DataLayer holds the database connection and every repository.
type DataLayer struct {
	DB         *bun.DB
	RedisCache *cache.RedisCache

	WorkflowRepo  *storage.WorkflowRepository
	ExecutionRepo *storage.ExecutionRepository
	EventRepo     *storage.EventRepository
	TriggerRepo   repository.TriggerRepository
	FileRepo      *storage.FileRepository
}

// ExecutionLayer holds workflow execution components.
type ExecutionLayer struct {
	ExecutorManager  executor.Manager
	ExecutionManager *engine.ExecutionManager
	ObserverManager  *observer.ObserverManager
	WSHub            *observer.WebSocketHub
}

// TriggerLayer holds trigger management components.
type TriggerLayer struct {
	TriggerManager *trigger.Manager
}

// FileStorageLayer holds file storage components.
type FileStorageLayer struct {
	FileStorageManager *filestorage.StorageManager
}

// RuntimeLayer holds the automation primitives layered on top of the
// execution engine: the event bus, durable state manager, action queue,
// error handling/circuit-breaking, condition evaluation, and monitoring.
type RuntimeLayer struct {
	TracingProvider    *tracing.Provider
	EventBus           *eventbus.Bus
	StateManager       *statemanager.Manager
	ActionExecutor     *actionexecutor.Executor
	ErrorHandler       *errorhandler.Handler
	ConditionEvaluator *conditioneval.RuleEvaluator
	Monitoring         *monitoring.Service
	WebhookService     *webhook.Service
}
