// Package trigger orchestrates the trigger types that start a workflow
// execution: cron schedules, interval timers, event subscriptions and
// inbound webhooks.
package trigger

import (
	"context"
	"fmt"
	"sync"

	"github.com/mbflow/automation-engine/internal/application/engine"
	"github.com/mbflow/automation-engine/internal/domain/repository"
	"github.com/mbflow/automation-engine/internal/infrastructure/cache"
	"github.com/mbflow/automation-engine/pkg/models"
)

// Manager orchestrates all trigger types behind a single lifecycle.
type Manager struct {
	triggerRepo  repository.TriggerRepository
	workflowRepo repository.WorkflowRepository
	executionMgr *engine.ExecutionManager
	cache        *cache.RedisCache

	cronScheduler   *CronScheduler
	eventListener   *EventListener
	webhookRegistry *WebhookRegistry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// ManagerConfig holds configuration for trigger manager
type ManagerConfig struct {
	TriggerRepo  repository.TriggerRepository
	WorkflowRepo repository.WorkflowRepository
	ExecutionMgr *engine.ExecutionManager
	Cache        *cache.RedisCache
}

// NewManager creates a new trigger manager
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.TriggerRepo == nil {
		return nil, fmt.Errorf("trigger repository is required")
	}
	if cfg.WorkflowRepo == nil {
		return nil, fmt.Errorf("workflow repository is required")
	}
	if cfg.ExecutionMgr == nil {
		return nil, fmt.Errorf("execution manager is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("redis cache is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		triggerRepo:  cfg.TriggerRepo,
		workflowRepo: cfg.WorkflowRepo,
		executionMgr: cfg.ExecutionMgr,
		cache:        cfg.Cache,
		ctx:          ctx,
		cancel:       cancel,
	}

	if err := m.initializeHandlers(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return m, nil
}

func (m *Manager) initializeHandlers() error {
	cronScheduler, err := NewCronScheduler(CronSchedulerConfig{
		TriggerRepo:  m.triggerRepo,
		WorkflowRepo: m.workflowRepo,
		ExecutionMgr: m.executionMgr,
		Cache:        m.cache,
	})
	if err != nil {
		return fmt.Errorf("failed to create cron scheduler: %w", err)
	}
	m.cronScheduler = cronScheduler

	eventListener, err := NewEventListener(EventListenerConfig{
		TriggerRepo:  m.triggerRepo,
		WorkflowRepo: m.workflowRepo,
		ExecutionMgr: m.executionMgr,
		Cache:        m.cache,
	})
	if err != nil {
		return fmt.Errorf("failed to create event listener: %w", err)
	}
	m.eventListener = eventListener

	m.webhookRegistry = NewWebhookRegistry(WebhookRegistryConfig{
		TriggerRepo:  m.triggerRepo,
		WorkflowRepo: m.workflowRepo,
		ExecutionMgr: m.executionMgr,
		Cache:        m.cache,
	})

	return nil
}

// Start loads every enabled trigger and fans it out to the cron scheduler,
// event listener and webhook registry.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	triggers, err := m.triggerRepo.FindEnabled(m.ctx)
	if err != nil {
		return fmt.Errorf("failed to load enabled triggers: %w", err)
	}

	if err := m.cronScheduler.Start(m.ctx, triggers); err != nil {
		return fmt.Errorf("failed to start cron scheduler: %w", err)
	}

	if err := m.eventListener.Start(m.ctx, triggers); err != nil {
		return fmt.Errorf("failed to start event listener: %w", err)
	}

	if err := m.webhookRegistry.RegisterAll(m.ctx, triggers); err != nil {
		return fmt.Errorf("failed to register webhooks: %w", err)
	}

	return nil
}

// Stop gracefully shuts down all trigger handlers
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancel()

	if m.cronScheduler != nil {
		if err := m.cronScheduler.Stop(); err != nil {
			return fmt.Errorf("failed to stop cron scheduler: %w", err)
		}
	}

	if m.eventListener != nil {
		if err := m.eventListener.Stop(); err != nil {
			return fmt.Errorf("failed to stop event listener: %w", err)
		}
	}

	m.wg.Wait()

	return nil
}

// TriggerManual executes a workflow on demand, bypassing cron/event/webhook
// dispatch, and records the trigger as fired.
func (m *Manager) TriggerManual(ctx context.Context, triggerID, workflowID string, input map[string]any) (string, error) {
	execution, err := m.executionMgr.Execute(ctx, workflowID, input, nil)
	if err != nil {
		return "", fmt.Errorf("failed to execute workflow: %w", err)
	}

	if err := m.updateTriggerState(ctx, triggerID); err != nil {
		fmt.Printf("failed to update trigger state: %v\n", err)
	}

	return execution.ID, nil
}

// OnTriggerCreated routes a newly created trigger to the handler for its
// type. Disabled triggers are skipped.
func (m *Manager) OnTriggerCreated(ctx context.Context, trigger *models.Trigger) error {
	if !trigger.Enabled {
		return nil
	}

	switch trigger.Type {
	case models.TriggerTypeCron, models.TriggerTypeInterval:
		return m.cronScheduler.AddTrigger(ctx, trigger)
	case models.TriggerTypeEvent:
		return m.eventListener.AddTrigger(ctx, trigger)
	case models.TriggerTypeWebhook:
		return m.webhookRegistry.RegisterWebhook(ctx, trigger)
	}

	return nil
}

// OnTriggerUpdated re-registers a trigger whose config changed.
func (m *Manager) OnTriggerUpdated(ctx context.Context, trigger *models.Trigger) error {
	if err := m.OnTriggerDeleted(ctx, trigger.ID); err != nil {
		return err
	}

	if trigger.Enabled {
		return m.OnTriggerCreated(ctx, trigger)
	}

	return nil
}

// OnTriggerDeleted removes a trigger from every handler and clears its
// persisted state.
func (m *Manager) OnTriggerDeleted(ctx context.Context, triggerID string) error {
	if err := m.cronScheduler.RemoveTrigger(ctx, triggerID); err != nil {
		fmt.Printf("failed to remove cron trigger: %v\n", err)
	}

	if err := m.eventListener.RemoveTrigger(ctx, triggerID); err != nil {
		fmt.Printf("failed to remove event trigger: %v\n", err)
	}

	if err := m.webhookRegistry.UnregisterWebhook(ctx, triggerID); err != nil {
		fmt.Printf("failed to unregister webhook: %v\n", err)
	}

	if err := m.clearTriggerState(ctx, triggerID); err != nil {
		fmt.Printf("failed to clear trigger state: %v\n", err)
	}

	return nil
}

func (m *Manager) updateTriggerState(ctx context.Context, triggerID string) error {
	state, err := LoadTriggerState(ctx, m.cache, triggerID)
	if err != nil {
		state = NewTriggerState(triggerID)
	}

	state.MarkExecuted()

	return state.Save(ctx, m.cache)
}

func (m *Manager) clearTriggerState(ctx context.Context, triggerID string) error {
	return DeleteTriggerState(ctx, m.cache, triggerID)
}

// WebhookRegistry returns the webhook registry for HTTP webhook handling
func (m *Manager) WebhookRegistry() *WebhookRegistry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.webhookRegistry
}
