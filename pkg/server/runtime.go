package server

import (
	"context"
	"fmt"
	"time"

	"github.com/mbflow/automation-engine/internal/actionexecutor"
	appengine "github.com/mbflow/automation-engine/internal/application/engine"
	"github.com/mbflow/automation-engine/internal/application/webhook"
	"github.com/mbflow/automation-engine/internal/errorhandler"
	"github.com/mbflow/automation-engine/internal/eventbus"
	"github.com/mbflow/automation-engine/internal/infrastructure/tracing"
	"github.com/mbflow/automation-engine/internal/monitoring"
	"github.com/mbflow/automation-engine/internal/retrypolicy"
	"github.com/mbflow/automation-engine/internal/statemanager"
	conditioneval "github.com/mbflow/automation-engine/pkg/engine"
	"github.com/mbflow/automation-engine/pkg/models"
)

// initRuntimeLayer wires the automation primitives that sit above the
// execution engine: the event bus (workflow triggering by published
// events), the durable state manager, the action queue, error
// handling/circuit-breaking, condition evaluation, and monitoring. None of
// these have a hard external dependency beyond what initComponents already
// brought up, so failures here degrade a feature rather than the server.
func (s *Server) initRuntimeLayer() error {
	provider, err := tracing.NewProvider(s.ctx, tracing.Config{
		Enabled:     s.config.Tracing.Enabled,
		ServiceName: s.config.Tracing.ServiceName,
		Endpoint:    s.config.Tracing.Endpoint,
		Insecure:    s.config.Tracing.Insecure,
		SampleRate:  s.config.Tracing.SampleRate,
	})
	if err != nil {
		s.logger.Warn("Failed to initialize tracing provider", "error", err)
	} else {
		s.runtime.TracingProvider = provider
	}

	s.runtime.EventBus = eventbus.New(eventbus.Config{
		Dispatcher: s.dispatchWorkflow,
		Logger:     s.logger,
	})

	var stateDeps statemanager.Deps
	if s.data.RedisCache != nil {
		stateDeps.Redis = s.data.RedisCache.Client()
	}
	if s.data.DB != nil {
		stateDeps.DB = s.data.DB
	}
	stateManager, err := statemanager.NewFromConfig(s.config.StateStore, stateDeps, s.logger)
	if err != nil {
		s.logger.Warn("Failed to initialize state manager", "error", err)
	} else {
		s.runtime.StateManager = stateManager
		s.runtime.StateManager.StartCleanup(s.ctx)
	}

	s.runtime.ActionExecutor = actionexecutor.New(actionexecutor.Config{
		MaxConcurrentExecutions: 20,
	}, s.logger)

	s.runtime.ErrorHandler = errorhandler.New(errorhandler.Config{
		Retry: retrypolicy.Default(),
	}, s.logger, func(ae *errorhandler.AutomationError) {
		s.logger.Error("automation error reported",
			"id", ae.ID, "type", ae.Type, "severity", ae.Severity, "message", ae.Message)
	})

	s.runtime.ConditionEvaluator = conditioneval.NewRuleEvaluator(nil)

	s.runtime.Monitoring = monitoring.New(s.config.Monitoring, nil, s.runtime.TracingProvider, s.logger)
	s.runtime.Monitoring.Start(s.ctx)

	s.runtime.WebhookService = webhook.New(webhook.Config{
		HistorySize: s.config.Webhook.HistorySize,
		DefaultRateLimit: webhook.RateLimit{
			MaxRequests: s.config.Webhook.DefaultRateLimitMax,
			Window:      s.config.Webhook.DefaultRateLimitWindow,
		},
		Cache:      s.data.RedisCache,
		Dispatcher: s.dispatchWorkflowForWebhook,
		Logger:     s.logger,
	})

	s.logger.Info("Runtime layer initialized")
	return nil
}

// dispatchWorkflow adapts ExecutionManager.Execute to the eventbus's
// WorkflowDispatcher signature, used when an event-triggered subscription
// fires a workflow. The call runs through ErrorHandler so a transient
// execution failure gets classified, retried per the configured policy, and
// tripped into the "workflow-execution" circuit breaker like any other
// automation error, rather than bypassing that bookkeeping.
func (s *Server) dispatchWorkflow(ctx context.Context, workflowID string, input map[string]any) error {
	if s.execution.ExecutionManager == nil {
		return nil
	}
	started := time.Now()
	var execution *models.Execution
	runErr := func() error {
		op := func(ctx context.Context) error {
			exec, err := s.execution.ExecutionManager.Execute(ctx, workflowID, input, appengine.DefaultExecutionOptions())
			if err != nil {
				return err
			}
			execution = exec
			return nil
		}
		if s.runtime.ErrorHandler == nil {
			return op(ctx)
		}
		if ae := s.runtime.ErrorHandler.Handle(ctx, "workflow-execution", errorhandler.ErrorContext{
			WorkflowID: workflowID,
			Operation:  "dispatch",
		}, op); ae != nil {
			return ae
		}
		return nil
	}()

	if s.runtime.Monitoring != nil {
		s.runtime.Monitoring.RecordWorkflowExecution(workflowID, runErr == nil, time.Since(started))
	}
	s.publishWorkflowCompletion(ctx, workflowID, execution, runErr)
	return runErr
}

// publishWorkflowCompletion emits a workflow.completed or workflow.failed
// event on the bus so subscriptions chaining off this workflow's outcome
// (registered via eventbus.Subscribe) can fire in turn.
func (s *Server) publishWorkflowCompletion(ctx context.Context, workflowID string, execution *models.Execution, runErr error) {
	if s.runtime.EventBus == nil {
		return
	}
	eventName := "workflow.completed"
	data := map[string]any{"workflow_id": workflowID}
	if execution != nil {
		data["execution_id"] = execution.ID
	}
	if runErr != nil {
		eventName = "workflow.failed"
		data["error"] = runErr.Error()
	}
	if _, err := s.runtime.EventBus.Publish(ctx, eventName, data, "workflow-dispatcher", ""); err != nil {
		s.logger.Warn("failed to publish workflow completion event", "error", err)
	}
}

// dispatchWorkflowForWebhook adapts ExecutionManager.Execute to the
// webhook.WorkflowDispatcher signature, which also needs the new
// execution's id to report back to the caller.
func (s *Server) dispatchWorkflowForWebhook(ctx context.Context, workflowID string, input map[string]any) (string, error) {
	if s.execution.ExecutionManager == nil {
		return "", fmt.Errorf("execution manager not initialized")
	}
	started := time.Now()
	execution, err := s.execution.ExecutionManager.Execute(ctx, workflowID, input, appengine.DefaultExecutionOptions())
	if s.runtime.Monitoring != nil {
		s.runtime.Monitoring.RecordWorkflowExecution(workflowID, err == nil, time.Since(started))
	}
	if err != nil {
		return "", err
	}
	return execution.ID, nil
}
