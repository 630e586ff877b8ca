package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbflow/automation-engine/internal/actionexecutor"
	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
	"github.com/mbflow/automation-engine/internal/statemanager"
	conditioneval "github.com/mbflow/automation-engine/pkg/engine"
)

// RuntimeHandlers exposes the ActionExecutor queue, ConditionEvaluator, and
// StateManager as HTTP operations, for callers that drive these primitives
// directly rather than through a full workflow execution.
type RuntimeHandlers struct {
	actions    *actionexecutor.Executor
	conditions *conditioneval.RuleEvaluator
	states     *statemanager.Manager
	logger     *logger.Logger
}

// NewRuntimeHandlers creates a RuntimeHandlers instance. Any of actions,
// conditions, or states may be nil if that subsystem failed to initialize;
// handlers for a nil subsystem respond 503.
func NewRuntimeHandlers(actions *actionexecutor.Executor, conditions *conditioneval.RuleEvaluator, states *statemanager.Manager, log *logger.Logger) *RuntimeHandlers {
	return &RuntimeHandlers{actions: actions, conditions: conditions, states: states, logger: log}
}

var errRuntimeUnavailable = NewAPIError("RUNTIME_UNAVAILABLE", "this subsystem is not available", http.StatusServiceUnavailable)

// HandleSubmitAction handles POST /api/v1/actions/{definition_id}, queuing
// an action against a definition registered in-process (action handlers
// are Go closures and cannot be registered over HTTP).
func (h *RuntimeHandlers) HandleSubmitAction(c *gin.Context) {
	if h.actions == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	definitionID := c.Param("definition_id")
	if definitionID == "" {
		respondAPIError(c, ErrMissingParameter)
		return
	}

	var req struct {
		Input    map[string]any `json:"input"`
		Priority int            `json:"priority"`
	}
	if err := bindJSON(c, &req); err != nil {
		return
	}

	action, err := h.actions.Submit(definitionID, req.Input, req.Priority)
	if err != nil {
		respondAPIErrorWithRequestID(c, TranslateError(err))
		return
	}

	respondJSON(c, http.StatusAccepted, action)
}

// HandleGetAction handles GET /api/v1/actions/{id}.
func (h *RuntimeHandlers) HandleGetAction(c *gin.Context) {
	if h.actions == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	action, ok := h.actions.Get(c.Param("id"))
	if !ok {
		respondAPIError(c, ErrNotFound)
		return
	}
	respondJSON(c, http.StatusOK, action)
}

// HandleCancelAction handles POST /api/v1/actions/{id}/cancel.
func (h *RuntimeHandlers) HandleCancelAction(c *gin.Context) {
	if h.actions == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	if err := h.actions.Cancel(c.Param("id")); err != nil {
		respondAPIErrorWithRequestID(c, TranslateError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleEvaluateCondition handles POST /api/v1/conditions/evaluate.
func (h *RuntimeHandlers) HandleEvaluateCondition(c *gin.Context) {
	if h.conditions == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	var req struct {
		Condition conditioneval.Condition `json:"condition"`
		Context   map[string]any          `json:"context"`
	}
	if err := bindJSON(c, &req); err != nil {
		return
	}

	result, err := h.conditions.Evaluate(req.Condition, req.Context)
	if err != nil {
		respondAPIErrorWithRequestID(c, TranslateError(err))
		return
	}

	respondJSON(c, http.StatusOK, result)
}

// HandleCreateState handles POST /api/v1/state.
func (h *RuntimeHandlers) HandleCreateState(c *gin.Context) {
	if h.states == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	var req struct {
		WorkflowID  string         `json:"workflow_id"`
		ExecutionID string         `json:"execution_id"`
		Context     map[string]any `json:"context"`
	}
	if err := bindJSON(c, &req); err != nil {
		return
	}

	state, err := h.states.CreateState(c.Request.Context(), req.WorkflowID, req.ExecutionID, req.Context)
	if err != nil {
		respondAPIErrorWithRequestID(c, TranslateError(err))
		return
	}
	respondJSON(c, http.StatusCreated, state)
}

// HandleGetState handles GET /api/v1/state/{id}.
func (h *RuntimeHandlers) HandleGetState(c *gin.Context) {
	if h.states == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	state, err := h.states.GetState(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondAPIErrorWithRequestID(c, TranslateError(err))
		return
	}
	respondJSON(c, http.StatusOK, state)
}

// HandleUpdateState handles PATCH /api/v1/state/{id}.
func (h *RuntimeHandlers) HandleUpdateState(c *gin.Context) {
	if h.states == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	var patch map[string]any
	if err := bindJSON(c, &patch); err != nil {
		return
	}

	state, err := h.states.UpdateState(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondAPIErrorWithRequestID(c, TranslateError(err))
		return
	}
	respondJSON(c, http.StatusOK, state)
}

// HandleDeleteState handles DELETE /api/v1/state/{id}.
func (h *RuntimeHandlers) HandleDeleteState(c *gin.Context) {
	if h.states == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	if err := h.states.DeleteState(c.Request.Context(), c.Param("id")); err != nil {
		respondAPIErrorWithRequestID(c, TranslateError(err))
		return
	}
	c.Status(http.StatusNoContent)
}
