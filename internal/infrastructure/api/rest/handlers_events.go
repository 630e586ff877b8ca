package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbflow/automation-engine/internal/eventbus"
	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
)

// EventHandlers exposes the EventBus over HTTP: publishing events and
// managing the workflow subscriptions that react to them.
type EventHandlers struct {
	bus    *eventbus.Bus
	logger *logger.Logger
}

// NewEventHandlers creates an EventHandlers instance.
func NewEventHandlers(bus *eventbus.Bus, log *logger.Logger) *EventHandlers {
	return &EventHandlers{bus: bus, logger: log}
}

// HandlePublish handles POST /api/v1/events.
func (h *EventHandlers) HandlePublish(c *gin.Context) {
	if h.bus == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	var req struct {
		EventName     string         `json:"event_name" binding:"required"`
		Data          map[string]any `json:"data"`
		Source        string         `json:"source"`
		CorrelationID string         `json:"correlation_id"`
	}
	if err := bindJSON(c, &req); err != nil {
		return
	}

	delivered, err := h.bus.Publish(c.Request.Context(), req.EventName, req.Data, req.Source, req.CorrelationID)
	if err != nil {
		respondAPIErrorWithRequestID(c, TranslateError(err))
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"delivered": delivered})
}

// HandleSubscribe handles POST /api/v1/events/subscriptions.
func (h *EventHandlers) HandleSubscribe(c *gin.Context) {
	if h.bus == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	var req struct {
		EventName  string            `json:"event_name" binding:"required"`
		WorkflowID string            `json:"workflow_id" binding:"required"`
		Filters    []eventbus.Filter `json:"filters"`
		Priority   int               `json:"priority"`
	}
	if err := bindJSON(c, &req); err != nil {
		return
	}

	id, err := h.bus.Subscribe(req.EventName, req.WorkflowID, req.Filters, req.Priority)
	if err != nil {
		respondAPIErrorWithRequestID(c, TranslateError(err))
		return
	}
	respondJSON(c, http.StatusCreated, gin.H{"id": id})
}

// HandleUnsubscribe handles DELETE /api/v1/events/subscriptions/{id}.
func (h *EventHandlers) HandleUnsubscribe(c *gin.Context) {
	if h.bus == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	if err := h.bus.Unsubscribe(c.Param("id")); err != nil {
		respondAPIError(c, ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleHistory handles GET /api/v1/events/history.
func (h *EventHandlers) HandleHistory(c *gin.Context) {
	if h.bus == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}
	respondJSON(c, http.StatusOK, h.bus.History())
}
