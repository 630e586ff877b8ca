package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbflow/automation-engine/internal/application/webhook"
	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
)

// WebhookEndpointHandlers exposes registration and the HTTP ingress for the
// richer multi-auth, filtered, field-mapped WebhookEndpoint pipeline
// (internal/application/webhook), distinct from the simpler trigger-bound
// /api/v1/webhooks/{path} surface WebhookHandlers serves.
type WebhookEndpointHandlers struct {
	service *webhook.Service
	logger  *logger.Logger
}

// NewWebhookEndpointHandlers creates a WebhookEndpointHandlers instance.
func NewWebhookEndpointHandlers(service *webhook.Service, log *logger.Logger) *WebhookEndpointHandlers {
	return &WebhookEndpointHandlers{service: service, logger: log}
}

// HandleRegisterEndpoint handles POST /api/v1/webhook-endpoints.
func (h *WebhookEndpointHandlers) HandleRegisterEndpoint(c *gin.Context) {
	if h.service == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	var ep webhook.WebhookEndpoint
	if err := bindJSON(c, &ep); err != nil {
		return
	}

	if err := h.service.RegisterEndpoint(&ep); err != nil {
		respondAPIErrorWithRequestID(c, TranslateError(err))
		return
	}
	respondJSON(c, http.StatusCreated, ep)
}

// HandleGetEndpoint handles GET /api/v1/webhook-endpoints/{id}.
func (h *WebhookEndpointHandlers) HandleGetEndpoint(c *gin.Context) {
	if h.service == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	ep, ok := h.service.GetEndpoint(c.Param("id"))
	if !ok {
		respondAPIError(c, ErrNotFound)
		return
	}
	respondJSON(c, http.StatusOK, ep)
}

// HandleDeleteEndpoint handles DELETE /api/v1/webhook-endpoints/{id}.
func (h *WebhookEndpointHandlers) HandleDeleteEndpoint(c *gin.Context) {
	if h.service == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	h.service.UnregisterEndpoint(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// HandleDeliver handles every inbound webhook delivery at
// /api/v1/webhook-endpoints/{id}/deliver, running the full ingress pipeline:
// active/method check, rate limit, auth, filters, and per-binding dispatch.
func (h *WebhookEndpointHandlers) HandleDeliver(c *gin.Context) {
	if h.service == nil {
		respondAPIError(c, errRuntimeUnavailable)
		return
	}

	endpointID := c.Param("id")

	headers := make(map[string]string, len(c.Request.Header))
	for key, values := range c.Request.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	query := make(map[string]string, len(c.Request.URL.Query()))
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	var body map[string]any
	if c.Request.Body != nil {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			respondAPIError(c, NewAPIError("INVALID_BODY", "failed to read request body", http.StatusBadRequest))
			return
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				respondAPIError(c, NewAPIError("INVALID_BODY", "request body is not valid JSON", http.StatusBadRequest))
				return
			}
		}
	}
	if body == nil {
		body = map[string]any{}
	}

	result := h.service.HandleInbound(c.Request.Context(), endpointID, c.Request.Method, headers, body, query, c.ClientIP())
	c.JSON(result.StatusCode, result.Body)
}
