package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbflow/automation-engine/internal/application/webhook"
)

func setupWebhookEndpointHandlersTest(t *testing.T, dispatcher webhook.WorkflowDispatcher) *gin.Engine {
	t.Helper()

	svc := webhook.New(webhook.Config{Dispatcher: dispatcher})
	handlers := NewWebhookEndpointHandlers(svc, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	endpoints := router.Group("/api/v1/webhook-endpoints")
	{
		endpoints.POST("", handlers.HandleRegisterEndpoint)
		endpoints.GET("/:id", handlers.HandleGetEndpoint)
		endpoints.DELETE("/:id", handlers.HandleDeleteEndpoint)
		endpoints.Any("/:id/deliver", handlers.HandleDeliver)
	}
	return router
}

func TestWebhookEndpointHandlers_RegisterAndDeliver(t *testing.T) {
	router := setupWebhookEndpointHandlersTest(t, func(ctx context.Context, workflowID string, input map[string]any) (string, error) {
		return "exec-123", nil
	})

	body, _ := json.Marshal(map[string]any{
		"url_path": "/hooks/orders",
		"method":   "POST",
		"active":   true,
		"bindings": []map[string]any{
			{"id": "b1", "workflow_id": "wf-1"},
		},
	})
	createReq := httptest.NewRequest(http.MethodPost, "/api/v1/webhook-endpoints", bytes.NewReader(body))
	createReq.Header.Set("Content-Type", "application/json")
	createRec := httptest.NewRecorder()
	router.ServeHTTP(createRec, createReq)
	require.Equal(t, http.StatusCreated, createRec.Code)

	var created webhook.WebhookEndpoint
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	deliverReq := httptest.NewRequest(http.MethodPost, "/api/v1/webhook-endpoints/"+created.ID+"/deliver", bytes.NewReader([]byte(`{"order_id":"o-1"}`)))
	deliverReq.Header.Set("Content-Type", "application/json")
	deliverRec := httptest.NewRecorder()
	router.ServeHTTP(deliverRec, deliverReq)
	assert.Equal(t, http.StatusOK, deliverRec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/webhook-endpoints/"+created.ID, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)

	delReq := httptest.NewRequest(http.MethodDelete, "/api/v1/webhook-endpoints/"+created.ID, nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, delReq)
	assert.Equal(t, http.StatusNoContent, delRec.Code)
}

func TestWebhookEndpointHandlers_NilServiceReturns503(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handlers := NewWebhookEndpointHandlers(nil, nil)
	router := gin.New()
	router.GET("/webhook-endpoints/:id", handlers.HandleGetEndpoint)

	req := httptest.NewRequest(http.MethodGet, "/webhook-endpoints/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
