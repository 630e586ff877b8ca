package trigger

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mbflow/automation-engine/internal/application/engine"
	"github.com/mbflow/automation-engine/internal/domain/repository"
	"github.com/mbflow/automation-engine/internal/infrastructure/cache"
	storagemodels "github.com/mbflow/automation-engine/internal/infrastructure/storage/models"
	"github.com/mbflow/automation-engine/pkg/models"
)

// WebhookRegistry holds the webhook triggers currently live in memory and
// handles the inbound HTTP request -> workflow execution path.
type WebhookRegistry struct {
	triggerRepo  repository.TriggerRepository
	workflowRepo repository.WorkflowRepository
	executionMgr *engine.ExecutionManager
	cache        *cache.RedisCache

	webhooks map[string]*models.Trigger // triggerID -> trigger
	mu       sync.RWMutex
}

// WebhookRegistryConfig holds configuration for webhook registry
type WebhookRegistryConfig struct {
	TriggerRepo  repository.TriggerRepository
	WorkflowRepo repository.WorkflowRepository
	ExecutionMgr *engine.ExecutionManager
	Cache        *cache.RedisCache
}

// NewWebhookRegistry creates a new webhook registry
func NewWebhookRegistry(cfg WebhookRegistryConfig) *WebhookRegistry {
	return &WebhookRegistry{
		triggerRepo:  cfg.TriggerRepo,
		workflowRepo: cfg.WorkflowRepo,
		executionMgr: cfg.ExecutionMgr,
		cache:        cfg.Cache,
		webhooks:     make(map[string]*models.Trigger),
	}
}

// RegisterAll registers every webhook trigger in the given set, ignoring any
// trigger of another type.
func (wr *WebhookRegistry) RegisterAll(ctx context.Context, triggers []*storagemodels.TriggerModel) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	for _, trigger := range triggers {
		if trigger.Type == string(models.TriggerTypeWebhook) {
			domainTrigger := wr.modelToDomain(trigger)
			wr.webhooks[domainTrigger.ID] = domainTrigger
		}
	}

	return nil
}

// RegisterWebhook registers a single webhook trigger. Non-webhook triggers
// are silently ignored so callers can route any trigger type through it.
func (wr *WebhookRegistry) RegisterWebhook(ctx context.Context, trigger *models.Trigger) error {
	if trigger.Type != models.TriggerTypeWebhook {
		return nil
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	wr.webhooks[trigger.ID] = trigger
	return nil
}

// UnregisterWebhook removes a webhook trigger. Unregistering an ID that was
// never registered is not an error.
func (wr *WebhookRegistry) UnregisterWebhook(ctx context.Context, triggerID string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	delete(wr.webhooks, triggerID)
	return nil
}

// GetWebhook retrieves a webhook trigger by ID
func (wr *WebhookRegistry) GetWebhook(triggerID string) (*models.Trigger, bool) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	trigger, exists := wr.webhooks[triggerID]
	return trigger, exists
}

// ExecuteWebhook runs the full inbound webhook pipeline: signature check, IP
// whitelist, rate limit, payload merge, workflow execution, state update.
func (wr *WebhookRegistry) ExecuteWebhook(ctx context.Context, triggerID string, payload map[string]any, headers map[string]string, sourceIP string) (string, error) {
	trigger, exists := wr.GetWebhook(triggerID)
	if !exists {
		return "", fmt.Errorf("webhook trigger not found")
	}

	if !trigger.Enabled {
		return "", fmt.Errorf("webhook trigger is disabled")
	}

	if err := wr.validateSignature(trigger, payload, headers); err != nil {
		return "", fmt.Errorf("signature validation failed: %w", err)
	}

	if err := wr.checkIPWhitelist(trigger, sourceIP); err != nil {
		return "", fmt.Errorf("IP not whitelisted: %w", err)
	}

	if err := wr.checkRateLimit(ctx, triggerID); err != nil {
		return "", fmt.Errorf("rate limit exceeded: %w", err)
	}

	input := make(map[string]any)

	if defaultInput, ok := trigger.Config["input"].(map[string]any); ok {
		for k, v := range defaultInput {
			input[k] = v
		}
	}

	for k, v := range payload {
		input[k] = v
	}

	input["_webhook"] = map[string]any{
		"trigger_id": triggerID,
		"headers":    headers,
		"source_ip":  sourceIP,
		"timestamp":  time.Now().Unix(),
	}

	execution, err := wr.executionMgr.Execute(ctx, trigger.WorkflowID, input, nil)
	if err != nil {
		return "", fmt.Errorf("failed to execute workflow: %w", err)
	}

	state, err := LoadTriggerState(ctx, wr.cache, triggerID)
	if err != nil {
		state = NewTriggerState(triggerID)
	}
	state.MarkExecuted()

	if err := state.Save(ctx, wr.cache); err != nil {
		fmt.Printf("failed to save trigger state: %v\n", err)
	}

	triggerUUID, _ := uuid.Parse(triggerID)
	if err := wr.triggerRepo.MarkTriggered(ctx, triggerUUID); err != nil {
		fmt.Printf("failed to mark trigger as triggered: %v\n", err)
	}

	return execution.ID, nil
}

// validateSignature checks the X-Webhook-Signature header against an
// HMAC-SHA256 of the payload, when the trigger has a secret configured.
func (wr *WebhookRegistry) validateSignature(trigger *models.Trigger, payload map[string]any, headers map[string]string) error {
	secret, ok := trigger.Config["secret"].(string)
	if !ok || secret == "" {
		return nil
	}

	signature := headers["X-Webhook-Signature"]
	if signature == "" {
		return fmt.Errorf("missing signature header")
	}

	expectedSignature := wr.computeSignature(secret, payload)

	if !hmac.Equal([]byte(signature), []byte(expectedSignature)) {
		return fmt.Errorf("invalid signature")
	}

	return nil
}

// computeSignature computes an HMAC-SHA256 signature over the payload.
func (wr *WebhookRegistry) computeSignature(secret string, payload map[string]any) string {
	payloadStr := fmt.Sprintf("%v", payload)

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payloadStr))
	return hex.EncodeToString(h.Sum(nil))
}

// checkIPWhitelist checks if source IP is whitelisted. An empty or absent
// whitelist allows every source.
func (wr *WebhookRegistry) checkIPWhitelist(trigger *models.Trigger, sourceIP string) error {
	whitelist, ok := trigger.Config["ip_whitelist"].([]any)
	if !ok || len(whitelist) == 0 {
		return nil
	}

	ip := net.ParseIP(sourceIP)
	if ip == nil {
		return fmt.Errorf("invalid source IP: %s", sourceIP)
	}

	for _, allowedIP := range whitelist {
		allowedStr, ok := allowedIP.(string)
		if !ok {
			continue
		}

		if _, ipNet, err := net.ParseCIDR(allowedStr); err == nil {
			if ipNet.Contains(ip) {
				return nil
			}
		} else if sourceIP == allowedStr {
			return nil
		}
	}

	return fmt.Errorf("IP %s not in whitelist", sourceIP)
}

// checkRateLimit enforces a fixed window of 100 requests per minute per
// trigger, backed by a Redis counter. Redis errors fail open.
func (wr *WebhookRegistry) checkRateLimit(ctx context.Context, triggerID string) error {
	key := fmt.Sprintf("trigger:%s:ratelimit", triggerID)

	count, err := wr.cache.Increment(ctx, key)
	if err != nil {
		return nil
	}

	if count == 1 {
		if err := wr.cache.Expire(ctx, key, time.Minute); err != nil {
			fmt.Printf("failed to set rate limit expiration: %v\n", err)
		}
	}

	if count > 100 {
		return fmt.Errorf("rate limit exceeded: %d requests in last minute", count)
	}

	return nil
}

// modelToDomain converts a storage-layer trigger row into the domain model
// used by the rest of the trigger package.
func (wr *WebhookRegistry) modelToDomain(tm *storagemodels.TriggerModel) *models.Trigger {
	trigger := &models.Trigger{
		ID:         tm.ID.String(),
		WorkflowID: tm.WorkflowID.String(),
		Type:       models.TriggerType(tm.Type),
		Config:     make(map[string]any),
		Enabled:    tm.Enabled,
		CreatedAt:  tm.CreatedAt,
		UpdatedAt:  tm.UpdatedAt,
	}

	if tm.Config != nil {
		trigger.Config = map[string]any(tm.Config)
	}

	if tm.LastTriggeredAt != nil {
		trigger.LastRun = tm.LastTriggeredAt
	}

	return trigger
}
