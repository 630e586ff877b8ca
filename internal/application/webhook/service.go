package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mbflow/automation-engine/internal/infrastructure/cache"
	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
	conditioneval "github.com/mbflow/automation-engine/pkg/engine"
)

// WorkflowDispatcher launches a workflow execution, satisfied by
// engine.Engine.Execute (wired in pkg/server), mirroring eventbus's
// dispatcher hook.
type WorkflowDispatcher func(ctx context.Context, workflowID string, input map[string]any) (string, error)

// Config configures a Service.
type Config struct {
	HistorySize      int
	DefaultRateLimit RateLimit
	Cache            *cache.RedisCache // optional; nil falls back to an in-process limiter
	Dispatcher       WorkflowDispatcher
	Logger           *logger.Logger
}

// Service owns the set of registered WebhookEndpoints and the inbound HTTP
// ingress pipeline described in spec.md §4.3: active/method check, rate
// limit, authentication, filters, payload persistence, and per-binding
// data-mapped dispatch.
type Service struct {
	mu        sync.RWMutex
	endpoints map[string]*WebhookEndpoint
	payloads  []WebhookPayload

	historySize      int
	defaultRateLimit RateLimit
	limiter          *rateLimiter
	dispatcher       WorkflowDispatcher
	logger           *logger.Logger
}

// New creates a Service.
func New(cfg Config) *Service {
	historySize := cfg.HistorySize
	if historySize <= 0 {
		historySize = 10000
	}
	return &Service{
		endpoints:        make(map[string]*WebhookEndpoint),
		historySize:      historySize,
		defaultRateLimit: cfg.DefaultRateLimit,
		limiter:          newRateLimiter(cfg.Cache),
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}
}

// RegisterEndpoint adds or replaces a WebhookEndpoint.
func (s *Service) RegisterEndpoint(ep *WebhookEndpoint) error {
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	if ep.URLPath == "" {
		return fmt.Errorf("webhook: url_path is required")
	}
	if ep.Method == "" {
		ep.Method = "POST"
	}

	now := time.Now()
	ep.UpdatedAt = now
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[ep.ID] = ep
	return nil
}

// UnregisterEndpoint removes an endpoint. Removing an unknown id is not an
// error.
func (s *Service) UnregisterEndpoint(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.endpoints, id)
}

// GetEndpoint retrieves a registered endpoint by id.
func (s *Service) GetEndpoint(id string) (*WebhookEndpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.endpoints[id]
	return ep, ok
}

// History returns a copy of the retained inbound payloads, oldest first.
func (s *Service) History() []WebhookPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WebhookPayload, len(s.payloads))
	copy(out, s.payloads)
	return out
}

// HandleInbound runs the full ingress pipeline for one delivery against
// endpointID and returns the HTTP status/body the caller should respond
// with.
func (s *Service) HandleInbound(ctx context.Context, endpointID, method string, headers map[string]string, body map[string]any, query map[string]string, sourceIP string) *InboundResult {
	ep, ok := s.GetEndpoint(endpointID)
	if !ok {
		return &InboundResult{StatusCode: 404, Body: map[string]any{"error": "webhook endpoint not found"}}
	}

	if !ep.Active {
		return &InboundResult{StatusCode: 503, Body: map[string]any{"error": "webhook endpoint is inactive"}}
	}

	if !methodsMatch(ep.Method, method) {
		return &InboundResult{StatusCode: 405, Body: map[string]any{"error": "method not allowed"}}
	}

	limit, window := s.effectiveRateLimit(ep)
	allowed, err := s.limiter.allow(ctx, ep.ID, limit, window)
	if err != nil && s.logger != nil {
		s.logger.Warn("webhook: rate limit check failed, failing open", "endpoint_id", ep.ID, "error", err)
	}
	if !allowed {
		return &InboundResult{StatusCode: 429, Body: map[string]any{"error": "rate limit exceeded"}}
	}

	if err := authenticate(ep.Auth, headers, body); err != nil {
		return &InboundResult{StatusCode: 401, Body: map[string]any{"error": err.Error()}}
	}

	view := buildView(headers, body, query)
	for _, f := range ep.Filters {
		matched, err := f.Matches(view)
		if err != nil || !matched {
			return &InboundResult{StatusCode: 200, Body: map[string]any{"filtered_out": true}}
		}
	}

	s.recordPayload(WebhookPayload{
		ID:         uuid.NewString(),
		EndpointID: ep.ID,
		Method:     method,
		Path:       ep.URLPath,
		Headers:    headers,
		Body:       body,
		Query:      query,
		Timestamp:  time.Now(),
		SourceIP:   sourceIP,
		Processed:  true,
	})

	results := s.dispatchBindings(ctx, ep, view)
	return summarize(ep.Bindings, results)
}

func methodsMatch(configured, actual string) bool {
	if configured == "" {
		return true
	}
	return eqFold(configured, actual)
}

func eqFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'a' <= ca && ca <= 'z' {
			ca -= 'a' - 'A'
		}
		if 'a' <= cb && cb <= 'z' {
			cb -= 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func (s *Service) effectiveRateLimit(ep *WebhookEndpoint) (int, time.Duration) {
	if ep.RateLimit != nil && ep.RateLimit.MaxRequests > 0 {
		return ep.RateLimit.MaxRequests, ep.RateLimit.Window
	}
	return s.defaultRateLimit.MaxRequests, s.defaultRateLimit.Window
}

func (s *Service) recordPayload(p WebhookPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, p)
	if len(s.payloads) > s.historySize {
		s.payloads = s.payloads[len(s.payloads)-s.historySize:]
	}
}

// buildView composes the {headers, body, query} namespace dotted paths
// resolve against, per spec.md §4.3's "headers.*, body.*, query.*" sources.
func buildView(headers map[string]string, body map[string]any, query map[string]string) map[string]any {
	return map[string]any{
		"headers": stringMapToAny(headers),
		"body":    body,
		"query":   stringMapToAny(query),
	}
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Service) dispatchBindings(ctx context.Context, ep *WebhookEndpoint, view map[string]any) []BindingResult {
	results := make([]BindingResult, 0, len(ep.Bindings))
	for _, binding := range ep.Bindings {
		results = append(results, s.dispatchOne(ctx, binding, view))
	}
	return results
}

func (s *Service) dispatchOne(ctx context.Context, binding TriggerBinding, view map[string]any) BindingResult {
	result := BindingResult{BindingID: binding.ID, WorkflowID: binding.WorkflowID}

	for _, cond := range binding.Conditions {
		matched, err := cond.Matches(view)
		if err != nil || !matched {
			result.Skipped = true
			return result
		}
	}

	input := projectInput(binding.DataMapping, view)

	if s.dispatcher == nil {
		result.Error = "no workflow dispatcher configured"
		return result
	}

	execID, err := s.dispatcher(ctx, binding.WorkflowID, input)
	if err != nil {
		result.Error = err.Error()
		if s.logger != nil {
			s.logger.Error("webhook: dispatch failed", "workflow_id", binding.WorkflowID, "error", err)
		}
		return result
	}
	result.ExecutionID = execID
	return result
}

// projectInput applies a binding's field mappings against view, producing
// the flat map passed as workflow input.
func projectInput(mappings []FieldMapping, view map[string]any) map[string]any {
	input := make(map[string]any, len(mappings))
	for _, m := range mappings {
		raw, ok := conditioneval.ResolvePath(view, m.Source)
		if !ok {
			input[m.Target] = m.DefaultValue
			continue
		}

		value, err := applyTransform(m.Transform, raw)
		if err != nil {
			input[m.Target] = m.DefaultValue
			continue
		}
		input[m.Target] = value
	}
	return input
}

// summarize produces the final InboundResult per spec.md §4.3 step 6: the
// first trigger's response if all bindings succeeded, 207 on a mixed
// outcome, 500 if every binding failed. An endpoint with no bindings, or
// where every binding was skipped by its own conditions, responds 200.
func summarize(bindings []TriggerBinding, results []BindingResult) *InboundResult {
	if len(results) == 0 {
		return &InboundResult{StatusCode: 200, Body: map[string]any{"message": "no bindings configured"}, Bindings: results}
	}

	succeeded, failed, skipped := 0, 0, 0
	for _, r := range results {
		switch {
		case r.Skipped:
			skipped++
		case r.Error != "":
			failed++
		default:
			succeeded++
		}
	}

	switch {
	case failed == 0:
		if len(bindings) > 0 && bindings[0].ResponseBody != nil && !results[0].Skipped {
			return &InboundResult{StatusCode: 200, Body: bindings[0].ResponseBody, Bindings: results}
		}
		return &InboundResult{StatusCode: 200, Body: map[string]any{"message": "workflow execution started", "bindings": results}, Bindings: results}
	case succeeded == 0 && skipped == 0:
		return &InboundResult{StatusCode: 500, Body: map[string]any{"error": "all bindings failed", "bindings": results}, Bindings: results}
	default:
		return &InboundResult{StatusCode: 207, Body: map[string]any{"message": "mixed binding outcome", "bindings": results}, Bindings: results}
	}
}
