package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
)

// MetricSource resolves the current value of a named metric for alert
// evaluation. Callers register one per known metric name (e.g.
// "workflow.failure_rate.<id>", "system.cpu_percent").
type MetricSource func() (float64, bool)

// AlertEvaluatorConfig configures the evaluator's default cadence.
type AlertEvaluatorConfig struct {
	DefaultInterval time.Duration // default 60s; the cadence at which every rule is evaluated
}

func (c AlertEvaluatorConfig) withDefaults() AlertEvaluatorConfig {
	if c.DefaultInterval <= 0 {
		c.DefaultInterval = 60 * time.Second
	}
	return c
}

// AlertEvaluator periodically evaluates registered AlertRules against their
// MetricSource and raises, bumps, or leaves alone the corresponding Alert.
type AlertEvaluator struct {
	cfg    AlertEvaluatorConfig
	logger *logger.Logger

	mu      sync.Mutex
	rules   map[string]AlertRule
	sources map[string]MetricSource
	alerts  map[string]*Alert // keyed by ruleID, one active/silenced alert per rule

	onAlert func(Alert)

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAlertEvaluator creates an AlertEvaluator. onAlert, if non-nil, is
// called every time an alert is raised or bumped (not on every no-op tick).
func NewAlertEvaluator(cfg AlertEvaluatorConfig, log *logger.Logger, onAlert func(Alert)) *AlertEvaluator {
	return &AlertEvaluator{
		cfg:     cfg.withDefaults(),
		logger:  log,
		rules:   make(map[string]AlertRule),
		sources: make(map[string]MetricSource),
		alerts:  make(map[string]*Alert),
		onAlert: onAlert,
		stopCh:  make(chan struct{}),
	}
}

// RegisterRule adds or replaces a rule and its metric source.
func (e *AlertEvaluator) RegisterRule(rule AlertRule, source MetricSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	e.rules[rule.ID] = rule
	e.sources[rule.ID] = source
}

// Resolve transitions a rule's active alert to resolved.
func (e *AlertEvaluator) Resolve(ruleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if a, ok := e.alerts[ruleID]; ok {
		a.State = AlertResolved
		a.ResolvedAt = time.Now()
		a.UpdatedAt = a.ResolvedAt
	}
}

// Silence transitions a rule's active alert to silenced for duration.
func (e *AlertEvaluator) Silence(ruleID string, duration time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if a, ok := e.alerts[ruleID]; ok {
		a.State = AlertSilenced
		a.SilenceTill = time.Now().Add(duration)
		a.UpdatedAt = time.Now()
	}
}

// Start launches a single goroutine that evaluates every registered rule on
// each tick of the evaluator's DefaultInterval, so rules registered after
// Start are picked up on the next tick. A rule's own EvaluationInterval is
// not consulted.
func (e *AlertEvaluator) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.DefaultInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			case <-ticker.C:
				e.evaluateAll()
			}
		}
	}()
}

// Stop halts evaluation.
func (e *AlertEvaluator) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

func (e *AlertEvaluator) evaluateAll() {
	e.mu.Lock()
	rules := make([]AlertRule, 0, len(e.rules))
	for _, r := range e.rules {
		rules = append(rules, r)
	}
	e.mu.Unlock()

	for _, r := range rules {
		e.evaluateRule(r)
	}
}

func (e *AlertEvaluator) evaluateRule(rule AlertRule) {
	e.mu.Lock()
	source, ok := e.sources[rule.ID]
	existing := e.alerts[rule.ID]
	e.mu.Unlock()
	if !ok || source == nil {
		return
	}

	if existing != nil && existing.State == AlertSilenced && time.Now().Before(existing.SilenceTill) {
		return
	}

	value, ok := source()
	if !ok {
		return
	}

	if !rule.Operator.evaluate(value, rule.Threshold) {
		return
	}

	e.mu.Lock()
	a := e.alerts[rule.ID]
	now := time.Now()
	if a == nil || a.State == AlertResolved {
		a = &Alert{
			ID:        uuid.NewString(),
			RuleID:    rule.ID,
			Metric:    rule.Metric,
			Value:     value,
			State:     AlertActive,
			Count:     1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		e.alerts[rule.ID] = a
	} else {
		a.Value = value
		a.Count++
		a.UpdatedAt = now
		if a.State == AlertSilenced {
			a.State = AlertActive
		}
	}
	snapshot := *a
	e.mu.Unlock()

	if e.onAlert != nil {
		e.onAlert(snapshot)
	}
}
