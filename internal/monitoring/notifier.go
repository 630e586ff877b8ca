package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
)

// NotifierConfig configures retry behavior for channel delivery, mirroring
// the HTTP callback observer's retry shape.
type NotifierConfig struct {
	MaxRetries   int
	RetryDelay   time.Duration
	RetryBackoff float64
	Timeout      time.Duration
}

func (c NotifierConfig) withDefaults() NotifierConfig {
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2.0
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// Notifier dispatches alert notifications to configured channels, filtering
// each channel by its severity allow-list before sending.
type Notifier struct {
	cfg      NotifierConfig
	client   *http.Client
	logger   *logger.Logger
	channels map[string]NotificationChannel
}

// NewNotifier creates a Notifier over the given channels.
func NewNotifier(cfg NotifierConfig, channels []NotificationChannel, log *logger.Logger) *Notifier {
	cfg = cfg.withDefaults()
	byName := make(map[string]NotificationChannel, len(channels))
	for _, c := range channels {
		byName[c.Name] = c
	}
	return &Notifier{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   log,
		channels: byName,
	}
}

// Dispatch sends alert to every channel whose severity allow-list admits
// severity, returning one Notification result per attempted channel.
func (n *Notifier) Dispatch(ctx context.Context, alert Alert, severity string) []Notification {
	var results []Notification
	for _, ch := range n.channels {
		if !ch.allows(severity) {
			continue
		}
		err := n.sendWithRetry(ctx, ch, alert, severity)
		results = append(results, Notification{
			Channel:  ch.Name,
			Alert:    alert,
			Severity: severity,
			SentAt:   time.Now(),
			Err:      err,
		})
		if err != nil && n.logger != nil {
			n.logger.Warn("monitoring: notification delivery failed", "channel", ch.Name, "error", err)
		}
	}
	return results
}

func (n *Notifier) sendWithRetry(ctx context.Context, ch NotificationChannel, alert Alert, severity string) error {
	var lastErr error
	delay := n.cfg.RetryDelay

	for attempt := 0; attempt <= n.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * n.cfg.RetryBackoff)
		}

		if err := n.send(ctx, ch, alert, severity); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("notification to channel %q failed after %d attempts: %w", ch.Name, n.cfg.MaxRetries+1, lastErr)
}

func (n *Notifier) send(ctx context.Context, ch NotificationChannel, alert Alert, severity string) error {
	switch ch.Kind {
	case "webhook", "slack":
		return n.sendWebhook(ctx, ch, alert, severity)
	case "email", "sms":
		// Email and SMS delivery are external collaborators in this system;
		// the dispatcher still honors severity filtering and retry, it just
		// has nowhere to POST without a provider URL.
		if ch.WebhookURL == "" {
			return nil
		}
		return n.sendWebhook(ctx, ch, alert, severity)
	default:
		return fmt.Errorf("unknown notification channel kind %q", ch.Kind)
	}
}

func (n *Notifier) sendWebhook(ctx context.Context, ch NotificationChannel, alert Alert, severity string) error {
	payload := map[string]any{
		"alert_id":  alert.ID,
		"rule_id":   alert.RuleID,
		"metric":    alert.Metric,
		"value":     alert.Value,
		"state":     alert.State,
		"count":     alert.Count,
		"severity":  severity,
		"timestamp": alert.UpdatedAt.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ch.WebhookHeaders {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
