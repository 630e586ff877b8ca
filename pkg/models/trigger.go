package models

import (
	"fmt"
	"time"
)

// TriggerType identifies what kind of event starts a workflow execution.
type TriggerType string

const (
	TriggerTypeManual   TriggerType = "manual"
	TriggerTypeCron     TriggerType = "cron"
	TriggerTypeWebhook  TriggerType = "webhook"
	TriggerTypeEvent    TriggerType = "event"
	TriggerTypeInterval TriggerType = "interval"
)

func (t TriggerType) valid() bool {
	switch t {
	case TriggerTypeManual, TriggerTypeCron, TriggerTypeWebhook, TriggerTypeEvent, TriggerTypeInterval:
		return true
	}
	return false
}

// Trigger binds a workflow to the condition that starts it.
type Trigger struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Type        TriggerType    `json:"type"`
	Config      map[string]any `json:"config"`
	Enabled     bool           `json:"enabled"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	LastRun     *time.Time     `json:"last_run,omitempty"`
	NextRun     *time.Time     `json:"next_run,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// CronConfig is the typed shape of Trigger.Config for TriggerTypeCron.
type CronConfig struct {
	Schedule string `json:"schedule"`
	Timezone string `json:"timezone,omitempty"`
}

// WebhookConfig is the typed shape of Trigger.Config for TriggerTypeWebhook.
type WebhookConfig struct {
	Secret      string            `json:"secret,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
}

// EventConfig is the typed shape of Trigger.Config for TriggerTypeEvent.
type EventConfig struct {
	EventType string         `json:"event_type"`
	Filter    map[string]any `json:"filter,omitempty"`
	Source    string         `json:"source,omitempty"`
}

// IntervalConfig is the typed shape of Trigger.Config for TriggerTypeInterval.
type IntervalConfig struct {
	Interval string `json:"interval"`
}

// Validate checks the trigger's fixed fields and its type-specific config.
func (t *Trigger) Validate() error {
	if t.WorkflowID == "" {
		return &ValidationError{Field: "workflow_id", Message: "workflow ID is required"}
	}
	if t.Name == "" {
		return &ValidationError{Field: "name", Message: "trigger name is required"}
	}
	if t.Type == "" {
		return &ValidationError{Field: "type", Message: "trigger type is required"}
	}
	if !t.Type.valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("invalid trigger type: %s", t.Type)}
	}

	switch t.Type {
	case TriggerTypeCron:
		return t.validateCron()
	case TriggerTypeEvent:
		return t.validateEvent()
	case TriggerTypeInterval:
		return t.validateInterval()
	case TriggerTypeManual, TriggerTypeWebhook:
		return nil
	}
	return nil
}

func (t *Trigger) validateCron() error {
	schedule, ok := t.Config["schedule"].(string)
	if !ok || schedule == "" {
		return &ValidationError{Field: "config.schedule", Message: "cron schedule is required"}
	}
	return nil
}

func (t *Trigger) validateEvent() error {
	eventType, ok := t.Config["event_type"].(string)
	if !ok || eventType == "" {
		return &ValidationError{Field: "config.event_type", Message: "event type is required"}
	}
	return nil
}

func (t *Trigger) validateInterval() error {
	raw, ok := t.Config["interval"]
	if !ok {
		return &ValidationError{Field: "config.interval", Message: "interval is required"}
	}

	switch v := raw.(type) {
	case float64:
		if v <= 0 {
			return &ValidationError{Field: "config.interval", Message: "interval must be positive"}
		}
	case int:
		if v <= 0 {
			return &ValidationError{Field: "config.interval", Message: "interval must be positive"}
		}
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return &ValidationError{Field: "config.interval", Message: "invalid duration format"}
		}
		if d <= 0 {
			return &ValidationError{Field: "config.interval", Message: "interval must be positive"}
		}
	default:
		return &ValidationError{Field: "config.interval", Message: "interval must be a number or duration string"}
	}

	return nil
}
