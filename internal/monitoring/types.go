// Package monitoring collects workflow, system, and performance metrics,
// records distributed traces, evaluates alert rules, and dispatches
// notifications across configured channels.
//
// The tracing model here is deliberately a thin application-level record
// (Trace/Span) distinct from the OpenTelemetry wrapper in
// internal/infrastructure/tracing: every Span produced by this package also
// opens a real otel span through that wrapper, so traces are queryable both
// in-process (for the status/metrics API) and in whatever backend OTel is
// configured to export to.
package monitoring

import (
	"time"
)

// Operator is a comparison used by an AlertRule.
type Operator string

const (
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpEqual          Operator = "eq"
)

func (o Operator) evaluate(value, threshold float64) bool {
	switch o {
	case OpGreaterThan:
		return value > threshold
	case OpGreaterOrEqual:
		return value >= threshold
	case OpLessThan:
		return value < threshold
	case OpLessOrEqual:
		return value <= threshold
	case OpEqual:
		return value == threshold
	default:
		return false
	}
}

// WorkflowMetrics aggregates execution outcomes for a single workflow.
type WorkflowMetrics struct {
	WorkflowID      string
	ExecutionCount  int64
	SuccessCount    int64
	FailureCount    int64
	MinDurationMs   float64
	MaxDurationMs   float64
	TotalDurationMs float64
	LastExecutedAt  time.Time
	// recentStarts holds the start time of every execution within the last
	// hour, used to compute ExecutionsPerHour. Pruned lazily on read.
	recentStarts []time.Time
}

// SuccessRate returns the fraction of executions that succeeded, in [0,1].
func (m *WorkflowMetrics) SuccessRate() float64 {
	if m.ExecutionCount == 0 {
		return 0
	}
	return float64(m.SuccessCount) / float64(m.ExecutionCount)
}

// FailureRate returns the fraction of executions that failed, in [0,1].
func (m *WorkflowMetrics) FailureRate() float64 {
	if m.ExecutionCount == 0 {
		return 0
	}
	return float64(m.FailureCount) / float64(m.ExecutionCount)
}

// AvgDurationMs returns the mean execution duration in milliseconds.
func (m *WorkflowMetrics) AvgDurationMs() float64 {
	if m.ExecutionCount == 0 {
		return 0
	}
	return m.TotalDurationMs / float64(m.ExecutionCount)
}

// SystemMetrics is a single sample of host-level resource usage.
type SystemMetrics struct {
	Timestamp      time.Time
	CPUPercent     float64
	MemoryPercent  float64
	MemoryUsedMB   float64
	DiskPercent    float64
	DiskUsedMB     float64
	NetworkSentKB  float64
	NetworkRecvKB  float64
	ProcessCount   int
}

// PerformanceMetrics tracks in-flight work per named component (e.g. an
// ActionExecutor worker pool or the WorkflowEngine dispatcher).
type PerformanceMetrics struct {
	Component string
	Active    int64
	Queued    int64
	Completed int64
}

// Span is one unit of work within a Trace.
type Span struct {
	ID         string
	TraceID    string
	ParentID   string
	Name       string
	Tags       map[string]string
	Logs       []SpanLog
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// SpanLog is a timestamped log line attached to a Span.
type SpanLog struct {
	Timestamp time.Time
	Message   string
	Fields    map[string]any
}

// Duration returns how long the span ran. Zero if still open.
func (s *Span) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Trace is the full set of Spans recorded for one execution.
type Trace struct {
	ID          string
	WorkflowID  string
	ExecutionID string
	Spans       []*Span
	StartedAt   time.Time
	FinishedAt  time.Time
}

// AlertState is the lifecycle state of an Alert.
type AlertState string

const (
	AlertActive   AlertState = "active"
	AlertResolved AlertState = "resolved"
	AlertSilenced AlertState = "silenced"
)

// AlertRule defines a condition over a named metric that, when satisfied,
// raises or bumps an Alert.
type AlertRule struct {
	ID                 string
	Metric             string
	Operator           Operator
	Threshold          float64
	TimeWindow         time.Duration
	EvaluationInterval time.Duration
}

// Alert is a live or historical firing of an AlertRule.
type Alert struct {
	ID          string
	RuleID      string
	Metric      string
	Value       float64
	State       AlertState
	Count       int
	SilenceTill time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  time.Time
}

// NotificationChannel is a configured destination for alert notifications.
type NotificationChannel struct {
	Name             string
	Kind             string // email|slack|webhook|sms
	SeverityAllow    []string
	WebhookURL       string
	WebhookHeaders   map[string]string
}

func (c NotificationChannel) allows(severity string) bool {
	if len(c.SeverityAllow) == 0 {
		return true
	}
	for _, s := range c.SeverityAllow {
		if s == severity {
			return true
		}
	}
	return false
}

// Notification is a single dispatched alert notification.
type Notification struct {
	Channel  string
	Alert    Alert
	Severity string
	SentAt   time.Time
	Err      error
}
