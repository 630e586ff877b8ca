// Package eventbus implements the in-process publish/subscribe topic bus
// that wires event-source triggers to workflow executions (spec.md §4.5).
// It has no direct teacher equivalent — the teacher routes trigger-relevant
// events through Redis pub/sub (internal/application/trigger/event_listener.go)
// instead — so this package is built in the teacher's idiom (Config-struct
// constructors, mutex-guarded maps, bounded ring-buffer history) rather than
// adapted from a single file.
package eventbus

import (
	"time"

	"github.com/mbflow/automation-engine/pkg/engine"
)

// allowedFilterOperators restricts the general condition operator set to the subset
// spec.md §4.5 names for EventBus subscription filters.
var allowedFilterOperators = map[engine.Operator]bool{
	engine.OpEq:       true,
	engine.OpNeq:      true,
	engine.OpGt:       true,
	engine.OpLt:       true,
	engine.OpGte:      true,
	engine.OpLte:      true,
	engine.OpContains: true,
	engine.OpRegex:    true,
	engine.OpExists:   true,
}

// Filter is a single predicate evaluated against a dotted path within an
// EventPayload's Data.
type Filter struct {
	Field         string         `json:"field"`
	Operator      engine.Operator `json:"operator"`
	Value         any            `json:"value"`
	CaseSensitive bool           `json:"case_sensitive"`
}

// Matches evaluates the filter against data. An unsupported operator always
// fails closed (returns false, error) rather than silently matching.
func (f Filter) Matches(data map[string]any) (bool, error) {
	if !allowedFilterOperators[f.Operator] {
		return false, &UnsupportedOperatorError{Operator: f.Operator}
	}
	actual, _ := engine.ResolvePath(data, f.Field)
	return engine.MatchOperator(f.Operator, actual, f.Value, f.CaseSensitive)
}

// UnsupportedOperatorError reports a Filter using an operator outside the
// EventBus's allowed subset.
type UnsupportedOperatorError struct {
	Operator engine.Operator
}

func (e *UnsupportedOperatorError) Error() string {
	return "eventbus: unsupported filter operator " + string(e.Operator)
}

// EventSubscription binds a workflow to an event name with optional filters
// and a delivery priority (spec.md §3 EventSubscription).
type EventSubscription struct {
	ID           string
	EventName    string
	WorkflowID   string
	Filters      []Filter
	Priority     int
	TriggerCount int64
	CreatedAt    time.Time
}

// EventPayload is one published event (spec.md §3 EventPayload).
type EventPayload struct {
	ID            string
	EventName     string
	Source        string
	Timestamp     time.Time
	Data          map[string]any
	CorrelationID string
}
