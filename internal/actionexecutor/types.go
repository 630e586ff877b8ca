// Package actionexecutor runs side-effect actions independently of the
// workflow scheduler: a priority queue feeding a bounded worker pool, with
// per-action rate limits, retry via internal/retrypolicy, and
// go-playground/validator input validation. Grounded on the teacher's
// pkg/executor Manager/Executor interfaces, generalized from "one executor
// per node type" to "one queued, retryable, rate-limited submission."
package actionexecutor

import (
	"context"
	"time"

	"github.com/mbflow/automation-engine/internal/retrypolicy"
)

// FieldType is the closed set of input types ActionExecutor validates.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeArray   FieldType = "array"
	FieldTypeObject  FieldType = "object"
	FieldTypeFile    FieldType = "file"
)

// FieldSpec describes one validated input field.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
	Pattern  string // regex, string fields only
	Min      *float64
	Max      *float64
	Enum     []any
}

// RateLimit is a fixed-window request cap for one action definition.
type RateLimit struct {
	MaxRequests int
	Window      time.Duration
}

// Handler executes the action's side effect.
type Handler func(ctx context.Context, input map[string]any) (any, error)

// Definition is a registered action type.
type Definition struct {
	ID        string
	Handler   Handler
	Priority  int // default priority for submissions that don't override it
	Timeout   time.Duration
	RateLimit *RateLimit
	Retry     retrypolicy.Policy
	Fields    []FieldSpec
}

// Status is the lifecycle of a submitted Action.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// RetryRecord logs one retry attempt.
type RetryRecord struct {
	Attempt   int       `json:"attempt"`
	Error     string    `json:"error"`
	Delay     time.Duration `json:"delay"`
	Timestamp time.Time `json:"timestamp"`
}

// Action is one submitted, queued, and (eventually) executed unit of work.
type Action struct {
	ID           string
	DefinitionID string
	Priority     int
	Input        map[string]any
	Status       Status
	Attempts     int
	RetryHistory []RetryRecord
	Result       any
	Err          error
	SubmittedAt  time.Time
	StartedAt    time.Time
	CompletedAt  time.Time

	seq int64 // insertion order, for FIFO priority ties
}
