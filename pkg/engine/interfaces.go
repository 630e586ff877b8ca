package engine

import (
	"context"

	"github.com/mbflow/automation-engine/pkg/models"
)

// ExecutionRunner executes workflows and manages their lifecycle. It abstracts
// the engine for callers (API handlers, scheduler, SDK) that shouldn't reach
// into the DAG executor directly.
type ExecutionRunner interface {
	Execute(ctx context.Context, workflow *models.Workflow, input map[string]any, opts *ExecutionOptions) (*models.Execution, error)
	GetExecution(ctx context.Context, executionID string) (*models.Execution, error)
	CancelExecution(ctx context.Context, executionID string) error
}

// StandaloneExecutor runs a workflow synchronously with no persistence,
// for tests, dry-runs and CLI usage.
type StandaloneExecutor interface {
	ExecuteStandalone(ctx context.Context, workflow *models.Workflow, input map[string]any, opts *ExecutionOptions) (*models.Execution, error)
}

// ObserverManager fans an Event out to every registered Observer.
type ObserverManager interface {
	Notify(ctx context.Context, event *Event) error
	Register(observer Observer) error
	Unregister(name string) error
	Count() int
}

// Observer receives execution events from an ObserverManager.
type Observer interface {
	Name() string
	OnEvent(ctx context.Context, event *Event) error
}

// Event is a coarse-grained notification fanned out to Observers. It mirrors
// ExecutionEvent but carries only primitives so it can cross package/process
// boundaries (e.g. the websocket observer) without pulling in engine types.
type Event struct {
	Type        string
	ExecutionID string
	WorkflowID  string
	NodeID      string
	Status      string
	Error       string
	Metadata    map[string]any
}

// ConditionEvaluator evaluates an edge or node condition expression against
// the data available at that point in the DAG. Implementations range from a
// bare string/bool comparison (condition_simple.go) to a cached expr-lang VM
// (condition_cache.go).
type ConditionEvaluator interface {
	Evaluate(condition string, nodeOutput any) (bool, error)
}

// ExecutionNotifier receives the lifecycle events the DAG executor fires as
// it walks waves. A no-op implementation backs StandaloneExecutor; the full
// engine backs it with an ObserverManager-fed notifier.
type ExecutionNotifier interface {
	Notify(ctx context.Context, event ExecutionEvent)
}

// Event type strings used on both ExecutionEvent and Event.
const (
	EventTypeExecutionStarted         = "execution.started"
	EventTypeExecutionCompleted       = "execution.completed"
	EventTypeExecutionFailed          = "execution.failed"
	EventTypeExecutionCancelled       = "execution.cancelled"
	EventTypeExecutionPaused          = "execution.paused"
	EventTypeExecutionResumed         = "execution.resumed"
	EventTypeWaveStarted              = "wave.started"
	EventTypeWaveCompleted            = "wave.completed"
	EventTypeNodeStarted              = "node.started"
	EventTypeNodeCompleted            = "node.completed"
	EventTypeNodeFailed               = "node.failed"
	EventTypeNodeSkipped              = "node.skipped"
	EventTypeNodeRetrying             = "node.retrying"
	EventTypeLoopIteration            = "loop.iteration"
	EventTypeLoopExhausted            = "loop.exhausted"
	EventTypeSubWorkflowProgress      = "sub_workflow.progress"
	EventTypeSubWorkflowItemCompleted = "sub_workflow.item_completed"
	EventTypeSubWorkflowItemFailed    = "sub_workflow.item_failed"
)
