package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mbflow/automation-engine/internal/infrastructure/tracing"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Tracer records application-level Traces/Spans for each execution and
// mirrors every span through the OTel wrapper in infrastructure/tracing, so
// the same span appears in both the in-process trace store and whatever
// exporter OTel is configured with.
type Tracer struct {
	provider *tracing.Provider

	mu     sync.Mutex
	traces map[string]*Trace // traceID -> trace
}

// NewTracer creates a Tracer. provider may be nil, in which case OTel spans
// are no-ops but the in-process Trace/Span records are still kept.
func NewTracer(provider *tracing.Provider) *Tracer {
	return &Tracer{
		provider: provider,
		traces:   make(map[string]*Trace),
	}
}

// StartTrace begins a new Trace for an execution.
func (t *Tracer) StartTrace(workflowID, executionID string) *Trace {
	tr := &Trace{
		ID:          uuid.NewString(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		StartedAt:   time.Now(),
	}
	t.mu.Lock()
	t.traces[tr.ID] = tr
	t.mu.Unlock()
	return tr
}

// FinishTrace marks a Trace complete.
func (t *Tracer) FinishTrace(tr *Trace) {
	tr.FinishedAt = time.Now()
}

// StartSpan opens a Span under trace, parented to parentSpanID (may be
// empty for a root span), and also opens a corresponding OTel span. The
// returned context carries the OTel span for downstream propagation.
func (t *Tracer) StartSpan(ctx context.Context, tr *Trace, name, parentSpanID string) (context.Context, *Span) {
	ctx, otelSpan := tracing.StartSpan(ctx, name)

	span := &Span{
		ID:        uuid.NewString(),
		TraceID:   tr.ID,
		ParentID:  parentSpanID,
		Name:      name,
		Tags:      make(map[string]string),
		StartedAt: time.Now(),
	}

	t.mu.Lock()
	tr.Spans = append(tr.Spans, span)
	t.mu.Unlock()

	ctx = context.WithValue(ctx, otelSpanKey{}, otelSpan)
	return ctx, span
}

// FinishSpan closes a Span, optionally recording an error, and ends the
// paired OTel span pulled from ctx.
func (t *Tracer) FinishSpan(ctx context.Context, span *Span, err error) {
	span.FinishedAt = time.Now()
	span.Err = err

	if otelSpan, ok := ctx.Value(otelSpanKey{}).(oteltrace.Span); ok {
		if err != nil {
			otelSpan.RecordError(err)
		}
		otelSpan.End()
	}
}

// Tag sets a tag on the span.
func (s *Span) Tag(key, value string) {
	s.Tags[key] = value
}

// Log appends a log entry to the span and mirrors it as an OTel span event.
func (t *Tracer) Log(ctx context.Context, span *Span, message string, fields map[string]any) {
	span.Logs = append(span.Logs, SpanLog{Timestamp: time.Now(), Message: message, Fields: fields})
	tracing.AddSpanEvent(ctx, message)
}

// GetTrace returns a trace by id.
func (t *Tracer) GetTrace(id string) (*Trace, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.traces[id]
	return tr, ok
}

type otelSpanKey struct{}
