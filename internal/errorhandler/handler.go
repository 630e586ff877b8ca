package errorhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
	"github.com/mbflow/automation-engine/internal/retrypolicy"
)

// Config bundles ErrorHandler's sub-configurations, matching spec.md §6's
// ErrorHandler environment options.
type Config struct {
	Retry             retrypolicy.Policy
	RetryableKinds    []Kind // empty means "all classified kinds are retryable"
	NonRetryableKinds []Kind
	Breaker           BreakerConfig
	DeadLetter        DeadLetterConfig
	Reporting         ReportingConfig
}

// Handler classifies errors, drives retry/circuit-breaker/dead-letter
// bookkeeping, and reports through a rate-limited Reporter.
type Handler struct {
	cfg        Config
	breakers   *Registry
	deadLetter *DeadLetterQueue
	reporter   *Reporter
	logger     *logger.Logger
}

// New creates a Handler.
func New(cfg Config, log *logger.Logger, sinks ...Sink) *Handler {
	return &Handler{
		cfg:        cfg,
		breakers:   NewRegistry(cfg.Breaker),
		deadLetter: NewDeadLetterQueue(cfg.DeadLetter, log),
		reporter:   NewReporter(cfg.Reporting, sinks...),
		logger:     log,
	}
}

// DeadLetterQueue exposes the queue for StartProcessing/ProcessBatch wiring.
func (h *Handler) DeadLetterQueue() *DeadLetterQueue { return h.deadLetter }

// Breaker returns the per-component circuit breaker, creating it lazily.
func (h *Handler) Breaker(component string) *CircuitBreaker { return h.breakers.Get(component) }

// Classify builds an AutomationError from a raw error and context,
// classifying its Kind/Severity.
func (h *Handler) Classify(err error, ctxInfo ErrorContext) *AutomationError {
	kind := Classify(err)
	return &AutomationError{
		ID:        uuid.NewString(),
		Type:      kind,
		Severity:  SeverityOf(kind),
		Message:   err.Error(),
		Context:   ctxInfo,
		CreatedAt: time.Now(),
		cause:     err,
	}
}

// Handle runs op, classifying and retrying on failure according to Config,
// consulting the component's circuit breaker, and moving exhausted or
// non-retryable errors to the dead-letter queue. It returns the op's result
// error wrapped as an AutomationError, or nil on success.
func (h *Handler) Handle(ctx context.Context, component string, ctxInfo ErrorContext, op func(ctx context.Context) error) *AutomationError {
	breaker := h.breakers.Get(component)

	attempts := 0
	var lastAE *AutomationError
	backOff := h.cfg.Retry.BackOff()
	var schedule []time.Duration

	for {
		if allowErr := breaker.Allow(); allowErr != nil {
			ae := &AutomationError{
				ID:        uuid.NewString(),
				Type:      KindServiceUnavailable,
				Severity:  SeverityOf(KindServiceUnavailable),
				Message:   allowErr.Error(),
				Context:   ctxInfo,
				CreatedAt: time.Now(),
				cause:     allowErr,
			}
			h.report(component, ae)
			return ae
		}

		attempts++
		err := op(ctx)
		if err == nil {
			breaker.RecordSuccess()
			return nil
		}

		breaker.RecordFailure()
		ae := h.Classify(err, ctxInfo)
		ae.RetryInfo = &RetryInfo{Attempts: attempts, Schedule: schedule}
		lastAE = ae

		if !h.retryable(ae.Type) || !h.cfg.Retry.Enabled || attempts > h.cfg.Retry.MaxRetries {
			h.report(component, ae)
			h.deadLetter.Enqueue(ae)
			return ae
		}

		delay := backOff.NextBackOff()
		schedule = append(schedule, delay)
		select {
		case <-ctx.Done():
			lastAE.Message = fmt.Sprintf("%s (cancelled during retry wait)", lastAE.Message)
			return lastAE
		case <-time.After(delay):
		}
	}
}

func (h *Handler) retryable(kind Kind) bool {
	for _, k := range h.cfg.NonRetryableKinds {
		if k == kind {
			return false
		}
	}
	if len(h.cfg.RetryableKinds) == 0 {
		return true
	}
	for _, k := range h.cfg.RetryableKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (h *Handler) report(component string, ae *AutomationError) {
	h.reporter.Report(component, ae)
}
