package monitoring

import (
	"context"
	"time"

	"github.com/mbflow/automation-engine/internal/config"
	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
	"github.com/mbflow/automation-engine/internal/infrastructure/tracing"
)

// Service is the top-level MonitoringService: it owns the workflow metrics
// store, the system collector, the performance tracker, the tracer, the
// alert evaluator, and the notifier, and wires alert firings to
// notifications.
type Service struct {
	Workflows   *WorkflowMetricsStore
	System      *SystemCollector
	Performance *PerformanceTracker
	Tracer      *Tracer
	Alerts      *AlertEvaluator
	Notifier    *Notifier

	logger *logger.Logger
}

// New builds a Service from config. provider may be nil if OTel export is
// disabled; traces are still recorded in-process.
func New(cfg config.MonitoringConfig, channels []NotificationChannel, provider *tracing.Provider, log *logger.Logger) *Service {
	svc := &Service{
		Workflows:   NewWorkflowMetricsStore(),
		Performance: NewPerformanceTracker(),
		Tracer:      NewTracer(provider),
		logger:      log,
	}

	svc.System = NewSystemCollector(SystemCollectorConfig{
		Interval:  cfg.SystemCollectionInterval,
		Retention: cfg.SystemRetentionSamples,
	}, log)

	svc.Notifier = NewNotifier(NotifierConfig{
		MaxRetries: cfg.NotifyMaxRetries,
		RetryDelay: cfg.NotifyRetryDelay,
		Timeout:    cfg.NotifyTimeout,
	}, channels, log)

	svc.Alerts = NewAlertEvaluator(AlertEvaluatorConfig{
		DefaultInterval: cfg.AlertEvaluationInterval,
	}, log, svc.handleAlert)

	return svc
}

// handleAlert is invoked by the AlertEvaluator whenever a rule fires; it
// derives a severity from how often the alert has fired ("medium" for the
// first two firings, "high" from the third on) and fans out via the notifier.
func (s *Service) handleAlert(a Alert) {
	severity := "medium"
	if a.Count >= 3 {
		severity = "high"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Notifier.Dispatch(ctx, a, severity)
}

// RecordWorkflowExecution records one completed workflow execution's
// outcome and duration.
func (s *Service) RecordWorkflowExecution(workflowID string, success bool, duration time.Duration) {
	s.Workflows.RecordExecution(workflowID, success, duration)
}

// RegisterFailureRateAlert wires a standard "workflow failure rate exceeds
// threshold" alert rule for a workflow, sourced from the workflow metrics
// store.
func (s *Service) RegisterFailureRateAlert(workflowID string, threshold float64, window time.Duration) {
	rule := AlertRule{
		Metric:     "workflow.failure_rate." + workflowID,
		Operator:   OpGreaterThan,
		Threshold:  threshold,
		TimeWindow: window,
	}
	s.Alerts.RegisterRule(rule, func() (float64, bool) {
		m, _, ok := s.Workflows.Get(workflowID)
		if !ok {
			return 0, false
		}
		return m.FailureRate(), true
	})
}

// RegisterSystemMetricAlert wires an alert rule sourced from the most
// recent system metrics sample. metric selects the field (cpu_percent,
// memory_percent, disk_percent).
func (s *Service) RegisterSystemMetricAlert(metric string, op Operator, threshold float64) {
	rule := AlertRule{Metric: "system." + metric, Operator: op, Threshold: threshold}
	s.Alerts.RegisterRule(rule, func() (float64, bool) {
		sample, ok := s.System.Latest()
		if !ok {
			return 0, false
		}
		switch metric {
		case "cpu_percent":
			return sample.CPUPercent, true
		case "memory_percent":
			return sample.MemoryPercent, true
		case "disk_percent":
			return sample.DiskPercent, true
		default:
			return 0, false
		}
	})
}

// Start launches the background collection and evaluation loops.
func (s *Service) Start(ctx context.Context) {
	s.System.Start(ctx)
	s.Alerts.Start(ctx)
}

// Stop halts all background loops.
func (s *Service) Stop() {
	s.System.Stop()
	s.Alerts.Stop()
}
