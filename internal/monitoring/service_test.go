package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mbflow/automation-engine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_FailureRateAlertFiresAndNotifies(t *testing.T) {
	t.Parallel()
	received := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case received <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := New(config.MonitoringConfig{
		SystemCollectionInterval: time.Hour,
		AlertEvaluationInterval:  5 * time.Millisecond,
	}, []NotificationChannel{
		{Name: "ops", Kind: "webhook", WebhookURL: srv.URL},
	}, nil, nil)

	svc.RecordWorkflowExecution("wf-1", false, time.Millisecond)
	svc.RecordWorkflowExecution("wf-1", false, time.Millisecond)
	svc.RegisterFailureRateAlert("wf-1", 0.5, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	svc.Alerts.Start(ctx)
	defer svc.Alerts.Stop()

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("expected notification webhook to be hit")
	}
}

func TestService_RegisterSystemMetricAlertReadsLatestSample(t *testing.T) {
	t.Parallel()
	svc := New(config.MonitoringConfig{}, nil, nil, nil)
	svc.System.samples = append(svc.System.samples, SystemMetrics{CPUPercent: 99})

	fired := false
	svc.Alerts.onAlert = func(a Alert) { fired = true }
	svc.RegisterSystemMetricAlert("cpu_percent", OpGreaterThan, 90)
	svc.Alerts.evaluateAll()

	require.True(t, fired)
	assert.Equal(t, "system.cpu_percent", svc.Alerts.rules[firstRuleID(svc)].Metric)
}

func firstRuleID(svc *Service) string {
	for id := range svc.Alerts.rules {
		return id
	}
	return ""
}
