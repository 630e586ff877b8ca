package errorhandler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReporter_SeverityThresholdFiltersLowSeverity(t *testing.T) {
	t.Parallel()
	var reported []string
	r := NewReporter(ReportingConfig{SeverityThreshold: SeverityHigh}, func(err *AutomationError) {
		reported = append(reported, err.ID)
	})

	ok := r.Report("svc", &AutomationError{ID: "low-1", Severity: SeverityLow})
	assert.False(t, ok)
	assert.Empty(t, reported)

	ok = r.Report("svc", &AutomationError{ID: "crit-1", Severity: SeverityCritical})
	assert.True(t, ok)
	assert.Equal(t, []string{"crit-1"}, reported)
}

func TestReporter_RateLimitDropsExcessWithinWindow(t *testing.T) {
	t.Parallel()
	count := 0
	r := NewReporter(ReportingConfig{SeverityThreshold: SeverityLow, RateLimit: 2, Window: time.Minute}, func(err *AutomationError) {
		count++
	})

	for i := 0; i < 5; i++ {
		r.Report("svc", &AutomationError{ID: "e", Severity: SeverityLow})
	}
	assert.Equal(t, 2, count)
}
