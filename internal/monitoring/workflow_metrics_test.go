package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowMetricsStore_AggregatesCountsAndDurations(t *testing.T) {
	t.Parallel()
	s := NewWorkflowMetricsStore()

	s.RecordExecution("wf-1", true, 100*time.Millisecond)
	s.RecordExecution("wf-1", false, 300*time.Millisecond)
	s.RecordExecution("wf-1", true, 200*time.Millisecond)

	m, perHour, ok := s.Get("wf-1")
	require.True(t, ok)
	assert.Equal(t, int64(3), m.ExecutionCount)
	assert.Equal(t, int64(2), m.SuccessCount)
	assert.Equal(t, int64(1), m.FailureCount)
	assert.InDelta(t, 100, m.MinDurationMs, 0.01)
	assert.InDelta(t, 300, m.MaxDurationMs, 0.01)
	assert.InDelta(t, 200, m.AvgDurationMs(), 0.01)
	assert.InDelta(t, 2.0/3.0, m.SuccessRate(), 0.001)
	assert.Equal(t, 3, perHour)
}

func TestWorkflowMetricsStore_UnknownWorkflowReturnsFalse(t *testing.T) {
	t.Parallel()
	s := NewWorkflowMetricsStore()
	_, _, ok := s.Get("missing")
	assert.False(t, ok)
}

func TestWorkflowMetricsStore_ExecutionsPerHourPrunesOldSamples(t *testing.T) {
	t.Parallel()
	s := NewWorkflowMetricsStore()
	fixed := time.Now()
	s.nowFunc = func() time.Time { return fixed.Add(-2 * time.Hour) }
	s.RecordExecution("wf-1", true, time.Millisecond)

	s.nowFunc = func() time.Time { return fixed }
	s.RecordExecution("wf-1", true, time.Millisecond)

	_, perHour, ok := s.Get("wf-1")
	require.True(t, ok)
	assert.Equal(t, 1, perHour)
}
