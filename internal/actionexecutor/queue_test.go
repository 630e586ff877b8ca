package actionexecutor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mbflow/automation-engine/internal/retrypolicy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retryPolicyForTest() retrypolicy.Policy {
	return retrypolicy.Policy{
		Enabled:      true,
		MaxRetries:   5,
		Backoff:      retrypolicy.StrategyFixed,
		InitialDelay: 5 * time.Millisecond,
	}
}

func waitForStatus(t *testing.T, e *Executor, id string, want Status, timeout time.Duration) *Action {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if a, ok := e.Get(id); ok && a.Status == want {
			return a
		}
		time.Sleep(time.Millisecond)
	}
	a, _ := e.Get(id)
	t.Fatalf("action %q did not reach status %s in time (last status: %v)", id, want, a)
	return nil
}

func TestExecutor_SubmitAndSucceed(t *testing.T) {
	e := New(Config{MaxConcurrentExecutions: 2}, nil)
	defer e.Stop()

	e.Register(&Definition{
		ID: "echo",
		Handler: func(ctx context.Context, input map[string]any) (any, error) {
			return input["msg"], nil
		},
		Fields: []FieldSpec{{Name: "msg", Type: FieldTypeString, Required: true}},
	})

	action, err := e.Submit("echo", map[string]any{"msg": "hi"}, 0)
	require.NoError(t, err)

	done := waitForStatus(t, e, action.ID, StatusSucceeded, time.Second)
	assert.Equal(t, "hi", done.Result)
}

func TestExecutor_SubmitRejectsInvalidInput(t *testing.T) {
	e := New(Config{MaxConcurrentExecutions: 1}, nil)
	defer e.Stop()

	e.Register(&Definition{
		ID:      "needs-name",
		Handler: func(ctx context.Context, input map[string]any) (any, error) { return nil, nil },
		Fields:  []FieldSpec{{Name: "name", Type: FieldTypeString, Required: true}},
	})

	_, err := e.Submit("needs-name", map[string]any{}, 0)
	assert.Error(t, err)
}

func TestExecutor_DispatchesByDescendingPriority(t *testing.T) {
	e := New(Config{MaxConcurrentExecutions: 1}, nil)
	defer e.Stop()

	var mu sync.Mutex
	var order []string
	gate := make(chan struct{})

	e.Register(&Definition{
		ID: "track",
		Handler: func(ctx context.Context, input map[string]any) (any, error) {
			<-gate
			mu.Lock()
			order = append(order, input["name"].(string))
			mu.Unlock()
			return nil, nil
		},
	})

	// First submission occupies the sole worker until gate closes.
	blocker, err := e.Submit("track", map[string]any{"name": "blocker"}, 0)
	require.NoError(t, err)
	waitForStatus(t, e, blocker.ID, StatusRunning, time.Second)

	_, err = e.Submit("track", map[string]any{"name": "low"}, 1)
	require.NoError(t, err)
	_, err = e.Submit("track", map[string]any{"name": "high"}, 10)
	require.NoError(t, err)

	close(gate)
	time.Sleep(50 * time.Millisecond)
	// Reopen gate-equivalent: handler reads closed channel repeatedly (ok, returns zero value immediately).

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 3 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 3)
	assert.Equal(t, []string{"blocker", "high", "low"}, order)
}

func TestExecutor_RetriesOnFailureThenSucceeds(t *testing.T) {
	e := New(Config{MaxConcurrentExecutions: 1}, nil)
	defer e.Stop()

	var attempts int32
	e.Register(&Definition{
		ID: "flaky",
		Handler: func(ctx context.Context, input map[string]any) (any, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("boom")
			}
			return "ok", nil
		},
		Retry: retryPolicyForTest(),
	})

	action, err := e.Submit("flaky", nil, 0)
	require.NoError(t, err)

	done := waitForStatus(t, e, action.ID, StatusSucceeded, 2*time.Second)
	assert.Equal(t, "ok", done.Result)
	assert.Len(t, done.RetryHistory, 2)
}

func TestExecutor_CancelPendingAction(t *testing.T) {
	e := New(Config{MaxConcurrentExecutions: 1}, nil)
	defer e.Stop()

	gate := make(chan struct{})
	e.Register(&Definition{
		ID: "block",
		Handler: func(ctx context.Context, input map[string]any) (any, error) {
			<-gate
			return nil, nil
		},
	})

	blocker, err := e.Submit("block", nil, 0)
	require.NoError(t, err)
	waitForStatus(t, e, blocker.ID, StatusRunning, time.Second)

	pending, err := e.Submit("block", nil, 0)
	require.NoError(t, err)

	require.NoError(t, e.Cancel(pending.ID))
	got, ok := e.Get(pending.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, got.Status)

	close(gate)
}

func TestExecutor_RateLimitRejectsExcessSubmissions(t *testing.T) {
	e := New(Config{MaxConcurrentExecutions: 1}, nil)
	defer e.Stop()

	e.Register(&Definition{
		ID:        "limited",
		Handler:   func(ctx context.Context, input map[string]any) (any, error) { return nil, nil },
		RateLimit: &RateLimit{MaxRequests: 1, Window: time.Minute},
	})

	_, err := e.Submit("limited", nil, 0)
	require.NoError(t, err)

	_, err = e.Submit("limited", nil, 0)
	assert.Error(t, err)
}
