package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_DispatchRespectsSeverityAllowList(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(NotifierConfig{}, []NotificationChannel{
		{Name: "ops-webhook", Kind: "webhook", WebhookURL: srv.URL, SeverityAllow: []string{"high", "critical"}},
	}, nil)

	results := n.Dispatch(context.Background(), Alert{ID: "a1"}, "low")
	assert.Empty(t, results, "low severity should be filtered by the allow-list")
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))

	results = n.Dispatch(context.Background(), Alert{ID: "a2"}, "high")
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestNotifier_RetriesOnFailureThenSucceeds(t *testing.T) {
	t.Parallel()
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(NotifierConfig{MaxRetries: 3, RetryDelay: time.Millisecond}, []NotificationChannel{
		{Name: "ch", Kind: "webhook", WebhookURL: srv.URL},
	}, nil)

	results := n.Dispatch(context.Background(), Alert{ID: "a1"}, "critical")
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestNotifier_UnknownChannelKindErrors(t *testing.T) {
	t.Parallel()
	n := NewNotifier(NotifierConfig{MaxRetries: 0}, []NotificationChannel{
		{Name: "ch", Kind: "carrier-pigeon"},
	}, nil)

	results := n.Dispatch(context.Background(), Alert{ID: "a1"}, "critical")
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}
