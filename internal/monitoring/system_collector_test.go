package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemCollector_SamplesAndRetains(t *testing.T) {
	c := NewSystemCollector(SystemCollectorConfig{Interval: 5 * time.Millisecond, Retention: 3}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Start(ctx)
	defer c.Stop()

	require.Eventually(t, func() bool {
		_, ok := c.Latest()
		return ok
	}, time.Second, 5*time.Millisecond)

	latest, ok := c.Latest()
	require.True(t, ok)
	assert.False(t, latest.Timestamp.IsZero())

	require.Eventually(t, func() bool {
		return len(c.History()) >= 3
	}, time.Second, 5*time.Millisecond)

	assert.LessOrEqual(t, len(c.History()), 3)
}
