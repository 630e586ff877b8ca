package errorhandler

import (
	"context"
	"sync"
	"time"

	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
)

// ReprocessingStrategy names how a dead-letter batch is retried.
type ReprocessingStrategy string

const (
	ReprocessImmediate  ReprocessingStrategy = "immediate"
	ReprocessExponential ReprocessingStrategy = "exponential"
)

// DeadLetterConfig mirrors spec.md §6's dead_letter.* options.
type DeadLetterConfig struct {
	Retention           time.Duration
	BatchSize           int
	ProcessingInterval  time.Duration
	ReprocessingStrategy ReprocessingStrategy
}

func (c DeadLetterConfig) withDefaults() DeadLetterConfig {
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.ProcessingInterval <= 0 {
		c.ProcessingInterval = time.Minute
	}
	if c.ReprocessingStrategy == "" {
		c.ReprocessingStrategy = ReprocessImmediate
	}
	return c
}

// DeadLetterEntry is one exhausted-retry or non-retryable error parked for
// later reprocessing.
type DeadLetterEntry struct {
	Error      *AutomationError
	EnqueuedAt time.Time
	Attempts   int
}

// Reprocessor attempts to redrive one dead-letter entry; a nil error means
// the entry can be removed from the queue.
type Reprocessor func(ctx context.Context, entry *DeadLetterEntry) error

// DeadLetterQueue batches and periodically reprocesses exhausted errors.
type DeadLetterQueue struct {
	mu      sync.Mutex
	cfg     DeadLetterConfig
	entries []*DeadLetterEntry
	logger  *logger.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewDeadLetterQueue creates a DeadLetterQueue.
func NewDeadLetterQueue(cfg DeadLetterConfig, log *logger.Logger) *DeadLetterQueue {
	return &DeadLetterQueue{cfg: cfg.withDefaults(), logger: log, stopCh: make(chan struct{})}
}

// Enqueue parks an error for later reprocessing.
func (q *DeadLetterQueue) Enqueue(err *AutomationError) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, &DeadLetterEntry{Error: err, EnqueuedAt: time.Now()})
}

// Len returns the current queue depth.
func (q *DeadLetterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// expire drops entries older than Retention without reprocessing them.
func (q *DeadLetterQueue) expire() {
	if q.cfg.Retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-q.cfg.Retention)
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.EnqueuedAt.After(cutoff) {
			kept = append(kept, e)
		}
	}
	q.entries = kept
}

// ProcessBatch expires stale entries, then reprocesses up to BatchSize of
// the remainder, removing any that succeed.
func (q *DeadLetterQueue) ProcessBatch(ctx context.Context, reprocess Reprocessor) (succeeded, failed int) {
	q.mu.Lock()
	q.expire()
	n := len(q.entries)
	if n > q.cfg.BatchSize {
		n = q.cfg.BatchSize
	}
	batch := make([]*DeadLetterEntry, n)
	copy(batch, q.entries[:n])
	q.mu.Unlock()

	var remaining []*DeadLetterEntry
	for _, entry := range batch {
		entry.Attempts++
		if err := reprocess(ctx, entry); err != nil {
			if q.logger != nil {
				q.logger.Warn("errorhandler: dead-letter reprocess failed", "error_id", entry.Error.ID, "error", err)
			}
			remaining = append(remaining, entry)
			failed++
			continue
		}
		succeeded++
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(remaining, q.entries[n:]...)
	return succeeded, failed
}

// StartProcessing runs ProcessBatch on ProcessingInterval until ctx is done
// or Stop is called.
func (q *DeadLetterQueue) StartProcessing(ctx context.Context, reprocess Reprocessor) {
	ticker := time.NewTicker(q.cfg.ProcessingInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.stopCh:
				return
			case <-ticker.C:
				q.ProcessBatch(ctx, reprocess)
			}
		}
	}()
}

// Stop halts the processing loop.
func (q *DeadLetterQueue) Stop() {
	q.stopOnce.Do(func() { close(q.stopCh) })
}
