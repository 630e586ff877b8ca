package actionexecutor

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
)

// pqItem is one entry in the priority queue: higher Priority first, ties
// broken by ascending seq (FIFO).
type pqItem struct {
	action *Action
	index  int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].action.Priority != pq[j].action.Priority {
		return pq[i].action.Priority > pq[j].action.Priority
	}
	return pq[i].action.seq < pq[j].action.seq
}
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// Executor is the priority-queue-backed worker pool ActionExecutor.
type Executor struct {
	mu          sync.Mutex
	cond        *sync.Cond
	queue       priorityQueue
	queuedByID  map[string]*pqItem
	definitions map[string]*Definition
	running     map[string]context.CancelFunc
	actions     map[string]*Action
	limiters    map[string]*fixedWindowLimiter

	maxConcurrent int
	active        int32
	logger        *logger.Logger
	seq           int64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Config tunes the worker pool.
type Config struct {
	MaxConcurrentExecutions int // default 20, per spec.md §4.7
}

// New creates an Executor and starts its worker pool.
func New(cfg Config, log *logger.Logger) *Executor {
	max := cfg.MaxConcurrentExecutions
	if max <= 0 {
		max = 20
	}
	e := &Executor{
		queuedByID:    make(map[string]*pqItem),
		definitions:   make(map[string]*Definition),
		running:       make(map[string]context.CancelFunc),
		actions:       make(map[string]*Action),
		limiters:      make(map[string]*fixedWindowLimiter),
		maxConcurrent: max,
		logger:        log,
		stopCh:        make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)

	for i := 0; i < max; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// pollInterval is how often SubmitAndWait re-checks an action's status.
// Short enough to keep synchronous callers (node dispatch) responsive,
// long enough not to contend the mutex Get takes on every poll.
const pollInterval = 10 * time.Millisecond

// SubmitAndWait submits the action and blocks until it reaches a terminal
// status or ctx is cancelled, whichever comes first. This is the bridge
// workflow node dispatch uses to treat the async queue as a synchronous
// call: submit, then wait for the worker pool to drain it.
func (e *Executor) SubmitAndWait(ctx context.Context, definitionID string, input map[string]any, priorityOverride int) (*Action, error) {
	action, err := e.Submit(definitionID, input, priorityOverride)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		current, ok := e.Get(action.ID)
		if !ok {
			return nil, fmt.Errorf("actionexecutor: action %q vanished while waiting", action.ID)
		}
		if current.Status == StatusSucceeded || current.Status == StatusFailed || current.Status == StatusCancelled {
			return current, nil
		}

		select {
		case <-ctx.Done():
			_ = e.Cancel(action.ID)
			return current, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Register adds or replaces an action definition.
func (e *Executor) Register(def *Definition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.definitions[def.ID] = def
	if def.RateLimit != nil {
		e.limiters[def.ID] = newFixedWindowLimiter(def.RateLimit.MaxRequests, def.RateLimit.Window)
	}
}

// Submit validates input, checks the rate limit, and enqueues the action.
// priorityOverride 0 uses the definition's default priority; any other value,
// negative ones included, replaces it.
func (e *Executor) Submit(definitionID string, input map[string]any, priorityOverride int) (*Action, error) {
	e.mu.Lock()
	def, ok := e.definitions[definitionID]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("actionexecutor: unknown action definition %q", definitionID)
	}

	if errs := ValidateInput(def.Fields, input); len(errs) > 0 {
		return nil, fmt.Errorf("actionexecutor: invalid input for %q: %v", definitionID, errs)
	}

	e.mu.Lock()
	if limiter, ok := e.limiters[definitionID]; ok {
		if !limiter.Allow() {
			e.mu.Unlock()
			return nil, fmt.Errorf("actionexecutor: rate limit exceeded for %q", definitionID)
		}
	}
	e.mu.Unlock()

	priority := def.Priority
	if priorityOverride != 0 {
		priority = priorityOverride
	}

	action := &Action{
		ID:           uuid.NewString(),
		DefinitionID: definitionID,
		Priority:     priority,
		Input:        input,
		Status:       StatusPending,
		SubmittedAt:  time.Now(),
	}

	e.enqueue(action)
	return action, nil
}

func (e *Executor) enqueue(action *Action) {
	e.mu.Lock()
	defer e.mu.Unlock()

	action.seq = atomic.AddInt64(&e.seq, 1)
	item := &pqItem{action: action}
	heap.Push(&e.queue, item)
	e.queuedByID[action.ID] = item
	e.actions[action.ID] = action
	e.cond.Signal()
}

// Get returns the current snapshot of an action's state.
func (e *Executor) Get(actionID string) (*Action, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.actions[actionID]
	return a, ok
}

// Cancel cancels a pending (dequeue) or running (cooperative signal) action.
func (e *Executor) Cancel(actionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	action, ok := e.actions[actionID]
	if !ok {
		return fmt.Errorf("actionexecutor: action %q not found", actionID)
	}

	switch action.Status {
	case StatusPending:
		if item, ok := e.queuedByID[actionID]; ok {
			heap.Remove(&e.queue, item.index)
			delete(e.queuedByID, actionID)
		}
		action.Status = StatusCancelled
		action.CompletedAt = time.Now()
		return nil
	case StatusRunning:
		if cancel, ok := e.running[actionID]; ok {
			cancel()
		}
		return nil
	default:
		return fmt.Errorf("actionexecutor: action %q is not cancellable from status %s", actionID, action.Status)
	}
}

// Stop drains the worker pool; in-flight actions are allowed to finish.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.mu.Lock()
		e.cond.Broadcast()
		e.mu.Unlock()
	})
	e.wg.Wait()
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		action, def, ok := e.dequeue()
		if !ok {
			return
		}
		e.run(action, def)
	}
}

func (e *Executor) dequeue() (*Action, *Definition, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.queue.Len() == 0 {
		select {
		case <-e.stopCh:
			return nil, nil, false
		default:
		}
		e.cond.Wait()
		select {
		case <-e.stopCh:
			return nil, nil, false
		default:
		}
	}

	item := heap.Pop(&e.queue).(*pqItem)
	delete(e.queuedByID, item.action.ID)
	def := e.definitions[item.action.DefinitionID]
	return item.action, def, true
}

func (e *Executor) run(action *Action, def *Definition) {
	atomic.AddInt32(&e.active, 1)
	defer atomic.AddInt32(&e.active, -1)

	action.Attempts++
	action.Status = StatusRunning
	action.StartedAt = time.Now()

	ctx := context.Background()
	if def.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, def.Timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.running[action.ID] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.running, action.ID)
		e.mu.Unlock()
		cancel()
	}()

	result, err := def.Handler(ctx, action.Input)
	if err == nil {
		action.Status = StatusSucceeded
		action.Result = result
		action.CompletedAt = time.Now()
		return
	}

	if ctx.Err() != nil && action.Status != StatusCancelled {
		action.Status = StatusCancelled
		action.Err = ctx.Err()
		action.CompletedAt = time.Now()
		return
	}

	if !def.Retry.Enabled || action.Attempts > def.Retry.MaxRetries {
		action.Status = StatusFailed
		action.Err = err
		action.CompletedAt = time.Now()
		if e.logger != nil {
			e.logger.Error("actionexecutor: action failed", "action_id", action.ID, "definition_id", def.ID, "error", err)
		}
		return
	}

	delays := def.Retry.Delays(action.Attempts)
	delay := delays[len(delays)-1]
	action.RetryHistory = append(action.RetryHistory, RetryRecord{
		Attempt:   action.Attempts,
		Error:     err.Error(),
		Delay:     delay,
		Timestamp: time.Now(),
	})
	action.Status = StatusPending

	time.AfterFunc(delay, func() { e.enqueue(action) })
}
