package eventbus

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
)

// WorkflowDispatcher is the hook the EventBus calls to launch a workflow
// execution when a subscription matches a published event. It is satisfied
// by engine.Engine.Execute (wired in pkg/server).
type WorkflowDispatcher func(ctx context.Context, workflowID string, input map[string]any) error

// Config configures a Bus.
type Config struct {
	// HistorySize bounds the number of retained EventPayloads; the oldest is
	// evicted once the cap is reached.
	HistorySize int
	Dispatcher  WorkflowDispatcher
	Logger      *logger.Logger
}

// Bus is an in-process publish/subscribe topic bus. Subscriptions for an
// event name are delivered synchronously in descending-priority order,
// ties broken by subscription-insertion order, per spec.md §4.5 and §5.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]*EventSubscription // eventName -> subs, insertion order
	byID          map[string]string               // subscription id -> eventName
	history       []EventPayload
	historySize   int
	seq           int64

	dispatcher WorkflowDispatcher
	logger     *logger.Logger
}

// New creates a Bus.
func New(cfg Config) *Bus {
	size := cfg.HistorySize
	if size <= 0 {
		size = 1000
	}
	return &Bus{
		subscriptions: make(map[string][]*EventSubscription),
		byID:          make(map[string]string),
		historySize:   size,
		dispatcher:    cfg.Dispatcher,
		logger:        cfg.Logger,
	}
}

// Subscribe registers a workflow against an event name. Returns the new
// subscription's id.
func (b *Bus) Subscribe(eventName, workflowID string, filters []Filter, priority int) (string, error) {
	if eventName == "" {
		return "", fmt.Errorf("eventbus: event name is required")
	}
	if workflowID == "" {
		return "", fmt.Errorf("eventbus: workflow id is required")
	}

	sub := &EventSubscription{
		ID:         uuid.NewString(),
		EventName:  eventName,
		WorkflowID: workflowID,
		Filters:    filters,
		Priority:   priority,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions[eventName] = append(b.subscriptions[eventName], sub)
	b.byID[sub.ID] = eventName
	return sub.ID, nil
}

// Unsubscribe removes a subscription by id.
func (b *Bus) Unsubscribe(subscriptionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	eventName, ok := b.byID[subscriptionID]
	if !ok {
		return fmt.Errorf("eventbus: subscription %q not found", subscriptionID)
	}
	delete(b.byID, subscriptionID)

	subs := b.subscriptions[eventName]
	for i, s := range subs {
		if s.ID == subscriptionID {
			b.subscriptions[eventName] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscriptions[eventName]) == 0 {
		delete(b.subscriptions, eventName)
	}
	return nil
}

// Publish appends the event to history then delivers it synchronously to
// every matching subscription in descending-priority order. It returns the
// number of subscriptions successfully dispatched and the first dispatch
// error encountered, if any (delivery to remaining subscriptions continues).
func (b *Bus) Publish(ctx context.Context, eventName string, data map[string]any, source, correlationID string) (int, error) {
	seq := atomic.AddInt64(&b.seq, 1)
	payload := EventPayload{
		ID:            fmt.Sprintf("evt-%d", seq),
		EventName:     eventName,
		Source:        source,
		Data:          data,
		CorrelationID: correlationID,
	}

	b.mu.Lock()
	b.history = append(b.history, payload)
	if len(b.history) > b.historySize {
		b.history = b.history[len(b.history)-b.historySize:]
	}
	subsCopy := make([]*EventSubscription, len(b.subscriptions[eventName]))
	copy(subsCopy, b.subscriptions[eventName])
	b.mu.Unlock()

	// Stable sort preserves subscription-insertion order for priority ties.
	sort.SliceStable(subsCopy, func(i, j int) bool {
		return subsCopy[i].Priority > subsCopy[j].Priority
	})

	delivered := 0
	var firstErr error
	for _, sub := range subsCopy {
		matched, err := b.matches(sub, data)
		if err != nil {
			if b.logger != nil {
				b.logger.Error("eventbus: filter evaluation failed", "subscription", sub.ID, "error", err)
			}
			continue
		}
		if !matched {
			continue
		}

		atomic.AddInt64(&sub.TriggerCount, 1)

		if b.dispatcher == nil {
			continue
		}
		if err := b.dispatcher(ctx, sub.WorkflowID, data); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if b.logger != nil {
				b.logger.Error("eventbus: dispatch failed", "subscription", sub.ID, "workflow_id", sub.WorkflowID, "error", err)
			}
			continue
		}
		delivered++
	}

	return delivered, firstErr
}

func (b *Bus) matches(sub *EventSubscription, data map[string]any) (bool, error) {
	for _, f := range sub.Filters {
		ok, err := f.Matches(data)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// History returns a copy of the retained event payloads, oldest first.
func (b *Bus) History() []EventPayload {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]EventPayload, len(b.history))
	copy(out, b.history)
	return out
}

// Subscriptions returns a copy of the subscriptions for an event name.
func (b *Bus) Subscriptions(eventName string) []*EventSubscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := b.subscriptions[eventName]
	out := make([]*EventSubscription, len(subs))
	copy(out, subs)
	return out
}
