package monitoring

import "sync"

// PerformanceTracker tracks active/queued/completed counters per named
// component (e.g. "action_executor", "workflow_engine").
type PerformanceTracker struct {
	mu   sync.Mutex
	byID map[string]*PerformanceMetrics
}

// NewPerformanceTracker creates an empty tracker.
func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{byID: make(map[string]*PerformanceMetrics)}
}

func (t *PerformanceTracker) entry(component string) *PerformanceMetrics {
	m, ok := t.byID[component]
	if !ok {
		m = &PerformanceMetrics{Component: component}
		t.byID[component] = m
	}
	return m
}

// IncActive records a unit of work starting to run.
func (t *PerformanceTracker) IncActive(component string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(component).Active++
}

// DecActive records a unit of work finishing, moving it to Completed.
func (t *PerformanceTracker) DecActive(component string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.entry(component)
	if m.Active > 0 {
		m.Active--
	}
	m.Completed++
}

// SetQueued sets the current queue depth for a component.
func (t *PerformanceTracker) SetQueued(component string, depth int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(component).Queued = depth
}

// Get returns a copy of a component's current metrics.
func (t *PerformanceTracker) Get(component string) (PerformanceMetrics, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.byID[component]
	if !ok {
		return PerformanceMetrics{}, false
	}
	return *m, true
}

// All returns a snapshot of every tracked component.
func (t *PerformanceTracker) All() map[string]PerformanceMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]PerformanceMetrics, len(t.byID))
	for id, m := range t.byID {
		out[id] = *m
	}
	return out
}
