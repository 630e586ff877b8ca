package errorhandler

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState is a circuit breaker's current gate position.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerConfig mirrors spec.md §6's circuit_breaker.* options.
type BreakerConfig struct {
	FailureThreshold  int
	ResetTimeout      time.Duration
	MonitoringWindow  time.Duration
	HalfOpenMaxCalls  int
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 3
	}
	return c
}

// CircuitBreaker is a per-component gate with closed/open/half_open states
// that fast-fails calls to a failing dependency.
type CircuitBreaker struct {
	mu             sync.Mutex
	component      string
	cfg            BreakerConfig
	state          BreakerState
	failureCount   int
	halfOpenCalls  int
	halfOpenOK     int
	nextRetryTime  time.Time
}

// NewCircuitBreaker creates a closed breaker for a component key.
func NewCircuitBreaker(component string, cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		component: component,
		cfg:       cfg.withDefaults(),
		state:     BreakerClosed,
	}
}

// ErrCircuitOpen is returned by Allow when the breaker fast-fails a call.
type ErrCircuitOpen struct {
	Component     string
	NextRetryTime time.Time
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for %q until %s", e.Component, e.NextRetryTime.Format(time.RFC3339))
}

// Allow reports whether a call may proceed, transitioning open->half_open
// once the reset timeout elapses.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if time.Now().Before(b.nextRetryTime) {
			return &ErrCircuitOpen{Component: b.component, NextRetryTime: b.nextRetryTime}
		}
		b.state = BreakerHalfOpen
		b.halfOpenCalls = 0
		b.halfOpenOK = 0
		fallthrough
	case BreakerHalfOpen:
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			return &ErrCircuitOpen{Component: b.component, NextRetryTime: b.nextRetryTime}
		}
		b.halfOpenCalls++
		return nil
	default: // closed
		return nil
	}
}

// RecordSuccess registers a successful call outcome.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.halfOpenOK++
		if b.halfOpenOK >= b.cfg.HalfOpenMaxCalls {
			b.state = BreakerClosed
			b.failureCount = 0
		}
	case BreakerClosed:
		b.failureCount = 0
	}
}

// RecordFailure registers a failed call outcome, possibly tripping the
// breaker open.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.trip()
	case BreakerClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.trip()
		}
	}
}

func (b *CircuitBreaker) trip() {
	b.state = BreakerOpen
	b.nextRetryTime = time.Now().Add(b.cfg.ResetTimeout)
	b.failureCount = 0
}

// State returns the current gate position.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Registry keeps one CircuitBreaker per component key.
type Registry struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates an empty breaker registry sharing cfg across
// components.
func NewRegistry(cfg BreakerConfig) *Registry {
	return &Registry{cfg: cfg, breakers: make(map[string]*CircuitBreaker)}
}

// Get returns (creating if necessary) the breaker for a component key.
func (r *Registry) Get(component string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[component]
	if !ok {
		b = NewCircuitBreaker(component, r.cfg)
		r.breakers[component] = b
	}
	return b
}
