// Package retrypolicy builds github.com/cenkalti/backoff/v4 schedules from
// the retry policy shape spec.md §4.7/§4.9 share between ActionExecutor and
// ErrorHandler: {enabled, max_retries, backoff, initial_delay, max_delay,
// multiplier, jitter}.
package retrypolicy

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Strategy names the backoff shape, matching spec.md's closed set.
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyLinear      Strategy = "linear"
	StrategyExponential Strategy = "exponential"
	StrategyJittered    Strategy = "jittered"
)

// Policy is the retry configuration shared by ActionExecutor submissions and
// ErrorHandler's generic-operation retries.
type Policy struct {
	Enabled      bool
	MaxRetries   int
	Backoff      Strategy
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64 // randomization factor in [0,1], used by "jittered"
}

// Default mirrors spec.md §6's engine-level default_retry_policy.
func Default() Policy {
	return Policy{
		Enabled:      true,
		MaxRetries:   3,
		Backoff:      StrategyExponential,
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2,
		Jitter:       0,
	}
}

// BackOff builds a backoff.BackOff honoring Policy, bounded to MaxRetries
// (0 means unbounded — callers should guard with Enabled).
func (p Policy) BackOff() backoff.BackOff {
	b := p.unboundedBackOff()
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxRetries))
	}
	return b
}

func (p Policy) unboundedBackOff() backoff.BackOff {
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}

	switch p.Backoff {
	case StrategyFixed:
		return backoff.NewConstantBackOff(p.InitialDelay)
	case StrategyLinear:
		return &linearBackOff{
			initial:    p.InitialDelay,
			max:        p.MaxDelay,
			multiplier: multiplier,
			attempt:    0,
		}
	case StrategyJittered:
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.InitialDelay
		eb.MaxInterval = p.MaxDelay
		eb.Multiplier = multiplier
		eb.RandomizationFactor = jitterOrDefault(p.Jitter)
		eb.MaxElapsedTime = 0
		eb.Reset()
		return eb
	default: // StrategyExponential
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.InitialDelay
		eb.MaxInterval = p.MaxDelay
		eb.Multiplier = multiplier
		eb.RandomizationFactor = 0
		eb.MaxElapsedTime = 0
		eb.Reset()
		return eb
	}
}

func jitterOrDefault(j float64) float64 {
	if j <= 0 {
		return 0.5
	}
	return j
}

// Delays returns the first n delays the policy would produce, ignoring
// MaxRetries. Useful for deterministic boundary tests (spec.md §8).
func (p Policy) Delays(n int) []time.Duration {
	b := p.unboundedBackOff()
	out := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}

// linearBackOff returns initial on the first call and
// initial*multiplier*(n-1) on the n-th call after that, capped at max.
// cenkalti/backoff has no built-in linear strategy.
type linearBackOff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	attempt    int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	d := time.Duration(float64(l.initial) * l.multiplier * float64(l.attempt-1))
	if l.attempt == 1 {
		d = l.initial
	}
	if l.max > 0 && d > l.max {
		d = l.max
	}
	return d
}

func (l *linearBackOff) Reset() {
	l.attempt = 0
}
