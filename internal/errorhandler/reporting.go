package errorhandler

import (
	"sync"
	"time"
)

// ReportingConfig gates which errors are reported and at what rate.
type ReportingConfig struct {
	SeverityThreshold Severity
	RateLimit         int           // max reports per key per window
	Window            time.Duration // default 1 minute
}

func (c ReportingConfig) withDefaults() ReportingConfig {
	if c.SeverityThreshold == "" {
		c.SeverityThreshold = SeverityLow
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 10
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	return c
}

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Sink receives reported errors, e.g. to forward into MonitoringService
// notifications.
type Sink func(err *AutomationError)

// Reporter applies a severity threshold and per-key rate limit before
// forwarding an AutomationError to Sinks.
type Reporter struct {
	mu      sync.Mutex
	cfg     ReportingConfig
	sinks   []Sink
	windows map[string]*reportWindow
}

type reportWindow struct {
	start time.Time
	count int
}

// NewReporter creates a Reporter.
func NewReporter(cfg ReportingConfig, sinks ...Sink) *Reporter {
	return &Reporter{cfg: cfg.withDefaults(), sinks: sinks, windows: make(map[string]*reportWindow)}
}

// Report forwards err to all sinks if it clears the severity threshold and
// has not exceeded its key's rate limit for the current window. key is
// typically the error's component or type.
func (r *Reporter) Report(key string, err *AutomationError) bool {
	if severityRank[err.Severity] < severityRank[r.cfg.SeverityThreshold] {
		return false
	}

	r.mu.Lock()
	w, ok := r.windows[key]
	now := time.Now()
	if !ok || now.Sub(w.start) >= r.cfg.Window {
		w = &reportWindow{start: now}
		r.windows[key] = w
	}
	if w.count >= r.cfg.RateLimit {
		r.mu.Unlock()
		return false
	}
	w.count++
	r.mu.Unlock()

	for _, sink := range r.sinks {
		sink(err)
	}
	return true
}
