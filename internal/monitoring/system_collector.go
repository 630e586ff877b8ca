package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// SystemCollectorConfig configures the collection cadence and retention.
type SystemCollectorConfig struct {
	Interval  time.Duration // default 30s
	Retention int           // number of samples kept, default 120 (1h at 30s)
}

func (c SystemCollectorConfig) withDefaults() SystemCollectorConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Retention <= 0 {
		c.Retention = 120
	}
	return c
}

// SystemCollector periodically samples host CPU, memory, disk, network, and
// process counts via gopsutil, retaining a bounded ring of recent samples.
type SystemCollector struct {
	cfg    SystemCollectorConfig
	logger *logger.Logger

	mu      sync.Mutex
	samples []SystemMetrics

	lastNet gopsnet.IOCountersStat
	haveNet bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSystemCollector creates a SystemCollector. log may be nil.
func NewSystemCollector(cfg SystemCollectorConfig, log *logger.Logger) *SystemCollector {
	return &SystemCollector{
		cfg:    cfg.withDefaults(),
		logger: log,
		stopCh: make(chan struct{}),
	}
}

// Start launches the background sampling loop.
func (c *SystemCollector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.Interval)
		defer ticker.Stop()

		c.sampleOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.sampleOnce(ctx)
			}
		}
	}()
}

// Stop halts the sampling loop and waits for it to exit.
func (c *SystemCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// Latest returns the most recent sample, if any.
func (c *SystemCollector) Latest() (SystemMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.samples) == 0 {
		return SystemMetrics{}, false
	}
	return c.samples[len(c.samples)-1], true
}

// History returns a copy of all retained samples, oldest first.
func (c *SystemCollector) History() []SystemMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SystemMetrics, len(c.samples))
	copy(out, c.samples)
	return out
}

func (c *SystemCollector) sampleOnce(ctx context.Context) {
	m := SystemMetrics{Timestamp: time.Now()}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		m.CPUPercent = pct[0]
	} else if err != nil && c.logger != nil {
		c.logger.Warn("system collector: cpu sample failed", "error", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		m.MemoryPercent = vm.UsedPercent
		m.MemoryUsedMB = float64(vm.Used) / (1024 * 1024)
	} else if c.logger != nil {
		c.logger.Warn("system collector: memory sample failed", "error", err)
	}

	if du, err := disk.UsageWithContext(ctx, "/"); err == nil {
		m.DiskPercent = du.UsedPercent
		m.DiskUsedMB = float64(du.Used) / (1024 * 1024)
	} else if c.logger != nil {
		c.logger.Warn("system collector: disk sample failed", "error", err)
	}

	if counters, err := gopsnet.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		cur := counters[0]
		if c.haveNet {
			m.NetworkSentKB = float64(cur.BytesSent-c.lastNet.BytesSent) / 1024
			m.NetworkRecvKB = float64(cur.BytesRecv-c.lastNet.BytesRecv) / 1024
		}
		c.lastNet = cur
		c.haveNet = true
	} else if err != nil && c.logger != nil {
		c.logger.Warn("system collector: network sample failed", "error", err)
	}

	if pids, err := process.PidsWithContext(ctx); err == nil {
		m.ProcessCount = len(pids)
	} else if c.logger != nil {
		c.logger.Warn("system collector: process count failed", "error", err)
	}

	c.mu.Lock()
	c.samples = append(c.samples, m)
	if len(c.samples) > c.cfg.Retention {
		c.samples = c.samples[len(c.samples)-c.cfg.Retention:]
	}
	c.mu.Unlock()
}
