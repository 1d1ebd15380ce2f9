// Package metrics periodically samples process memory, CPU, and the
// splitter's own growing-bitset segment count, logging each sample
// through the shared zap logger. Segment count is the metric operators
// care about most: it is the direct signal of how much of the sparse id
// space a run has actually touched, and therefore how close the process
// is to its expected per-extract memory ceiling (see spec §5).
package metrics

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// SegmentsFunc reports the current total number of allocated bitset
// segments across every tracker a strategy owns. The collector has no
// notion of strategies or extracts itself — it only samples whatever
// this callback returns.
type SegmentsFunc func() int

// SystemMetrics is one collected sample.
type SystemMetrics struct {
	ProcessRSSGB      float64
	ProcessCPUPercent float64
	MemoryPercent     float64
	BitsetSegments    int
	Timestamp         time.Time
}

// Collector periodically collects and logs metrics.
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process
	segments SegmentsFunc

	mu          sync.RWMutex
	lastMetrics *SystemMetrics
}

// NewCollector creates a collector that samples every interval (an
// interval under one second falls back to 30 seconds) and reports
// bitset segment usage via segments.
func NewCollector(interval time.Duration, logger *zap.Logger, segments SegmentsFunc) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
		segments: segments,
	}
}

// Start begins periodic collection. It blocks until ctx is cancelled —
// callers run it in its own goroutine, alongside the strategy's passes.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// GetMetrics returns the most recently collected sample, or nil before
// the first sample is collected (Start takes one immediately).
func (c *Collector) GetMetrics() *SystemMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastMetrics
}

func (c *Collector) collect() {
	m := &SystemMetrics{Timestamp: time.Now()}

	if c.proc != nil {
		if info, err := c.proc.MemoryInfo(); err == nil && info != nil {
			m.ProcessRSSGB = float64(info.RSS) / (1024 * 1024 * 1024)
		}
		if cpuPct, err := c.proc.Percent(0); err == nil {
			m.ProcessCPUPercent = cpuPct
		}
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		m.MemoryPercent = vmem.UsedPercent
	}

	if c.segments != nil {
		m.BitsetSegments = c.segments()
	}

	c.mu.Lock()
	c.lastMetrics = m
	c.mu.Unlock()

	c.logger.Info("metrics",
		zap.Float64("rss_gb", m.ProcessRSSGB),
		zap.Float64("proc_cpu", m.ProcessCPUPercent),
		zap.Float64("mem_pct", m.MemoryPercent),
		zap.Int("bitset_segments", m.BitsetSegments),
	)
}
