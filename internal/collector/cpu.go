package collector

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/vitalis-app/sentinel/internal/models"
)

// CPUCollector reports overall CPU utilisation.
type CPUCollector struct {
	window time.Duration
}

// NewCPUCollector creates a CPU collector that measures over window.
// A zero window compares against the previous call instead of blocking.
func NewCPUCollector(window time.Duration) *CPUCollector {
	return &CPUCollector{window: window}
}

// Name returns the collector identifier.
func (c *CPUCollector) Name() string { return "cpu" }

// Collect returns cpu_percent.
func (c *CPUCollector) Collect(ctx context.Context) (map[string]float64, error) {
	overall, err := cpu.PercentWithContext(ctx, c.window, false)
	if err != nil {
		return nil, err
	}
	out := map[string]float64{}
	if len(overall) > 0 {
		out[models.KeyCPU] = overall[0]
	}
	return out, nil
}

// IsAvailable returns true: CPU metrics exist on every platform.
func (c *CPUCollector) IsAvailable() bool { return true }
