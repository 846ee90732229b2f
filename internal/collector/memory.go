package collector

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/vitalis-app/sentinel/internal/models"
)

// MemoryCollector reports RAM utilisation.
type MemoryCollector struct{}

// NewMemoryCollector creates a new memory collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{}
}

// Name returns the collector identifier.
func (c *MemoryCollector) Name() string { return "memory" }

// Collect returns memory_percent and memory_used_mb.
func (c *MemoryCollector) Collect(ctx context.Context) (map[string]float64, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]float64{
		models.KeyMemory:   v.UsedPercent,
		models.KeyMemoryMB: float64(v.Used) / mb,
	}, nil
}

// IsAvailable returns true: memory metrics exist on every platform.
func (c *MemoryCollector) IsAvailable() bool { return true }
