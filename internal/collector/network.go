package collector

import (
	"context"
	"sync"

	"github.com/shirou/gopsutil/v3/net"

	"github.com/vitalis-app/sentinel/internal/models"
)

// NetworkCollector reports kilobytes sent and received since the previous
// collection.
type NetworkCollector struct {
	mu          sync.Mutex
	lastRx      uint64
	lastTx      uint64
	initialized bool
}

// NewNetworkCollector creates a new network collector.
func NewNetworkCollector() *NetworkCollector {
	return &NetworkCollector{}
}

// Name returns the collector identifier.
func (c *NetworkCollector) Name() string { return "network" }

// Collect returns upload_kb and download_kb. The first call establishes a
// baseline and reports zero.
func (c *NetworkCollector) Collect(ctx context.Context) (map[string]float64, error) {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(counters) == 0 {
		return map[string]float64{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rx, tx := counters[0].BytesRecv, counters[0].BytesSent
	var dRx, dTx uint64
	if c.initialized {
		dRx = delta(rx, c.lastRx)
		dTx = delta(tx, c.lastTx)
	}
	c.lastRx, c.lastTx, c.initialized = rx, tx, true

	return map[string]float64{
		models.KeyUploadKB:   float64(dTx) / kb,
		models.KeyDownloadKB: float64(dRx) / kb,
	}, nil
}

// IsAvailable returns true: network counters exist on every platform.
func (c *NetworkCollector) IsAvailable() bool { return true }
