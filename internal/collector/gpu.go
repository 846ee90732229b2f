package collector

import (
	"context"

	"go.uber.org/zap"

	"github.com/vitalis-app/sentinel/internal/models"
	"github.com/vitalis-app/sentinel/internal/platform"
)

// GPUCollector reports GPU utilisation through the platform probe.
type GPUCollector struct {
	platform platform.Platform
	logger   *zap.Logger
}

// NewGPUCollector creates a GPU collector backed by p.
func NewGPUCollector(p platform.Platform, logger *zap.Logger) *GPUCollector {
	return &GPUCollector{platform: p, logger: logger.Named("gpu")}
}

// Name returns the collector identifier.
func (c *GPUCollector) Name() string { return "gpu" }

// Collect returns gpu_percent.
func (c *GPUCollector) Collect(ctx context.Context) (map[string]float64, error) {
	v, err := c.platform.GPUUtilization(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]float64{models.KeyGPU: v}, nil
}

// IsAvailable probes the GPU once. Hosts without a supported GPU skip the
// collector entirely.
func (c *GPUCollector) IsAvailable() bool {
	_, err := c.platform.GPUUtilization(context.Background())
	if err != nil {
		c.logger.Debug("GPU probe failed", zap.String("platform", c.platform.Name()), zap.Error(err))
		return false
	}
	return true
}
