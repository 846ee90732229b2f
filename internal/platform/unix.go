//go:build !windows

package platform

import (
	"context"
	"os"
	"path/filepath"
)

// UnixPlatform implements Platform for Linux and macOS.
type UnixPlatform struct {
	drmGlob string
}

// New creates a platform instance for non-Windows systems.
func New() Platform {
	return &UnixPlatform{drmGlob: "/sys/class/drm/card*/device/gpu_busy_percent"}
}

// Name returns the platform identifier.
func (p *UnixPlatform) Name() string { return "unix" }

// GPUUtilization reads AMD/Intel load from sysfs when present, otherwise
// queries nvidia-smi.
func (p *UnixPlatform) GPUUtilization(ctx context.Context) (float64, error) {
	if v, err := p.sysfs(); err == nil {
		return v, nil
	}
	return nvidiaSMI(ctx)
}

func (p *UnixPlatform) sysfs() (float64, error) {
	paths, _ := filepath.Glob(p.drmGlob)
	var combined string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		combined += string(data) + "\n"
	}
	return parseMaxPercent(combined)
}
