//go:build windows

package platform

import "context"

// WindowsPlatform implements Platform for Windows systems.
type WindowsPlatform struct{}

// New creates a new Windows platform instance.
func New() Platform {
	return &WindowsPlatform{}
}

// Name returns the platform identifier.
func (p *WindowsPlatform) Name() string { return "windows" }

// GPUUtilization reads NVIDIA GPU load via nvidia-smi.
func (p *WindowsPlatform) GPUUtilization(ctx context.Context) (float64, error) {
	return nvidiaSMI(ctx)
}
