// Package platform provides OS-specific probes that gopsutil does not cover.
package platform

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoGPU is returned when no supported GPU could be queried.
var ErrNoGPU = errors.New("platform: no supported GPU")

// Platform provides OS-specific functionality beyond what gopsutil offers.
type Platform interface {
	// GPUUtilization returns the busiest GPU's utilisation percentage.
	GPUUtilization(ctx context.Context) (float64, error)

	// Name returns the platform name (windows, unix).
	Name() string
}

// nvidiaSMI queries utilization.gpu for every NVIDIA GPU and returns the
// highest reading.
func nvidiaSMI(ctx context.Context) (float64, error) {
	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=utilization.gpu", "--format=csv,noheader,nounits")
	output, err := cmd.Output()
	if err != nil {
		return 0, ErrNoGPU
	}
	return parseMaxPercent(string(output))
}

// parseMaxPercent parses one number per line and returns the largest.
func parseMaxPercent(output string) (float64, error) {
	best, found := 0.0, false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		if !found || v > best {
			best, found = v, true
		}
	}
	if !found {
		return 0, ErrNoGPU
	}
	return best, nil
}
