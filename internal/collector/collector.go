// Package collector defines the Collector interface and the host resource
// collectors that feed the sample stream.
package collector

import "context"

// Collector gathers one group of host metrics as a flat key -> value record.
type Collector interface {
	// Name returns the unique identifier for this collector.
	Name() string

	// Collect reads the current values. The context bounds the read.
	Collect(ctx context.Context) (map[string]float64, error)

	// IsAvailable reports whether this collector can run on the current
	// platform. Unavailable collectors are not registered.
	IsAvailable() bool
}
