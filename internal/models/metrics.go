// Package models defines the data structures shared by the sampling and
// decision stages of the sentinel.
package models

import "time"

// Metric keys carried by a MetricSample.
const (
	KeyCPU        = "cpu_percent"
	KeyMemory     = "memory_percent"
	KeyMemoryMB   = "memory_used_mb"
	KeyDisk       = "disk_percent"
	KeyReadMB     = "read_mb"
	KeyWriteMB    = "write_mb"
	KeyUploadKB   = "upload_kb"
	KeyDownloadKB = "download_kb"
	KeyGPU        = "gpu_percent"

	// KeyDiskTotalMB is capacity context for disk forecasts; it is not a feature.
	KeyDiskTotalMB = "disk_total_mb"
)

// Resources that are forecast and checked for overload, with the sample key
// holding their utilisation percentage.
var Resources = []Resource{
	{Name: "cpu", Key: KeyCPU},
	{Name: "memory", Key: KeyMemory},
	{Name: "disk", Key: KeyDisk},
	{Name: "gpu", Key: KeyGPU},
}

// Resource pairs a resource name with the metric key it is measured by.
type Resource struct {
	Name string
	Key  string
}

// Unbounded is the sentinel reported when no finite time estimate exists.
const Unbounded = 9999.0

// FeatureVector is one sample's values in the fixed feature order.
type FeatureVector []float64

// MetricSample is one timestamped reading of host resource usage.
// Values is never mutated after construction.
type MetricSample struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// NewSample builds a sample that owns a copy of values.
func NewSample(ts time.Time, values map[string]float64) MetricSample {
	cp := make(map[string]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return MetricSample{Timestamp: ts, Values: cp}
}

// Get returns the value stored under key.
func (s MetricSample) Get(key string) (float64, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// Series extracts the values of key across samples. Missing values read as 0.
func Series(samples []MetricSample, key string) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Values[key]
	}
	return out
}

// ProcessInfo is one process's resource usage, attached to fix suggestions.
type ProcessInfo struct {
	PID    int32   `json:"pid"`
	Name   string  `json:"name"`
	CPU    float64 `json:"cpu"`
	Memory float64 `json:"memory"`
	Status string  `json:"status"`
}
