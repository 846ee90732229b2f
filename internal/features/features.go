// Package features turns metric samples into fixed-order numeric vectors.
package features

import "github.com/vitalis-app/sentinel/internal/models"

// Order is the canonical feature ordering. Position i of every vector holds
// the value for Order[i].
var Order = []string{
	models.KeyCPU,
	models.KeyMemory,
	models.KeyDisk,
	models.KeyReadMB,
	models.KeyWriteMB,
	models.KeyUploadKB,
	models.KeyDownloadKB,
	models.KeyGPU,
}

// Extract returns the feature vector for s. Missing keys yield 0.
func Extract(s models.MetricSample) models.FeatureVector {
	vec := make(models.FeatureVector, len(Order))
	for i, key := range Order {
		vec[i] = s.Values[key]
	}
	return vec
}

// Batch extracts one row per sample, preserving sample order.
func Batch(samples []models.MetricSample) [][]float64 {
	out := make([][]float64, len(samples))
	for i, s := range samples {
		out[i] = Extract(s)
	}
	return out
}
