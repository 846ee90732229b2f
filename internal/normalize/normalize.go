// Package normalize standardises feature columns to zero mean and unit
// variance using statistics learned from a training window.
package normalize

import "math"

// Epsilon is the floor applied to a column's standard deviation so that
// constant columns do not divide by zero.
const Epsilon = 1e-6

// Normalizer holds per-column mean and standard deviation. Before the first
// Fit, Transform returns its input unchanged.
type Normalizer struct {
	mean []float64
	std  []float64
}

// New returns an unfitted normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Fit learns column statistics from matrix. An empty matrix leaves the
// normalizer unchanged.
func (n *Normalizer) Fit(matrix [][]float64) {
	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return
	}
	cols := len(matrix[0])
	rows := float64(len(matrix))

	mean := make([]float64, cols)
	for _, row := range matrix {
		for j := 0; j < cols && j < len(row); j++ {
			mean[j] += row[j]
		}
	}
	for j := range mean {
		mean[j] /= rows
	}

	std := make([]float64, cols)
	for _, row := range matrix {
		for j := 0; j < cols && j < len(row); j++ {
			d := row[j] - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Max(math.Sqrt(std[j]/rows), Epsilon)
	}

	n.mean = mean
	n.std = std
}

// Fitted reports whether Fit has learned statistics.
func (n *Normalizer) Fitted() bool {
	return n.mean != nil
}

// Transform standardises a single vector. The input is not modified.
func (n *Normalizer) Transform(vec []float64) []float64 {
	out := make([]float64, len(vec))
	copy(out, vec)
	if !n.Fitted() {
		return out
	}
	for j := 0; j < len(out) && j < len(n.mean); j++ {
		out[j] = (out[j] - n.mean[j]) / n.std[j]
	}
	return out
}

// TransformMatrix standardises every row.
func (n *Normalizer) TransformMatrix(matrix [][]float64) [][]float64 {
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		out[i] = n.Transform(row)
	}
	return out
}

// FitTransform fits on matrix and returns its standardised form.
func (n *Normalizer) FitTransform(matrix [][]float64) [][]float64 {
	n.Fit(matrix)
	return n.TransformMatrix(matrix)
}

// Stats returns copies of the learned mean and standard deviation.
func (n *Normalizer) Stats() (mean, std []float64) {
	mean = append([]float64(nil), n.mean...)
	std = append([]float64(nil), n.std...)
	return mean, std
}
