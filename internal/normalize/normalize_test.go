package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformIdentityBeforeFit(t *testing.T) {
	n := New()
	assert.False(t, n.Fitted())
	assert.Equal(t, []float64{3, -1, 7}, n.Transform([]float64{3, -1, 7}))
}

func TestFitTransformStandardises(t *testing.T) {
	n := New()
	m := [][]float64{
		{1, 10},
		{2, 20},
		{3, 30},
		{4, 40},
	}
	out := n.FitTransform(m)
	require.True(t, n.Fitted())

	for j := 0; j < 2; j++ {
		var sum, sq float64
		for _, row := range out {
			sum += row[j]
		}
		mean := sum / float64(len(out))
		for _, row := range out {
			sq += (row[j] - mean) * (row[j] - mean)
		}
		assert.InDelta(t, 0, mean, 1e-9)
		assert.InDelta(t, 1, math.Sqrt(sq/float64(len(out))), 1e-9)
	}
	assert.Equal(t, 1.0, m[0][0], "input must not be modified")
}

func TestConstantColumnUsesEpsilon(t *testing.T) {
	n := New()
	out := n.FitTransform([][]float64{{5}, {5}, {5}})
	_, std := n.Stats()

	assert.Equal(t, Epsilon, std[0])
	for _, row := range out {
		assert.Equal(t, 0.0, row[0])
		assert.False(t, math.IsNaN(row[0]))
	}
}

func TestFitEmptyKeepsState(t *testing.T) {
	n := New()
	n.Fit(nil)
	assert.False(t, n.Fitted())
}
