package anomaly

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalis-app/sentinel/internal/models"
)

// clusterWithOutlier returns n tight rows around the origin plus one far row
// at the end.
func clusterWithOutlier(n int) [][]float64 {
	rng := rand.New(rand.NewSource(7))
	m := make([][]float64, 0, n+1)
	for i := 0; i < n; i++ {
		m = append(m, []float64{rng.NormFloat64() * 0.1, rng.NormFloat64() * 0.1, rng.NormFloat64() * 0.1})
	}
	return append(m, []float64{8, 8, 8})
}

func TestUnfitScorerReturnsZeros(t *testing.T) {
	s := NewScorer(DefaultOptions())
	for _, n := range []int{0, 1, 5, 40} {
		scores := s.Score(make([][]float64, n))
		assert.Len(t, scores, n)
		for _, v := range scores {
			assert.Equal(t, 0, v)
		}
	}
}

func TestFitBelowMinRowsIsNoop(t *testing.T) {
	s := NewScorer(DefaultOptions())
	small := [][]float64{{1}, {2}, {3}, {4}}

	assert.False(t, s.Fit(small))
	assert.False(t, s.Fitted())
	assert.False(t, s.Fit(small))
	assert.False(t, s.Fitted())
}

func TestFittedNeverReverts(t *testing.T) {
	s := NewScorer(DefaultOptions())
	require.True(t, s.Fit(clusterWithOutlier(10)))
	assert.True(t, s.Fitted())

	assert.False(t, s.Fit([][]float64{{1}}))
	assert.True(t, s.Fitted())
}

func TestOutlierScoresHighest(t *testing.T) {
	s := NewScorer(DefaultOptions())
	m := clusterWithOutlier(60)
	require.True(t, s.Fit(m))

	scores := s.Score(m)
	last := len(scores) - 1
	for i, v := range scores {
		assert.GreaterOrEqual(t, v, 0)
		assert.LessOrEqual(t, v, 100)
		if i != last {
			assert.Less(t, v, scores[last])
		}
	}
	assert.GreaterOrEqual(t, scores[last], CriticalScore)
}

func TestScoringIsDeterministicForSeed(t *testing.T) {
	m := clusterWithOutlier(30)
	a, b := NewScorer(DefaultOptions()), NewScorer(DefaultOptions())
	a.Fit(m)
	b.Fit(m)
	assert.Equal(t, a.Score(m), b.Score(m))
}

func TestSensitivityScalesAndClamps(t *testing.T) {
	m := clusterWithOutlier(30)
	base := NewScorer(DefaultOptions())
	base.Fit(m)

	opts := DefaultOptions()
	opts.Sensitivity = 3
	hot := NewScorer(opts)
	hot.Fit(m)

	b, h := base.Score(m), hot.Score(m)
	for i := range b {
		assert.GreaterOrEqual(t, h[i], b[i])
		assert.LessOrEqual(t, h[i], 100)
	}
}

func TestContaminationClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, DefaultContamination},
		{0.001, MinContamination},
		{0.2, 0.2},
		{0.9, MaxContamination},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampContamination(tt.in))
	}

	s := NewScorer(DefaultOptions())
	s.Tune(0.9, -1)
	c, sens := s.Settings()
	assert.Equal(t, MaxContamination, c)
	assert.Equal(t, DefaultSensitivity, sens)
}

func TestOffsetFlagsContaminationFraction(t *testing.T) {
	m := clusterWithOutlier(99)
	opts := DefaultOptions()
	opts.Contamination = 0.01
	s := NewScorer(opts)
	require.True(t, s.Fit(m))

	raw := s.Raw(m)
	var outliers int
	for _, v := range raw {
		if v > 0 {
			outliers++
		}
	}
	assert.LessOrEqual(t, outliers, 1)
	assert.Greater(t, raw[len(raw)-1], 0.0)
}

func TestClassifyBands(t *testing.T) {
	events := Classify([]int{10, 49, 50, 69, 70, 100}, []string{"a", "b", "c", "d", "e"})

	require.Len(t, events, 4)
	assert.Equal(t, models.AnomalyEvent{Resource: "c", Score: 50, Severity: models.SeverityWarning}, events[0])
	assert.Equal(t, models.SeverityWarning, events[1].Severity)
	assert.Equal(t, models.SeverityCritical, events[2].Severity)
	assert.Equal(t, "row_5", events[3].Resource)
}
