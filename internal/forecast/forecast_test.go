package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitalis-app/sentinel/internal/models"
)

func newForecaster() *Forecaster {
	return New(DefaultOptions(), models.DefaultThresholds(), zap.NewNop())
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestFitTrend(t *testing.T) {
	tr := fitTrend([]float64{1, 3, 5, 7})
	assert.InDelta(t, 2, tr.slope, 1e-9)
	assert.InDelta(t, 1, tr.intercept, 1e-9)

	tr = fitTrend([]float64{4, 4, 4})
	assert.Equal(t, 0.0, tr.slope)
	assert.InDelta(t, 4, tr.intercept, 1e-9)
}

func TestPredictShortSeries(t *testing.T) {
	f := newForecaster()

	res, err := f.Predict("cpu", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.PredictedValue)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, models.RiskLow, res.Risk)

	res, err = f.Predict("cpu", []float64{42}, 10)
	require.NoError(t, err)
	assert.Equal(t, 42.0, res.PredictedValue)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestPredictClampsToPercentRange(t *testing.T) {
	f := newForecaster()

	up, err := f.Predict("cpu", []float64{50, 70, 90}, 10)
	require.NoError(t, err)
	assert.Equal(t, 100.0, up.PredictedValue)

	down, err := f.Predict("cpu", []float64{50, 30, 10}, 10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, down.PredictedValue)
}

func TestConfidenceMonotoneAndSaturates(t *testing.T) {
	prev := -1.0
	for _, n := range []int{1, 2, 15, 30, 60} {
		c := Confidence(n, DefaultSaturationSamples)
		assert.GreaterOrEqual(t, c, prev, "n=%d", n)
		assert.LessOrEqual(t, c, 1.0)
		prev = c
	}
	assert.Equal(t, 0.0, Confidence(1, 30))
	assert.Equal(t, 1.0, Confidence(30, 30))
	assert.Equal(t, 1.0, Confidence(60, 30))
}

func TestPredictRejectsNonFinite(t *testing.T) {
	f := newForecaster()
	_, err := f.Predict("cpu", []float64{1, math.NaN(), 3}, 5)
	assert.ErrorIs(t, err, ErrInvalidSeries)

	_, err = f.Predict("cpu", []float64{1, math.Inf(1)}, 5)
	assert.ErrorIs(t, err, ErrInvalidSeries)
}

func TestInterpret(t *testing.T) {
	f := newForecaster()
	tests := []struct {
		name       string
		res        models.ForecastResult
		risk       models.Risk
		exhaustion bool
	}{
		{"low confidence", models.ForecastResult{Resource: "memory", PredictedValue: 99, Confidence: 0.5}, models.RiskLow, false},
		{"exhaustion", models.ForecastResult{Resource: "memory", PredictedValue: 95, Confidence: 0.7}, models.RiskHigh, true},
		{"warning band", models.ForecastResult{Resource: "memory", PredictedValue: 85, Confidence: 0.9}, models.RiskMedium, false},
		{"calm", models.ForecastResult{Resource: "memory", PredictedValue: 40, Confidence: 1}, models.RiskLow, false},
		{"unknown resource uses default", models.ForecastResult{Resource: "fan", PredictedValue: 91, Confidence: 1}, models.RiskHigh, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.res
			f.Interpret(&res)
			assert.Equal(t, tt.risk, res.Risk)
			assert.Equal(t, tt.exhaustion, res.PredictedExhaustion)
		})
	}
}

func TestMemoryRampPredictsExhaustion(t *testing.T) {
	f := newForecaster()
	res, err := f.Predict("memory", []float64{60, 62, 64, 66, 68, 70, 80, 92, 95, 97}, DefaultHorizonTicks)
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.PredictedValue)
	assert.GreaterOrEqual(t, res.Confidence, MinConfidence)
	assert.True(t, res.PredictedExhaustion)
	assert.Equal(t, models.RiskHigh, res.Risk)
}

func TestPredictDiskMinutesUntilFull(t *testing.T) {
	opts := DefaultOptions()
	opts.TickInterval = time.Minute
	f := New(opts, nil, zap.NewNop())

	// one percent per minute from 90 leaves 6 minutes
	res, err := f.PredictDisk([]float64{90, 91, 92, 93, 94}, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 6, res.MinutesUntilFull, 1e-9)

	// flat usage with writes: 1000 MB/min on a 100000 MB disk is 1% per minute
	res, err = f.PredictDisk(flat(5, 50), 1000, 100000)
	require.NoError(t, err)
	assert.InDelta(t, 50, res.MinutesUntilFull, 1e-9)

	res, err = f.PredictDisk(flat(5, 50), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, models.Unbounded, res.MinutesUntilFull)

	res, err = f.PredictDisk(flat(5, 100), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.MinutesUntilFull)
}

func TestPredictAllIsolatesResources(t *testing.T) {
	f := newForecaster()
	var window []models.MetricSample
	for i := 0; i < 10; i++ {
		window = append(window, models.NewSample(time.Unix(int64(i), 0), map[string]float64{
			models.KeyCPU:    20,
			models.KeyMemory: math.NaN(),
			models.KeyDisk:   30,
		}))
	}

	out := f.PredictAll(window)
	assert.Contains(t, out, "cpu")
	assert.Contains(t, out, "disk")
	assert.NotContains(t, out, "memory", "failing resource is omitted")
	assert.NotContains(t, out, "gpu", "unobserved resource is omitted")
	assert.Equal(t, models.Unbounded, out["cpu"].MinutesUntilFull)
}
