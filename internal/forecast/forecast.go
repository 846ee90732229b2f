// Package forecast projects resource utilisation forward with an ordinary
// least squares trend and grades the projection against thresholds.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/vitalis-app/sentinel/internal/models"
)

// Defaults.
const (
	DefaultSaturationSamples = 30
	DefaultHorizonTicks      = 10
	DefaultDiskHorizonTicks  = 60

	// MinConfidence is the confidence below which a projection is ignored.
	MinConfidence = 0.6
)

// ErrInvalidSeries is returned for series containing NaN or Inf.
var ErrInvalidSeries = errors.New("forecast: series contains non-finite values")

// Options configures a Forecaster.
type Options struct {
	SaturationSamples int
	HorizonTicks      int
	DiskHorizonTicks  int
	// TickInterval is the spacing between consecutive samples.
	TickInterval time.Duration
}

// DefaultOptions returns the stock forecaster settings.
func DefaultOptions() Options {
	return Options{
		SaturationSamples: DefaultSaturationSamples,
		HorizonTicks:      DefaultHorizonTicks,
		DiskHorizonTicks:  DefaultDiskHorizonTicks,
		TickInterval:      2 * time.Second,
	}
}

// Forecaster projects each resource independently.
type Forecaster struct {
	opts       Options
	thresholds models.Thresholds
	logger     *zap.Logger
}

// New creates a forecaster. Zero-valued options fall back to defaults.
func New(opts Options, thresholds models.Thresholds, logger *zap.Logger) *Forecaster {
	def := DefaultOptions()
	if opts.SaturationSamples < 2 {
		opts.SaturationSamples = def.SaturationSamples
	}
	if opts.HorizonTicks <= 0 {
		opts.HorizonTicks = def.HorizonTicks
	}
	if opts.DiskHorizonTicks <= 0 {
		opts.DiskHorizonTicks = def.DiskHorizonTicks
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if thresholds == nil {
		thresholds = models.DefaultThresholds()
	}
	return &Forecaster{
		opts:       opts,
		thresholds: thresholds.Clone(),
		logger:     logger.Named("forecast"),
	}
}

// SetThresholds replaces the thresholds used to grade projections.
// Not safe for use concurrently with PredictAll.
func (f *Forecaster) SetThresholds(t models.Thresholds) {
	f.thresholds = t.Clone()
}

// Predict projects series horizonTicks past its last point and grades the
// result. Series shorter than two points return the last value (or 0) with
// zero confidence.
func (f *Forecaster) Predict(resource string, series []float64, horizonTicks int) (models.ForecastResult, error) {
	res, _, err := f.predict(resource, series, horizonTicks)
	return res, err
}

func (f *Forecaster) predict(resource string, series []float64, horizonTicks int) (models.ForecastResult, trend, error) {
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.ForecastResult{}, trend{}, fmt.Errorf("%s: %w", resource, ErrInvalidSeries)
		}
	}
	if horizonTicks < 0 {
		return models.ForecastResult{}, trend{}, fmt.Errorf("%s: negative horizon %d", resource, horizonTicks)
	}

	res := models.ForecastResult{
		Resource:         resource,
		MinutesUntilFull: models.Unbounded,
	}

	n := len(series)
	if n < 2 {
		if n == 1 {
			res.PredictedValue = clampPercent(series[0])
		}
		f.Interpret(&res)
		return res, trend{}, nil
	}

	tr := fitTrend(series)
	x := float64(n-1) + float64(horizonTicks)
	res.PredictedValue = clampPercent(tr.at(x))
	res.Confidence = Confidence(n, f.opts.SaturationSamples)
	f.Interpret(&res)
	return res, tr, nil
}

// Confidence grows logarithmically with the number of samples and reaches 1
// at saturation.
func Confidence(n, saturation int) float64 {
	if n < 2 {
		return 0
	}
	if saturation < 2 {
		saturation = DefaultSaturationSamples
	}
	return math.Min(1, math.Log(float64(n))/math.Log(float64(saturation)))
}

// Interpret sets Risk and PredictedExhaustion on res from its projection.
func (f *Forecaster) Interpret(res *models.ForecastResult) {
	th := f.thresholds.For(res.Resource)
	switch {
	case res.Confidence < MinConfidence:
		res.Risk = models.RiskLow
		res.PredictedExhaustion = false
	case res.PredictedValue >= th.Critical:
		res.Risk = models.RiskHigh
		res.PredictedExhaustion = true
	case res.PredictedValue >= th.Warn:
		res.Risk = models.RiskMedium
		res.PredictedExhaustion = false
	default:
		res.Risk = models.RiskLow
		res.PredictedExhaustion = false
	}
}

// PredictDisk forecasts disk usage over the disk horizon and estimates the
// minutes until the volume is full. The percentage trend is used first; when
// it is flat or falling, the write rate against totalMB is used instead.
func (f *Forecaster) PredictDisk(series []float64, writeMBPerTick, totalMB float64) (models.ForecastResult, error) {
	res, tr, err := f.predict("disk", series, f.opts.DiskHorizonTicks)
	if err != nil {
		return res, err
	}
	if len(series) == 0 {
		return res, nil
	}

	tickMinutes := f.opts.TickInterval.Minutes()
	current := series[len(series)-1]
	if len(series) >= 2 {
		current = tr.at(float64(len(series) - 1))
	}
	remaining := 100 - current

	switch {
	case remaining <= 0:
		res.MinutesUntilFull = 0
	case tr.slope > 0:
		res.MinutesUntilFull = math.Min(remaining/tr.slope*tickMinutes, models.Unbounded)
	case writeMBPerTick > 0 && totalMB > 0:
		perTick := writeMBPerTick / totalMB * 100
		res.MinutesUntilFull = math.Min(remaining/perTick*tickMinutes, models.Unbounded)
	default:
		res.MinutesUntilFull = models.Unbounded
	}
	return res, nil
}

// PredictAll forecasts every known resource present in window. A resource
// whose forecast fails is logged and left out.
func (f *Forecaster) PredictAll(window []models.MetricSample) map[string]models.ForecastResult {
	out := make(map[string]models.ForecastResult, len(models.Resources))
	for _, r := range models.Resources {
		if !observed(window, r.Key) {
			continue
		}
		res, err := f.safePredict(r, window)
		if err != nil {
			f.logger.Warn("Forecast failed, omitting resource",
				zap.String("resource", r.Name),
				zap.Error(err))
			continue
		}
		out[r.Name] = res
	}
	return out
}

func (f *Forecaster) safePredict(r models.Resource, window []models.MetricSample) (res models.ForecastResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s: panic: %v", r.Name, p)
		}
	}()

	series := models.Series(window, r.Key)
	if r.Name == "disk" {
		writes := models.Series(window, models.KeyWriteMB)
		var total float64
		if last, ok := window[len(window)-1].Get(models.KeyDiskTotalMB); ok {
			total = last
		}
		return f.PredictDisk(series, mean(writes), total)
	}
	return f.Predict(r.Name, series, f.opts.HorizonTicks)
}

func observed(window []models.MetricSample, key string) bool {
	for _, s := range window {
		if _, ok := s.Get(key); ok {
			return true
		}
	}
	return false
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func clampPercent(v float64) float64 {
	return math.Min(math.Max(v, 0), 100)
}
