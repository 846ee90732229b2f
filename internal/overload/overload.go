// Package overload combines per-resource forecasts into a single
// system-wide overload verdict.
package overload

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vitalis-app/sentinel/internal/models"
)

// Tier weights and the weighted score a tier must exceed to count as a
// stressor.
const (
	criticalWeight = 1.0
	criticalBar    = 0.6
	warningWeight  = 0.5
	warningBar     = 0.3

	// imminentValue is the projected utilisation treated as already overloaded.
	imminentValue = 90.0

	ImminentMinutes = 2.0
	TrendingMinutes = 15.0
)

// Estimator grades forecasts against per-resource thresholds.
type Estimator struct {
	thresholds models.Thresholds
}

// New creates an estimator. Nil thresholds select the defaults.
func New(thresholds models.Thresholds) *Estimator {
	if thresholds == nil {
		thresholds = models.DefaultThresholds()
	}
	return &Estimator{thresholds: thresholds.Clone()}
}

// SetThresholds replaces the thresholds. Not safe for concurrent use with
// Estimate.
func (e *Estimator) SetThresholds(t models.Thresholds) {
	e.thresholds = t.Clone()
}

type stressor struct {
	resource   string
	score      float64
	confidence float64
	predicted  float64
}

// Estimate produces the overload verdict for forecasts.
func (e *Estimator) Estimate(forecasts map[string]models.ForecastResult) models.OverloadVerdict {
	verdict := models.OverloadVerdict{
		RiskLevel:                  models.LevelLow,
		PrimaryStressors:           []string{},
		EstimatedMinutesToOverload: models.Unbounded,
		StressIndex:                StressIndex(forecasts),
	}

	// iterate in a stable order so stressor lists are deterministic
	names := make([]string, 0, len(forecasts))
	for name := range forecasts {
		names = append(names, name)
	}
	sort.Strings(names)

	var stressors []stressor
	for _, name := range names {
		f := forecasts[name]
		th := e.thresholds.For(name)

		var score float64
		switch {
		case f.PredictedValue >= th.Critical:
			score = criticalWeight * f.Confidence
			if score <= criticalBar {
				continue
			}
		case f.PredictedValue >= th.Warn:
			score = warningWeight * f.Confidence
			if score <= warningBar {
				continue
			}
		default:
			continue
		}
		stressors = append(stressors, stressor{
			resource:   name,
			score:      score,
			confidence: f.Confidence,
			predicted:  f.PredictedValue,
		})
	}

	if len(stressors) == 0 {
		return verdict
	}

	var maxScore, sumConf float64
	imminent := false
	for _, s := range stressors {
		verdict.PrimaryStressors = append(verdict.PrimaryStressors, s.resource)
		if s.score > maxScore {
			maxScore = s.score
		}
		sumConf += s.confidence
		if s.predicted > imminentValue {
			imminent = true
		}
	}

	level := bucket(maxScore)
	if len(stressors) >= 2 {
		level = level.Escalate()
	}

	verdict.RiskLevel = level
	verdict.Confidence = sumConf / float64(len(stressors))
	if imminent {
		verdict.EstimatedMinutesToOverload = ImminentMinutes
	} else {
		verdict.EstimatedMinutesToOverload = TrendingMinutes
	}
	return verdict
}

func bucket(score float64) models.RiskLevel {
	switch {
	case score > 0.8:
		return models.LevelCritical
	case score > 0.6:
		return models.LevelHigh
	case score > 0.3:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}

// StressIndex is the mean projected utilisation across forecasts, or 0 when
// there are none.
func StressIndex(forecasts map[string]models.ForecastResult) float64 {
	if len(forecasts) == 0 {
		return 0
	}
	var sum float64
	for _, f := range forecasts {
		sum += f.PredictedValue
	}
	return sum / float64(len(forecasts))
}

// Summary renders a one-line operator description of v.
func Summary(v models.OverloadVerdict) string {
	switch v.RiskLevel {
	case models.LevelLow:
		return "No overload expected"
	case models.LevelMedium, models.LevelHigh, models.LevelCritical:
		return fmt.Sprintf("%s overload risk from %s in ~%.0f min (confidence %.0f%%)",
			strings.ToUpper(string(v.RiskLevel)),
			strings.Join(v.PrimaryStressors, ", "),
			v.EstimatedMinutesToOverload,
			v.Confidence*100)
	default:
		return "Unknown overload state"
	}
}
