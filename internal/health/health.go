// Package health folds anomaly events and forecasts into one host status.
package health

import (
	"sort"

	"github.com/vitalis-app/sentinel/internal/models"
)

// Aggregate returns the combined status. Escalation only moves upwards:
// once critical, later inputs cannot lower it.
func Aggregate(anomalies []models.AnomalyEvent, forecasts map[string]models.ForecastResult) models.HealthState {
	state := models.HealthState{
		OverallStatus: models.StatusOK,
		Contributors:  []string{},
	}

	for _, a := range anomalies {
		switch a.Severity {
		case models.SeverityCritical:
			state.OverallStatus = models.StatusCritical
			state.Contributors = append(state.Contributors, a.Resource+"_anomaly")
		case models.SeverityWarning:
			// a warning after critical neither escalates nor contributes
			if state.OverallStatus != models.StatusCritical {
				state.OverallStatus = models.StatusWarning
				state.Contributors = append(state.Contributors, a.Resource+"_anomaly")
			}
		case models.SeverityNone:
		}
	}

	for _, r := range orderedResources(forecasts) {
		if forecasts[r].PredictedExhaustion {
			state.OverallStatus = models.StatusCritical
			state.Contributors = append(state.Contributors, r+"_forecast")
		}
	}

	return state
}

// orderedResources lists forecast keys with known resources first, in their
// canonical order, followed by any others sorted by name.
func orderedResources(forecasts map[string]models.ForecastResult) []string {
	out := make([]string, 0, len(forecasts))
	seen := make(map[string]bool, len(forecasts))
	for _, r := range models.Resources {
		if _, ok := forecasts[r.Name]; ok {
			out = append(out, r.Name)
			seen[r.Name] = true
		}
	}
	var extra []string
	for name := range forecasts {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
