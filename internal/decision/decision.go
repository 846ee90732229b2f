// Package decision maps a health assessment and overload verdict to a
// notification decision and recommended actions.
package decision

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vitalis-app/sentinel/internal/models"
)

// Decide builds the decision for one pipeline run. Apart from the generated
// ID it depends only on its inputs.
func Decide(
	health models.HealthState,
	anomalies []models.AnomalyEvent,
	forecasts map[string]models.ForecastResult,
	verdict models.OverloadVerdict,
) models.Decision {
	d := models.Decision{
		ID:           uuid.NewString(),
		Actions:      []models.Action{},
		OverloadRisk: verdict.RiskLevel,
	}

	switch health.OverallStatus {
	case models.StatusOK:
	case models.StatusWarning:
		d.Notify = true
		d.Actions = append(d.Actions, models.Action{
			Type:   models.ActionAnalyze,
			Reason: "Unusual behaviour in " + describe(health.Contributors),
		})
	case models.StatusCritical:
		d.Notify = true
		reason := "Critical condition in " + describe(health.Contributors)
		d.Actions = append(d.Actions,
			models.Action{Type: models.ActionNotify, Reason: reason},
			models.Action{Type: models.ActionSuggestFix, Reason: fixHint(anomalies, forecasts)},
		)
	}

	switch verdict.RiskLevel {
	case models.LevelHigh, models.LevelCritical:
		urgency := models.UrgencyHigh
		if verdict.RiskLevel == models.LevelCritical {
			urgency = models.UrgencyImmediate
		}
		d.Notify = true
		d.Actions = append(d.Actions, models.Action{
			Type:    models.ActionPreventOverload,
			Reason:  overloadReason(verdict),
			Urgency: urgency,
		})
	case models.LevelMedium:
		d.Notify = true
		d.Actions = append(d.Actions, models.Action{
			Type:    models.ActionMonitorOverload,
			Reason:  overloadReason(verdict),
			Urgency: models.UrgencySoon,
		})
	case models.LevelLow:
	}

	return d
}

func describe(contributors []string) string {
	if len(contributors) == 0 {
		return "system metrics"
	}
	return strings.Join(contributors, ", ")
}

// fixHint names the resource most worth investigating: an exhausting
// resource first, otherwise the highest scoring anomaly.
func fixHint(anomalies []models.AnomalyEvent, forecasts map[string]models.ForecastResult) string {
	for _, r := range models.Resources {
		if f, ok := forecasts[r.Name]; ok && f.PredictedExhaustion {
			return fmt.Sprintf("Free %s: projected to reach %.0f%%", r.Name, f.PredictedValue)
		}
	}
	best := -1
	for i, a := range anomalies {
		if best < 0 || a.Score > anomalies[best].Score {
			best = i
		}
	}
	if best >= 0 {
		return fmt.Sprintf("Inspect processes driving %s (score %d)", anomalies[best].Resource, anomalies[best].Score)
	}
	return "Inspect top resource consumers"
}

func overloadReason(v models.OverloadVerdict) string {
	return fmt.Sprintf("Overload risk %s from %s within ~%.0f min",
		v.RiskLevel, describe(v.PrimaryStressors), v.EstimatedMinutesToOverload)
}
