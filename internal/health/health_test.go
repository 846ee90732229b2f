package health

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitalis-app/sentinel/internal/models"
)

func TestAggregateOKWhenQuiet(t *testing.T) {
	state := Aggregate(nil, map[string]models.ForecastResult{"cpu": {Resource: "cpu"}})
	assert.Equal(t, models.StatusOK, state.OverallStatus)
	assert.Empty(t, state.Contributors)
}

func TestWarningAnomaly(t *testing.T) {
	state := Aggregate([]models.AnomalyEvent{
		{Resource: "cpu_percent", Score: 55, Severity: models.SeverityWarning},
	}, nil)
	assert.Equal(t, models.StatusWarning, state.OverallStatus)
	assert.Equal(t, []string{"cpu_percent_anomaly"}, state.Contributors)
}

func TestCriticalIsNeverDowngraded(t *testing.T) {
	state := Aggregate([]models.AnomalyEvent{
		{Resource: "disk_percent", Score: 80, Severity: models.SeverityCritical},
		{Resource: "cpu_percent", Score: 55, Severity: models.SeverityWarning},
		{Resource: "gpu_percent", Score: 10, Severity: models.SeverityNone},
	}, nil)
	assert.Equal(t, models.StatusCritical, state.OverallStatus)
	assert.Equal(t, []string{"disk_percent_anomaly"}, state.Contributors)
}

func TestWarningBeforeCriticalStillContributes(t *testing.T) {
	state := Aggregate([]models.AnomalyEvent{
		{Resource: "cpu_percent", Score: 55, Severity: models.SeverityWarning},
		{Resource: "disk_percent", Score: 80, Severity: models.SeverityCritical},
	}, nil)
	assert.Equal(t, models.StatusCritical, state.OverallStatus)
	assert.Equal(t, []string{"cpu_percent_anomaly", "disk_percent_anomaly"}, state.Contributors)
}

func TestExhaustionForcesCritical(t *testing.T) {
	state := Aggregate(nil, map[string]models.ForecastResult{
		"cpu":    {Resource: "cpu"},
		"memory": {Resource: "memory", PredictedExhaustion: true},
	})
	assert.Equal(t, models.StatusCritical, state.OverallStatus)
	assert.Equal(t, []string{"memory_forecast"}, state.Contributors)
}
