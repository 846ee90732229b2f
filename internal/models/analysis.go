package models

import (
	"fmt"
	"time"
)

// Severity grades a single anomaly event.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityNone, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// Risk is the qualitative outcome of a single-resource forecast.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Valid reports whether r is a known risk.
func (r Risk) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// RiskLevel is the overall overload risk across all resources.
type RiskLevel string

const (
	LevelLow      RiskLevel = "low"
	LevelMedium   RiskLevel = "medium"
	LevelHigh     RiskLevel = "high"
	LevelCritical RiskLevel = "critical"
)

// Rank orders levels from 0 (low) to 3 (critical).
func (l RiskLevel) Rank() int {
	switch l {
	case LevelLow:
		return 0
	case LevelMedium:
		return 1
	case LevelHigh:
		return 2
	case LevelCritical:
		return 3
	default:
		return -1
	}
}

// Escalate returns the next level up. Low and critical are unchanged.
func (l RiskLevel) Escalate() RiskLevel {
	switch l {
	case LevelMedium:
		return LevelHigh
	case LevelHigh:
		return LevelCritical
	default:
		return l
	}
}

// Status is the aggregated health of the host.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Rank orders statuses from 0 (ok) to 2 (critical).
func (s Status) Rank() int {
	switch s {
	case StatusOK:
		return 0
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	default:
		return -1
	}
}

// AnomalyEvent is one resource whose anomaly score crossed the warning band.
type AnomalyEvent struct {
	Resource string   `json:"resource"`
	Score    int      `json:"score"`
	Severity Severity `json:"severity"`
}

// ForecastResult is the projection for one resource.
type ForecastResult struct {
	Resource            string  `json:"resource"`
	PredictedValue      float64 `json:"predicted_value"`
	Confidence          float64 `json:"confidence"`
	Risk                Risk    `json:"risk"`
	PredictedExhaustion bool    `json:"predicted_exhaustion"`
	MinutesUntilFull    float64 `json:"minutes_until_full"`
}

// OverloadVerdict is the system-wide overload assessment.
type OverloadVerdict struct {
	RiskLevel                  RiskLevel `json:"risk_level"`
	Confidence                 float64   `json:"confidence"`
	PrimaryStressors           []string  `json:"primary_stressors"`
	EstimatedMinutesToOverload float64   `json:"estimated_minutes_to_overload"`
	StressIndex                float64   `json:"stress_index"`
}

// HealthState is the folded status plus the resources that raised it.
type HealthState struct {
	OverallStatus Status   `json:"overall_status"`
	Contributors  []string `json:"contributors"`
}

// ActionType names a recommended action.
type ActionType string

const (
	ActionAnalyze         ActionType = "analyze"
	ActionNotify          ActionType = "notify"
	ActionSuggestFix      ActionType = "suggest_fix"
	ActionPreventOverload ActionType = "prevent_overload"
	ActionMonitorOverload ActionType = "monitor_overload"
)

// Urgency qualifies overload actions.
type Urgency string

const (
	UrgencyNone      Urgency = ""
	UrgencySoon      Urgency = "soon"
	UrgencyHigh      Urgency = "high"
	UrgencyImmediate Urgency = "immediate"
)

// Action is one recommendation attached to a decision.
type Action struct {
	Type                 ActionType `json:"type"`
	Reason               string     `json:"reason"`
	Urgency              Urgency    `json:"urgency,omitempty"`
	RequiresConfirmation bool       `json:"requires_confirmation"`
}

func (a Action) String() string {
	if a.Urgency != UrgencyNone {
		return fmt.Sprintf("%s(%s): %s", a.Type, a.Urgency, a.Reason)
	}
	return fmt.Sprintf("%s: %s", a.Type, a.Reason)
}

// Decision is the outcome of one pipeline run.
type Decision struct {
	ID           string    `json:"id"`
	Notify       bool      `json:"notify"`
	Actions      []Action  `json:"actions"`
	OverloadRisk RiskLevel `json:"overload_risk"`
}

// Threshold is the warn/critical utilisation pair for one resource.
type Threshold struct {
	Warn     float64 `yaml:"warn" json:"warn"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// Thresholds maps resource name to its threshold pair.
type Thresholds map[string]Threshold

// DefaultThreshold applies to resources without an explicit entry.
var DefaultThreshold = Threshold{Warn: 80, Critical: 90}

// DefaultThresholds returns the stock per-resource thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		"cpu":    {Warn: 75, Critical: 90},
		"memory": {Warn: 80, Critical: 95},
		"disk":   {Warn: 85, Critical: 95},
		"gpu":    {Warn: 85, Critical: 95},
	}
}

// For returns the threshold of resource, falling back to DefaultThreshold.
func (t Thresholds) For(resource string) Threshold {
	if th, ok := t[resource]; ok {
		return th
	}
	return DefaultThreshold
}

// Clone returns an independent copy.
func (t Thresholds) Clone() Thresholds {
	out := make(Thresholds, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Notification is an operator-facing message produced from a decision.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Actions   []string  `json:"actions"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
