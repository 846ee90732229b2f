// Package pipeline runs one decision tick: read the recent window, score
// anomalies, forecast, assess overload, decide, and notify.
//
// A Pipeline owns the stateful normalizer and scorer. Ticks never run
// concurrently; a tick that arrives while another is in flight is skipped.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitalis-app/sentinel/internal/anomaly"
	"github.com/vitalis-app/sentinel/internal/decision"
	"github.com/vitalis-app/sentinel/internal/features"
	"github.com/vitalis-app/sentinel/internal/forecast"
	"github.com/vitalis-app/sentinel/internal/health"
	"github.com/vitalis-app/sentinel/internal/models"
	"github.com/vitalis-app/sentinel/internal/normalize"
	"github.com/vitalis-app/sentinel/internal/notifier"
	"github.com/vitalis-app/sentinel/internal/overload"
	"github.com/vitalis-app/sentinel/internal/telemetry"
	"github.com/vitalis-app/sentinel/internal/throttle"
)

// NotifyKey is the throttle key for pipeline notifications.
const NotifyKey = "system"

// Skip reasons reported in Report.SkipReason.
const (
	SkipBusy             = "busy"
	SkipInsufficientData = "insufficient_data"
)

// Reader supplies the recent sample window, oldest first.
type Reader interface {
	ReadRecent(ctx context.Context, window time.Duration) ([]models.MetricSample, error)
}

// AnomalyWriter persists emitted anomaly events.
type AnomalyWriter interface {
	WriteAnomalies(ctx context.Context, ts time.Time, events []models.AnomalyEvent) error
}

// ProcessLister names the heaviest processes for fix suggestions.
type ProcessLister interface {
	TopProcesses(ctx context.Context, by string) ([]models.ProcessInfo, error)
}

// Options configures a Pipeline.
type Options struct {
	Window  time.Duration
	MinRows int
	// ScoreRows is how many of the newest rows are checked for anomalies.
	ScoreRows int
}

// DefaultOptions returns the stock pipeline settings.
func DefaultOptions() Options {
	return Options{
		Window:    10 * time.Minute,
		MinRows:   anomaly.MinRows,
		ScoreRows: 5,
	}
}

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Reader     Reader
	Anomalies  AnomalyWriter // optional
	Scorer     *anomaly.Scorer
	Forecaster *forecast.Forecaster
	Estimator  *overload.Estimator
	Throttle   *throttle.Throttle
	// Notifier is called while the tick holds its lock. Transports that
	// can block belong behind a notifier.Queue.
	Notifier   notifier.Notifier
	Processes  ProcessLister // optional
}

// Tunables are the settings that may change while running.
type Tunables struct {
	Contamination float64
	Sensitivity   float64
	Thresholds    models.Thresholds
	Cooldown      time.Duration
}

// Report describes the outcome of one tick.
type Report struct {
	Skipped    bool
	SkipReason string
	Rows       int
	Scores     []int
	Anomalies  []models.AnomalyEvent
	Forecasts  map[string]models.ForecastResult
	Verdict    models.OverloadVerdict
	Health     models.HealthState
	Decision   models.Decision
	Notified   bool
	Throttled  bool
}

// Pipeline is the single owner of decision state.
type Pipeline struct {
	mu sync.Mutex

	opts       Options
	deps       Deps
	normalizer *normalize.Normalizer
	logger     *zap.Logger
}

// New creates a pipeline.
func New(deps Deps, opts Options, logger *zap.Logger) (*Pipeline, error) {
	switch {
	case deps.Reader == nil:
		return nil, fmt.Errorf("pipeline: reader is required")
	case deps.Scorer == nil, deps.Forecaster == nil, deps.Estimator == nil:
		return nil, fmt.Errorf("pipeline: scorer, forecaster and estimator are required")
	case deps.Throttle == nil || deps.Notifier == nil:
		return nil, fmt.Errorf("pipeline: throttle and notifier are required")
	}

	def := DefaultOptions()
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	if opts.MinRows < anomaly.MinRows {
		opts.MinRows = anomaly.MinRows
	}
	if opts.ScoreRows <= 0 {
		opts.ScoreRows = def.ScoreRows
	}

	return &Pipeline{
		opts:       opts,
		deps:       deps,
		normalizer: normalize.New(),
		logger:     logger.Named("pipeline"),
	}, nil
}

// Run is the scheduled job entry point.
func (p *Pipeline) Run(ctx context.Context) error {
	_, err := p.Tick(ctx)
	return err
}

// Tick runs one decision pass and reports what happened. Insufficient data
// and an in-flight tick are reported as skips, not errors.
func (p *Pipeline) Tick(ctx context.Context) (Report, error) {
	if !p.mu.TryLock() {
		p.logger.Warn("Previous tick still running, skipping")
		telemetry.PipelineSkippedTotal.WithLabelValues(SkipBusy).Inc()
		return Report{Skipped: true, SkipReason: SkipBusy}, nil
	}
	defer p.mu.Unlock()

	window, err := p.deps.Reader.ReadRecent(ctx, p.opts.Window)
	if err != nil {
		return Report{}, fmt.Errorf("read window: %w", err)
	}
	if len(window) < p.opts.MinRows {
		p.logger.Debug("Not enough history, skipping",
			zap.Int("rows", len(window)),
			zap.Int("min_rows", p.opts.MinRows))
		telemetry.PipelineSkippedTotal.WithLabelValues(SkipInsufficientData).Inc()
		return Report{Skipped: true, SkipReason: SkipInsufficientData, Rows: len(window)}, nil
	}

	rep := Report{Rows: len(window)}

	matrix := p.normalizer.FitTransform(features.Batch(window))
	p.deps.Scorer.Fit(matrix)
	rep.Scores = p.deps.Scorer.Score(matrix)

	start := len(matrix) - p.opts.ScoreRows
	if start < 0 {
		start = 0
	}
	rep.Anomalies = strongestPerFeature(anomaly.Classify(rep.Scores[start:], dominantFeatures(matrix[start:])))

	rep.Forecasts = p.deps.Forecaster.PredictAll(window)
	rep.Verdict = p.deps.Estimator.Estimate(rep.Forecasts)
	rep.Health = health.Aggregate(rep.Anomalies, rep.Forecasts)
	rep.Decision = decision.Decide(rep.Health, rep.Anomalies, rep.Forecasts, rep.Verdict)

	p.record(rep)

	if rep.Decision.Notify {
		if p.deps.Throttle.Allow(NotifyKey) {
			rep.Notified = true
			p.dispatch(ctx, rep, window[len(window)-1].Timestamp)
		} else {
			rep.Throttled = true
			telemetry.NotificationsTotal.WithLabelValues("throttled").Inc()
		}
	}

	if p.deps.Anomalies != nil && len(rep.Anomalies) > 0 {
		if err := p.deps.Anomalies.WriteAnomalies(ctx, window[len(window)-1].Timestamp, rep.Anomalies); err != nil {
			p.logger.Error("Failed to persist anomalies", zap.Error(err))
		}
	}

	p.logger.Info("Decision tick",
		zap.Int("rows", rep.Rows),
		zap.String("health", string(rep.Health.OverallStatus)),
		zap.String("overload", string(rep.Verdict.RiskLevel)),
		zap.Int("anomalies", len(rep.Anomalies)),
		zap.Bool("notified", rep.Notified),
		zap.Bool("throttled", rep.Throttled))
	return rep, nil
}

// Tune applies new runtime settings. It waits for any in-flight tick.
func (p *Pipeline) Tune(t Tunables) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deps.Scorer.Tune(t.Contamination, t.Sensitivity)
	if t.Thresholds != nil {
		p.deps.Forecaster.SetThresholds(t.Thresholds)
		p.deps.Estimator.SetThresholds(t.Thresholds)
	}
	p.deps.Throttle.SetCooldown(t.Cooldown)

	p.logger.Info("Pipeline settings updated",
		zap.Float64("contamination", t.Contamination),
		zap.Float64("sensitivity", t.Sensitivity),
		zap.Duration("cooldown", t.Cooldown))
}

func (p *Pipeline) dispatch(ctx context.Context, rep Report, ts time.Time) {
	n := models.Notification{
		ID:        rep.Decision.ID,
		Title:     "Sentinel: " + strings.ToUpper(string(rep.Health.OverallStatus)),
		Message:   message(rep) + p.topProcesses(ctx, rep),
		Actions:   decision.Commands(rep.Decision.Actions),
		Status:    rep.Health.OverallStatus,
		Timestamp: ts,
	}
	if err := p.deps.Notifier.Notify(ctx, n); err != nil {
		telemetry.NotificationsTotal.WithLabelValues("failed").Inc()
		p.logger.Error("Notification failed", zap.String("id", n.ID), zap.Error(err))
		return
	}
	telemetry.NotificationsTotal.WithLabelValues("dispatched").Inc()
}

// topProcesses lists the heaviest processes when the decision suggests a
// fix, ranked by CPU if CPU contributed and by memory otherwise.
func (p *Pipeline) topProcesses(ctx context.Context, rep Report) string {
	if p.deps.Processes == nil || !hasAction(rep.Decision, models.ActionSuggestFix) {
		return ""
	}
	by := "memory"
	for _, c := range rep.Health.Contributors {
		if strings.HasPrefix(c, "cpu") {
			by = "cpu"
			break
		}
	}

	procs, err := p.deps.Processes.TopProcesses(ctx, by)
	if err != nil {
		p.logger.Warn("Failed to list top processes", zap.Error(err))
		return ""
	}
	if len(procs) == 0 {
		return ""
	}
	parts := make([]string, len(procs))
	for i, pr := range procs {
		parts[i] = fmt.Sprintf("%s (pid %d, cpu %.0f%%, mem %.0f%%)", pr.Name, pr.PID, pr.CPU, pr.Memory)
	}
	return ". Top processes by " + by + ": " + strings.Join(parts, ", ")
}

func hasAction(d models.Decision, t models.ActionType) bool {
	for _, a := range d.Actions {
		if a.Type == t {
			return true
		}
	}
	return false
}

func (p *Pipeline) record(rep Report) {
	telemetry.HealthStatus.Set(float64(rep.Health.OverallStatus.Rank()))
	telemetry.OverloadRisk.Set(float64(rep.Verdict.RiskLevel.Rank()))
	for _, a := range rep.Anomalies {
		telemetry.AnomaliesTotal.WithLabelValues(string(a.Severity)).Inc()
	}
}

func message(rep Report) string {
	var parts []string
	for _, a := range rep.Decision.Actions {
		parts = append(parts, a.Reason)
	}
	if rep.Verdict.RiskLevel != models.LevelLow {
		parts = append(parts, overload.Summary(rep.Verdict))
	}
	if len(parts) == 0 {
		return "System metrics changed"
	}
	return strings.Join(parts, ". ")
}

// dominantFeatures names each standardised row by the feature furthest from
// its mean.
func dominantFeatures(rows [][]float64) []string {
	names := make([]string, len(rows))
	for i, row := range rows {
		best, bestAbs := 0, -1.0
		for j, z := range row {
			if a := math.Abs(z); a > bestAbs {
				best, bestAbs = j, a
			}
		}
		names[i] = features.Order[best]
	}
	return names
}

// strongestPerFeature keeps the highest scoring event per resource, in order
// of first appearance.
func strongestPerFeature(events []models.AnomalyEvent) []models.AnomalyEvent {
	idx := make(map[string]int, len(events))
	out := make([]models.AnomalyEvent, 0, len(events))
	for _, e := range events {
		if i, ok := idx[e.Resource]; ok {
			if e.Score > out[i].Score {
				out[i] = e
			}
			continue
		}
		idx[e.Resource] = len(out)
		out = append(out, e)
	}
	return out
}
