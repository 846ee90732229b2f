// Package anomaly scores feature rows with an isolation forest and turns
// the scores into severity-graded events.
package anomaly

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/vitalis-app/sentinel/internal/models"
)

// Model defaults.
const (
	DefaultTrees         = 100
	DefaultSampleSize    = 256
	DefaultSeed          = 42
	DefaultContamination = 0.05
	DefaultSensitivity   = 1.0

	MinContamination = 0.01
	MaxContamination = 0.5

	// MinRows is the smallest window the scorer will fit on.
	MinRows = 5
)

// Score bands.
const (
	WarningScore  = 50
	CriticalScore = 70
)

// Options configures a Scorer.
type Options struct {
	Trees         int
	SampleSize    int
	Seed          int64
	Contamination float64
	Sensitivity   float64
}

// DefaultOptions returns the stock model settings.
func DefaultOptions() Options {
	return Options{
		Trees:         DefaultTrees,
		SampleSize:    DefaultSampleSize,
		Seed:          DefaultSeed,
		Contamination: DefaultContamination,
		Sensitivity:   DefaultSensitivity,
	}
}

// Scorer wraps a forest with the unfit -> fit lifecycle. Once fitted it
// stays fitted; later fits replace the model.
type Scorer struct {
	mu     sync.Mutex
	opts   Options
	forest *Forest
	fitted bool
	offset float64
}

// NewScorer returns an unfit scorer.
func NewScorer(opts Options) *Scorer {
	s := &Scorer{}
	s.opts = opts
	s.opts.Contamination = ClampContamination(opts.Contamination)
	s.opts.Sensitivity = clampSensitivity(opts.Sensitivity)
	return s
}

// ClampContamination bounds c to [MinContamination, MaxContamination].
// Zero or NaN selects the default.
func ClampContamination(c float64) float64 {
	if c == 0 || math.IsNaN(c) {
		return DefaultContamination
	}
	return math.Min(math.Max(c, MinContamination), MaxContamination)
}

func clampSensitivity(s float64) float64 {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return DefaultSensitivity
	}
	return s
}

// Tune updates contamination and sensitivity. Contamination takes effect on
// the next Fit.
func (s *Scorer) Tune(contamination, sensitivity float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Contamination = ClampContamination(contamination)
	s.opts.Sensitivity = clampSensitivity(sensitivity)
}

// Settings returns the active contamination and sensitivity.
func (s *Scorer) Settings() (contamination, sensitivity float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.Contamination, s.opts.Sensitivity
}

// Fit trains a new forest on matrix. Fewer than MinRows rows is a no-op and
// returns false.
func (s *Scorer) Fit(matrix [][]float64) bool {
	if len(matrix) < MinRows {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	forest := NewForest(s.opts.Trees, s.opts.SampleSize, s.opts.Seed)
	forest.Fit(matrix)

	train := make([]float64, len(matrix))
	for i, row := range matrix {
		train[i] = forest.Score(row)
	}

	s.forest = forest
	s.offset = quantile(train, 1-s.opts.Contamination)
	s.fitted = true
	return true
}

// Fitted reports whether the scorer has been trained.
func (s *Scorer) Fitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fitted
}

// Offset is the raw score above which a training row counts as an outlier.
func (s *Scorer) Offset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Raw returns the forest score of each row minus the contamination offset.
// Positive values are outliers. An unfit scorer returns zeros.
func (s *Scorer) Raw(matrix [][]float64) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw(matrix)
}

func (s *Scorer) raw(matrix [][]float64) []float64 {
	out := make([]float64, len(matrix))
	if !s.fitted {
		return out
	}
	for i, row := range matrix {
		out[i] = s.forest.Score(row) - s.offset
	}
	return out
}

// Score maps each row to an integer in [0, 100]. Raw measures are min-max
// scaled across the batch, multiplied by the sensitivity and clamped.
func (s *Scorer) Score(matrix [][]float64) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	scores := make([]int, len(matrix))
	if !s.fitted || len(matrix) == 0 {
		return scores
	}

	raw := s.raw(matrix)
	lo, hi := raw[0], raw[0]
	for _, v := range raw[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo + 1e-6

	for i, v := range raw {
		scaled := (v - lo) / span * 100 * s.opts.Sensitivity
		scores[i] = int(math.Min(math.Max(scaled, 0), 100))
	}
	return scores
}

// Detect scores matrix and classifies the result against names.
func (s *Scorer) Detect(matrix [][]float64, names []string) []models.AnomalyEvent {
	return Classify(s.Score(matrix), names)
}

// Classify emits an event for every score at or above WarningScore.
// names[i] labels scores[i]; unlabeled rows are named by index.
func Classify(scores []int, names []string) []models.AnomalyEvent {
	var events []models.AnomalyEvent
	for i, score := range scores {
		sev := SeverityFor(score)
		if sev == models.SeverityNone {
			continue
		}
		name := fmt.Sprintf("row_%d", i)
		if i < len(names) {
			name = names[i]
		}
		events = append(events, models.AnomalyEvent{
			Resource: name,
			Score:    score,
			Severity: sev,
		})
	}
	return events
}

// SeverityFor grades a single score.
func SeverityFor(score int) models.Severity {
	switch {
	case score >= CriticalScore:
		return models.SeverityCritical
	case score >= WarningScore:
		return models.SeverityWarning
	default:
		return models.SeverityNone
	}
}

// quantile returns the q-quantile of values using linear interpolation.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
