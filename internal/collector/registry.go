package collector

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitalis-app/sentinel/internal/models"
)

// Registry holds the registered collectors and merges their output into
// samples.
type Registry struct {
	collectors []Collector
	logger     *zap.Logger
	now        func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		collectors: make([]Collector, 0),
		logger:     logger.Named("collector"),
		now:        time.Now,
	}
}

// Register adds c if it is available on this platform.
func (r *Registry) Register(c Collector) {
	if c.IsAvailable() {
		r.collectors = append(r.collectors, c)
		r.logger.Info("Registered collector", zap.String("name", c.Name()))
	} else {
		r.logger.Warn("Collector not available, skipping", zap.String("name", c.Name()))
	}
}

// Sample runs every collector concurrently and merges their records into a
// single sample. A failing collector is logged and its keys are omitted.
func (r *Registry) Sample(ctx context.Context) models.MetricSample {
	ts := r.now().UTC()
	merged := make(map[string]float64)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, c := range r.collectors {
		wg.Add(1)
		go func(col Collector) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("Collector panicked",
						zap.String("collector", col.Name()),
						zap.Any("panic", p))
				}
			}()

			values, err := col.Collect(ctx)
			if err != nil {
				r.logger.Warn("Collection failed",
					zap.String("collector", col.Name()),
					zap.Error(err))
				return
			}
			mu.Lock()
			for k, v := range values {
				merged[k] = v
			}
			mu.Unlock()
		}(c)
	}

	wg.Wait()
	return models.MetricSample{Timestamp: ts, Values: merged}
}

// Collectors returns a copy of all registered collectors.
func (r *Registry) Collectors() []Collector {
	result := make([]Collector, len(r.collectors))
	copy(result, r.collectors)
	return result
}
