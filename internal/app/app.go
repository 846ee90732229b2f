// Package app assembles the sentinel: collectors feed the event bus, a
// consumer persists samples, and the scheduler drives sampling, decision
// ticks and pruning.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitalis-app/sentinel/internal/anomaly"
	"github.com/vitalis-app/sentinel/internal/buffer"
	"github.com/vitalis-app/sentinel/internal/collector"
	"github.com/vitalis-app/sentinel/internal/config"
	"github.com/vitalis-app/sentinel/internal/eventbus"
	"github.com/vitalis-app/sentinel/internal/forecast"
	"github.com/vitalis-app/sentinel/internal/notifier"
	"github.com/vitalis-app/sentinel/internal/overload"
	"github.com/vitalis-app/sentinel/internal/pipeline"
	"github.com/vitalis-app/sentinel/internal/platform"
	"github.com/vitalis-app/sentinel/internal/scheduler"
	"github.com/vitalis-app/sentinel/internal/store"
	"github.com/vitalis-app/sentinel/internal/telemetry"
	"github.com/vitalis-app/sentinel/internal/throttle"
)

const (
	// writeTimeout bounds a single sample insert.
	writeTimeout = 5 * time.Second
	// drainTimeout bounds how long shutdown waits for queued notifications.
	drainTimeout = 10 * time.Second
)

// App owns every long-lived component.
type App struct {
	cfgPath string
	logger  *zap.Logger

	// cfg is replaced on every reload.
	mu  sync.Mutex
	cfg *config.Config

	store    *store.Store
	registry *collector.Registry
	bus      *eventbus.Bus
	throttle *throttle.Throttle
	pipeline *pipeline.Pipeline
	webhook  *notifier.Webhook
	outbox   *notifier.Queue
}

// New opens the store and builds the component graph. cfgPath, when set, is
// watched for changes while running.
func New(cfg *config.Config, cfgPath string, logger *zap.Logger) (*App, error) {
	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	a := &App{
		cfg:     cfg,
		cfgPath: cfgPath,
		logger:  logger,
		store:   st,
		bus:     eventbus.New(),
	}

	a.registry = collector.NewRegistry(logger)
	a.registry.Register(collector.NewCPUCollector(cfg.Collection.CPUWindow.Duration))
	a.registry.Register(collector.NewMemoryCollector())
	a.registry.Register(collector.NewDiskCollector(logger))
	a.registry.Register(collector.NewNetworkCollector())
	a.registry.Register(collector.NewGPUCollector(platform.New(), logger))

	notifiers := notifier.Multi{notifier.NewLogNotifier(logger)}
	if cfg.Notifications.WebhookURL != "" {
		var spool *buffer.Buffer
		if cfg.Notifications.SpoolDir != "" {
			spool, err = buffer.New(cfg.Notifications.SpoolDir, cfg.Notifications.SpoolMaxMB, logger)
			if err != nil {
				_ = st.Close()
				return nil, fmt.Errorf("opening notification spool: %w", err)
			}
		}
		a.webhook = notifier.NewWebhook(notifier.WebhookConfig{
			URL:        cfg.Notifications.WebhookURL,
			Token:      cfg.Notifications.Token,
			MaxRetries: cfg.Notifications.MaxRetries,
		}, spool, logger)
		notifiers = append(notifiers, a.webhook)
	}

	a.outbox = notifier.NewQueue(notifiers, notifier.DefaultQueueSize, logger)

	a.throttle = throttle.New(cfg.Notifications.Cooldown.Duration)
	for key, d := range cfg.Notifications.KeyCooldowns {
		a.throttle.SetKeyCooldown(key, d.Duration)
	}

	a.pipeline, err = pipeline.New(pipeline.Deps{
		Reader:    st,
		Anomalies: st,
		Scorer: anomaly.NewScorer(anomaly.Options{
			Trees:         cfg.Anomaly.Trees,
			SampleSize:    cfg.Anomaly.SampleSize,
			Seed:          cfg.Anomaly.Seed,
			Contamination: cfg.Anomaly.Contamination,
			Sensitivity:   cfg.Anomaly.Sensitivity,
		}),
		Forecaster: forecast.New(forecast.Options{
			SaturationSamples: cfg.Forecast.SaturationSamples,
			HorizonTicks:      cfg.Pipeline.HorizonTicks,
			DiskHorizonTicks:  cfg.Pipeline.DiskHorizonTicks,
			TickInterval:      cfg.Collection.Interval.Duration,
		}, cfg.Thresholds, logger),
		Estimator: overload.New(cfg.Thresholds),
		Throttle:  a.throttle,
		Notifier:  a.outbox,
		Processes: collector.NewProcessInspector(cfg.Notifications.TopProcesses),
	}, pipeline.Options{
		Window:    cfg.Pipeline.Window.Duration,
		MinRows:   cfg.Pipeline.MinRows,
		ScoreRows: cfg.Pipeline.ScoreRows,
	}, logger)
	if err != nil {
		_ = a.outbox.Close(context.Background())
		_ = st.Close()
		return nil, err
	}

	return a, nil
}

// Run starts every job and blocks until ctx is cancelled. Samples still on
// the bus are persisted before the store is closed.
func (a *App) Run(ctx context.Context) error {
	cfg := a.config()
	if a.webhook != nil {
		a.webhook.FlushSpool(ctx)
	}

	var wg sync.WaitGroup
	persisted := make(chan struct{})
	go func() {
		defer close(persisted)
		a.persist()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := telemetry.Serve(ctx, cfg.Metrics.Addr, a.logger); err != nil {
			a.logger.Error("Metrics endpoint failed", zap.Error(err))
		}
	}()

	if a.cfgPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := config.Watch(ctx, a.cfgPath, a.logger, a.Reconfigure); err != nil {
				a.logger.Warn("Config watching disabled", zap.Error(err))
			}
		}()
	}

	sched := scheduler.New(ctx, a.logger)
	sched.Every("sample", cfg.Collection.Interval.Duration, a.sample)
	sched.Every("decide", cfg.Pipeline.Interval.Duration, a.pipeline.Run)
	sched.Every("prune", cfg.Storage.PruneInterval.Duration, a.prune)

	a.logger.Info("Sentinel running",
		zap.Duration("sample_interval", cfg.Collection.Interval.Duration),
		zap.Duration("decide_interval", cfg.Pipeline.Interval.Duration),
		zap.Strings("jobs", sched.Jobs()))

	<-ctx.Done()
	sched.Wait()
	wg.Wait()

	a.bus.Close()
	<-persisted

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := a.outbox.Close(drainCtx); err != nil {
		a.logger.Warn("Pending notifications abandoned", zap.Error(err))
	}

	return a.store.Close()
}

// Reconfigure applies the settings that can change without a restart and
// keeps cfg as the current configuration.
func (a *App) Reconfigure(cfg *config.Config) {
	a.mu.Lock()
	prev := a.cfg
	a.cfg = cfg
	a.mu.Unlock()

	a.pipeline.Tune(pipeline.Tunables{
		Contamination: cfg.Anomaly.Contamination,
		Sensitivity:   cfg.Anomaly.Sensitivity,
		Thresholds:    cfg.Thresholds,
		Cooldown:      cfg.Notifications.Cooldown.Duration,
	})
	for key, d := range cfg.Notifications.KeyCooldowns {
		a.throttle.SetKeyCooldown(key, d.Duration)
	}
	for key := range prev.Notifications.KeyCooldowns {
		if _, ok := cfg.Notifications.KeyCooldowns[key]; !ok {
			a.throttle.SetKeyCooldown(key, 0)
		}
	}
	if cfg.Collection.Interval != prev.Collection.Interval ||
		cfg.Pipeline.Interval != prev.Pipeline.Interval ||
		cfg.Storage.PruneInterval != prev.Storage.PruneInterval ||
		cfg.Storage.DBPath != prev.Storage.DBPath {
		a.logger.Warn("Interval and storage changes take effect after restart")
	}
}

func (a *App) config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *App) sample(ctx context.Context) error {
	s := a.registry.Sample(ctx)
	if len(s.Values) == 0 {
		return errors.New("no collector produced a value")
	}
	if err := a.bus.Publish(eventbus.NewSampleEvent(s)); err != nil {
		return err
	}
	telemetry.EventBusDepth.Set(float64(a.bus.Len()))
	return nil
}

// persist drains the bus into the store until the bus is closed and empty.
func (a *App) persist() {
	for {
		ev, err := a.bus.Consume(context.Background())
		if err != nil {
			return
		}
		if ev.Sample == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err = a.store.Write(ctx, *ev.Sample)
		cancel()
		if err != nil {
			a.logger.Error("Failed to persist sample",
				zap.String("event", ev.ID),
				zap.Error(err))
			continue
		}
		telemetry.SamplesStoredTotal.Inc()
		telemetry.EventBusDepth.Set(float64(a.bus.Len()))
	}
}

func (a *App) prune(ctx context.Context) error {
	cutoff := time.Now().Add(-a.config().Retention())
	removed, err := a.store.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	if removed > 0 {
		a.logger.Info("Pruned old history",
			zap.Int64("rows", removed),
			zap.Time("cutoff", cutoff))
	}
	return nil
}
