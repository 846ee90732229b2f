package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDelay coalesces the burst of events editors emit for one save.
const reloadDelay = 200 * time.Millisecond

// Watch reloads path whenever it is written or replaced and passes the new
// configuration to fn. The parent directory is watched so editors that save
// via rename are still seen. A file that fails to parse is logged and the
// previous configuration stays in effect. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, logger *zap.Logger, fn func(*Config)) error {
	if path == "" {
		return fmt.Errorf("config: nothing to watch")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	logger = logger.Named("config")
	logger.Info("Watching config file", zap.String("path", abs))

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce = time.After(reloadDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error", zap.Error(err))

		case <-debounce:
			debounce = nil
			cfg, warnings, err := Load(abs)
			if err != nil {
				logger.Error("Config reload failed, keeping previous settings", zap.Error(err))
				continue
			}
			for _, w := range warnings {
				logger.Warn("Config value adjusted", zap.String("detail", w))
			}
			logger.Info("Config reloaded")
			fn(cfg)
		}
	}
}
