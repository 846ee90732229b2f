// Package main is the entry point for the Vitalis sentinel.
// It loads configuration, wires the collection and decision pipeline, and
// runs as either a Windows service or a standalone foreground process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vitalis-app/sentinel/internal/app"
	"github.com/vitalis-app/sentinel/internal/config"
	"github.com/vitalis-app/sentinel/internal/service"
	"github.com/vitalis-app/sentinel/internal/store"
)

var (
	// version is set at build time via -ldflags.
	version = "dev"

	configPath  = flag.String("config", "", "Path to configuration file (default: search standard locations)")
	showVersion = flag.Bool("version", false, "Show version and exit")
	exportPath  = flag.String("export", "", "Write stored samples as CSV to this file (- for stdout) and exit")
	exportHours = flag.Int("export-hours", 24, "How many hours of history -export writes")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("vitalis-sentinel %s\n", version)
		os.Exit(0)
	}

	path := *configPath
	if path == "" {
		path = config.Locate()
	}

	cfg, warnings, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)
	defer logger.Sync()

	for _, w := range warnings {
		logger.Warn("Config value adjusted", zap.String("detail", w))
	}

	if *exportPath != "" {
		if err := export(cfg, *exportPath, time.Duration(*exportHours)*time.Hour); err != nil {
			logger.Fatal("Export failed", zap.Error(err))
		}
		return
	}

	logger.Info("Starting Vitalis Sentinel",
		zap.String("version", version),
		zap.String("config", path),
		zap.String("db", cfg.Storage.DBPath))

	if service.IsWindowsService() {
		logger.Info("Running as Windows service")
		svc := service.New(logger, func(ctx context.Context) {
			run(ctx, cfg, path, logger)
		})
		if err := svc.Run(); err != nil {
			logger.Fatal("Service failed", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received signal, shutting down",
			zap.String("signal", sig.String()))
		cancel()
	}()

	run(ctx, cfg, path, logger)
	logger.Info("Sentinel stopped")
}

// run builds the app and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, path string, logger *zap.Logger) {
	a, err := app.New(cfg, path, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	if err := a.Run(ctx); err != nil {
		logger.Error("Shutdown incomplete", zap.Error(err))
	}
}

func export(cfg *config.Config, dest string, window time.Duration) error {
	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	out := os.Stdout
	if dest != "-" {
		f, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer f.Close()
		out = f
	}

	n, err := st.ExportCSV(context.Background(), out, time.Now().Add(-window))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported %d samples\n", n)
	return nil
}

// initLogger creates a zap logger based on the configuration.
// It outputs to both console (human-readable) and optionally a rotated JSON log file.
func initLogger(cfg *config.Config) *zap.Logger {
	var level zapcore.Level
	switch cfg.Logging.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	cores := []zapcore.Core{consoleCore}

	if cfg.Logging.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(rotator),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...))
}
