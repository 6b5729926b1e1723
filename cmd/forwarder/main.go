// Package main starts the long running log tag forwarder.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ibs-source/logtag-forwarder/internal/config"
	"github.com/ibs-source/logtag-forwarder/internal/engine"
	"github.com/ibs-source/logtag-forwarder/internal/hotpath"
	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/metrics"
	"github.com/ibs-source/logtag-forwarder/internal/redis"
	"github.com/ibs-source/logtag-forwarder/internal/sink"
)

func run() int {
	logger := log.New()
	logger.Info("Starting log tag forwarder")

	cfg, err := loadAndLogConfig(logger)
	if err != nil {
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	out, eng, err := initializeEngine(ctx, cfg, logger, m)
	if err != nil {
		return 1
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Error("Error closing %s sink: %v", cfg.Sink.Kind, err)
		}
	}()

	startMetricsServer(ctx, cfg, m, logger)

	if cfg.Source.Mode == config.SourceFile {
		return runReplay(ctx, cfg, eng, logger)
	}

	redisClient, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Error("Failed to create Redis client: %v", err)
		return 1
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Error closing Redis client: %v", err)
		}
	}()
	logger.Info("Connected to Redis as consumer %s", redisClient.Consumer())

	hp := hotpath.New(redisClient, eng, cfg, logger, m)
	return runMainLoop(ctx, cancel, hp, cfg, logger)
}

func loadAndLogConfig(logger *log.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		return nil, err
	}

	logger.Info("Configuration loaded successfully")
	logger.Info("Engine: profile=%q shape=%s matcher=%s stream filter=%q",
		cfg.Engine.Profile, cfg.Engine.Shape, cfg.Engine.Matcher, cfg.Engine.StreamFilter)
	for _, tag := range cfg.Tags {
		logger.Info("Tag %s -> %s (threshold %d)", tag.Marker, tag.StreamName, tag.BatchThreshold)
	}
	logger.Info("Sink: %s, Source: %s", cfg.Sink.Kind, cfg.Source.Mode)
	return cfg, nil
}

func initializeEngine(ctx context.Context, cfg *config.Config, logger *log.Logger, m *metrics.Handler) (sink.Sink, *engine.Engine, error) {
	out, err := sink.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open %s sink: %v", cfg.Sink.Kind, err)
		return nil, nil, err
	}

	eng, err := engine.Build(cfg, out, logger, m)
	if err != nil {
		logger.Error("Failed to build engine: %v", err)
		_ = out.Close()
		return nil, nil, err
	}
	return out, eng, nil
}

func startMetricsServer(ctx context.Context, cfg *config.Config, m *metrics.Handler, logger *log.Logger) {
	if cfg.Pipeline.MetricsAddress == "" {
		return
	}
	go func() {
		if err := m.Serve(ctx, cfg.Pipeline.MetricsAddress, logger); err != nil {
			logger.Error("Metrics server stopped: %v", err)
		}
	}()
}

func runReplay(ctx context.Context, cfg *config.Config, eng *engine.Engine, logger *log.Logger) int {
	f, err := os.Open(cfg.Source.InputFile)
	if err != nil {
		logger.Error("Failed to open input file: %v", err)
		return 1
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := hotpath.Replay(ctx, f, eng, logger)
	logger.Info("Replayed %d events from %s (%d failed)", stats.Events, cfg.Source.InputFile, stats.Failed)
	if err != nil {
		logger.Error("Replay stopped: %v", err)
		return 1
	}
	return 0
}

func runMainLoop(ctx context.Context, cancel context.CancelFunc, hp *hotpath.HotPath, cfg *config.Config, logger *log.Logger) int {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan error, 1)
	go func() {
		done <- hp.Run(ctx)
	}()

	logger.Info("Hot path orchestrator started")

	select {
	case sig := <-sigChan:
		logger.Info("Received signal %v, initiating graceful shutdown", sig)
		cancel()
		return handleGracefulShutdown(done, cfg.Pipeline.ShutdownTimeout, logger)

	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Hot path error: %v", err)
			return 1
		}
		return 0
	}
}

// handleGracefulShutdown waits for the in-flight cycle to finish
func handleGracefulShutdown(done <-chan error, timeout time.Duration, logger *log.Logger) int {
	select {
	case <-done:
		logger.Info("Graceful shutdown completed")
		return 0
	case <-time.After(timeout):
		logger.Error("Shutdown timeout exceeded")
		return 1
	}
}

func main() {
	// Keep main minimal to ensure defers in run() execute correctly.
	os.Exit(run())
}
