// Package main runs the forwarder as a CloudWatch Logs subscription Lambda.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/ibs-source/logtag-forwarder/internal/config"
	"github.com/ibs-source/logtag-forwarder/internal/engine"
	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/sink"
)

func main() {
	logger := log.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	out, err := sink.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open %s sink: %v", cfg.Sink.Kind, err)
		os.Exit(1)
	}

	eng, err := engine.Build(cfg, out, logger, nil)
	if err != nil {
		logger.Error("Failed to build engine: %v", err)
		os.Exit(1)
	}

	logger.Info("Engine ready: profile=%q sink=%s tags=%d", cfg.Engine.Profile, cfg.Sink.Kind, len(cfg.Tags))
	h := &handler{engine: eng, log: logger}
	lambda.Start(h.Handle)
}
