package engine

import (
	"fmt"

	"github.com/ibs-source/logtag-forwarder/internal/batch"
	"github.com/ibs-source/logtag-forwarder/internal/config"
	"github.com/ibs-source/logtag-forwarder/internal/envelope"
	"github.com/ibs-source/logtag-forwarder/internal/extract"
	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/metrics"
	"github.com/ibs-source/logtag-forwarder/internal/tagmatch"
)

// Build wires an engine from configuration. When metricsHandler is not nil
// the sink is instrumented as well.
func Build(cfg *config.Config, sink batch.Sink, logger *log.Logger, metricsHandler *metrics.Handler) (*Engine, error) {
	shape, err := envelope.ParseShape(cfg.Engine.Shape)
	if err != nil {
		return nil, err
	}

	matcher, err := tagmatch.New(tagmatch.Kind(cfg.Engine.Matcher), cfg.Markers())
	if err != nil {
		return nil, fmt.Errorf("failed to create matcher: %w", err)
	}

	if metricsHandler != nil {
		sink = metricsHandler.InstrumentSink(sink)
	}
	acc, err := batch.NewAccumulator(cfg.Tags, sink, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create accumulator: %w", err)
	}

	extractor := extract.New(matcher, extract.Options{
		HealthCheckMarker: cfg.Engine.HealthCheckMarker,
		AppendNewline:     cfg.Engine.AppendNewline,
	}, logger)

	return New(
		envelope.NewDecoder(shape, logger),
		extractor,
		acc,
		Options{StreamFilter: cfg.Engine.StreamFilter, DebugRecords: cfg.Engine.DebugRecords},
		logger,
		metricsHandler,
	), nil
}
