// Package engine drives one processing cycle: decode an envelope, extract the
// tagged payloads of its lines into per-tag batches, then flush every batch.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ibs-source/logtag-forwarder/internal/batch"
	"github.com/ibs-source/logtag-forwarder/internal/extract"
	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/message"
	"github.com/ibs-source/logtag-forwarder/internal/metrics"
)

// Cycle results reported to metrics
const (
	ResultSuccess     = "success"
	ResultEmpty       = "empty"
	ResultFiltered    = "filtered"
	ResultDecodeError = "decode_error"
)

// Decoder turns delivery bytes into an envelope
type Decoder interface {
	Decode(data []byte) (*message.Envelope, error)
}

// Options tune the cycle
type Options struct {
	// StreamFilter restricts processing to envelopes from this log stream.
	// Empty disables the filter.
	StreamFilter string
	// DebugRecords logs every accepted record at info level
	DebugRecords bool
}

// Report summarizes one cycle
type Report struct {
	CycleID          string
	LogGroup         string
	LogStream        string
	Result           string
	Lines            int
	Accepted         int
	Invalid          int
	HealthChecks     int
	Unmatched        int
	ThresholdFlushes int
	SinkFailures     int
	Retained         int
}

// Engine owns the accumulator state of one host. Cycles are serialized, so
// batches are only ever mutated in line order by the cycle that owns them.
type Engine struct {
	mu        sync.Mutex
	decoder   Decoder
	extractor *extract.Extractor
	acc       *batch.Accumulator
	opts      Options
	log       *log.Logger
	metrics   *metrics.Handler
}

// New assembles an engine. metricsHandler may be nil.
func New(
	decoder Decoder,
	extractor *extract.Extractor,
	acc *batch.Accumulator,
	opts Options,
	logger *log.Logger,
	metricsHandler *metrics.Handler,
) *Engine {
	return &Engine{
		decoder:   decoder,
		extractor: extractor,
		acc:       acc,
		opts:      opts,
		log:       logger,
		metrics:   metricsHandler,
	}
}

// Run processes one delivery. A nil error means the cycle succeeded; sink
// rejections do not fail the cycle, their records stay pending for the next
// flush. A *envelope.DecodeError aborts the cycle before anything is flushed.
func (e *Engine) Run(ctx context.Context, data []byte) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	report := &Report{CycleID: uuid.NewString()}
	defer func() {
		if e.metrics != nil {
			e.metrics.ObserveCycle(report.Result, time.Since(start))
		}
	}()

	if len(bytes.TrimSpace(data)) == 0 {
		report.Result = ResultEmpty
		e.log.Debug("Cycle %s: empty delivery, nothing to do", report.CycleID)
		return report, nil
	}

	env, err := e.decoder.Decode(data)
	if err != nil {
		report.Result = ResultDecodeError
		return report, fmt.Errorf("cycle %s: %w", report.CycleID, err)
	}
	report.LogGroup = env.LogGroup
	report.LogStream = env.LogStream

	if e.opts.StreamFilter != "" && env.LogStream != e.opts.StreamFilter {
		report.Result = ResultFiltered
		e.log.DebugWithFields(logrus.Fields{
			"cycle":      report.CycleID,
			"log_stream": env.LogStream,
			"filter":     e.opts.StreamFilter,
		}, "Skipping envelope from another log stream")
		return report, nil
	}

	for _, line := range env.Lines {
		e.processLine(ctx, line, report)
	}

	if err := e.acc.FlushAll(ctx); err != nil {
		report.SinkFailures += countErrors(err)
	}

	for _, tag := range e.acc.Tags() {
		report.Retained += e.acc.Pending(tag.Marker)
	}
	report.Result = ResultSuccess
	e.recordLines(report)
	e.logReport(report)
	return report, nil
}

func (e *Engine) processLine(ctx context.Context, line message.LogLine, report *Report) {
	report.Lines++

	rec, outcome := e.extractor.Extract(line.Message)
	switch outcome {
	case extract.NoMatch:
		report.Unmatched++
		return
	case extract.HealthCheck:
		report.HealthChecks++
		return
	case extract.Invalid:
		report.Invalid++
		return
	}

	report.Accepted++
	fields := logrus.Fields{"cycle": report.CycleID, "tag": rec.Tag, "event_id": line.ID}
	if e.opts.DebugRecords {
		e.log.InfoWithFields(fields, "Accepted record %s", rec.Data)
	} else {
		e.log.DebugWithFields(fields, "Accepted record")
	}

	flushed, err := e.acc.Append(ctx, rec)
	if err != nil {
		report.SinkFailures++
		return
	}
	if flushed {
		report.ThresholdFlushes++
	}
}

func (e *Engine) recordLines(report *Report) {
	if e.metrics == nil {
		return
	}
	e.metrics.IncLines(extract.Accepted.String(), report.Accepted)
	e.metrics.IncLines(extract.Invalid.String(), report.Invalid)
	e.metrics.IncLines(extract.HealthCheck.String(), report.HealthChecks)
	e.metrics.IncLines(extract.NoMatch.String(), report.Unmatched)
}

func (e *Engine) logReport(report *Report) {
	fields := logrus.Fields{
		"cycle":      report.CycleID,
		"log_group":  report.LogGroup,
		"log_stream": report.LogStream,
		"lines":      report.Lines,
		"accepted":   report.Accepted,
		"invalid":    report.Invalid,
		"flushes":    report.ThresholdFlushes,
	}
	if report.SinkFailures > 0 {
		fields["sink_failures"] = report.SinkFailures
		fields["retained"] = report.Retained
		e.log.WarnWithFields(fields, "Cycle finished with records retained for retry")
		return
	}
	e.log.InfoWithFields(fields, "Cycle finished")
}

// countErrors counts the members of a joined error
func countErrors(err error) int {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}
