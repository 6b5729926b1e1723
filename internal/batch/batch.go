// Package batch accumulates records per tag and hands them to a sink in
// size-bounded batches.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/message"
)

// Sink writes one ordered batch to a named stream. A returned error means the
// batch was not accepted and will be offered again on the next flush.
type Sink interface {
	PutBatch(ctx context.Context, streamName string, records []message.Record) error
}

// thresholdSlack is how far past BatchThreshold a batch grows before it is
// flushed: a threshold of N flushes at N+1 records. The default threshold of
// 499 therefore fills Firehose's 500 record PutRecordBatch limit exactly.
const thresholdSlack = 1

// crossed reports whether a batch of n records must be flushed
func crossed(n, threshold int) bool {
	return n >= threshold+thresholdSlack
}

// SinkWriteError reports a rejected flush. The batch stays pending.
type SinkWriteError struct {
	Tag     string
	Stream  string
	Records int
	Err     error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("put %d records for tag %s to stream %s: %v", e.Records, e.Tag, e.Stream, e.Err)
}

func (e *SinkWriteError) Unwrap() error {
	return e.Err
}

// Accumulator holds the pending batch of every registered tag.
// It is not safe for concurrent use; one cycle drives it at a time.
type Accumulator struct {
	tags    []message.TagConfig
	index   map[string]int
	pending [][]message.Record
	sink    Sink
	log     *log.Logger
}

// NewAccumulator creates an accumulator over tags in registration order
func NewAccumulator(tags []message.TagConfig, sink Sink, logger *log.Logger) (*Accumulator, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("tag registry is empty")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}

	index := make(map[string]int, len(tags))
	for i, t := range tags {
		if t.Marker == "" {
			return nil, fmt.Errorf("tag %d has an empty marker", i)
		}
		if t.StreamName == "" {
			return nil, fmt.Errorf("tag %s has no stream name", t.Marker)
		}
		if t.BatchThreshold < 0 {
			return nil, fmt.Errorf("tag %s has a negative batch threshold", t.Marker)
		}
		if _, dup := index[t.Marker]; dup {
			return nil, fmt.Errorf("tag %s registered twice", t.Marker)
		}
		index[t.Marker] = i
	}

	return &Accumulator{
		tags:    append([]message.TagConfig(nil), tags...),
		index:   index,
		pending: make([][]message.Record, len(tags)),
		sink:    sink,
		log:     logger,
	}, nil
}

// Tags returns the registry in flush order
func (a *Accumulator) Tags() []message.TagConfig {
	return append([]message.TagConfig(nil), a.tags...)
}

// Markers returns the registered markers in registration order
func (a *Accumulator) Markers() []string {
	markers := make([]string, len(a.tags))
	for i, t := range a.tags {
		markers[i] = t.Marker
	}
	return markers
}

// Pending returns the number of records waiting for tag
func (a *Accumulator) Pending(tag string) int {
	i, ok := a.index[tag]
	if !ok {
		return 0
	}
	return len(a.pending[i])
}

// Append adds rec to its tag's batch and flushes the batch once it crosses
// the tag's threshold. flushed is true only when the sink accepted a batch.
func (a *Accumulator) Append(ctx context.Context, rec message.Record) (flushed bool, err error) {
	i, ok := a.index[rec.Tag]
	if !ok {
		return false, fmt.Errorf("record tag %s is not registered", rec.Tag)
	}

	a.pending[i] = append(a.pending[i], rec)
	if !crossed(len(a.pending[i]), a.tags[i].BatchThreshold) {
		return false, nil
	}

	if err := a.flush(ctx, i); err != nil {
		return false, err
	}
	return true, nil
}

// Flush hands tag's batch to the sink regardless of its size, empty included
func (a *Accumulator) Flush(ctx context.Context, tag string) error {
	i, ok := a.index[tag]
	if !ok {
		return fmt.Errorf("tag %s is not registered", tag)
	}
	return a.flush(ctx, i)
}

// FlushAll flushes every tag in registration order. A failing tag does not
// stop the others; all failures are joined in the returned error.
func (a *Accumulator) FlushAll(ctx context.Context) error {
	var errs []error
	for i := range a.tags {
		if err := a.flush(ctx, i); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Accumulator) flush(ctx context.Context, i int) error {
	tag := a.tags[i]
	records := a.pending[i]

	if err := a.sink.PutBatch(ctx, tag.StreamName, records); err != nil {
		a.log.ErrorWithFields(logrus.Fields{
			"tag":     tag.Marker,
			"stream":  tag.StreamName,
			"records": len(records),
		}, "Sink rejected batch, keeping it for the next flush: %v", err)
		return &SinkWriteError{Tag: tag.Marker, Stream: tag.StreamName, Records: len(records), Err: err}
	}

	a.log.DebugWithFields(logrus.Fields{
		"tag":     tag.Marker,
		"stream":  tag.StreamName,
		"records": len(records),
	}, "Flushed batch")
	a.pending[i] = nil
	return nil
}
