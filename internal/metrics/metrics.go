// Package metrics exposes Prometheus counters for extraction cycles and sink writes.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ibs-source/logtag-forwarder/internal/batch"
	"github.com/ibs-source/logtag-forwarder/internal/message"
)

const namespace = "logtag"

// Handler owns a private registry so several handlers can coexist in tests
type Handler struct {
	registry *prometheus.Registry

	CyclesTotal        *prometheus.CounterVec
	CycleDuration      *prometheus.HistogramVec
	LinesTotal         *prometheus.CounterVec
	SinkBatchesTotal   *prometheus.CounterVec
	SinkRecordsTotal   *prometheus.CounterVec
	SinkLatency        *prometheus.HistogramVec
	EnvelopesAcked     prometheus.Counter
	EnvelopesReclaimed prometheus.Counter
}

// New creates a metrics handler
func New() *Handler {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Handler{
		registry: reg,
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "The total number of processing cycles by result",
		}, []string{"result"}),
		CycleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "The duration of processing cycles",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		LinesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "The total number of log lines by extraction outcome",
		}, []string{"outcome"}),
		SinkBatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_batches_total",
			Help:      "The total number of batches handed to the sink",
		}, []string{"stream", "success"}),
		SinkRecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_records_total",
			Help:      "The total number of records accepted by the sink",
		}, []string{"stream"}),
		SinkLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sink_latency_seconds",
			Help:      "The latency of sink batch writes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stream"}),
		EnvelopesAcked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_acked_total",
			Help:      "The total number of queued envelopes acknowledged and deleted",
		}),
		EnvelopesReclaimed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_reclaimed_total",
			Help:      "The total number of idle queued envelopes claimed for retry",
		}),
	}
}

// Registry returns the registry backing this handler
func (h *Handler) Registry() *prometheus.Registry {
	return h.registry
}

// HTTPHandler serves the registry in the Prometheus exposition format
func (h *Handler) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records one finished cycle
func (h *Handler) ObserveCycle(result string, duration time.Duration) {
	h.CyclesTotal.WithLabelValues(result).Inc()
	h.CycleDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// IncLines counts n lines with the given extraction outcome
func (h *Handler) IncLines(outcome string, n int) {
	if n <= 0 {
		return
	}
	h.LinesTotal.WithLabelValues(outcome).Add(float64(n))
}

// ObserveSinkWrite records one batch write
func (h *Handler) ObserveSinkWrite(stream string, records int, duration time.Duration, success bool) {
	successStr := "true"
	if !success {
		successStr = "false"
	}
	h.SinkBatchesTotal.WithLabelValues(stream, successStr).Inc()
	h.SinkLatency.WithLabelValues(stream).Observe(duration.Seconds())
	if success {
		h.SinkRecordsTotal.WithLabelValues(stream).Add(float64(records))
	}
}

// instrumentedSink times and counts every batch written through it
type instrumentedSink struct {
	next    batch.Sink
	metrics *Handler
}

// InstrumentSink wraps sink so every PutBatch is measured
func (h *Handler) InstrumentSink(sink batch.Sink) batch.Sink {
	return &instrumentedSink{next: sink, metrics: h}
}

func (s *instrumentedSink) PutBatch(ctx context.Context, stream string, records []message.Record) error {
	start := time.Now()
	err := s.next.PutBatch(ctx, stream, records)
	s.metrics.ObserveSinkWrite(stream, len(records), time.Since(start), err == nil)
	return err
}
