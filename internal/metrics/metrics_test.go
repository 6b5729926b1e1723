package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/logtag-forwarder/internal/message"
)

type stubSink struct{ err error }

func (s stubSink) PutBatch(context.Context, string, []message.Record) error { return s.err }

func TestNew_IndependentRegistries(t *testing.T) {
	// promauto on the default registry would panic on the second New
	a := New()
	b := New()
	assert.NotSame(t, a.Registry(), b.Registry())
}

func TestObserveCycle(t *testing.T) {
	h := New()
	h.ObserveCycle("success", 10*time.Millisecond)
	h.ObserveCycle("success", 20*time.Millisecond)
	h.ObserveCycle("decode_error", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(h.CyclesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.CyclesTotal.WithLabelValues("decode_error")))
}

func TestIncLines(t *testing.T) {
	h := New()
	h.IncLines("accepted", 3)
	h.IncLines("accepted", 0)
	h.IncLines("invalid", 1)

	assert.Equal(t, 3.0, testutil.ToFloat64(h.LinesTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.LinesTotal.WithLabelValues("invalid")))
}

func TestInstrumentSink(t *testing.T) {
	h := New()
	ok := h.InstrumentSink(stubSink{})
	failing := h.InstrumentSink(stubSink{err: errors.New("throttled")})

	records := []message.Record{{Tag: "a=", Data: "{}"}, {Tag: "a=", Data: "[]"}}
	require.NoError(t, ok.PutBatch(context.Background(), "responses", records))
	require.Error(t, failing.PutBatch(context.Background(), "responses", records))

	assert.Equal(t, 1.0, testutil.ToFloat64(h.SinkBatchesTotal.WithLabelValues("responses", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.SinkBatchesTotal.WithLabelValues("responses", "false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.SinkRecordsTotal.WithLabelValues("responses")))
}

func TestHTTPHandler(t *testing.T) {
	h := New()
	h.EnvelopesAcked.Inc()

	rec := httptest.NewRecorder()
	h.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "logtag_envelopes_acked_total 1")
}
