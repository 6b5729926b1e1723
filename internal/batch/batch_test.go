package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/message"
)

func rec(tag string, n int) message.Record {
	return message.Record{Tag: tag, Data: fmt.Sprintf(`{"a":%d}`, n)}
}

func newAccumulator(t *testing.T, sink Sink, tags ...message.TagConfig) *Accumulator {
	t.Helper()
	acc, err := NewAccumulator(tags, sink, log.Discard())
	require.NoError(t, err)
	return acc
}

func TestNewAccumulator_Validation(t *testing.T) {
	sink := &recordingSink{}
	tests := []struct {
		name string
		tags []message.TagConfig
		sink Sink
	}{
		{"empty registry", nil, sink},
		{"nil sink", []message.TagConfig{{Marker: "a=", StreamName: "s"}}, nil},
		{"empty marker", []message.TagConfig{{Marker: "", StreamName: "s"}}, sink},
		{"empty stream", []message.TagConfig{{Marker: "a=", StreamName: ""}}, sink},
		{"negative threshold", []message.TagConfig{{Marker: "a=", StreamName: "s", BatchThreshold: -1}}, sink},
		{"duplicate marker", []message.TagConfig{
			{Marker: "a=", StreamName: "s1"},
			{Marker: "a=", StreamName: "s2"},
		}, sink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAccumulator(tt.tags, tt.sink, log.Discard())
			assert.Error(t, err)
		})
	}
}

// A threshold of N flushes at N+1 records, not at N.
func TestAppend_FlushesOnePastThreshold(t *testing.T) {
	sink := &recordingSink{}
	acc := newAccumulator(t, sink, message.TagConfig{Marker: "evt=", StreamName: "events", BatchThreshold: 2})
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		flushed, err := acc.Append(ctx, rec("evt=", i))
		require.NoError(t, err)
		assert.False(t, flushed, "append %d must not flush at the threshold itself", i)
	}
	assert.Empty(t, sink.calls)
	assert.Equal(t, 2, acc.Pending("evt="))

	flushed, err := acc.Append(ctx, rec("evt=", 3))
	require.NoError(t, err)
	assert.True(t, flushed)

	require.Len(t, sink.calls, 1)
	assert.Equal(t, "events", sink.calls[0].stream)
	assert.Equal(t, []message.Record{rec("evt=", 1), rec("evt=", 2), rec("evt=", 3)}, sink.calls[0].records)
	assert.Equal(t, 0, acc.Pending("evt="))
}

func TestAppend_ZeroThresholdFlushesEveryRecord(t *testing.T) {
	sink := &recordingSink{}
	acc := newAccumulator(t, sink, message.TagConfig{Marker: "evt=", StreamName: "events", BatchThreshold: 0})

	for i := 0; i < 3; i++ {
		flushed, err := acc.Append(context.Background(), rec("evt=", i))
		require.NoError(t, err)
		assert.True(t, flushed)
	}
	require.Len(t, sink.calls, 3)
	for _, c := range sink.calls {
		assert.Len(t, c.records, 1)
	}
}

func TestAppend_UnknownTag(t *testing.T) {
	acc := newAccumulator(t, &recordingSink{}, message.TagConfig{Marker: "evt=", StreamName: "events"})
	_, err := acc.Append(context.Background(), rec("other=", 1))
	assert.Error(t, err)
}

func TestAppend_TagsAreIndependent(t *testing.T) {
	sink := &recordingSink{}
	acc := newAccumulator(t, sink,
		message.TagConfig{Marker: "a=", StreamName: "sa", BatchThreshold: 1},
		message.TagConfig{Marker: "b=", StreamName: "sb", BatchThreshold: 5},
	)
	ctx := context.Background()

	_, _ = acc.Append(ctx, rec("a=", 1))
	_, _ = acc.Append(ctx, rec("b=", 1))
	_, _ = acc.Append(ctx, rec("a=", 2))

	require.Len(t, sink.calls, 1)
	assert.Equal(t, "sa", sink.calls[0].stream)
	assert.Equal(t, 0, acc.Pending("a="))
	assert.Equal(t, 1, acc.Pending("b="))
}

func TestAppend_SinkFailureRetainsBatch(t *testing.T) {
	sink := &recordingSink{failing: true}
	acc := newAccumulator(t, sink, message.TagConfig{Marker: "evt=", StreamName: "events", BatchThreshold: 1})
	ctx := context.Background()

	_, err := acc.Append(ctx, rec("evt=", 1))
	require.NoError(t, err)

	flushed, err := acc.Append(ctx, rec("evt=", 2))
	assert.False(t, flushed)
	var sinkErr *SinkWriteError
	require.True(t, errors.As(err, &sinkErr))
	assert.Equal(t, "evt=", sinkErr.Tag)
	assert.Equal(t, "events", sinkErr.Stream)
	assert.Equal(t, 2, sinkErr.Records)
	assert.Equal(t, 2, acc.Pending("evt="))

	// still over the threshold, so the next append retries with everything
	sink.failing = false
	flushed, err = acc.Append(ctx, rec("evt=", 3))
	require.NoError(t, err)
	assert.True(t, flushed)

	require.Len(t, sink.calls, 2)
	assert.Equal(t, []message.Record{rec("evt=", 1), rec("evt=", 2), rec("evt=", 3)}, sink.calls[1].records)
	assert.Equal(t, 0, acc.Pending("evt="))
}

func TestFlushAll_EveryTagInOrderEvenEmpty(t *testing.T) {
	sink := &recordingSink{}
	acc := newAccumulator(t, sink,
		message.TagConfig{Marker: "response_log=", StreamName: "responses", BatchThreshold: 499},
		message.TagConfig{Marker: "feed_event=", StreamName: "feed", BatchThreshold: 499},
		message.TagConfig{Marker: "event_tracking=", StreamName: "tracking", BatchThreshold: 499},
	)
	ctx := context.Background()
	_, _ = acc.Append(ctx, rec("feed_event=", 1))

	require.NoError(t, acc.FlushAll(ctx))

	require.Len(t, sink.calls, 3)
	assert.Equal(t, "responses", sink.calls[0].stream)
	assert.Empty(t, sink.calls[0].records)
	assert.Equal(t, "feed", sink.calls[1].stream)
	assert.Len(t, sink.calls[1].records, 1)
	assert.Equal(t, "tracking", sink.calls[2].stream)
	assert.Empty(t, sink.calls[2].records)

	assert.Equal(t, 0, acc.Pending("feed_event="))
}

func TestFlushAll_FailureDoesNotStopOtherTags(t *testing.T) {
	sink := &recordingSink{failing: true}
	acc := newAccumulator(t, sink,
		message.TagConfig{Marker: "a=", StreamName: "sa", BatchThreshold: 10},
		message.TagConfig{Marker: "b=", StreamName: "sb", BatchThreshold: 10},
	)
	ctx := context.Background()
	_, _ = acc.Append(ctx, rec("a=", 1))
	_, _ = acc.Append(ctx, rec("b=", 1))

	err := acc.FlushAll(ctx)
	require.Error(t, err)
	assert.Len(t, sink.calls, 2)
	assert.Equal(t, 1, acc.Pending("a="))
	assert.Equal(t, 1, acc.Pending("b="))

	var sinkErr *SinkWriteError
	assert.True(t, errors.As(err, &sinkErr))
}

func TestFlush(t *testing.T) {
	sink := &recordingSink{}
	acc := newAccumulator(t, sink, message.TagConfig{Marker: "a=", StreamName: "sa", BatchThreshold: 10})

	require.NoError(t, acc.Flush(context.Background(), "a="))
	require.Len(t, sink.calls, 1)
	assert.Empty(t, sink.calls[0].records)

	assert.Error(t, acc.Flush(context.Background(), "missing="))
}

func TestTagsAndMarkers(t *testing.T) {
	acc := newAccumulator(t, &recordingSink{},
		message.TagConfig{Marker: "b=", StreamName: "sb"},
		message.TagConfig{Marker: "a=", StreamName: "sa"},
	)
	assert.Equal(t, []string{"b=", "a="}, acc.Markers())

	tags := acc.Tags()
	tags[0].StreamName = "changed"
	assert.Equal(t, "sb", acc.Tags()[0].StreamName)
	assert.Equal(t, 0, acc.Pending("unknown="))
}

func TestCrossed(t *testing.T) {
	assert.False(t, crossed(499, 499))
	assert.True(t, crossed(500, 499))
	assert.True(t, crossed(1, 0))
	assert.False(t, crossed(0, 0))
}
