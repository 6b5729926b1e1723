package mqtt

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ibs-source/logtag-forwarder/internal/message"
	"github.com/ibs-source/logtag-forwarder/pkg/jsonfast"
)

// Sink publishes each record of a batch as a frame on <prefix>/<stream>
type Sink struct {
	pub    Publisher
	prefix string

	mu      sync.Mutex
	builder *jsonfast.Builder
}

// NewSink creates a sink over pub
func NewSink(pub Publisher, topicPrefix string) *Sink {
	return &Sink{pub: pub, prefix: strings.TrimRight(topicPrefix, "/"), builder: jsonfast.New(512)}
}

// Topic returns the topic records of stream are published to
func (s *Sink) Topic(stream string) string {
	return s.prefix + "/" + stream
}

// PutBatch publishes records in order. Empty batches publish nothing.
func (s *Sink) PutBatch(ctx context.Context, streamName string, records []message.Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.pub.PublishBatch(ctx, s.Topic(streamName), s.frames(streamName, records, time.Now()))
}

func (s *Sink) frames(streamName string, records []message.Record, at time.Time) []message.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := make([]message.Payload, len(records))
	for i, rec := range records {
		frames[i] = jsonfast.RecordFrame(s.builder, rec.Tag, streamName, i, at, rec.Data)
	}
	return frames
}

// Close closes the underlying publisher
func (s *Sink) Close() error {
	return s.pub.Close()
}
