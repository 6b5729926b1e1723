package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ibs-source/logtag-forwarder/internal/config"
	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/message"
	"github.com/ibs-source/logtag-forwarder/pkg/jsonfast"
)

// RecordField is the stream entry field carrying a record frame
const RecordField = "record"

// StreamSink appends every record of a batch to the Redis stream named after
// the tag's stream, in one pipelined round trip
type StreamSink struct {
	rdb    *redis.Client
	maxLen int64
	log    *log.Logger

	mu      sync.Mutex
	builder *jsonfast.Builder
}

// NewStreamSink connects a Redis stream sink
func NewStreamSink(cfg *config.RedisConfig, logger *log.Logger) (*StreamSink, error) {
	rdb, err := newRedis(cfg)
	if err != nil {
		return nil, err
	}
	return &StreamSink{rdb: rdb, maxLen: cfg.SinkMaxLen, log: logger, builder: jsonfast.New(512)}, nil
}

// PutBatch writes records in order. A pipeline error rejects the whole batch;
// records already appended are delivered again on retry.
func (s *StreamSink) PutBatch(ctx context.Context, streamName string, records []message.Record) error {
	if len(records) == 0 {
		return nil
	}

	args := s.addArgs(streamName, records, time.Now())

	cmds, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, a := range args {
			p.XAdd(ctx, a)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("xadd pipeline to %s failed: %w", streamName, err)
	}
	for _, cmd := range cmds {
		if cmd.Err() != nil {
			return fmt.Errorf("xadd to %s failed: %w", streamName, cmd.Err())
		}
	}

	s.log.Debug("Appended %d records to stream %s", len(records), streamName)
	return nil
}

// addArgs frames every record for XADD
func (s *StreamSink) addArgs(streamName string, records []message.Record, at time.Time) []*redis.XAddArgs {
	s.mu.Lock()
	defer s.mu.Unlock()

	args := make([]*redis.XAddArgs, len(records))
	for i, rec := range records {
		args[i] = &redis.XAddArgs{
			Stream: streamName,
			MaxLen: s.maxLen,
			Approx: s.maxLen > 0,
			Values: []interface{}{RecordField, jsonfast.RecordFrame(s.builder, rec.Tag, streamName, i, at, rec.Data)},
		}
	}
	return args
}

// Close closes the Redis connection
func (s *StreamSink) Close() error {
	return s.rdb.Close()
}
