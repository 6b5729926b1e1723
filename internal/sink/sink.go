// Package sink opens the configured batch sink.
package sink

import (
	"context"
	"fmt"

	"github.com/ibs-source/logtag-forwarder/internal/batch"
	"github.com/ibs-source/logtag-forwarder/internal/config"
	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/mqtt"
	"github.com/ibs-source/logtag-forwarder/internal/redis"
	"github.com/ibs-source/logtag-forwarder/internal/sink/firehose"
	"github.com/ibs-source/logtag-forwarder/internal/sink/kafka"
)

// Sink is a batch sink that owns connections
type Sink interface {
	batch.Sink
	Close() error
}

var (
	_ Sink = (*firehose.Sink)(nil)
	_ Sink = (*kafka.Sink)(nil)
	_ Sink = (*redis.StreamSink)(nil)
	_ Sink = (*mqtt.Sink)(nil)
)

// Open creates the sink selected by cfg.Sink.Kind
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (Sink, error) {
	switch cfg.Sink.Kind {
	case config.SinkFirehose:
		s, err := firehose.New(ctx, &cfg.Firehose, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SinkKafka:
		return kafka.New(&cfg.Kafka, logger), nil
	case config.SinkRedis:
		s, err := redis.NewStreamSink(&cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SinkMQTT:
		pool, err := mqtt.NewPool(&cfg.MQTT, cfg.MQTT.PoolSize, logger)
		if err != nil {
			return nil, err
		}
		return mqtt.NewSink(pool, cfg.MQTT.TopicPrefix), nil
	default:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Sink.Kind)
	}
}
