// Package kafka writes record batches to Kafka, one topic per stream name.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ibs-source/logtag-forwarder/internal/config"
	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/message"
)

// messageWriter is the part of *kafka.Writer the sink needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink produces every record as one message keyed by its tag, so records of
// a tag land on one partition in order
type Sink struct {
	writer messageWriter
	log    *log.Logger
}

// New creates a synchronous producer
func New(cfg *config.KafkaConfig, logger *log.Logger) *Sink {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		WriteTimeout:           cfg.WriteTimeout,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Sink{writer: writer, log: logger}
}

// PutBatch writes records to the topic named streamName
func (s *Sink) PutBatch(ctx context.Context, streamName string, records []message.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.writer.WriteMessages(ctx, toMessages(streamName, records, time.Now())...); err != nil {
		return fmt.Errorf("write %d messages to topic %s: %w", len(records), streamName, err)
	}
	s.log.Debug("Produced %d records to topic %s", len(records), streamName)
	return nil
}

func toMessages(topic string, records []message.Record, at time.Time) []kafka.Message {
	msgs := make([]kafka.Message, len(records))
	for i, rec := range records {
		msgs[i] = kafka.Message{
			Topic: topic,
			Key:   []byte(rec.Tag),
			Value: []byte(rec.Data),
			Time:  at,
		}
	}
	return msgs
}

// Close flushes and closes the producer
func (s *Sink) Close() error {
	return s.writer.Close()
}
