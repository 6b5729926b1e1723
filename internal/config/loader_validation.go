package config

import (
	"fmt"

	"github.com/ibs-source/logtag-forwarder/internal/envelope"
	"github.com/ibs-source/logtag-forwarder/internal/tagmatch"
)

// firehoseMaxBatch is the PutRecordBatch record limit
const firehoseMaxBatch = 500

// Validate checks configuration constraints
func Validate(cfg *Config) error {
	if err := validateEngine(&cfg.Engine); err != nil {
		return err
	}
	if err := validateTags(cfg); err != nil {
		return err
	}
	if err := validateSink(cfg); err != nil {
		return err
	}
	if err := validateSource(cfg); err != nil {
		return err
	}
	return validatePipeline(&cfg.Pipeline)
}

// validateEngine validates the extraction engine settings
func validateEngine(cfg *EngineConfig) error {
	if _, err := envelope.ParseShape(cfg.Shape); err != nil {
		return err
	}
	switch tagmatch.Kind(cfg.Matcher) {
	case tagmatch.KindSubstring, tagmatch.KindToken:
	default:
		return fmt.Errorf("unknown matcher %q", cfg.Matcher)
	}
	if cfg.DefaultThreshold < 0 {
		return fmt.Errorf("default batch threshold cannot be negative")
	}
	return nil
}

// validateTags validates the resolved tag registry
func validateTags(cfg *Config) error {
	if len(cfg.Tags) == 0 {
		return fmt.Errorf("tag registry cannot be empty")
	}
	seen := make(map[string]struct{}, len(cfg.Tags))
	for _, t := range cfg.Tags {
		if t.Marker == "" {
			return fmt.Errorf("tag marker cannot be empty")
		}
		if t.StreamName == "" {
			return fmt.Errorf("tag %q: stream name cannot be empty", t.Marker)
		}
		if t.BatchThreshold < 0 {
			return fmt.Errorf("tag %q: batch threshold cannot be negative", t.Marker)
		}
		// a batch is written once it exceeds the threshold
		if cfg.Sink.Kind == SinkFirehose && t.BatchThreshold+1 > firehoseMaxBatch {
			return fmt.Errorf("tag %q: batch threshold %d exceeds the firehose limit of %d records",
				t.Marker, t.BatchThreshold, firehoseMaxBatch-1)
		}
		if _, dup := seen[t.Marker]; dup {
			return fmt.Errorf("tag %q registered twice", t.Marker)
		}
		seen[t.Marker] = struct{}{}
	}
	return nil
}

// validateSink validates the selected sink's client settings
func validateSink(cfg *Config) error {
	switch cfg.Sink.Kind {
	case SinkFirehose:
		return nil
	case SinkKafka:
		return validateKafka(&cfg.Kafka)
	case SinkRedis:
		return validateRedisAddress(&cfg.Redis)
	case SinkMQTT:
		return validateMQTT(&cfg.MQTT)
	default:
		return fmt.Errorf("unknown sink kind %q", cfg.Sink.Kind)
	}
}

// validateSource validates the envelope source
func validateSource(cfg *Config) error {
	switch cfg.Source.Mode {
	case SourceRedis:
		return validateRedis(&cfg.Redis)
	case SourceFile:
		if cfg.Source.InputFile == "" {
			return fmt.Errorf("file source requires an input file")
		}
		return nil
	default:
		return fmt.Errorf("unknown source mode %q", cfg.Source.Mode)
	}
}

// validateKafka validates Kafka configuration
func validateKafka(cfg *KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	switch cfg.RequiredAcks {
	case -1, 0, 1:
	default:
		return fmt.Errorf("kafka required acks must be -1, 0 or 1")
	}
	return nil
}

func validateRedisAddress(cfg *RedisConfig) error {
	if cfg.Address == "" {
		return fmt.Errorf("redis address cannot be empty")
	}
	return nil
}

// validateRedis validates Redis configuration for the envelope source
func validateRedis(cfg *RedisConfig) error {
	if err := validateRedisAddress(cfg); err != nil {
		return err
	}
	if cfg.Stream == "" {
		return fmt.Errorf("redis stream cannot be empty")
	}
	if cfg.Group == "" {
		return fmt.Errorf("redis group cannot be empty")
	}
	if cfg.Consumer == "" {
		return fmt.Errorf("redis consumer name cannot be empty")
	}
	if cfg.BatchSize < 1 {
		return fmt.Errorf("redis batch size must be positive")
	}
	return nil
}

// validateMQTT validates MQTT configuration
func validateMQTT(cfg *MQTTConfig) error {
	if cfg.Broker == "" {
		return fmt.Errorf("mqtt broker cannot be empty")
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("mqtt client ID cannot be empty")
	}
	if cfg.PoolSize < 1 {
		return fmt.Errorf("mqtt pool size must be positive")
	}
	if cfg.TopicPrefix == "" {
		return fmt.Errorf("mqtt topic prefix cannot be empty")
	}
	if cfg.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	return nil
}

// validatePipeline validates Pipeline configuration
func validatePipeline(cfg *PipelineConfig) error {
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("pipeline shutdown timeout must be positive")
	}
	if cfg.ErrorBackoff < 0 {
		return fmt.Errorf("pipeline error backoff cannot be negative")
	}
	return nil
}
