package config

import "time"

// defaultBatchThreshold fills a 500 record PutRecordBatch call: a batch is
// flushed once it holds one record more than its threshold.
const defaultBatchThreshold = 499

// defaultEngineConfig returns the default engine configuration
func defaultEngineConfig() EngineConfig {
	return EngineConfig{
		Shape:            "cloudwatch",
		Matcher:          "substring",
		DefaultThreshold: defaultBatchThreshold,
	}
}

// defaultKafkaConfig returns the default Kafka configuration
func defaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: -1,
	}
}

// defaultRedisConfig returns the default Redis configuration
func defaultRedisConfig() RedisConfig {
	return RedisConfig{
		Address:             "localhost:6379",
		Stream:              "cwlogs-envelopes",
		Group:               "logtag-forwarder",
		BatchSize:           10,
		BlockTimeout:        5 * time.Second,
		ClaimIdle:           30 * time.Second,
		ConsumerIdleTimeout: 5 * time.Minute,
		CleanupInterval:     1 * time.Minute,
		DialTimeout:         10 * time.Second,
		ReadTimeout:         10 * time.Second,
		WriteTimeout:        5 * time.Second,
		PingTimeout:         5 * time.Second,
	}
}

// defaultMQTTConfig returns the default MQTT configuration
func defaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:               "tcp://localhost:1883",
		ClientID:             "logtag-forwarder",
		TopicPrefix:          "logtag/records",
		QoS:                  1,
		ConnectTimeout:       10 * time.Second,
		WriteTimeout:         30 * time.Second,
		PoolSize:             2,
		MaxReconnectInterval: 10 * time.Second,
		DisconnectTimeout:    1000,
	}
}

// defaultPipelineConfig returns the default pipeline configuration
func defaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ShutdownTimeout: 30 * time.Second,
		ErrorBackoff:    1 * time.Second,
		MetricsAddress:  ":9102",
	}
}

// defaultConfig returns a complete configuration with all default values
func defaultConfig() *Config {
	return &Config{
		Engine:   defaultEngineConfig(),
		Sink:     SinkConfig{Kind: SinkFirehose},
		Kafka:    defaultKafkaConfig(),
		Redis:    defaultRedisConfig(),
		MQTT:     defaultMQTTConfig(),
		Source:   SourceConfig{Mode: SourceRedis},
		Pipeline: defaultPipelineConfig(),
	}
}
