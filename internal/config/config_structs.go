// Package config provides configuration loading and validation from environment variables and command line flags.
package config

import (
	"time"

	"github.com/ibs-source/logtag-forwarder/internal/message"
)

// Sink kinds
const (
	SinkFirehose = "firehose"
	SinkKafka    = "kafka"
	SinkRedis    = "redis"
	SinkMQTT     = "mqtt"
)

// Source modes
const (
	SourceRedis = "redis"
	SourceFile  = "file"
)

// Config holds the complete configuration
type Config struct {
	Engine   EngineConfig
	Tags     []message.TagConfig
	Sink     SinkConfig
	Firehose FirehoseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	MQTT     MQTTConfig
	Source   SourceConfig
	Pipeline PipelineConfig
}

// EngineConfig holds the extraction engine settings
type EngineConfig struct {
	Profile           string // doubledouble, galaxy, naboo or empty
	Shape             string // cloudwatch or fluentd
	Matcher           string // substring or token
	StreamFilter      string // only process envelopes from this log stream; empty disables
	HealthCheckMarker string // drop lines containing it; empty disables
	AppendNewline     bool
	DebugRecords      bool
	TagRegistry       string // marker|stream|threshold;... overrides the profile tags
	DefaultThreshold  int    // threshold for tags that do not set one
}

// SinkConfig selects where batches are written
type SinkConfig struct {
	Kind string
}

// FirehoseConfig holds Kinesis Data Firehose client settings
type FirehoseConfig struct {
	Region   string
	Endpoint string // custom endpoint, e.g. localstack
}

// KafkaConfig holds Kafka producer settings. Stream names are used as topics.
type KafkaConfig struct {
	Brokers      []string
	WriteTimeout time.Duration
	RequiredAcks int // -1 all, 0 none, 1 leader
}

// RedisConfig holds Redis settings for the envelope source and the stream sink
type RedisConfig struct {
	Address             string
	Stream              string // source stream carrying encoded envelopes
	Group               string
	Consumer            string
	BatchSize           int
	BlockTimeout        time.Duration
	ClaimIdle           time.Duration
	ConsumerIdleTimeout time.Duration
	CleanupInterval     time.Duration
	DialTimeout         time.Duration
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	PingTimeout         time.Duration
	SinkMaxLen          int64 // approximate MAXLEN for sink streams; 0 keeps everything
}

// MQTTConfig holds MQTT client configuration
type MQTTConfig struct {
	Broker               string
	ClientID             string
	TopicPrefix          string // records for stream S are published to TopicPrefix/S
	QoS                  byte
	ConnectTimeout       time.Duration
	WriteTimeout         time.Duration
	PoolSize             int
	MaxReconnectInterval time.Duration
	DisconnectTimeout    uint // milliseconds
	// TLS Configuration
	TLSEnabled      bool
	CACert          string
	ClientCert      string
	ClientKey       string
	InsecureSkip    bool
	UseCertCNPrefix bool // prefix the topic with the client cert CN for ACL constraints
}

// SourceConfig selects where envelopes come from in the long running forwarder
type SourceConfig struct {
	Mode      string
	InputFile string
}

// PipelineConfig holds process orchestration settings
type PipelineConfig struct {
	ShutdownTimeout time.Duration
	ErrorBackoff    time.Duration
	MetricsAddress  string // empty disables the metrics listener
}
