package config

import (
	"flag"
	"strings"
	"time"
)

// commandFlags holds every command line flag (flags have precedence over environment variables)
type commandFlags struct {
	// Engine flags
	engineProfile      *string
	engineShape        *string
	engineMatcher      *string
	engineStreamFilter *string
	engineHealthCheck  *string
	engineAppendNL     *bool
	engineDebug        *bool
	engineTags         *string
	engineThreshold    *int

	// Sink flags
	sinkKind         *string
	firehoseRegion   *string
	firehoseEndpoint *string
	kafkaBrokers     *string
	kafkaTimeout     *time.Duration

	// Redis flags
	redisAddress         *string
	redisStream          *string
	redisGroup           *string
	redisConsumer        *string
	redisBatchSize       *int
	redisSinkMaxLen      *int64
	redisBlockTimeout    *time.Duration
	redisClaimIdle       *time.Duration
	redisConsumerIdle    *time.Duration
	redisCleanupInterval *time.Duration

	// MQTT flags
	mqttBroker          *string
	mqttClientID        *string
	mqttTopicPrefix     *string
	mqttQoS             *int
	mqttPoolSize        *int
	mqttTLSEnabled      *bool
	mqttCACert          *string
	mqttClientCert      *string
	mqttClientKey       *string
	mqttTLSInsecureSkip *bool
	mqttUseCertCNPrefix *bool

	// Source flags
	sourceMode *string
	inputFile  *string

	// Pipeline flags
	pipelineShutdownTimeout *time.Duration
	pipelineErrorBackoff    *time.Duration
	pipelineMetricsAddress  *string
}

var flags = registerFlags(flag.CommandLine)

// registerFlags defines all flags on fs
func registerFlags(fs *flag.FlagSet) *commandFlags {
	duration := func(name, usage string) *time.Duration {
		return fs.Duration(name, 0, usage)
	}

	return &commandFlags{
		engineProfile:      fs.String("profile", "", "Deployment profile (doubledouble, galaxy, naboo)"),
		engineShape:        fs.String("engine-shape", "", "Envelope shape (cloudwatch, fluentd)"),
		engineMatcher:      fs.String("engine-matcher", "", "Tag matcher (substring, token)"),
		engineStreamFilter: fs.String("log-stream", "", "Only process envelopes from this log stream"),
		engineHealthCheck:  fs.String("health-check", "", "Drop lines containing this marker"),
		engineAppendNL:     fs.Bool("append-newline", false, "Append a newline to every record"),
		engineDebug:        fs.Bool("debug-records", false, "Log every accepted record"),
		engineTags:         fs.String("tags", "", "Tag registry: marker|stream[|threshold];..."),
		engineThreshold:    fs.Int("batch-threshold", 0, "Default batch threshold"),

		sinkKind:         fs.String("sink", "", "Sink kind (firehose, kafka, redis, mqtt)"),
		firehoseRegion:   fs.String("firehose-region", "", "Firehose AWS region"),
		firehoseEndpoint: fs.String("firehose-endpoint", "", "Firehose custom endpoint"),
		kafkaBrokers:     fs.String("kafka-brokers", "", "Comma separated Kafka brokers"),
		kafkaTimeout:     duration("kafka-write-timeout", "Kafka write timeout"),

		redisAddress:         fs.String("redis-address", "", "Redis address"),
		redisStream:          fs.String("redis-stream", "", "Redis stream carrying encoded envelopes"),
		redisGroup:           fs.String("redis-group", "", "Redis consumer group"),
		redisConsumer:        fs.String("redis-consumer", "", "Redis consumer name"),
		redisBatchSize:       fs.Int("redis-batch-size", 0, "Redis batch size"),
		redisSinkMaxLen:      fs.Int64("redis-sink-max-len", 0, "Approximate MAXLEN of Redis sink streams"),
		redisBlockTimeout:    duration("redis-block-timeout", "Redis block timeout"),
		redisClaimIdle:       duration("redis-claim-idle", "Redis claim idle time"),
		redisConsumerIdle:    duration("redis-consumer-idle-timeout", "Redis consumer idle timeout"),
		redisCleanupInterval: duration("redis-cleanup-interval", "Redis cleanup interval"),

		mqttBroker:          fs.String("mqtt-broker", "", "MQTT broker URL"),
		mqttClientID:        fs.String("mqtt-client-id", "", "MQTT client ID"),
		mqttTopicPrefix:     fs.String("mqtt-topic-prefix", "", "MQTT topic prefix for records"),
		mqttQoS:             fs.Int("mqtt-qos", -1, "MQTT QoS (0, 1, or 2)"),
		mqttPoolSize:        fs.Int("mqtt-pool-size", 0, "MQTT connection pool size"),
		mqttTLSEnabled:      fs.Bool("mqtt-tls-enabled", false, "Enable MQTT TLS"),
		mqttCACert:          fs.String("mqtt-ca-cert", "", "MQTT CA certificate path"),
		mqttClientCert:      fs.String("mqtt-client-cert", "", "MQTT client certificate path"),
		mqttClientKey:       fs.String("mqtt-client-key", "", "MQTT client key path"),
		mqttTLSInsecureSkip: fs.Bool("mqtt-tls-insecure-skip", false, "Skip MQTT TLS verification"),
		mqttUseCertCNPrefix: fs.Bool("mqtt-use-cert-cn-prefix", false, "Prefix topics with client cert CN"),

		sourceMode: fs.String("source", "", "Envelope source (redis, file)"),
		inputFile:  fs.String("input", "", "Read subscription events from this file, one per line"),

		pipelineShutdownTimeout: duration("pipeline-shutdown-timeout", "Pipeline shutdown timeout"),
		pipelineErrorBackoff:    duration("pipeline-error-backoff", "Pipeline error backoff"),
		pipelineMetricsAddress:  fs.String("metrics-address", "", "Metrics listen address"),
	}
}

// applyEngineFlags applies command line flags to engine configuration
func applyEngineFlags(cfg *EngineConfig) {
	if *flags.engineShape != "" {
		cfg.Shape = *flags.engineShape
	}
	if *flags.engineMatcher != "" {
		cfg.Matcher = *flags.engineMatcher
	}
	if isFlagSet("log-stream") {
		cfg.StreamFilter = *flags.engineStreamFilter
	}
	if isFlagSet("health-check") {
		cfg.HealthCheckMarker = *flags.engineHealthCheck
	}
	if isFlagSet("append-newline") {
		cfg.AppendNewline = *flags.engineAppendNL
	}
	if isFlagSet("debug-records") {
		cfg.DebugRecords = *flags.engineDebug
	}
	if *flags.engineTags != "" {
		cfg.TagRegistry = *flags.engineTags
	}
	if isFlagSet("batch-threshold") {
		cfg.DefaultThreshold = *flags.engineThreshold
	}
}

// applySinkFlags applies command line flags to the sink settings
func applySinkFlags(cfg *Config) {
	if *flags.sinkKind != "" {
		cfg.Sink.Kind = *flags.sinkKind
	}
	if *flags.firehoseRegion != "" {
		cfg.Firehose.Region = *flags.firehoseRegion
	}
	if *flags.firehoseEndpoint != "" {
		cfg.Firehose.Endpoint = *flags.firehoseEndpoint
	}
	if *flags.kafkaBrokers != "" {
		var brokers []string
		for _, b := range strings.Split(*flags.kafkaBrokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		cfg.Kafka.Brokers = brokers
	}
	if *flags.kafkaTimeout != 0 {
		cfg.Kafka.WriteTimeout = *flags.kafkaTimeout
	}
}

// applyRedisFlags applies command line flags to Redis configuration
func applyRedisFlags(cfg *RedisConfig) {
	if *flags.redisAddress != "" {
		cfg.Address = *flags.redisAddress
	}
	if *flags.redisStream != "" {
		cfg.Stream = *flags.redisStream
	}
	if *flags.redisGroup != "" {
		cfg.Group = *flags.redisGroup
	}
	if *flags.redisConsumer != "" {
		cfg.Consumer = *flags.redisConsumer
	}
	if *flags.redisBatchSize != 0 {
		cfg.BatchSize = *flags.redisBatchSize
	}
	if *flags.redisSinkMaxLen != 0 {
		cfg.SinkMaxLen = *flags.redisSinkMaxLen
	}
	if *flags.redisBlockTimeout != 0 {
		cfg.BlockTimeout = *flags.redisBlockTimeout
	}
	if *flags.redisClaimIdle != 0 {
		cfg.ClaimIdle = *flags.redisClaimIdle
	}
	if *flags.redisConsumerIdle != 0 {
		cfg.ConsumerIdleTimeout = *flags.redisConsumerIdle
	}
	if *flags.redisCleanupInterval != 0 {
		cfg.CleanupInterval = *flags.redisCleanupInterval
	}
}

// applyMQTTFlags applies command line flags to MQTT configuration
func applyMQTTFlags(cfg *MQTTConfig) {
	if *flags.mqttBroker != "" {
		cfg.Broker = *flags.mqttBroker
	}
	if *flags.mqttClientID != "" {
		cfg.ClientID = *flags.mqttClientID
	}
	if *flags.mqttTopicPrefix != "" {
		cfg.TopicPrefix = *flags.mqttTopicPrefix
	}
	if *flags.mqttQoS >= 0 && *flags.mqttQoS <= 2 {
		cfg.QoS = byte(*flags.mqttQoS) // #nosec G115 - validated range 0-2
	}
	if *flags.mqttPoolSize != 0 {
		cfg.PoolSize = *flags.mqttPoolSize
	}
	if *flags.mqttCACert != "" {
		cfg.CACert = *flags.mqttCACert
	}
	if *flags.mqttClientCert != "" {
		cfg.ClientCert = *flags.mqttClientCert
	}
	if *flags.mqttClientKey != "" {
		cfg.ClientKey = *flags.mqttClientKey
	}
	// Handle bool flags - check if explicitly set
	if isFlagSet("mqtt-tls-enabled") {
		cfg.TLSEnabled = *flags.mqttTLSEnabled
	}
	if isFlagSet("mqtt-tls-insecure-skip") {
		cfg.InsecureSkip = *flags.mqttTLSInsecureSkip
	}
	if isFlagSet("mqtt-use-cert-cn-prefix") {
		cfg.UseCertCNPrefix = *flags.mqttUseCertCNPrefix
	}
}

// applySourceFlags applies command line flags to the envelope source
func applySourceFlags(cfg *SourceConfig) {
	if *flags.sourceMode != "" {
		cfg.Mode = *flags.sourceMode
	}
	if *flags.inputFile != "" {
		cfg.InputFile = *flags.inputFile
		// -input alone selects file mode
		if *flags.sourceMode == "" {
			cfg.Mode = SourceFile
		}
	}
}

// applyPipelineFlags applies command line flags to Pipeline configuration
func applyPipelineFlags(cfg *PipelineConfig) {
	if *flags.pipelineShutdownTimeout != 0 {
		cfg.ShutdownTimeout = *flags.pipelineShutdownTimeout
	}
	if *flags.pipelineErrorBackoff != 0 {
		cfg.ErrorBackoff = *flags.pipelineErrorBackoff
	}
	if isFlagSet("metrics-address") {
		cfg.MetricsAddress = *flags.pipelineMetricsAddress
	}
}

// isFlagSet checks if a flag was explicitly set on the command line
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
