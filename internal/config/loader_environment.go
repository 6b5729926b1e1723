package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// loadEngineFromEnv loads engine configuration from environment variables
func loadEngineFromEnv(cfg *EngineConfig) {
	if v := getEnvString("ENGINE_SHAPE"); v != "" {
		cfg.Shape = v
	}
	if v := getEnvString("ENGINE_MATCHER"); v != "" {
		cfg.Matcher = v
	}
	if v, ok := os.LookupEnv("LOG_STREAM_NAME"); ok {
		// set but empty disables the profile's filter
		cfg.StreamFilter = v
	}
	if v, ok := os.LookupEnv("ENGINE_HEALTH_CHECK"); ok {
		cfg.HealthCheckMarker = v
	}
	if v := getEnvString("ENGINE_APPEND_NEWLINE"); v != "" {
		cfg.AppendNewline = getEnvBool("ENGINE_APPEND_NEWLINE")
	}
	if getEnvBool("DEBUG_MODE") {
		cfg.DebugRecords = true
	}
	if v := getEnvString("TAG_REGISTRY"); v != "" {
		cfg.TagRegistry = v
	}
	if v, ok := os.LookupEnv("DELIVERY_STREAM_BATCH_SIZE"); ok {
		// 0 is a valid threshold: every record is flushed on its own
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.DefaultThreshold = n
		}
	}
}

// loadSinkFromEnv loads sink selection and sink client settings
func loadSinkFromEnv(cfg *Config) {
	if v := getEnvString("SINK_KIND"); v != "" {
		cfg.Sink.Kind = v
	}
	if v := getEnvString("FIREHOSE_REGION"); v != "" {
		cfg.Firehose.Region = v
	}
	if v := getEnvString("FIREHOSE_ENDPOINT"); v != "" {
		cfg.Firehose.Endpoint = v
	}
	if v := getEnvList("KAFKA_BROKERS"); len(v) > 0 {
		cfg.Kafka.Brokers = v
	}
	if v := getEnvDuration("KAFKA_WRITE_TIMEOUT"); v != 0 {
		cfg.Kafka.WriteTimeout = v
	}
	if v := getEnvString("KAFKA_REQUIRED_ACKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Kafka.RequiredAcks = n
		}
	}
}

// loadRedisFromEnv loads Redis configuration from environment variables
func loadRedisFromEnv(cfg *RedisConfig) {
	loadRedisStrings(cfg)
	loadRedisInts(cfg)
	loadRedisTimeouts(cfg)
}

func loadRedisStrings(cfg *RedisConfig) {
	if v := getEnvString("REDIS_ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := getEnvString("REDIS_STREAM"); v != "" {
		cfg.Stream = v
	}
	if v := getEnvString("REDIS_GROUP"); v != "" {
		cfg.Group = v
	}
	if v := getEnvString("REDIS_CONSUMER"); v != "" {
		cfg.Consumer = v
	}
}

func loadRedisInts(cfg *RedisConfig) {
	if v := getEnvInt("REDIS_BATCH_SIZE"); v != 0 {
		cfg.BatchSize = v
	}
	if v := getEnvInt("REDIS_SINK_MAX_LEN"); v != 0 {
		cfg.SinkMaxLen = int64(v)
	}
}

func loadRedisTimeouts(cfg *RedisConfig) {
	if v := getEnvDuration("REDIS_BLOCK_TIMEOUT"); v != 0 {
		cfg.BlockTimeout = v
	}
	if v := getEnvDuration("REDIS_CLAIM_IDLE"); v != 0 {
		cfg.ClaimIdle = v
	}
	if v := getEnvDuration("REDIS_CONSUMER_IDLE_TIMEOUT"); v != 0 {
		cfg.ConsumerIdleTimeout = v
	}
	if v := getEnvDuration("REDIS_CLEANUP_INTERVAL"); v != 0 {
		cfg.CleanupInterval = v
	}
	if v := getEnvDuration("REDIS_DIAL_TIMEOUT"); v != 0 {
		cfg.DialTimeout = v
	}
	if v := getEnvDuration("REDIS_READ_TIMEOUT"); v != 0 {
		cfg.ReadTimeout = v
	}
	if v := getEnvDuration("REDIS_WRITE_TIMEOUT"); v != 0 {
		cfg.WriteTimeout = v
	}
	if v := getEnvDuration("REDIS_PING_TIMEOUT"); v != 0 {
		cfg.PingTimeout = v
	}
}

// loadMQTTFromEnv loads MQTT configuration from environment variables
func loadMQTTFromEnv(cfg *MQTTConfig) {
	loadMQTTStrings(cfg)
	loadMQTTInts(cfg)
	loadMQTTTimeouts(cfg)
	loadMQTTTLS(cfg)
}

func loadMQTTStrings(cfg *MQTTConfig) {
	if v := getEnvString("MQTT_BROKER"); v != "" {
		cfg.Broker = v
	}
	if v := getEnvString("MQTT_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := getEnvString("MQTT_TOPIC_PREFIX"); v != "" {
		cfg.TopicPrefix = v
	}
}

func loadMQTTInts(cfg *MQTTConfig) {
	if v := getEnvString("MQTT_QOS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 2 {
			cfg.QoS = byte(n) // #nosec G115 - validated range 0-2
		}
	}
	if v := getEnvInt("MQTT_POOL_SIZE"); v != 0 {
		cfg.PoolSize = v
	}
	if v := getEnvInt("MQTT_DISCONNECT_TIMEOUT"); v > 0 {
		cfg.DisconnectTimeout = uint(v)
	}
}

func loadMQTTTimeouts(cfg *MQTTConfig) {
	if v := getEnvDuration("MQTT_CONNECT_TIMEOUT"); v != 0 {
		cfg.ConnectTimeout = v
	}
	if v := getEnvDuration("MQTT_WRITE_TIMEOUT"); v != 0 {
		cfg.WriteTimeout = v
	}
	if v := getEnvDuration("MQTT_MAX_RECONNECT_INTERVAL"); v != 0 {
		cfg.MaxReconnectInterval = v
	}
}

func loadMQTTTLS(cfg *MQTTConfig) {
	if v := getEnvString("MQTT_CA_CERT"); v != "" {
		cfg.CACert = v
	}
	if v := getEnvString("MQTT_CLIENT_CERT"); v != "" {
		cfg.ClientCert = v
	}
	if v := getEnvString("MQTT_CLIENT_KEY"); v != "" {
		cfg.ClientKey = v
	}
	if getEnvBool("MQTT_TLS_ENABLED") {
		cfg.TLSEnabled = true
	}
	if getEnvBool("MQTT_TLS_INSECURE_SKIP") {
		cfg.InsecureSkip = true
	}
	if getEnvBool("MQTT_USE_CERT_CN_PREFIX") {
		cfg.UseCertCNPrefix = true
	}
}

// loadSourceFromEnv loads the envelope source selection
func loadSourceFromEnv(cfg *SourceConfig) {
	if v := getEnvString("SOURCE_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := getEnvString("SOURCE_INPUT_FILE"); v != "" {
		cfg.InputFile = v
	}
}

// loadPipelineFromEnv loads Pipeline configuration from environment variables
func loadPipelineFromEnv(cfg *PipelineConfig) {
	if v := getEnvDuration("PIPELINE_SHUTDOWN_TIMEOUT"); v != 0 {
		cfg.ShutdownTimeout = v
	}
	if v := getEnvDuration("PIPELINE_ERROR_BACKOFF"); v != 0 {
		cfg.ErrorBackoff = v
	}
	if v, ok := os.LookupEnv("PIPELINE_METRICS_ADDRESS"); ok {
		cfg.MetricsAddress = v
	}
}

// Helper functions for reading environment variables

func getEnvString(key string) string {
	return os.Getenv(key)
}

func getEnvInt(key string) int {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return intValue
}

func getEnvDuration(key string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return duration
}

// getEnvBool accepts "true" and "1"
func getEnvBool(key string) bool {
	value := strings.ToLower(os.Getenv(key))
	return value == "true" || value == "1"
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
