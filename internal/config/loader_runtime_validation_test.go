package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestCert(t *testing.T, cn string) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "client.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600))
	return path
}

func runtimeTestConfig() *Config {
	cfg := defaultConfig()
	cfg.Engine.TagRegistry = "response_log=|Responses"
	return cfg
}

func TestApplyRuntimeValidation_ResolvesTags(t *testing.T) {
	cfg := runtimeTestConfig()
	require.NoError(t, applyRuntimeValidation(cfg))
	require.Len(t, cfg.Tags, 1)
	assert.Equal(t, "Responses", cfg.Tags[0].StreamName)
}

func TestApplyRuntimeValidation_RegistryOverridesProfile(t *testing.T) {
	cfg := runtimeTestConfig()
	require.NoError(t, applyProfile(cfg, "galaxy"))

	require.NoError(t, applyRuntimeValidation(cfg))
	assert.Equal(t, []string{"response_log="}, cfg.Markers())
	assert.Equal(t, "fluentd", cfg.Engine.Shape)
}

func TestApplyRuntimeValidation_BadRegistry(t *testing.T) {
	cfg := runtimeTestConfig()
	cfg.Engine.TagRegistry = "only-a-marker"

	err := applyRuntimeValidation(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to resolve tag registry")
}

func TestApplyConsumerName(t *testing.T) {
	cfg := RedisConfig{}
	applyConsumerName(&cfg)
	assert.Contains(t, cfg.Consumer, "forwarder-")

	other := RedisConfig{}
	applyConsumerName(&other)
	assert.NotEqual(t, cfg.Consumer, other.Consumer)

	fixed := RedisConfig{Consumer: "pinned"}
	applyConsumerName(&fixed)
	assert.Equal(t, "pinned", fixed.Consumer)
}

func TestApplyTopicPrefix_WithCertCN(t *testing.T) {
	cfg := runtimeTestConfig()
	cfg.MQTT.UseCertCNPrefix = true
	cfg.MQTT.ClientCert = writeTestCert(t, "device-42")

	require.NoError(t, applyTopicPrefix(cfg))
	assert.Equal(t, "device-42/logtag/records", cfg.MQTT.TopicPrefix)
}

func TestApplyTopicPrefix_NoCert(t *testing.T) {
	cfg := runtimeTestConfig()
	cfg.MQTT.UseCertCNPrefix = true

	require.NoError(t, applyTopicPrefix(cfg))
	assert.Equal(t, "logtag/records", cfg.MQTT.TopicPrefix)
}

func TestApplyRuntimeValidation_MissingCert(t *testing.T) {
	cfg := runtimeTestConfig()
	cfg.MQTT.UseCertCNPrefix = true
	cfg.MQTT.ClientCert = "/nonexistent/cert.pem"

	assert.Error(t, applyRuntimeValidation(cfg))
}

func TestExtractCNFromCertFile(t *testing.T) {
	t.Run("invalid pem", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invalid-cert.pem")
		require.NoError(t, os.WriteFile(path, []byte("invalid cert content"), 0600))
		_, err := extractCNFromCertFile(path)
		assert.Error(t, err)
	})

	t.Run("empty cn", func(t *testing.T) {
		_, err := extractCNFromCertFile(writeTestCert(t, ""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no CN")
	})
}
