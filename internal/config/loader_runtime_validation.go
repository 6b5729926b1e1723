package config

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/ibs-source/logtag-forwarder/internal/message"
)

// applyRuntimeValidation applies runtime validations and transformations
func applyRuntimeValidation(cfg *Config) error {
	if err := resolveTags(cfg); err != nil {
		return err
	}
	applyConsumerName(&cfg.Redis)
	return applyTopicPrefix(cfg)
}

// resolveTags builds the ordered tag registry. An explicit registry wins
// over the profile's tags.
func resolveTags(cfg *Config) error {
	var (
		tags []message.TagConfig
		err  error
	)
	switch {
	case cfg.Engine.TagRegistry != "":
		tags, err = ParseTagRegistry(cfg.Engine.TagRegistry, cfg.Engine.DefaultThreshold)
	case cfg.Engine.Profile != "":
		tags, err = profileTags(cfg.Engine.Profile, cfg.Engine.DefaultThreshold)
	default:
		return fmt.Errorf("no tags configured: set ENGINE_PROFILE or TAG_REGISTRY")
	}
	if err != nil {
		return fmt.Errorf("failed to resolve tag registry: %w", err)
	}
	cfg.Tags = tags
	return nil
}

// applyConsumerName gives every forwarder process a unique consumer name
// unless one was configured
func applyConsumerName(cfg *RedisConfig) {
	if cfg.Consumer == "" {
		cfg.Consumer = "forwarder-" + uuid.NewString()
	}
}

// applyTopicPrefix prefixes the MQTT topic prefix with certificate CN if configured
func applyTopicPrefix(cfg *Config) error {
	if cfg.MQTT.UseCertCNPrefix && cfg.MQTT.ClientCert != "" {
		cn, err := extractCNFromCertFile(cfg.MQTT.ClientCert)
		if err != nil {
			return fmt.Errorf("failed to extract CN from certificate: %w", err)
		}
		cfg.MQTT.TopicPrefix = cn + "/" + cfg.MQTT.TopicPrefix
	}
	return nil
}

// extractCNFromCertFile extracts the CN from a PEM certificate file
func extractCNFromCertFile(certPath string) (string, error) {
	certPEM, err := os.ReadFile(certPath) // #nosec G304 - certPath is from config, not user input
	if err != nil {
		return "", fmt.Errorf("failed to read certificate: %w", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return "", fmt.Errorf("failed to decode PEM certificate")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("failed to parse certificate: %w", err)
	}

	if cert.Subject.CommonName == "" {
		return "", fmt.Errorf("certificate has no CN")
	}

	return cert.Subject.CommonName, nil
}
