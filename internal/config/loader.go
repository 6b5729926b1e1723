package config

import (
	"flag"
	"fmt"
)

// Load loads configuration with precedence: defaults → profile → environment variables → command line flags
// It performs validation and runtime transformations before returning the configuration.
func Load() (*Config, error) {
	if !flag.Parsed() {
		flag.Parse()
	}

	// Step 1: Start with defaults
	cfg := defaultConfig()

	// Step 2: Overlay the deployment profile, if any
	if err := applyProfile(cfg, selectedProfile()); err != nil {
		return nil, err
	}

	// Step 3: Apply environment variables
	loadEngineFromEnv(&cfg.Engine)
	loadSinkFromEnv(cfg)
	loadRedisFromEnv(&cfg.Redis)
	loadMQTTFromEnv(&cfg.MQTT)
	loadSourceFromEnv(&cfg.Source)
	loadPipelineFromEnv(&cfg.Pipeline)

	// Step 4: Apply command line flags (highest precedence)
	applyEngineFlags(&cfg.Engine)
	applySinkFlags(cfg)
	applyRedisFlags(&cfg.Redis)
	applyMQTTFlags(&cfg.MQTT)
	applySourceFlags(&cfg.Source)
	applyPipelineFlags(&cfg.Pipeline)

	// Step 5: Apply runtime validations and transformations
	if err := applyRuntimeValidation(cfg); err != nil {
		return nil, err
	}

	// Step 6: Validate the final configuration
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// selectedProfile returns the profile named by flag or environment
func selectedProfile() string {
	if *flags.engineProfile != "" {
		return *flags.engineProfile
	}
	return getEnvString("ENGINE_PROFILE")
}
