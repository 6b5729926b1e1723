package config

import (
	"fmt"
	"sort"

	"github.com/ibs-source/logtag-forwarder/internal/message"
)

// profileTag is a tag whose stream name can be overridden by an environment variable
type profileTag struct {
	marker        string
	streamEnv     string
	defaultStream string
}

// profile captures one historical deployment of the forwarder
type profile struct {
	shape         string
	streamFilter  string
	healthCheck   string
	appendNewline bool
	tags          []profileTag
}

const (
	responseStreamEnv = "RESPONSE_DELIVERY_STREAM_NAME"
	trackingStreamEnv = "EVENT_TRACKING_DELIVERY_STREAM_NAME"
	healthCheckMarker = "health_check"
)

var profiles = map[string]profile{
	// Elixir controllers logging to CloudWatch directly; only the production
	// stream of a shared log group is forwarded.
	"doubledouble": {
		shape:         "cloudwatch",
		streamFilter:  "hibiki-prod",
		healthCheck:   healthCheckMarker,
		appendNewline: true,
		tags: []profileTag{
			{marker: "response_log=", streamEnv: responseStreamEnv, defaultStream: "DoubleDoubleSandboxResponseToS3"},
			{marker: "event_tracking=", streamEnv: trackingStreamEnv, defaultStream: "DoubleDoubleSandboxTrackingToS3"},
		},
	},
	// Containers shipping through fluentd; the line is the "log" field.
	"galaxy": {
		shape:       "fluentd",
		healthCheck: healthCheckMarker,
		tags: []profileTag{
			{marker: "response_log=", streamEnv: responseStreamEnv, defaultStream: "SandboxResponseToS3"},
			{marker: "event_tracking=", streamEnv: trackingStreamEnv, defaultStream: "SandboxTrackingToS3"},
		},
	},
	"naboo": {
		shape:        "cloudwatch",
		streamFilter: "test-stream",
		healthCheck:  healthCheckMarker,
		tags: []profileTag{
			{marker: "response_log=", streamEnv: responseStreamEnv, defaultStream: "NabooDevResponseToS3"},
			{marker: "feed_event=", streamEnv: trackingStreamEnv, defaultStream: "NabooDevFeedEventToS3"},
		},
	},
}

// ProfileNames lists the known deployment profiles
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// applyProfile overlays a profile's engine settings on the defaults
func applyProfile(cfg *Config, name string) error {
	if name == "" {
		return nil
	}
	p, ok := profiles[name]
	if !ok {
		return fmt.Errorf("unknown engine profile %q (known: %v)", name, ProfileNames())
	}

	cfg.Engine.Profile = name
	cfg.Engine.Shape = p.shape
	cfg.Engine.StreamFilter = p.streamFilter
	cfg.Engine.HealthCheckMarker = p.healthCheck
	cfg.Engine.AppendNewline = p.appendNewline
	return nil
}

// profileTags resolves a profile's tag registry against the environment
func profileTags(name string, threshold int) ([]message.TagConfig, error) {
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown engine profile %q", name)
	}

	tags := make([]message.TagConfig, 0, len(p.tags))
	for _, t := range p.tags {
		stream := t.defaultStream
		if v := getEnvString(t.streamEnv); v != "" {
			stream = v
		}
		tags = append(tags, message.TagConfig{
			Marker:         t.marker,
			StreamName:     stream,
			BatchThreshold: threshold,
		})
	}
	return tags, nil
}
