package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ibs-source/logtag-forwarder/internal/message"
)

// ParseTagRegistry parses "marker|stream[|threshold];..." into an ordered
// registry. Entries without a threshold use defaultThreshold.
//
//	response_log=|ResponsesToS3|499;feed_event=|FeedEventsToS3
func ParseTagRegistry(registry string, defaultThreshold int) ([]message.TagConfig, error) {
	var tags []message.TagConfig

	for _, entry := range strings.Split(registry, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, "|")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("tag entry %q: want marker|stream[|threshold]", entry)
		}

		tag := message.TagConfig{
			Marker:         parts[0],
			StreamName:     strings.TrimSpace(parts[1]),
			BatchThreshold: defaultThreshold,
		}
		if len(parts) == 3 {
			n, err := strconv.Atoi(strings.TrimSpace(parts[2]))
			if err != nil {
				return nil, fmt.Errorf("tag entry %q: invalid threshold: %w", entry, err)
			}
			tag.BatchThreshold = n
		}
		tags = append(tags, tag)
	}

	if len(tags) == 0 {
		return nil, fmt.Errorf("tag registry %q has no entries", registry)
	}
	return tags, nil
}

// Markers returns the registered markers in registration order
func (c *Config) Markers() []string {
	markers := make([]string, len(c.Tags))
	for i, t := range c.Tags {
		markers[i] = t.Marker
	}
	return markers
}
