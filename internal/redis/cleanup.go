// Package redis reads encoded envelopes from a Redis stream consumer group
// and writes forwarded records to per-tag Redis streams.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CleanupDeadConsumers removes group members idle for longer than idleTimeout.
// XGROUP DELCONSUMER drops a consumer's pending entries, so they are first
// claimed by this consumer, where ClaimIdle picks them up for processing.
// A consumer whose entries cannot be claimed is left in the group.
func (c *Client) CleanupDeadConsumers(ctx context.Context, idleTimeout time.Duration) (int, error) {
	consumers, err := c.rdb.XInfoConsumers(ctx, c.stream, c.group).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get consumers info: %w", err)
	}

	removed := 0
	for _, consumer := range consumers {
		if !isDead(consumer.Name, c.consumer, consumer.Idle, idleTimeout) {
			continue
		}

		c.log.Info("Removing dead consumer %s from stream %s (idle for %s)", consumer.Name, c.stream, consumer.Idle)
		if consumer.Pending > 0 {
			taken, err := c.takeOverPending(ctx, consumer.Name, consumer.Pending)
			if err != nil {
				c.log.Error("Failed to take over pending envelopes of %s, keeping it: %v", consumer.Name, err)
				continue
			}
			c.log.Info("Took over %d pending envelopes from %s", taken, consumer.Name)
		}

		pending, err := c.rdb.XGroupDelConsumer(ctx, c.stream, c.group, consumer.Name).Result()
		if err != nil {
			c.log.Error("Failed to delete consumer %s from stream %s: %v", consumer.Name, c.stream, err)
			continue
		}
		if pending > 0 {
			c.log.Warn("Consumer %s left %d envelopes pending", consumer.Name, pending)
		}
		removed++
	}

	if removed > 0 {
		c.log.Info("Cleaned up %d dead consumers", removed)
	}
	return removed, nil
}

// takeOverPending moves every pending entry of a consumer to this client
func (c *Client) takeOverPending(ctx context.Context, name string, count int64) (int, error) {
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   c.stream,
		Group:    c.group,
		Start:    "-",
		End:      "+",
		Count:    count,
		Consumer: name,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending failed for consumer %s: %w", name, err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
	}
	claimed, err := c.rdb.XClaimJustID(ctx, &redis.XClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		Messages: ids,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("xclaim failed for consumer %s: %w", name, err)
	}
	return len(claimed), nil
}

// isDead reports whether a consumer other than self exceeded the idle timeout
func isDead(name, self string, idle, idleTimeout time.Duration) bool {
	return name != self && idle > idleTimeout
}
