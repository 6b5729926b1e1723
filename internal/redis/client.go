package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ibs-source/logtag-forwarder/internal/config"
	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/message"
)

// EnvelopeField is the stream entry field carrying one encoded envelope
const EnvelopeField = "data"

// Client reads encoded envelopes from a Redis stream through a consumer group
type Client struct {
	rdb          *redis.Client
	stream       string
	group        string
	consumer     string
	batchSize    int64
	blockTimeout time.Duration
	claimIdle    time.Duration
	log          *log.Logger
}

// newRedis opens and pings a connection
func newRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

// NewClient connects to Redis and joins (or creates) the consumer group
func NewClient(cfg *config.RedisConfig, logger *log.Logger) (*Client, error) {
	rdb, err := newRedis(cfg)
	if err != nil {
		return nil, err
	}

	client := &Client{
		rdb:          rdb,
		stream:       cfg.Stream,
		group:        cfg.Group,
		consumer:     cfg.Consumer,
		batchSize:    int64(cfg.BatchSize),
		blockTimeout: cfg.BlockTimeout,
		claimIdle:    cfg.ClaimIdle,
		log:          logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()
	if err := client.ensureGroup(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	logger.Info("Consuming envelopes from stream '%s' as %s/%s", cfg.Stream, cfg.Group, cfg.Consumer)
	return client, nil
}

func (c *Client) ensureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			c.log.Info("Consumer group '%s' already exists for stream '%s', joining existing group", c.group, c.stream)
			return nil
		}
		return fmt.Errorf("failed to create consumer group for stream %s: %w", c.stream, err)
	}
	c.log.Info("Created consumer group '%s' for stream '%s'", c.group, c.stream)
	return nil
}

// Consumer returns this client's consumer name
func (c *Client) Consumer() string {
	return c.consumer
}

// ReadBatch fetches new envelopes with XREADGROUP. An empty batch means the
// block timeout elapsed without traffic.
func (c *Client) ReadBatch(ctx context.Context) (message.Batch[message.Payload], error) {
	result, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockTimeout,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return message.Batch[message.Payload]{}, nil
		}
		return message.Batch[message.Payload]{}, fmt.Errorf("xreadgroup failed: %w", err)
	}

	var items []message.Entry[message.Payload]
	for _, streamResult := range result {
		items = append(items, c.toEntries(streamResult.Stream, streamResult.Messages)...)
	}
	return message.Batch[message.Payload]{Items: items}, nil
}

// ClaimIdle takes over envelopes left pending by consumers that stopped
// before acknowledging them
func (c *Client) ClaimIdle(ctx context.Context) (message.Batch[message.Payload], error) {
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Idle:   c.claimIdle,
		Start:  "-",
		End:    "+",
		Count:  c.batchSize,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return message.Batch[message.Payload]{}, nil
		}
		return message.Batch[message.Payload]{}, fmt.Errorf("xpending failed: %w", err)
	}
	if len(pending) == 0 {
		return message.Batch[message.Payload]{}, nil
	}

	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
	}

	claimed, err := c.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.claimIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return message.Batch[message.Payload]{}, fmt.Errorf("xclaim failed: %w", err)
	}

	return message.Batch[message.Payload]{Items: c.toEntries(c.stream, claimed)}, nil
}

// toEntries keeps the envelope field of each stream message. A message
// without it becomes an empty envelope, which the engine treats as a no-op.
func (c *Client) toEntries(stream string, msgs []redis.XMessage) []message.Entry[message.Payload] {
	entries := make([]message.Entry[message.Payload], 0, len(msgs))
	for _, msg := range msgs {
		entries = append(entries, message.Entry[message.Payload]{
			ID:     msg.ID,
			Stream: stream,
			Body:   envelopeBytes(msg.Values),
		})
	}
	return entries
}

func envelopeBytes(values map[string]interface{}) message.Payload {
	switch v := values[EnvelopeField].(type) {
	case string:
		return message.Payload(v)
	case []byte:
		return v
	default:
		return nil
	}
}

// AckAndDelete acknowledges an envelope and removes it from the stream
func (c *Client) AckAndDelete(ctx context.Context, entry message.Entry[message.Payload]) error {
	stream := entry.Stream
	if stream == "" {
		stream = c.stream
	}

	if err := c.rdb.XAck(ctx, stream, c.group, entry.ID).Err(); err != nil {
		return fmt.Errorf("xack failed for message %s in stream %s: %w", entry.ID, stream, err)
	}
	if err := c.rdb.XDel(ctx, stream, entry.ID).Err(); err != nil {
		return fmt.Errorf("xdel failed for message %s in stream %s: %w", entry.ID, stream, err)
	}
	return nil
}

// Close closes the Redis client connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}
