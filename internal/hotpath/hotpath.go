// Package hotpath feeds queued envelopes from Redis through the extraction engine.
package hotpath

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ibs-source/logtag-forwarder/internal/config"
	"github.com/ibs-source/logtag-forwarder/internal/engine"
	"github.com/ibs-source/logtag-forwarder/internal/envelope"
	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/message"
	"github.com/ibs-source/logtag-forwarder/internal/metrics"
)

// Source is the queue envelopes are read from. *redis.Client implements it.
type Source interface {
	ReadBatch(ctx context.Context) (message.Batch[message.Payload], error)
	ClaimIdle(ctx context.Context) (message.Batch[message.Payload], error)
	AckAndDelete(ctx context.Context, entry message.Entry[message.Payload]) error
	CleanupDeadConsumers(ctx context.Context, idleTimeout time.Duration) (int, error)
}

// Runner runs one engine cycle. *engine.Engine implements it.
type Runner interface {
	Run(ctx context.Context, data []byte) (*engine.Report, error)
}

// HotPath orchestrates the Redis→engine pipeline
type HotPath struct {
	source              Source
	engine              Runner
	claimInterval       time.Duration
	cleanupInterval     time.Duration
	consumerIdleTimeout time.Duration
	errorBackoff        time.Duration
	log                 *log.Logger
	metrics             *metrics.Handler
}

// New creates a new hot path orchestrator. metricsHandler may be nil.
func New(source Source, runner Runner, cfg *config.Config, logger *log.Logger, metricsHandler *metrics.Handler) *HotPath {
	return &HotPath{
		source:              source,
		engine:              runner,
		claimInterval:       cfg.Redis.ClaimIdle,
		cleanupInterval:     cfg.Redis.CleanupInterval,
		consumerIdleTimeout: cfg.Redis.ConsumerIdleTimeout,
		errorBackoff:        cfg.Pipeline.ErrorBackoff,
		log:                 logger,
		metrics:             metricsHandler,
	}
}

// Run starts the fetch, claim and cleanup loops and blocks until ctx is
// canceled or one of them fails
func (hp *HotPath) Run(ctx context.Context) error {
	hp.log.Info("Starting hot path orchestrator")

	g, gctx := errgroup.WithContext(ctx)
	hp.startLoop(gctx, g, "fetch", hp.fetchLoop)
	hp.startLoop(gctx, g, "claim", hp.claimLoop)
	hp.startLoop(gctx, g, "cleanup", hp.cleanupLoop)

	err := g.Wait()
	hp.log.Info("Hot path orchestrator stopped")
	if err == nil {
		return ctx.Err()
	}
	return err
}

// startLoop runs a loop in the group, ignoring cancellation errors
func (hp *HotPath) startLoop(ctx context.Context, g *errgroup.Group, name string, loop func(context.Context) error) {
	g.Go(func() error {
		if err := loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s loop error: %w", name, err)
		}
		return nil
	})
}

// fetchLoop continuously reads new envelopes and runs them
func (hp *HotPath) fetchLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := hp.source.ReadBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			hp.log.Error("Failed to read batch from Redis: %v", err)
			if err := sleep(ctx, hp.errorBackoff); err != nil {
				return err
			}
			continue
		}

		if len(batch.Items) == 0 {
			continue
		}
		hp.log.Debug("Fetched %d envelopes from Redis", len(batch.Items))
		hp.process(ctx, batch.Items)
	}
}

// claimLoop periodically takes over envelopes other consumers left pending
func (hp *HotPath) claimLoop(ctx context.Context) error {
	ticker := time.NewTicker(hp.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			batch, err := hp.source.ClaimIdle(ctx)
			if err != nil {
				hp.log.Error("Failed to claim idle envelopes: %v", err)
				continue
			}
			if len(batch.Items) == 0 {
				continue
			}

			hp.log.Info("Claimed %d idle envelopes", len(batch.Items))
			if hp.metrics != nil {
				hp.metrics.EnvelopesReclaimed.Add(float64(len(batch.Items)))
			}
			hp.process(ctx, batch.Items)
		}
	}
}

// cleanupLoop periodically removes dead consumers from the consumer group
func (hp *HotPath) cleanupLoop(ctx context.Context) error {
	ticker := time.NewTicker(hp.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := hp.source.CleanupDeadConsumers(ctx, hp.consumerIdleTimeout)
			if err != nil {
				hp.log.Error("Failed to cleanup dead consumers: %v", err)
				continue
			}
			if removed > 0 {
				hp.log.Info("Removed %d dead consumers", removed)
			}
		}
	}
}

// process runs every entry through the engine in order. An entry is
// acknowledged when its cycle succeeds or when its envelope can never be
// decoded; any other failure leaves it pending for the claim loop.
func (hp *HotPath) process(ctx context.Context, entries []message.Entry[message.Payload]) {
	for i := range entries {
		if ctx.Err() != nil {
			return
		}
		entry := entries[i]

		if _, err := hp.engine.Run(ctx, entry.Body); err != nil {
			var decodeErr *envelope.DecodeError
			if !errors.As(err, &decodeErr) {
				hp.log.Error("Envelope %s failed, leaving it pending: %v", entry.ID, err)
				continue
			}
			hp.log.Warn("Dropping undecodable envelope %s: %v", entry.ID, err)
		}

		if err := hp.source.AckAndDelete(ctx, entry); err != nil {
			hp.log.Error("Failed to ACK envelope %s from stream %s: %v", entry.ID, entry.Stream, err)
			continue
		}
		if hp.metrics != nil {
			hp.metrics.EnvelopesAcked.Inc()
		}
	}
}

// sleep waits for d or until ctx is canceled
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
