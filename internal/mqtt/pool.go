package mqtt

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/ibs-source/logtag-forwarder/internal/config"
	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/message"
)

// Pool spreads batches over several connections. A batch never spans
// connections, so its records keep their order.
type Pool struct {
	clients []Publisher
	next    atomic.Uint64
	log     *log.Logger
}

// NewPool connects poolSize clients with unique client IDs
func NewPool(cfg *config.MQTTConfig, poolSize int, logger *log.Logger) (*Pool, error) {
	if poolSize < 1 {
		poolSize = 1
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	baseClientID := fmt.Sprintf("%s-%s-%d", cfg.ClientID, hostname, os.Getpid())

	clients := make([]Publisher, 0, poolSize)
	for i := 0; i < poolSize; i++ {
		clientCfg := *cfg
		clientCfg.ClientID = fmt.Sprintf("%s-%d", baseClientID, i)

		client, err := NewClient(&clientCfg, logger)
		if err != nil {
			for _, c := range clients {
				_ = c.Close()
			}
			return nil, fmt.Errorf("failed to create client %d: %w", i, err)
		}
		clients = append(clients, client)
	}

	return newPool(clients, logger), nil
}

func newPool(clients []Publisher, logger *log.Logger) *Pool {
	return &Pool{clients: clients, log: logger}
}

func (p *Pool) pick() Publisher {
	idx := p.next.Add(1) % uint64(len(p.clients)) // #nosec G115
	return p.clients[idx]
}

// Publish sends one payload on the next connection
func (p *Pool) Publish(ctx context.Context, topic string, payload message.Payload) error {
	return p.pick().Publish(ctx, topic, payload)
}

// PublishBatch sends every payload on the same connection, in order
func (p *Pool) PublishBatch(ctx context.Context, topic string, payloads []message.Payload) error {
	return p.pick().PublishBatch(ctx, topic, payloads)
}

// Close closes all connections in the pool
func (p *Pool) Close() error {
	var lastErr error
	for i, client := range p.clients {
		if err := client.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close client %d: %w", i, err)
		}
	}
	return lastErr
}
