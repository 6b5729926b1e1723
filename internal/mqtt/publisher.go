package mqtt

import (
	"context"

	"github.com/ibs-source/logtag-forwarder/internal/message"
)

// Publisher is implemented by a single Client and by a Pool
type Publisher interface {
	Publish(ctx context.Context, topic string, payload message.Payload) error
	PublishBatch(ctx context.Context, topic string, payloads []message.Payload) error
	Close() error
}

var (
	_ Publisher = (*Client)(nil)
	_ Publisher = (*Pool)(nil)
)
