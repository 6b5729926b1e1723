package mqtt

import (
	"context"
	"errors"
	"sync"

	"github.com/ibs-source/logtag-forwarder/internal/message"
)

type published struct {
	topic   string
	payload string
}

// fakePublisher records publishes and fails while failing is set
type fakePublisher struct {
	mu      sync.Mutex
	sent    []published
	failing bool
	closed  bool
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload message.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("not connected")
	}
	f.sent = append(f.sent, published{topic: topic, payload: string(payload)})
	return nil
}

func (f *fakePublisher) PublishBatch(ctx context.Context, topic string, payloads []message.Payload) error {
	for _, p := range payloads {
		if err := f.Publish(ctx, topic, p); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}
