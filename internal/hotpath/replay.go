package hotpath

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/ibs-source/logtag-forwarder/internal/envelope"
	"github.com/ibs-source/logtag-forwarder/internal/log"
)

// ErrNoEventProcessed is returned when a replay read events but every one failed
var ErrNoEventProcessed = errors.New("no event could be processed")

// ReplayStats summarizes a replayed event file
type ReplayStats struct {
	Events int
	Failed int
}

// Replay runs every subscription event in r as its own cycle. r holds a
// stream of JSON documents: a single pretty-printed event, or one per line.
// Undecodable events are counted and skipped.
func Replay(ctx context.Context, r io.Reader, runner Runner, logger *log.Logger) (ReplayStats, error) {
	var stats ReplayStats

	dec := json.NewDecoder(r)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return stats, fmt.Errorf("event %d: read events: %w", stats.Events+1, err)
		}
		stats.Events++

		data, err := envelope.ReadEvent(raw)
		if err == nil {
			_, err = runner.Run(ctx, data)
		}
		if err != nil {
			var decodeErr *envelope.DecodeError
			if !errors.As(err, &decodeErr) {
				return stats, fmt.Errorf("event %d: %w", stats.Events, err)
			}
			stats.Failed++
			logger.Warn("Skipping event %d: %v", stats.Events, err)
		}
	}

	if stats.Events > 0 && stats.Failed == stats.Events {
		return stats, fmt.Errorf("%d events read: %w", stats.Events, ErrNoEventProcessed)
	}
	return stats, nil
}
