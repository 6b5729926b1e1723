package batch

import (
	"context"
	"errors"

	"github.com/ibs-source/logtag-forwarder/internal/message"
)

type putCall struct {
	stream  string
	records []message.Record
}

// recordingSink remembers every call and fails while failing is set
type recordingSink struct {
	calls   []putCall
	failing bool
}

func (s *recordingSink) PutBatch(_ context.Context, stream string, records []message.Record) error {
	s.calls = append(s.calls, putCall{stream: stream, records: append([]message.Record(nil), records...)})
	if s.failing {
		return errors.New("service unavailable")
	}
	return nil
}
