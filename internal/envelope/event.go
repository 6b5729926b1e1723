package envelope

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// SubscriptionEvent is the trigger document delivered by a CloudWatch Logs
// subscription: {"awslogs":{"data":"H4sI..."}}
type SubscriptionEvent struct {
	AWSLogs struct {
		Data string `json:"data"`
	} `json:"awslogs"`
}

// ReadEvent extracts the encoded delivery from a subscription event document.
// An event with an empty data field yields an empty slice and no error.
func ReadEvent(raw []byte) ([]byte, error) {
	var ev SubscriptionEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, &DecodeError{Stage: StageEvent, Err: err}
	}
	return []byte(ev.AWSLogs.Data), nil
}

// Encode gzips and base64 encodes a JSON document the way CloudWatch Logs
// does. Used to replay captured documents and to produce fixtures.
func Encode(doc []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(doc); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}

	out := make([]byte, base64.StdEncoding.EncodedLen(buf.Len()))
	base64.StdEncoding.Encode(out, buf.Bytes())
	return out, nil
}
