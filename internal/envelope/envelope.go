// Package envelope decodes CloudWatch Logs subscription deliveries into
// ordered log lines.
//
// A delivery is base64 text wrapping a gzip (or zlib) compressed JSON
// document:
//
//	{"messageType":"DATA_MESSAGE","owner":"...","logGroup":"...","logStream":"...",
//	 "subscriptionFilters":["..."],"logEvents":[{"id":"...","timestamp":1515648275000,"message":"..."}]}
//
// Two shapes are understood. With ShapeCloudWatch every event message is the
// raw application line. With ShapeFluentd every event message is itself a
// JSON object written by a fluentd forwarder and the application line is its
// "log" field.
package envelope

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/message"
)

// Shape selects how event messages are turned into log lines
type Shape string

const (
	ShapeCloudWatch Shape = "cloudwatch"
	ShapeFluentd    Shape = "fluentd"
)

// ParseShape validates a configured shape name
func ParseShape(s string) (Shape, error) {
	switch Shape(s) {
	case ShapeCloudWatch, ShapeFluentd:
		return Shape(s), nil
	case "":
		return ShapeCloudWatch, nil
	default:
		return "", fmt.Errorf("unknown envelope shape %q", s)
	}
}

// fluentdLogKey is the fluentd field holding the application line
const fluentdLogKey = "log"

type wireEvent struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

type wireDocument struct {
	MessageType         string       `json:"messageType"`
	Owner               string       `json:"owner"`
	LogGroup            string       `json:"logGroup"`
	LogStream           *string      `json:"logStream"`
	SubscriptionFilters []string     `json:"subscriptionFilters"`
	LogEvents           *[]wireEvent `json:"logEvents"`
}

// Decoder turns delivery bytes into an Envelope
type Decoder struct {
	shape Shape
	log   *log.Logger
}

// NewDecoder creates a decoder for the given shape
func NewDecoder(shape Shape, logger *log.Logger) *Decoder {
	if shape == "" {
		shape = ShapeCloudWatch
	}
	return &Decoder{shape: shape, log: logger}
}

// Shape returns the configured envelope shape
func (d *Decoder) Shape() Shape {
	return d.shape
}

// Decode decodes base64 compressed JSON into an Envelope.
// Any failure is returned as a *DecodeError.
func (d *Decoder) Decode(data []byte) (*message.Envelope, error) {
	compressed, err := decodeBase64(data)
	if err != nil {
		return nil, &DecodeError{Stage: StageBase64, Err: err}
	}

	doc, err := decompress(compressed)
	if err != nil {
		return nil, &DecodeError{Stage: StageDecompress, Err: err}
	}

	var wire wireDocument
	if err := json.Unmarshal(doc, &wire); err != nil {
		return nil, &DecodeError{Stage: StageJSON, Err: err}
	}
	if wire.LogEvents == nil {
		return nil, &DecodeError{Stage: StageFields, Err: fmt.Errorf("missing logEvents")}
	}
	if wire.LogStream == nil {
		return nil, &DecodeError{Stage: StageFields, Err: fmt.Errorf("missing logStream")}
	}

	env := &message.Envelope{
		Owner:               wire.Owner,
		LogGroup:            wire.LogGroup,
		LogStream:           *wire.LogStream,
		MessageType:         wire.MessageType,
		SubscriptionFilters: wire.SubscriptionFilters,
		Lines:               make([]message.LogLine, 0, len(*wire.LogEvents)),
	}

	for _, ev := range *wire.LogEvents {
		text, ok := d.lineText(ev)
		if !ok {
			continue
		}
		env.Lines = append(env.Lines, message.LogLine{
			ID:              ev.ID,
			TimestampMillis: ev.Timestamp,
			Message:         text,
		})
	}

	return env, nil
}

// lineText extracts the application line from an event according to the shape
func (d *Decoder) lineText(ev wireEvent) (string, bool) {
	if d.shape != ShapeFluentd {
		return ev.Message, true
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(ev.Message), &fields); err != nil {
		d.log.Warn("Skipping event %s: message is not a fluentd record: %v", ev.ID, err)
		return "", false
	}
	line, ok := fields[fluentdLogKey].(string)
	if !ok {
		d.log.Debug("Skipping event %s: fluentd record has no %q field", ev.ID, fluentdLogKey)
		return "", false
	}
	return line, true
}

func decodeBase64(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	out := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(out, data)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// decompress inflates gzip or zlib input, picked by the stream header
func decompress(data []byte) ([]byte, error) {
	var (
		r   io.ReadCloser
		err error
	)
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		r, err = gzip.NewReader(bytes.NewReader(data))
	} else {
		r, err = zlib.NewReader(bytes.NewReader(data))
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	return io.ReadAll(r)
}
