// Package message provides the data structures shared by the decoder, the
// extraction engine, the sinks and the Redis envelope source.
package message

// Payload is the canonical alias for a raw envelope body
type Payload = []byte

// LogLine is one log event of an envelope. Immutable once decoded.
type LogLine struct {
	ID              string
	TimestampMillis int64
	Message         string
}

// Envelope is one decoded subscription delivery
type Envelope struct {
	Owner               string
	LogGroup            string
	LogStream           string
	MessageType         string
	SubscriptionFilters []string
	Lines               []LogLine
}

// IsControl reports whether the envelope is a CloudWatch Logs reachability probe
func (e *Envelope) IsControl() bool {
	return e.MessageType == "CONTROL_MESSAGE"
}

// TagConfig binds a tag marker to its destination stream and batch threshold
type TagConfig struct {
	Marker         string
	StreamName     string
	BatchThreshold int
}

// MatchResult is the outcome of scanning one line for registered markers.
// The zero value is a miss.
type MatchResult struct {
	Marker     string
	RawPayload string
	Matched    bool
}

// NoMatch is the result for a line that carries no registered marker
var NoMatch = MatchResult{}

// Matched builds a hit for marker with the text following it
func Matched(marker, rawPayload string) MatchResult {
	return MatchResult{Marker: marker, RawPayload: rawPayload, Matched: true}
}

// Record is a validated payload waiting to be delivered to the tag's stream
type Record struct {
	Tag  string
	Data string
}

// Entry is a single item read from a Redis stream
type Entry[T any] struct {
	ID     string
	Stream string
	Body   T
}

// Batch is an envelope of entries returned by Redis fetchers
type Batch[T any] struct {
	Items []Entry[T]
}
