// Package extract promotes tagged log lines to records.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/message"
	"github.com/ibs-source/logtag-forwarder/internal/tagmatch"
)

// ErrInvalidPayload is returned by Validate for text that is not a JSON object or array
var ErrInvalidPayload = errors.New("payload is not a JSON object or array")

// Outcome classifies what happened to a line
type Outcome int

const (
	// NoMatch means the line carries no registered marker
	NoMatch Outcome = iota
	// HealthCheck means the line was excluded by the health-check marker
	HealthCheck
	// Invalid means a marker matched but the text after it is not valid JSON
	Invalid
	// Accepted means a record was produced
	Accepted
)

func (o Outcome) String() string {
	switch o {
	case NoMatch:
		return "no_match"
	case HealthCheck:
		return "health_check"
	case Invalid:
		return "invalid"
	case Accepted:
		return "accepted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Options tune an Extractor
type Options struct {
	// HealthCheckMarker drops every line containing it. Empty disables the check.
	HealthCheckMarker string
	// AppendNewline terminates record data with "\n" so delivered objects are
	// newline delimited.
	AppendNewline bool
}

// Extractor turns a raw line into a Record when it carries a valid tagged payload
type Extractor struct {
	matcher tagmatch.Matcher
	opts    Options
	log     *log.Logger
}

// New creates an extractor over the given matcher
func New(matcher tagmatch.Matcher, opts Options, logger *log.Logger) *Extractor {
	return &Extractor{matcher: matcher, opts: opts, log: logger}
}

// Extract classifies line. The record is only meaningful when the outcome is Accepted.
func (e *Extractor) Extract(line string) (message.Record, Outcome) {
	if e.opts.HealthCheckMarker != "" && strings.Contains(line, e.opts.HealthCheckMarker) {
		return message.Record{}, HealthCheck
	}

	match := e.matcher.Match(line)
	if !match.Matched {
		return message.Record{}, NoMatch
	}

	if err := Validate(match.RawPayload); err != nil {
		e.log.WarnWithFields(logrus.Fields{"tag": match.Marker}, "Invalid json found: %s", line)
		return message.Record{}, Invalid
	}

	data := match.RawPayload
	if e.opts.AppendNewline {
		data += "\n"
	}
	return message.Record{Tag: match.Marker, Data: data}, Accepted
}

// Validate checks that payload is a syntactically valid JSON object or array.
// Surrounding whitespace is allowed.
func Validate(payload string) error {
	first := firstNonSpace(payload)
	if first != '{' && first != '[' {
		return ErrInvalidPayload
	}
	if !json.Valid([]byte(payload)) {
		return ErrInvalidPayload
	}
	return nil
}

func firstNonSpace(s string) byte {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return c
		}
	}
	return 0
}
