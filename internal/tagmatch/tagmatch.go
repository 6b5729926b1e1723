// Package tagmatch decides which registered tag marker, if any, a log line carries.
package tagmatch

import (
	"fmt"
	"strings"

	"github.com/ibs-source/logtag-forwarder/internal/message"
)

// Matcher finds the tag marker carried by a line
type Matcher interface {
	Match(line string) message.MatchResult
}

// Kind names a matcher implementation in configuration
type Kind string

const (
	KindSubstring Kind = "substring"
	KindToken     Kind = "token"
)

// New builds the matcher named by kind over markers, kept in registration order
func New(kind Kind, markers []string) (Matcher, error) {
	if len(markers) == 0 {
		return nil, fmt.Errorf("at least one tag marker is required")
	}
	for _, m := range markers {
		if m == "" {
			return nil, fmt.Errorf("tag marker cannot be empty")
		}
	}

	switch kind {
	case KindSubstring, "":
		return NewSubstring(markers), nil
	case KindToken:
		return NewToken(markers), nil
	default:
		return nil, fmt.Errorf("unknown matcher %q", kind)
	}
}

// Substring matches a marker found anywhere in the line. Markers are tried in
// registration order and the first one contained in the line wins, even when
// a later marker appears earlier in the text. A line that merely mentions a
// marker inside unrelated text is still a hit.
type Substring struct {
	markers []string
}

// NewSubstring creates a substring matcher
func NewSubstring(markers []string) *Substring {
	return &Substring{markers: append([]string(nil), markers...)}
}

// Match returns the first registered marker contained in line and the text
// after its first occurrence
func (s *Substring) Match(line string) message.MatchResult {
	for _, marker := range s.markers {
		if idx := strings.Index(line, marker); idx >= 0 {
			return message.Matched(marker, line[idx+len(marker):])
		}
	}
	return message.NoMatch
}

// Token only accepts a marker that starts the line or follows whitespace,
// so "xresponse_log=" does not count as "response_log=".
// Registration order still decides between markers.
type Token struct {
	markers []string
}

// NewToken creates a token matcher
func NewToken(markers []string) *Token {
	return &Token{markers: append([]string(nil), markers...)}
}

// Match returns the first registered marker found at a token boundary
func (m *Token) Match(line string) message.MatchResult {
	for _, marker := range m.markers {
		offset := 0
		for {
			idx := strings.Index(line[offset:], marker)
			if idx < 0 {
				break
			}
			pos := offset + idx
			if pos == 0 || isSpace(line[pos-1]) {
				return message.Matched(marker, line[pos+len(marker):])
			}
			offset = pos + 1
		}
	}
	return message.NoMatch
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

var (
	_ Matcher = (*Substring)(nil)
	_ Matcher = (*Token)(nil)
)
