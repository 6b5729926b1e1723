package extract

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/message"
	"github.com/ibs-source/logtag-forwarder/internal/tagmatch"
)

func newExtractor(t *testing.T, opts Options, markers ...string) *Extractor {
	t.Helper()
	m, err := tagmatch.New(tagmatch.KindSubstring, markers)
	require.NoError(t, err)
	return New(m, opts, log.Discard())
}

func TestExtract(t *testing.T) {
	e := newExtractor(t, Options{HealthCheckMarker: "health_check"}, "response_log=", "feed_event=")

	tests := []struct {
		name    string
		line    string
		outcome Outcome
		record  message.Record
	}{
		{
			name:    "valid object",
			line:    `18:12:17.594 [info] feed_event={"ts":"2018-03-13T01:12:17.594577Z","event":"show_video"}`,
			outcome: Accepted,
			record:  message.Record{Tag: "feed_event=", Data: `{"ts":"2018-03-13T01:12:17.594577Z","event":"show_video"}`},
		},
		{
			name:    "valid array",
			line:    `x response_log=[1,2,3]`,
			outcome: Accepted,
			record:  message.Record{Tag: "response_log=", Data: `[1,2,3]`},
		},
		{
			name:    "trailing newline kept verbatim",
			line:    "x response_log={\"a\":1}\n",
			outcome: Accepted,
			record:  message.Record{Tag: "response_log=", Data: "{\"a\":1}\n"},
		},
		{
			name:    "invalid json",
			line:    `x feed_event={"a":`,
			outcome: Invalid,
		},
		{
			name:    "scalar json rejected",
			line:    `x feed_event=42`,
			outcome: Invalid,
		},
		{
			name:    "empty payload",
			line:    `x feed_event=`,
			outcome: Invalid,
		},
		{
			name:    "trailing text after json",
			line:    `x feed_event={"a":1} done`,
			outcome: Invalid,
		},
		{
			name:    "no marker",
			line:    `18:12:17.595 [debug] QUERY OK source="videos" db=0.2ms`,
			outcome: NoMatch,
		},
		{
			name:    "health check with valid tag",
			line:    `response_log={"path":"/health_check","status":200}`,
			outcome: HealthCheck,
		},
		{
			name:    "exact health check line",
			line:    `health_check`,
			outcome: HealthCheck,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, outcome := e.Extract(tt.line)
			assert.Equal(t, tt.outcome, outcome)
			if tt.outcome == Accepted {
				assert.Equal(t, tt.record, rec)
			} else {
				assert.Equal(t, message.Record{}, rec)
			}
		})
	}
}

func TestExtract_HealthCheckBeforeMatching(t *testing.T) {
	e := newExtractor(t, Options{HealthCheckMarker: "health_check"}, "ok")

	_, outcome := e.Extract("health_check ok")
	assert.Equal(t, HealthCheck, outcome)
}

func TestExtract_HealthCheckDisabled(t *testing.T) {
	e := newExtractor(t, Options{}, "response_log=")

	rec, outcome := e.Extract(`response_log={"path":"/health_check"}`)
	assert.Equal(t, Accepted, outcome)
	assert.Equal(t, `{"path":"/health_check"}`, rec.Data)
}

func TestExtract_AppendNewline(t *testing.T) {
	e := newExtractor(t, Options{AppendNewline: true}, "event_tracking=")

	rec, outcome := e.Extract(`[info] event_tracking={"e":"open"}`)
	require.Equal(t, Accepted, outcome)
	assert.Equal(t, "{\"e\":\"open\"}\n", rec.Data)
}

func TestExtract_LogsInvalidPayload(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	m := tagmatch.NewSubstring([]string{"feed_event="})
	e := New(m, Options{}, log.NewWithWriter(&buf))

	_, outcome := e.Extract(`x feed_event={broken`)
	assert.Equal(t, Invalid, outcome)
	assert.Contains(t, buf.String(), "Invalid json found")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(`{}`))
	assert.NoError(t, Validate(` [ {"a": null} ] `))
	assert.ErrorIs(t, Validate(`"text"`), ErrInvalidPayload)
	assert.ErrorIs(t, Validate(``), ErrInvalidPayload)
	assert.ErrorIs(t, Validate(`{"a":1`), ErrInvalidPayload)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "invalid", Invalid.String())
	assert.Equal(t, "no_match", NoMatch.String())
	assert.Equal(t, "health_check", HealthCheck.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
