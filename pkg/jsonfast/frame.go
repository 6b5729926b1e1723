package jsonfast

import (
	"strings"
	"time"
)

// RecordFrame is the wire form of one forwarded record on the Redis and MQTT sinks:
//
//	{"tag":"response_log=","stream":"Responses","seq":0,"forwarded_at":"...","data":{...}}
//
// data is embedded as raw JSON; trailing whitespace is trimmed.
func RecordFrame(b *Builder, tag, stream string, seq int, at time.Time, data string) []byte {
	b.Reset()
	b.BeginObject()
	b.AddStringField("tag", tag)
	b.AddStringField("stream", stream)
	b.AddIntField("seq", int64(seq))
	b.AddTimeField("forwarded_at", at)
	b.AddRawJSONField("data", strings.TrimRight(data, " \t\r\n"))
	b.EndObject()
	return b.Clone()
}
