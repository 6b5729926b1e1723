// Package jsonfast is a small append-only JSON object writer for the fixed
// frames the forwarder publishes to Redis and MQTT.
package jsonfast

import "time"

// Builder appends one flat JSON object into a reusable buffer.
// Field names are written verbatim; callers use fixed ASCII names.
type Builder struct {
	buf    []byte
	opened bool
	first  bool
}

// New creates a builder with the given initial capacity
func New(capacity int) *Builder {
	if capacity <= 0 {
		capacity = 256
	}
	return &Builder{buf: make([]byte, 0, capacity), first: true}
}

// Reset clears the builder for reuse
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
	b.opened = false
	b.first = true
}

// Bytes returns the underlying buffer. It is overwritten by the next Reset.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Clone returns a copy of the buffer that survives Reset
func (b *Builder) Clone() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// BeginObject starts a JSON object
func (b *Builder) BeginObject() {
	b.buf = append(b.buf, '{')
	b.opened = true
	b.first = true
}

// EndObject ends a JSON object
func (b *Builder) EndObject() {
	b.buf = append(b.buf, '}')
	b.opened = false
}

// AddStringField adds "name":"value" with value escaped
func (b *Builder) AddStringField(name, value string) {
	b.key(name)
	b.buf = append(b.buf, '"')
	b.escapeString(value)
	b.buf = append(b.buf, '"')
}

// AddRawJSONField adds "name":<raw>. raw must already be valid JSON.
func (b *Builder) AddRawJSONField(name string, raw string) {
	b.key(name)
	b.buf = append(b.buf, raw...)
}

// AddIntField adds "name":v
func (b *Builder) AddIntField(name string, v int64) {
	b.key(name)
	b.buf = appendInt(b.buf, v)
}

// AddTimeField adds "name":"YYYY-MM-DDTHH:MM:SS.mmmZ" in UTC
func (b *Builder) AddTimeField(name string, t time.Time) {
	b.key(name)
	t = t.UTC()
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	b.buf = append(b.buf, '"')
	b.appendPadded(year, 4)
	b.buf = append(b.buf, '-')
	b.appendPadded(int(month), 2)
	b.buf = append(b.buf, '-')
	b.appendPadded(day, 2)
	b.buf = append(b.buf, 'T')
	b.appendPadded(hour, 2)
	b.buf = append(b.buf, ':')
	b.appendPadded(minute, 2)
	b.buf = append(b.buf, ':')
	b.appendPadded(sec, 2)
	b.buf = append(b.buf, '.')
	b.appendPadded(t.Nanosecond()/int(time.Millisecond), 3)
	b.buf = append(b.buf, 'Z', '"')
}

func (b *Builder) key(name string) {
	b.sep()
	b.buf = append(b.buf, '"')
	b.buf = append(b.buf, name...)
	b.buf = append(b.buf, '"', ':')
}

func (b *Builder) sep() {
	if !b.opened {
		b.BeginObject()
		return
	}
	if b.first {
		b.first = false
		return
	}
	b.buf = append(b.buf, ',')
}

func (b *Builder) escapeString(s string) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '"':
			b.buf = append(b.buf, '\\', c)
		case '\n':
			b.buf = append(b.buf, '\\', 'n')
		case '\r':
			b.buf = append(b.buf, '\\', 'r')
		case '\t':
			b.buf = append(b.buf, '\\', 't')
		default:
			if c < 0x20 {
				b.buf = append(b.buf, '\\', 'u', '0', '0', hex[c>>4], hex[c&0x0f])
			} else {
				b.buf = append(b.buf, c)
			}
		}
	}
}

// appendPadded writes v in decimal, left padded with zeros to width digits
func (b *Builder) appendPadded(v, width int) {
	var tmp [8]byte
	for i := width - 1; i >= 0; i-- {
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	b.buf = append(b.buf, tmp[:width]...)
}

func appendInt(dst []byte, x int64) []byte {
	if x == 0 {
		return append(dst, '0')
	}
	var tmp [20]byte
	i := len(tmp)
	u := uint64(x)
	if x < 0 {
		u = uint64(-x)
	}
	for u > 0 {
		i--
		tmp[i] = byte('0' + u%10)
		u /= 10
	}
	if x < 0 {
		i--
		tmp[i] = '-'
	}
	return append(dst, tmp[i:]...)
}

const hex = "0123456789abcdef"
