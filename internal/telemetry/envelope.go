// Package telemetry defines the units of data that move from ingestion to
// the sinks, and the bounded queues that carry them.
package telemetry

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Source tags where an envelope came from.
type Source string

const (
	// SourceUART marks a line read from the serial device.
	SourceUART Source = "uart"

	// SourceMonitor marks a host metrics snapshot.
	SourceMonitor Source = "monitor"
)

// Envelope is one timestamped, source-tagged unit of data.
//
// Envelopes are values: they are copied into queues and the consumer owns
// its copy outright. Data is a string so the content cannot be changed
// after construction.
type Envelope struct {
	Source    Source
	Data      string
	Timestamp int64 // seconds since the Unix epoch, as sent on the wire

	// Captured is the full-precision capture time. Sinks that key records
	// by time use it so two lines read in the same second stay distinct.
	Captured time.Time
}

// NewUART wraps one serial line captured at t.
func NewUART(line string, t time.Time) Envelope {
	return Envelope{Source: SourceUART, Data: line, Timestamp: t.Unix(), Captured: t}
}

// NewMonitor wraps an already-serialized metrics snapshot captured at t.
func NewMonitor(payload []byte, t time.Time) Envelope {
	return Envelope{Source: SourceMonitor, Data: string(payload), Timestamp: t.Unix(), Captured: t}
}

// Time returns the capture time, falling back to the wire seconds when the
// envelope was built without one.
func (e Envelope) Time() time.Time {
	if e.Captured.IsZero() {
		return time.Unix(e.Timestamp, 0)
	}
	return e.Captured
}

// Wire returns the bytes sent to a sink.
//
// UART envelopes are encoded as {"type":"uart","data":"...","ts":N}.
// Monitor envelopes already hold their serialized snapshot and are sent
// verbatim.
func (e Envelope) Wire() []byte {
	if e.Source == SourceMonitor {
		return []byte(e.Data)
	}

	buf := make([]byte, 0, len(e.Data)+48)
	buf = append(buf, `{"type":"`...)
	buf = append(buf, e.Source...)
	buf = append(buf, `","data":"`...)
	buf = AppendEscaped(buf, e.Data)
	buf = append(buf, `","ts":`...)
	buf = strconv.AppendInt(buf, e.Timestamp, 10)
	buf = append(buf, '}')
	return buf
}

// AppendEscaped appends s to dst using JSON string escaping (RFC 8259):
// backslash, double quote and every code point below 0x20 are escaped.
// Invalid UTF-8 sequences are replaced with U+FFFD so the result is always
// valid JSON text.
func AppendEscaped(dst []byte, s string) []byte {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}

	const hex = "0123456789abcdef"
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			dst = append(dst, '\\', '\\')
		case c == '"':
			dst = append(dst, '\\', '"')
		case c == '\n':
			dst = append(dst, '\\', 'n')
		case c == '\r':
			dst = append(dst, '\\', 'r')
		case c == '\t':
			dst = append(dst, '\\', 't')
		case c < 0x20:
			dst = append(dst, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xf])
		default:
			// Multi-byte UTF-8 sequences never contain bytes below 0x80,
			// so copying byte by byte keeps them intact.
			dst = append(dst, c)
		}
	}
	return dst
}
