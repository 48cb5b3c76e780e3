// Package message is the minimal HTTP/1.1 message model the session and
// relay packages drive. It is deliberately not a general-purpose RFC 7230
// parser: header-line accumulation and body-mode dispatch are adapted from
// the teacher's own outbound-client reading code, since the proxy core
// needs a concrete collaborator to drive, not a from-scratch wire parser.
package message

import (
	"errors"

	"github.com/foxyproxy/foxy/pkg/fields"
)

// ErrNeedMoreBuffer is the Go analogue of Boost.Beast's need_buffer signal:
// the caller's buffer filled before the message finished, and is not an
// error. The relay engine normalizes it to nil at each read/write step.
var ErrNeedMoreBuffer = errors.New("message: caller buffer full, more body remains")

// BodyMode classifies how a message's body is framed on the wire.
type BodyMode int

const (
	BodyModeNone BodyMode = iota
	BodyModeFixedLength
	BodyModeChunked
	BodyModeUntilClose
)

// Message models one HTTP/1.1 request or response: a start line, an
// ordered field list, and body-framing state. The same type serves both
// directions; IsRequest distinguishes which start-line fields are valid.
type Message struct {
	IsRequest bool

	// Request start line.
	Method string
	Target string

	// Response start line.
	StatusCode int
	Reason     string

	Version string // e.g. "HTTP/1.1"
	Fields  fields.Fields

	mode          BodyMode
	contentLength int64
	remaining     int64 // bytes left for fixed-length; current chunk remainder for chunked
	headerDone    bool
	bodyDone      bool
	inTrailer     bool
}

// HeaderDone reports whether ReadHeader has completed successfully.
func (m *Message) HeaderDone() bool { return m.headerDone }

// BodyDone reports whether the full body (and any chunked trailer) has been
// consumed.
func (m *Message) BodyDone() bool { return m.bodyDone }

// Mode returns the message's body framing, valid only after HeaderDone.
func (m *Message) Mode() BodyMode { return m.mode }

// KeepAlive reports whether the connection should persist after this
// message per HTTP/1.1 defaults and any explicit Connection: close/keep-alive.
func (m *Message) KeepAlive() bool {
	for _, v := range m.Fields.Values("Connection") {
		if containsFold(v, "close") {
			return false
		}
	}
	if m.Version == "HTTP/1.0" {
		for _, v := range m.Fields.Values("Connection") {
			if containsFold(v, "keep-alive") {
				return true
			}
		}
		return false
	}
	return true
}

// SetClose forces Connection: close on the message, replacing any existing
// Connection header.
func (m *Message) SetClose() {
	m.Fields.Set("Connection", "close")
}

// SetChunked re-enables chunked transfer encoding on the message, e.g.
// after hop-by-hop stripping removed the original Transfer-Encoding field.
func (m *Message) SetChunked() {
	m.Fields.Set("Transfer-Encoding", "chunked")
	m.mode = BodyModeChunked
}

// InsertVia appends a Via header naming this proxy, per spec: every
// relayed message gains exactly one additional "Via: 1.1 foxy" entry.
func (m *Message) InsertVia() {
	m.Fields.Add("Via", "1.1 foxy")
}

func containsFold(s, substr string) bool {
	return indexFold(s, substr) >= 0
}

func indexFold(s, substr string) int {
	n, m := len(s), len(substr)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if equalFold(s[i:i+m], substr) {
			return i
		}
	}
	return -1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
