// Package stream provides a single connection type that can carry either
// a plain TCP stream or a TLS stream, mirroring the teacher's approach of
// giving every component one concrete transport type to hold regardless of
// scheme. The stream kind is tagged by whether a *tls.Conn is held (IsTLS).
package stream

import (
	"crypto/tls"
	"net"

	"github.com/foxyproxy/foxy/pkg/ferrors"
)

// Stream wraps a net.Conn that may or may not be a *tls.Conn. For a TLS
// stream only the *tls.Conn is kept: the raw TCP connection beneath it is
// not exposed, so Close and ShutdownWrite act through the TLS layer and a
// TLS stream cannot be half-closed at the socket level.
type Stream struct {
	conn net.Conn
	tls  *tls.Conn
}

// NewPlain wraps a non-TLS connection.
func NewPlain(c net.Conn) *Stream {
	return &Stream{conn: c}
}

// NewTLS wraps a TLS connection. The handshake, if not already performed,
// is the caller's responsibility.
func NewTLS(c *tls.Conn) *Stream {
	return &Stream{conn: c, tls: c}
}

// IsTLS reports whether this stream carries a TLS connection.
func (s *Stream) IsTLS() bool { return s.tls != nil }

// TLSConn returns the underlying *tls.Conn, or nil if IsTLS is false.
func (s *Stream) TLSConn() *tls.Conn { return s.tls }

// Conn returns the net.Conn used for reads and writes: the *tls.Conn
// itself when TLS is active (so the record layer applies), or the raw
// connection otherwise.
func (s *Stream) Conn() net.Conn { return s.conn }

// Read implements io.Reader.
func (s *Stream) Read(b []byte) (int, error) { return s.conn.Read(b) }

// Write implements io.Writer.
func (s *Stream) Write(b []byte) (int, error) { return s.conn.Write(b) }

// Close closes the underlying connection, tearing down TLS first if active.
func (s *Stream) Close() error { return s.conn.Close() }

type closeWriter interface {
	CloseWrite() error
}

// ShutdownWrite half-closes the stream's write side, the first step of the
// RFC 7230 §6.6 graceful teardown sequence. TLS connections and stream
// types lacking CloseWrite are closed outright since Go's crypto/tls does
// not expose a half-close.
func (s *Stream) ShutdownWrite() error {
	if s.tls != nil {
		return s.conn.Close()
	}
	if cw, ok := s.conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return ferrors.NewIOError("shutdown write", nil)
}

// RemoteAddr returns the peer address of the underlying connection.
func (s *Stream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// LocalAddr returns the local address of the underlying connection.
func (s *Stream) LocalAddr() net.Addr { return s.conn.LocalAddr() }
