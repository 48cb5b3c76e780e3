package session

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/foxyproxy/foxy/pkg/ferrors"
	"github.com/foxyproxy/foxy/pkg/flog"
	"github.com/foxyproxy/foxy/pkg/stream"
)

// ServerSession is a Session built from an accepted client connection. It
// adds the detect/handshake steps a listener drives before the session is
// usable for HTTP framing.
type ServerSession struct {
	*Session
}

// bufConn lets a TLS handshake read through a Session's bufio.Reader
// instead of the raw net.Conn directly, so bytes already consumed from
// the socket by a prior DetectTLS Peek aren't lost to the handshake.
type bufConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufConn) Read(p []byte) (int, error) { return c.r.Read(p) }

// Accept wraps a freshly accepted client connection as a ServerSession.
// When tlsCfg is non-nil, the first byte of the connection is peeked via
// DetectTLS to decide whether this particular connection is actually
// opening a TLS handshake (content type 0x16) before Handshake is
// attempted; a connection that isn't is served as plaintext, which is the
// common case for a forward proxy's client-facing listener.
func Accept(ctx context.Context, opts Options, log flog.Logger, conn net.Conn, tlsCfg *tls.Config) (*ServerSession, error) {
	meta := Metadata{
		RemoteAddr: conn.RemoteAddr().String(),
		LocalAddr:  conn.LocalAddr().String(),
		OpenedAt:   time.Now(),
	}
	scopedLog, id := log.Conn(meta.RemoteAddr)
	meta.ID = id

	ss := &ServerSession{Session: newSession(stream.NewPlain(conn), opts, scopedLog, meta)}
	if tlsCfg == nil {
		return ss, nil
	}

	isTLS, err := ss.DetectTLS(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if !isTLS {
		return ss, nil
	}

	if err := ss.Handshake(ctx, tlsCfg); err != nil {
		conn.Close()
		return nil, err
	}
	return ss, nil
}

// DetectTLS peeks the connection's first byte without consuming it. A TLS
// handshake record's first byte is always 0x16 (RFC 8446 §5.1, content
// type "handshake"); anything else is read as plaintext HTTP. This is the
// Go analogue of the RFC 2246 content-type heuristic
// original_source/include/foxy/impl/server_session/async_detect_ssl.impl.hpp
// implements with a one-byte async_peek.
func (ss *ServerSession) DetectTLS(ctx context.Context) (bool, error) {
	b, err := runTimed(ctx, ss.Session, "detect_tls", func() ([]byte, error) {
		return ss.reader.Peek(1)
	})
	if err != nil {
		return false, err
	}
	return len(b) > 0 && b[0] == 0x16, nil
}

// Handshake performs a server-side TLS handshake over the session's
// connection using tlsCfg, reading through whatever DetectTLS already
// peeked so no bytes are lost to the switch.
func (ss *ServerSession) Handshake(ctx context.Context, tlsCfg *tls.Config) error {
	raw := ss.Stream.Conn()
	tlsConn := tls.Server(&bufConn{Conn: raw, r: ss.reader}, tlsCfg)

	_, err := runTimed(ctx, ss.Session, "tls_handshake", func() (struct{}, error) {
		if herr := tlsConn.HandshakeContext(ctx); herr != nil {
			return struct{}{}, ferrors.NewTLSError(ss.Meta.RemoteAddr, 0, herr)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}

	ss.Stream = stream.NewTLS(tlsConn)
	ss.reader.Reset(ss.Stream)
	ss.writer.Reset(ss.Stream)

	state := tlsConn.ConnectionState()
	ss.Meta.IsTLS = true
	ss.Meta.TLSServerName = state.ServerName

	return nil
}
