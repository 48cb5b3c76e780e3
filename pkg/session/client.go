package session

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/foxyproxy/foxy/pkg/ferrors"
	"github.com/foxyproxy/foxy/pkg/flog"
	"github.com/foxyproxy/foxy/pkg/message"
	"github.com/foxyproxy/foxy/pkg/stream"
	"github.com/foxyproxy/foxy/pkg/tlsconfig"
)

// ClientSession is a Session dialed to an upstream target: a Session plus
// the Connect step that brings one into existence.
type ClientSession struct {
	*Session

	opts Options
	log  flog.Logger
}

// NewClientSession constructs an unconnected ClientSession. Connect must
// be called before any read/write/shutdown operation is usable.
func NewClientSession(opts Options, log flog.Logger) *ClientSession {
	return &ClientSession{opts: opts, log: log}
}

// Connect resolves and dials host:port, then, if opts.TLSConfig is
// non-nil, performs a TLS handshake over the new connection: TLS mode is
// derived entirely from that field's presence, not from a parameter
// passed to Connect itself. This is the dial-then-TLS sequencing the
// teacher's transport.Connect performs, reduced to the one-shot-per-tunnel
// shape a proxy needs: no pooling, no upstream-proxy chaining, no HTTP/2
// fallback.
func (cs *ClientSession) Connect(ctx context.Context, host, port string) error {
	addr := net.JoinHostPort(host, port)
	portNum := atoiPort(port)

	dialCtx, cancel := context.WithTimeout(ctx, effectiveTimeout(cs.opts.Timeout))
	defer cancel()

	d := &net.Dialer{}
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return ferrors.NewConnectionError(host, portNum, err)
	}

	st := stream.NewPlain(conn)
	meta := Metadata{
		RemoteAddr: conn.RemoteAddr().String(),
		LocalAddr:  conn.LocalAddr().String(),
		OpenedAt:   time.Now(),
	}
	scopedLog, id := cs.log.Conn(meta.RemoteAddr)
	meta.ID = id
	cs.Session = newSession(st, cs.opts, scopedLog, meta)

	if cs.opts.TLSConfig == nil {
		return nil
	}

	tlsCfg := cs.opts.TLSConfig.Clone()
	tlsCfg.ServerName = host
	tlsCfg.InsecureSkipVerify = !cs.opts.VerifyPeerCert
	tlsConn := tls.Client(conn, tlsCfg)

	_, err = runTimed(ctx, cs.Session, "tls_handshake", func() (struct{}, error) {
		if herr := tlsConn.HandshakeContext(ctx); herr != nil {
			return struct{}{}, ferrors.NewTLSError(host, portNum, herr)
		}
		return struct{}{}, nil
	})
	if err != nil {
		conn.Close()
		return err
	}

	cs.Stream = stream.NewTLS(tlsConn)
	cs.reader.Reset(cs.Stream)
	cs.writer.Reset(cs.Stream)

	state := tlsConn.ConnectionState()
	cs.Meta.IsTLS = true
	cs.Meta.TLSVersion = tlsconfig.GetVersionName(state.Version)
	cs.Meta.TLSCipherSuite = tlsconfig.GetCipherSuiteName(state.CipherSuite)
	cs.Meta.TLSServerName = state.ServerName

	return nil
}

// Request writes req's header and reads resp's header back: the
// single-exchange convenience entry point a one-shot client caller needs.
// The relay engine does not use it — it interleaves hop-by-hop rewriting
// with body forwarding across the two Sessions directly — but it is the
// exposed operation a direct upstream request (rather than a relayed one)
// would use.
func (cs *ClientSession) Request(ctx context.Context, req, resp *message.Message) error {
	if err := cs.WriteRequestHeader(ctx, req); err != nil {
		return err
	}
	return cs.ReadResponseHeader(ctx, resp, req.Method)
}

func effectiveTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

func atoiPort(port string) int {
	n := 0
	for _, c := range port {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
