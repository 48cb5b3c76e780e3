// Package listener runs the accept loop: bind a TCP listener and an
// optional TLS config once, then for every accepted connection construct a
// Session and hand it off to a HandlerFactory's task.
package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"net"

	"github.com/foxyproxy/foxy/pkg/flog"
	"github.com/foxyproxy/foxy/pkg/session"
)

// HandlerFactory builds the per-connection task to run for an accepted
// session. The listener owns accept and session construction; the factory
// owns everything that happens with the connection's lifetime, including
// its own teardown (pkg/tunnel.Dispatch does this).
type HandlerFactory func(*session.ServerSession) func(context.Context) error

// Listener wraps a net.Listener plus an optional TLS config. When tlsCfg is
// non-nil, session.Accept peeks each accepted connection and performs a
// server-side TLS handshake only when the first byte is a TLS handshake
// record; other connections reach the factory as plaintext.
type Listener struct {
	ln     net.Listener
	tlsCfg *tls.Config
	opts   session.Options
	log    flog.Logger
}

// New wraps ln with the session options and logger every accepted
// connection's Session is constructed with.
func New(ln net.Listener, tlsCfg *tls.Config, opts session.Options, log flog.Logger) *Listener {
	return &Listener{ln: ln, tlsCfg: tlsCfg, opts: opts, log: log}
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve accepts connections until ctx is canceled or the underlying
// listener is closed. Each accepted connection is handled in its own
// goroutine. A transient accept error is logged and the loop continues;
// a closed listener ends the loop cleanly.
func (l *Listener) Serve(ctx context.Context, factory HandlerFactory) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			l.ln.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.log.AcceptError(err)
			continue
		}

		go l.handle(ctx, conn, factory)
	}
}

func (l *Listener) handle(ctx context.Context, conn net.Conn, factory HandlerFactory) {
	sess, err := session.Accept(ctx, l.opts, l.log, conn, l.tlsCfg)
	if err != nil {
		l.log.AcceptError(err)
		conn.Close()
		return
	}

	if err := factory(sess)(ctx); err != nil {
		sess.Log.TeardownError("handler", err)
	}
}
