// Package flog provides the proxy core's structured logging facade over
// zerolog, with helpers shaped around the proxy's own events rather than
// generic log lines.
package flog

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger with proxy-domain helpers.
type Logger struct {
	zerolog.Logger
}

// New builds a Logger writing to w in zerolog's console-friendly format when
// pretty is true, or ndjson otherwise.
func New(w io.Writer, pretty bool) Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return Logger{zerolog.New(w).With().Timestamp().Logger()}
}

// Default returns a Logger writing ndjson to stderr. No level filter is
// set, so debug lines are written too.
func Default() Logger {
	return New(os.Stderr, false)
}

// Conn returns a logger scoped to one accepted connection, tagged with a
// fresh correlation id.
func (l Logger) Conn(remote string) (Logger, string) {
	id := uuid.NewString()
	return Logger{l.With().Str("conn_id", id).Str("remote", remote).Logger()}, id
}

// AcceptError logs a transient accept() failure; the listener keeps looping.
func (l Logger) AcceptError(err error) {
	l.Warn().Err(err).Msg("accept failed, continuing")
}

// TeardownError logs a non-EOF error observed during RFC 7230 §6.6 teardown.
func (l Logger) TeardownError(side string, err error) {
	l.Warn().Str("side", side).Err(err).Msg("teardown drain error")
}

// TimedOut logs a wrapped operation losing its race to the deadline timer.
func (l Logger) TimedOut(op string) {
	l.Debug().Str("op", op).Msg("operation timed out, stream closed")
}

// LoopDetected logs a self-loop caught by Via-header inspection.
func (l Logger) LoopDetected() {
	l.Info().Msg("foxy via loop detected, closing tunnel")
}

// TunnelOpened logs a successful CONNECT or absolute-URI dial.
func (l Logger) TunnelOpened(mode, host, port string) {
	l.Info().Str("mode", mode).Str("host", host).Str("port", port).Msg("tunnel opened")
}

// TunnelFailed logs a CONNECT or absolute-URI dial that could not reach
// its upstream target.
func (l Logger) TunnelFailed(mode, host, port string, err error) {
	l.Warn().Str("mode", mode).Str("host", host).Str("port", port).Err(err).Msg("tunnel dial failed")
}
