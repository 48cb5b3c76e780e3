// Package session wraps one proxy-side connection (to the client or to
// the upstream) with the read/write/teardown operations the tunnel and
// relay packages drive, each bounded by a single operation timeout raced
// against the blocking call in its own goroutine.
package session

import (
	"bufio"
	"context"
	"io"

	"github.com/foxyproxy/foxy/pkg/ferrors"
	"github.com/foxyproxy/foxy/pkg/flog"
	"github.com/foxyproxy/foxy/pkg/message"
	"github.com/foxyproxy/foxy/pkg/stream"
)

// Session is the shared core for both the client-facing accepted
// connection and the session dialed to the upstream target.
type Session struct {
	Stream *stream.Stream
	Opts   Options
	Meta   Metadata
	Log    flog.Logger

	reader *bufio.Reader
	writer *bufio.Writer
}

func newSession(s *stream.Stream, opts Options, log flog.Logger, meta Metadata) *Session {
	return &Session{
		Stream: s,
		Opts:   opts,
		Meta:   meta,
		Log:    log,
		reader: bufio.NewReader(s),
		writer: bufio.NewWriter(s),
	}
}

// ReadRequestHeader reads one HTTP request's start line and headers.
func (s *Session) ReadRequestHeader(ctx context.Context, m *message.Message) error {
	_, err := runTimed(ctx, s, "read_request_header", func() (struct{}, error) {
		return struct{}{}, message.ReadRequestHeader(s.reader, m)
	})
	return err
}

// ReadResponseHeader reads one HTTP response's start line and headers.
// method is the request method that elicited the response.
func (s *Session) ReadResponseHeader(ctx context.Context, m *message.Message, method string) error {
	_, err := runTimed(ctx, s, "read_response_header", func() (struct{}, error) {
		return struct{}{}, message.ReadResponseHeader(s.reader, m, method)
	})
	return err
}

// ReadBody reads the next slice of m's body into buf. See
// message.ReadBody for the ErrNeedMoreBuffer/BodyDone contract.
func (s *Session) ReadBody(ctx context.Context, m *message.Message, buf []byte) (int, error) {
	return runTimed(ctx, s, "read_body", func() (int, error) {
		return message.ReadBody(s.reader, m, buf)
	})
}

// WriteRequestHeader writes a request's start line and headers and flushes.
func (s *Session) WriteRequestHeader(ctx context.Context, m *message.Message) error {
	_, err := runTimed(ctx, s, "write_request_header", func() (struct{}, error) {
		if err := message.WriteRequestLine(s.writer, m); err != nil {
			return struct{}{}, err
		}
		if err := message.WriteHeaderFields(s.writer, m); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, s.writer.Flush()
	})
	return err
}

// WriteResponseHeader writes a response's start line and headers and flushes.
func (s *Session) WriteResponseHeader(ctx context.Context, m *message.Message) error {
	_, err := runTimed(ctx, s, "write_response_header", func() (struct{}, error) {
		if err := message.WriteStatusLine(s.writer, m); err != nil {
			return struct{}{}, err
		}
		if err := message.WriteHeaderFields(s.writer, m); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, s.writer.Flush()
	})
	return err
}

// WriteRaw writes and flushes data unchanged (fixed-length or
// until-close body passthrough).
func (s *Session) WriteRaw(ctx context.Context, data []byte) error {
	_, err := runTimed(ctx, s, "write_body", func() (struct{}, error) {
		if err := message.WriteRaw(s.writer, data); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, s.writer.Flush()
	})
	return err
}

// WriteChunk writes and flushes one chunked-encoding chunk.
func (s *Session) WriteChunk(ctx context.Context, data []byte) error {
	_, err := runTimed(ctx, s, "write_chunk", func() (struct{}, error) {
		if err := message.WriteChunk(s.writer, data); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, s.writer.Flush()
	})
	return err
}

// WriteLastChunk writes and flushes the terminating zero-length chunk.
func (s *Session) WriteLastChunk(ctx context.Context) error {
	_, err := runTimed(ctx, s, "write_last_chunk", func() (struct{}, error) {
		if err := message.WriteLastChunk(s.writer); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, s.writer.Flush()
	})
	return err
}

// WriteRawBytes writes len(data) bytes straight to the connection,
// bypassing the message framing helpers — used by the CONNECT tunnel's
// raw byte-relay phase once the HTTP header exchange is finished.
func (s *Session) WriteRawBytes(ctx context.Context, data []byte) (int, error) {
	return runTimed(ctx, s, "write_raw", func() (int, error) {
		n, err := s.writer.Write(data)
		if err != nil {
			return n, ferrors.NewIOError("writing raw bytes", err)
		}
		return n, s.writer.Flush()
	})
}

// ReadRawBytes reads up to len(buf) raw bytes directly off the
// connection — used by the CONNECT tunnel's raw byte-relay phase.
func (s *Session) ReadRawBytes(ctx context.Context, buf []byte) (int, error) {
	return runTimed(ctx, s, "read_raw", func() (int, error) {
		n, err := s.reader.Read(buf)
		if err != nil && err != io.EOF {
			return n, ferrors.NewIOError("reading raw bytes", err)
		}
		return n, err
	})
}

// Shutdown performs the RFC 7230 §6.6 graceful teardown sequence: half
// close the write side, drain whatever the peer still sends until it
// closes its own side or the timeout elapses, half close the read side
// (when the connection supports CloseRead), then close outright. A TLS
// stream has no half-close in crypto/tls, so ShutdownWrite already closes
// it outright (sending close_notify); there is nothing left to drain, and
// a post-close read would just surface as a spurious teardown error, so
// it's skipped. This covers both ClientSession and ServerSession: the
// only difference between their teardown is whether the stream is TLS,
// which is exactly what IsTLS branches on here.
func (s *Session) Shutdown(ctx context.Context) error {
	if err := s.Stream.ShutdownWrite(); err != nil {
		return s.Stream.Close()
	}
	if s.Stream.IsTLS() {
		return nil
	}

	_, err := runTimed(ctx, s, "shutdown_drain", func() (struct{}, error) {
		discard := make([]byte, 2048)
		for {
			if _, rerr := s.reader.Read(discard); rerr != nil {
				if rerr == io.EOF {
					return struct{}{}, nil
				}
				return struct{}{}, rerr
			}
		}
	})
	if err != nil && !ferrors.IsTimeoutError(err) {
		s.Log.TeardownError("shutdown", err)
	}
	if cr, ok := s.Stream.Conn().(interface{ CloseRead() error }); ok {
		cr.CloseRead()
	}
	return s.Stream.Close()
}
