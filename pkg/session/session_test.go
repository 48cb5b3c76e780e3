package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/foxyproxy/foxy/pkg/ferrors"
	"github.com/foxyproxy/foxy/pkg/flog"
	"github.com/foxyproxy/foxy/pkg/message"
	"github.com/foxyproxy/foxy/pkg/stream"
)

func pipeSession(t *testing.T, timeout time.Duration) (*Session, net.Conn) {
	t.Helper()
	client, peer := net.Pipe()
	s := newSession(stream.NewPlain(client), Options{Timeout: timeout}, flog.Default(), Metadata{})
	return s, peer
}

func TestReadRequestHeaderTimesOut(t *testing.T) {
	// S7: no bytes ever arrive; the operation must give up at the
	// configured timeout rather than block forever, and the underlying
	// stream must be closed so any in-flight read unblocks.
	s, peer := pipeSession(t, 30*time.Millisecond)
	defer peer.Close()

	var m message.Message
	ctx := context.Background()
	start := time.Now()
	err := s.ReadRequestHeader(ctx, &m)
	elapsed := time.Since(start)

	if !ferrors.IsTimeoutError(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestReadRequestHeaderSucceeds(t *testing.T) {
	s, peer := pipeSession(t, time.Second)
	defer peer.Close()

	go peer.Write([]byte("GET /x HTTP/1.1\r\nHost: a\r\n\r\n"))

	var m message.Message
	if err := s.ReadRequestHeader(context.Background(), &m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Method != "GET" || m.Target != "/x" {
		t.Fatalf("unexpected parse result: %+v", m)
	}
}

func TestContextCancelForcesClose(t *testing.T) {
	s, peer := pipeSession(t, time.Minute)
	defer peer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		var m message.Message
		done <- s.ReadRequestHeader(ctx, &m)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !ferrors.IsTimeoutError(err) {
			t.Fatalf("expected timeout-shaped error after cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after context cancellation")
	}
}
