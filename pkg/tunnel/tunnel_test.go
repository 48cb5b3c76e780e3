package tunnel

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/foxyproxy/foxy/pkg/flog"
	"github.com/foxyproxy/foxy/pkg/session"
)

func pipeServerSession(t *testing.T, timeout time.Duration) (*session.ServerSession, net.Conn) {
	t.Helper()
	near, far := net.Pipe()
	s, err := session.Accept(context.Background(), session.Options{Timeout: timeout}, flog.Default(), near, nil)
	if err != nil {
		t.Fatalf("unexpected accept error: %v", err)
	}
	return s, far
}

func pipeClientSession(t *testing.T, timeout time.Duration) (*session.ClientSession, net.Conn) {
	t.Helper()
	near, far := net.Pipe()
	ss, err := session.Accept(context.Background(), session.Options{Timeout: timeout}, flog.Default(), near, nil)
	if err != nil {
		t.Fatalf("unexpected accept error: %v", err)
	}
	return &session.ClientSession{Session: ss.Session}, far
}

func readStatusAndHeaders(t *testing.T, r *bufio.Reader) (string, []string) {
	t.Helper()
	status, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("unexpected error reading status line: %v", err)
	}
	var headers []string
	for {
		l, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("unexpected error reading headers: %v", err)
		}
		l = strings.TrimRight(l, "\r\n")
		if l == "" {
			break
		}
		headers = append(headers, l)
	}
	return strings.TrimRight(status, "\r\n"), headers
}

func TestDispatchRejectsMalformedRequest(t *testing.T) {
	// S5: a non-CONNECT request whose target is not an absolute http(s)
	// URI (here a bare authority-form host) gets a 400 explaining the two forms the proxy accepts, and the
	// dialer must never be invoked.
	server, downstream := pipeServerSession(t, time.Second)

	go func() {
		downstream.Write([]byte("GET lol-some-garbage-target HTTP/1.1\r\nHost: a\r\n\r\n"))
	}()

	dialCalled := false
	dial := func(ctx context.Context, host, port string, useTLS bool) (*session.ClientSession, error) {
		dialCalled = true
		return nil, nil
	}

	done := make(chan error, 1)
	go func() { done <- Dispatch(context.Background(), server, dial, nil) }()

	r := bufio.NewReader(downstream)
	status, _ := readStatusAndHeaders(t, r)
	if status != "HTTP/1.1 400 Bad Request" {
		t.Fatalf("unexpected status line: %q", status)
	}

	body := make([]byte, len(msgMalformed))
	if _, err := readFull(r, body); err != nil {
		t.Fatalf("unexpected error reading body: %v", err)
	}
	if string(body) != msgMalformed {
		t.Fatalf("unexpected body: %q", body)
	}
	if dialCalled {
		t.Fatal("dial should never be called for a malformed request")
	}

	<-done
}

func TestDispatchRejectsNonPersistentConnect(t *testing.T) {
	// S6: CONNECT with Connection: close is rejected outright.
	server, downstream := pipeServerSession(t, time.Second)

	go func() {
		downstream.Write([]byte("CONNECT host:443 HTTP/1.1\r\nConnection: close\r\n\r\n"))
	}()

	dialCalled := false
	dial := func(ctx context.Context, host, port string, useTLS bool) (*session.ClientSession, error) {
		dialCalled = true
		return nil, nil
	}

	done := make(chan error, 1)
	go func() { done <- Dispatch(context.Background(), server, dial, nil) }()

	r := bufio.NewReader(downstream)
	status, _ := readStatusAndHeaders(t, r)
	if status != "HTTP/1.1 400 Bad Request" {
		t.Fatalf("unexpected status line: %q", status)
	}
	body := make([]byte, len(msgNonPersistentConnect))
	if _, err := readFull(r, body); err != nil {
		t.Fatalf("unexpected error reading body: %v", err)
	}
	if string(body) != msgNonPersistentConnect {
		t.Fatalf("unexpected body: %q", body)
	}
	if dialCalled {
		t.Fatal("dial should never be called when CONNECT is rejected")
	}

	<-done
}

func TestDispatchOpensConnectTunnelAndSplices(t *testing.T) {
	// A persistent CONNECT request gets a 200 and becomes an opaque byte
	// tunnel to whatever the dialer returns.
	server, downstream := pipeServerSession(t, time.Second)
	client, upstream := pipeClientSession(t, time.Second)

	dial := func(ctx context.Context, host, port string, useTLS bool) (*session.ClientSession, error) {
		if host != "host" || port != "443" {
			t.Fatalf("unexpected dial target: %s:%s", host, port)
		}
		return client, nil
	}

	go func() {
		downstream.Write([]byte("CONNECT host:443 HTTP/1.1\r\n\r\n"))
	}()

	done := make(chan error, 1)
	go func() { done <- Dispatch(context.Background(), server, dial, nil) }()

	r := bufio.NewReader(downstream)
	status, _ := readStatusAndHeaders(t, r)
	if status != "HTTP/1.1 200 Connection Established" {
		t.Fatalf("unexpected status line: %q", status)
	}

	go downstream.Write([]byte("ping"))
	buf := make([]byte, 4)
	if _, err := readFull(bufio.NewReader(upstream), buf); err != nil {
		t.Fatalf("unexpected error reading spliced bytes: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("unexpected spliced bytes: %q", buf)
	}

	go upstream.Write([]byte("pong!"))
	buf2 := make([]byte, 5)
	if _, err := readFull(bufio.NewReader(downstream), buf2); err != nil {
		t.Fatalf("unexpected error reading spliced reply: %v", err)
	}
	if string(buf2) != "pong!" {
		t.Fatalf("unexpected spliced reply: %q", buf2)
	}

	downstream.Close()
	upstream.Close()
	<-done
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
