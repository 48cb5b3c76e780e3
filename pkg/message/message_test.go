package message

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestReadRequestHeaderFixedLength(t *testing.T) {
	raw := "POST /upload HTTP/1.1\r\nHost: a\r\nContent-Length: 5\r\n\r\nhello"
	r := bufio.NewReader(strings.NewReader(raw))
	var m Message
	if err := ReadRequestHeader(r, &m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Method != "POST" || m.Target != "/upload" || m.Version != "HTTP/1.1" {
		t.Fatalf("unexpected start line: %+v", m)
	}
	if m.Mode() != BodyModeFixedLength || m.BodyDone() {
		t.Fatalf("expected fixed-length mode, not yet done: %+v", m)
	}

	buf := make([]byte, 32)
	n, err := ReadBody(r, &m, buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(buf[:n]) != "hello" || !m.BodyDone() {
		t.Fatalf("expected full body read, got %q done=%v", buf[:n], m.BodyDone())
	}
}

func TestReadRequestHeaderNoBody(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: a\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	var m Message
	if err := ReadRequestHeader(r, &m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Mode() != BodyModeNone || !m.BodyDone() {
		t.Fatalf("expected immediate completion for bodyless request: %+v", m)
	}
}

func TestReadResponseHeaderNoContentOnHead(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	var m Message
	if err := ReadResponseHeader(r, &m, "HEAD"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Mode() != BodyModeNone || !m.BodyDone() {
		t.Fatalf("HEAD response must never carry a body: %+v", m)
	}
}

func TestReadChunkedBodyAcrossSmallBuffer(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	var m Message
	if err := ReadResponseHeader(r, &m, "GET"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Mode() != BodyModeChunked {
		t.Fatalf("expected chunked mode: %+v", m)
	}

	var got bytes.Buffer
	buf := make([]byte, 3) // deliberately smaller than any single chunk
	for !m.BodyDone() {
		n, err := ReadBody(r, &m, buf)
		got.Write(buf[:n])
		if err != nil && err != ErrNeedMoreBuffer {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got.String() != "Wikipedia" {
		t.Fatalf("got %q", got.String())
	}
}

func TestKeepAlive(t *testing.T) {
	m := Message{Version: "HTTP/1.1"}
	if !m.KeepAlive() {
		t.Fatal("HTTP/1.1 defaults to keep-alive")
	}
	m.Fields.Add("Connection", "close")
	if m.KeepAlive() {
		t.Fatal("explicit Connection: close must end persistence")
	}
}

func TestWriteChunkRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := WriteChunk(w, []byte("hi")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := WriteLastChunk(w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.Flush()

	r := bufio.NewReader(&buf)
	var m Message
	m.mode = BodyModeChunked
	out := make([]byte, 16)
	n, err := ReadBody(r, &m, out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out[:n]) != "hi" || !m.BodyDone() {
		t.Fatalf("round trip failed: %q done=%v", out[:n], m.BodyDone())
	}
}
