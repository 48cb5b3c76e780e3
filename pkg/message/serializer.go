package message

import (
	"bufio"
	"fmt"
	"net/http"
	"strconv"

	"github.com/foxyproxy/foxy/pkg/ferrors"
)

// WriteRequestLine writes a request's start line.
func WriteRequestLine(w *bufio.Writer, m *Message) error {
	_, err := fmt.Fprintf(w, "%s %s %s\r\n", m.Method, m.Target, m.Version)
	if err != nil {
		return ferrors.NewIOError("writing request line", err)
	}
	return nil
}

// WriteStatusLine writes a response's start line.
func WriteStatusLine(w *bufio.Writer, m *Message) error {
	reason := m.Reason
	if reason == "" {
		reason = statusText(m.StatusCode)
	}
	_, err := fmt.Fprintf(w, "%s %d %s\r\n", m.Version, m.StatusCode, reason)
	if err != nil {
		return ferrors.NewIOError("writing status line", err)
	}
	return nil
}

// WriteHeaderFields writes every field in m.Fields followed by the blank
// line terminating the header block.
func WriteHeaderFields(w *bufio.Writer, m *Message) error {
	for _, f := range m.Fields {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", f.Name, f.Value); err != nil {
			return ferrors.NewIOError("writing header field", err)
		}
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return ferrors.NewIOError("writing header terminator", err)
	}
	return nil
}

// WriteChunk writes data as one chunked-encoding chunk. An empty data
// slice is a no-op; use WriteLastChunk to terminate the body.
func WriteChunk(w *bufio.Writer, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if _, err := w.WriteString(strconv.FormatInt(int64(len(data)), 16) + "\r\n"); err != nil {
		return ferrors.NewIOError("writing chunk size", err)
	}
	if _, err := w.Write(data); err != nil {
		return ferrors.NewIOError("writing chunk data", err)
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return ferrors.NewIOError("writing chunk terminator", err)
	}
	return nil
}

// WriteLastChunk writes the zero-length final chunk and empty trailer.
func WriteLastChunk(w *bufio.Writer) error {
	if _, err := w.WriteString("0\r\n\r\n"); err != nil {
		return ferrors.NewIOError("writing final chunk", err)
	}
	return nil
}

// WriteRaw writes data unchanged, for fixed-length or until-close bodies
// that are passed through without re-framing.
func WriteRaw(w *bufio.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return ferrors.NewIOError("writing body", err)
	}
	return nil
}

func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}
