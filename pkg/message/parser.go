package message

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/foxyproxy/foxy/pkg/ferrors"
	"github.com/foxyproxy/foxy/pkg/fields"
)

const maxHeaderBytes = 64 * 1024

// ReadRequestHeader reads a request line and header block from r into m.
// Body framing is derived from Transfer-Encoding/Content-Length per RFC
// 7230 §3.3.3; a request with neither carries no body.
func ReadRequestHeader(r *bufio.Reader, m *Message) error {
	m.IsRequest = true

	line, err := readLine(r)
	if err != nil {
		return ferrors.NewProtocolError("reading request line", err)
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return ferrors.NewProtocolError("malformed request line", nil)
	}
	m.Method, m.Target, m.Version = parts[0], parts[1], parts[2]

	fields, err := readHeaderFields(r)
	if err != nil {
		return err
	}
	m.Fields = fields

	determineRequestBodyMode(m)
	m.headerDone = true
	if m.mode == BodyModeNone {
		m.bodyDone = true
	}
	return nil
}

// ReadResponseHeader reads a status line and header block from r into m.
// method is the request method that elicited this response, needed to
// apply the HEAD/1xx/204/304 bodyless-response rules of RFC 9110 §6.4.1.
func ReadResponseHeader(r *bufio.Reader, m *Message, method string) error {
	m.IsRequest = false

	line, err := readLine(r)
	if err != nil {
		return ferrors.NewProtocolError("reading status line", err)
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return ferrors.NewProtocolError("malformed status line", nil)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return ferrors.NewProtocolError("invalid status code", err)
	}
	m.Version = parts[0]
	m.StatusCode = code
	if len(parts) == 3 {
		m.Reason = parts[2]
	}

	fields, err := readHeaderFields(r)
	if err != nil {
		return err
	}
	m.Fields = fields

	determineResponseBodyMode(m, method)
	m.headerDone = true
	if m.mode == BodyModeNone {
		m.bodyDone = true
	}
	return nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readHeaderFields accumulates header lines, honoring RFC 7230 §3.2.4
// obs-fold continuation (leading whitespace appends to the previous value).
func readHeaderFields(r *bufio.Reader) (fields.Fields, error) {
	var f fields.Fields
	total := 0
	haveLast := false

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, ferrors.NewProtocolError("reading headers", err)
		}
		total += len(line)
		if total > maxHeaderBytes {
			return nil, ferrors.NewProtocolError("headers exceed maximum size", nil)
		}
		if line == "\r\n" || line == "\n" {
			break
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if (strings.HasPrefix(trimmed, " ") || strings.HasPrefix(trimmed, "\t")) && haveLast {
			last := &f[len(f)-1]
			last.Value += " " + strings.TrimSpace(trimmed)
			continue
		}

		colon := strings.IndexByte(trimmed, ':')
		if colon < 0 {
			continue
		}
		name := strings.TrimSpace(trimmed[:colon])
		value := strings.TrimSpace(trimmed[colon+1:])
		f.Add(name, value)
		haveLast = true
	}
	return f, nil
}

func determineRequestBodyMode(m *Message) {
	te := m.Fields.Values("Transfer-Encoding")
	cl := m.Fields.Values("Content-Length")

	switch {
	case len(te) > 0 && strings.Contains(strings.ToLower(te[len(te)-1]), "chunked"):
		m.mode = BodyModeChunked
	case len(cl) > 0:
		n, err := strconv.ParseInt(strings.TrimSpace(cl[0]), 10, 64)
		if err != nil || n < 0 {
			m.mode = BodyModeNone
			return
		}
		m.mode = BodyModeFixedLength
		m.contentLength = n
		m.remaining = n
	default:
		m.mode = BodyModeNone
	}
}

func determineResponseBodyMode(m *Message, method string) {
	if method == "HEAD" ||
		(m.StatusCode >= 100 && m.StatusCode < 200) ||
		m.StatusCode == 204 || m.StatusCode == 304 {
		m.mode = BodyModeNone
		return
	}

	te := m.Fields.Values("Transfer-Encoding")
	cl := m.Fields.Values("Content-Length")

	switch {
	case len(te) > 0 && strings.Contains(strings.ToLower(te[len(te)-1]), "chunked"):
		m.mode = BodyModeChunked
	case len(cl) > 0:
		n, err := strconv.ParseInt(strings.TrimSpace(cl[0]), 10, 64)
		if err != nil || n < 0 {
			m.mode = BodyModeUntilClose
			return
		}
		m.mode = BodyModeFixedLength
		m.contentLength = n
		m.remaining = n
	default:
		m.mode = BodyModeUntilClose
	}
}

// ReadBody copies the next slice of the message body into buf, returning
// the number of bytes written. It returns ErrNeedMoreBuffer (not a real
// error) when buf filled before the body finished; callers should drain
// buf downstream and call ReadBody again. A nil error with BodyDone true
// marks the end of the message, including any chunked trailer.
func ReadBody(r *bufio.Reader, m *Message, buf []byte) (int, error) {
	if m.bodyDone || len(buf) == 0 {
		return 0, nil
	}
	switch m.mode {
	case BodyModeFixedLength:
		return readFixed(r, m, buf)
	case BodyModeChunked:
		return readChunked(r, m, buf)
	case BodyModeUntilClose:
		return readUntilClose(r, m, buf)
	default:
		m.bodyDone = true
		return 0, nil
	}
}

func readFixed(r *bufio.Reader, m *Message, buf []byte) (int, error) {
	want := int64(len(buf))
	if want > m.remaining {
		want = m.remaining
	}
	n, err := io.ReadFull(r, buf[:want])
	m.remaining -= int64(n)
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, ferrors.NewIOError("reading fixed body", err)
	}
	if m.remaining <= 0 || err == io.ErrUnexpectedEOF {
		m.bodyDone = true
	} else if n == len(buf) {
		return n, ErrNeedMoreBuffer
	}
	return n, nil
}

func readUntilClose(r *bufio.Reader, m *Message, buf []byte) (int, error) {
	n, err := r.Read(buf)
	if err == io.EOF {
		m.bodyDone = true
		return n, nil
	}
	if err != nil {
		return n, ferrors.NewIOError("reading until-close body", err)
	}
	if n == len(buf) {
		return n, ErrNeedMoreBuffer
	}
	return n, nil
}

// readChunked fills buf from the current chunk, crossing chunk-size lines
// and the final trailer as needed, never reading past what fits in buf.
func readChunked(r *bufio.Reader, m *Message, buf []byte) (int, error) {
	written := 0
	for written < len(buf) {
		if m.inTrailer {
			done, err := consumeTrailerLine(r, m)
			if err != nil {
				return written, err
			}
			if done {
				m.bodyDone = true
				return written, nil
			}
			continue
		}

		if m.remaining == 0 {
			size, err := readChunkSizeLine(r)
			if err != nil {
				return written, err
			}
			if size == 0 {
				m.inTrailer = true
				continue
			}
			m.remaining = size
		}

		want := int64(len(buf) - written)
		if want > m.remaining {
			want = m.remaining
		}
		n, err := io.ReadFull(r, buf[written:written+int(want)])
		written += n
		m.remaining -= int64(n)
		if err != nil {
			return written, ferrors.NewIOError("reading chunk body", err)
		}
		if m.remaining == 0 {
			if err := consumeChunkCRLF(r); err != nil {
				return written, err
			}
		}
	}
	return written, ErrNeedMoreBuffer
}

func readChunkSizeLine(r *bufio.Reader) (int64, error) {
	line, err := readLine(r)
	if err != nil {
		return 0, ferrors.NewProtocolError("reading chunk size", err)
	}
	sizeField := strings.SplitN(line, ";", 2)[0]
	size, err := strconv.ParseInt(strings.TrimSpace(sizeField), 16, 64)
	if err != nil || size < 0 {
		return 0, ferrors.NewProtocolError("invalid chunk size", err)
	}
	return size, nil
}

func consumeChunkCRLF(r *bufio.Reader) error {
	crlf := make([]byte, 2)
	if _, err := io.ReadFull(r, crlf); err != nil {
		return ferrors.NewIOError("reading chunk terminator", err)
	}
	return nil
}

// consumeTrailerLine reads one trailer line, appending it to the message's
// fields if it is a header, and reports whether the trailer block ended.
func consumeTrailerLine(r *bufio.Reader, m *Message) (bool, error) {
	line, err := readLine(r)
	if err != nil {
		return false, ferrors.NewProtocolError("reading chunk trailer", err)
	}
	if line == "" {
		return true, nil
	}
	if colon := strings.IndexByte(line, ':'); colon >= 0 {
		m.Fields.Add(strings.TrimSpace(line[:colon]), strings.TrimSpace(line[colon+1:]))
	}
	return false, nil
}
