// Package relay forwards one HTTP/1.1 request/response exchange between
// the client-facing session and the upstream session, rewriting
// hop-by-hop fields and inserting this proxy's Via token on the way.
package relay

import (
	"context"

	"github.com/foxyproxy/foxy/pkg/fields"
	"github.com/foxyproxy/foxy/pkg/message"
	"github.com/foxyproxy/foxy/pkg/metrics"
	"github.com/foxyproxy/foxy/pkg/session"
)

// bufferSize is the fixed relay buffer: bodies are never buffered in full,
// only streamed through this many bytes at a time.
const bufferSize = 2048

// ErrLoopDetected is returned when a message already carries this proxy's
// Via token, meaning the tunnel would otherwise forward a request back to
// itself.
var ErrLoopDetected = loopError{}

type loopError struct{}

func (loopError) Error() string { return "relay: loop detected via Via header" }

// Request relays one HTTP request from server (the client-facing session)
// to client (the upstream session), returning whether the tunnel should
// close after this exchange.
func Request(ctx context.Context, server, client *session.Session, met *metrics.Metrics) (bool, *message.Message, error) {
	var req message.Message
	if err := server.ReadRequestHeader(ctx, &req); err != nil {
		return false, nil, err
	}
	return ForwardRequest(ctx, &req, server, client, met)
}

// ForwardRequest relays an already-parsed request from server to client.
// The tunnel dispatcher uses this directly for the one-shot absolute-URI
// path, where it must read the request header itself to classify the
// target before a destination session even exists.
func ForwardRequest(ctx context.Context, req *message.Message, server, client *session.Session, met *metrics.Metrics) (bool, *message.Message, error) {
	closeTunnel := !req.KeepAlive()
	if fields.HasFoxyVia(req.Fields) {
		server.Log.LoopDetected()
		if met != nil {
			met.LoopsDetected.Inc()
		}
		return true, req, ErrLoopDetected
	}

	isChunked := req.Mode() == message.BodyModeChunked
	var exported fields.Fields
	fields.ExportConnectFields(&req.Fields, &exported)
	if closeTunnel {
		req.SetClose()
	}
	if isChunked {
		req.SetChunked()
	}
	req.InsertVia()

	if err := client.WriteRequestHeader(ctx, req); err != nil {
		return closeTunnel, req, err
	}

	if err := streamBody(ctx, server, client, req, isChunked, "upstream", met); err != nil {
		return closeTunnel, req, err
	}

	return closeTunnel, req, nil
}

// Response relays one HTTP response from client (the upstream session)
// to server (the client-facing session). method is the request method
// that elicited the response, needed to determine whether it carries a
// body at all.
func Response(ctx context.Context, client, server *session.Session, method string, closeTunnel bool, met *metrics.Metrics) (bool, error) {
	var res message.Message
	if err := client.ReadResponseHeader(ctx, &res, method); err != nil {
		return closeTunnel, err
	}

	closeTunnel = closeTunnel || !res.KeepAlive()
	if fields.HasFoxyVia(res.Fields) {
		server.Log.LoopDetected()
		if met != nil {
			met.LoopsDetected.Inc()
		}
		return true, ErrLoopDetected
	}

	isChunked := res.Mode() == message.BodyModeChunked
	var exported fields.Fields
	fields.ExportConnectFields(&res.Fields, &exported)
	if closeTunnel {
		res.SetClose()
	}
	if isChunked {
		res.SetChunked()
	}
	res.InsertVia()

	if err := server.WriteResponseHeader(ctx, &res); err != nil {
		return closeTunnel, err
	}

	if err := streamBody(ctx, client, server, &res, isChunked, "downstream", met); err != nil {
		return closeTunnel, err
	}

	return closeTunnel, nil
}

// Exchange relays one full request/response cycle and reports whether the
// tunnel should close afterward.
func Exchange(ctx context.Context, server, client *session.Session, met *metrics.Metrics) (bool, error) {
	closeTunnel, req, err := Request(ctx, server, client, met)
	if err != nil {
		return closeTunnel, err
	}
	return Response(ctx, client, server, req.Method, closeTunnel, met)
}

func streamBody(ctx context.Context, from, to *session.Session, m *message.Message, chunked bool, direction string, met *metrics.Metrics) error {
	buf := make([]byte, bufferSize)
	for !m.BodyDone() {
		n, err := from.ReadBody(ctx, m, buf)
		if err != nil && err != message.ErrNeedMoreBuffer {
			return err
		}
		if n > 0 {
			if met != nil {
				met.RelayBytes.WithLabelValues(direction).Add(float64(n))
			}
			if chunked {
				if werr := to.WriteChunk(ctx, buf[:n]); werr != nil {
					return werr
				}
			} else {
				if werr := to.WriteRaw(ctx, buf[:n]); werr != nil {
					return werr
				}
			}
		}
	}
	if chunked {
		return to.WriteLastChunk(ctx)
	}
	return nil
}
