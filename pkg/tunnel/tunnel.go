// Package tunnel drives one accepted connection's whole lifetime: read and
// classify the first request, either reject it, establish a CONNECT tunnel,
// or perform a one-shot absolute-URI relay, then tear the connection down
// per RFC 7230 §6.6.
package tunnel

import (
	"context"
	"io"
	"strconv"

	"github.com/foxyproxy/foxy/pkg/ferrors"
	"github.com/foxyproxy/foxy/pkg/message"
	"github.com/foxyproxy/foxy/pkg/metrics"
	"github.com/foxyproxy/foxy/pkg/relay"
	"github.com/foxyproxy/foxy/pkg/session"
	"github.com/foxyproxy/foxy/pkg/uri"
)

// bufferSize is the fixed buffer the opaque CONNECT byte-splice uses, the
// same size the relay engine streams bodies through.
const bufferSize = 2048

const (
	msgNonPersistentConnect = "CONNECT semantics require a persistent connection\n\n"
	msgMalformed            = "Malformed client request. Use either CONNECT <authority-uri> or <verb> <absolute-uri>"
)

// DialFunc abstracts "connect upstream, optionally over TLS" so Dispatch
// never has to know how a concrete session gets established. Tests supply
// a DialFunc backed by net.Pipe; DefaultDialer supplies one backed by
// session.NewClientSession.
type DialFunc func(ctx context.Context, host, port string, useTLS bool) (*session.ClientSession, error)

// Dispatch reads one request header from server, classifies it, and
// drives the connection to completion: either an error response, a CONNECT
// tunnel, or a one-shot absolute-URI relay. It always tears server down
// before returning, mirroring the RFC 7230 §6.6 sequence every branch below
// needs regardless of how it exits.
func Dispatch(ctx context.Context, server *session.ServerSession, dial DialFunc, met *metrics.Metrics) error {
	defer server.Shutdown(ctx)

	var req message.Message
	if err := server.ReadRequestHeader(ctx, &req); err != nil {
		return err
	}

	parts := uri.ParseURI(req.Target)
	isConnect := req.Method == "CONNECT"

	switch {
	case isConnect && parts.IsAuthority():
		return dispatchConnect(ctx, server, &req, parts, dial, met)
	case parts.IsAbsolute() && parts.IsHTTP():
		return dispatchRelayOnce(ctx, server, &req, parts, dial, met)
	default:
		if met != nil {
			met.TunnelsFailed.WithLabelValues("malformed").Inc()
		}
		return writeErrorResponse(ctx, server, 400, "Bad Request", msgMalformed)
	}
}

// dispatchConnect handles the CONNECT method: on success it replies 200 and
// becomes an opaque byte tunnel between server and the dialed upstream,
// exactly as spec.md §6 describes ("200 reply, then opaque tunnel") — the
// generic RELAY_REQ/RELAY_RES state-machine loop in §4.5 applies to the
// one-shot absolute-URI path, which is the only path that re-enters HTTP
// parsing after its first exchange.
func dispatchConnect(ctx context.Context, server *session.ServerSession, req *message.Message, parts uri.Parts, dial DialFunc, met *metrics.Metrics) error {
	if !req.KeepAlive() {
		if met != nil {
			met.TunnelsFailed.WithLabelValues("connect_non_persistent").Inc()
		}
		return writeErrorResponse(ctx, server, 400, "Bad Request", msgNonPersistentConnect)
	}

	host, port := parts.Host, parts.Port
	if port == "" {
		port = "443"
	}

	client, err := dial(ctx, host, port, false)
	if err != nil {
		if met != nil {
			met.TunnelsFailed.WithLabelValues("connect_dial").Inc()
		}
		server.Log.TunnelFailed("connect", host, port, ferrors.NewTunnelError("connect", host, port, err))
		return writeErrorResponse(ctx, server, 502, "Bad Gateway", "Unable to establish tunnel to upstream host\n")
	}
	defer client.Shutdown(ctx)

	res := message.Message{Version: "HTTP/1.1", StatusCode: 200, Reason: "Connection Established"}
	if err := server.WriteResponseHeader(ctx, &res); err != nil {
		return err
	}

	if met != nil {
		met.TunnelsOpened.WithLabelValues("connect").Inc()
		met.ActiveTunnels.Inc()
		defer met.ActiveTunnels.Dec()
	}
	server.Log.TunnelOpened("connect", host, port)

	return spliceRaw(ctx, server.Session, client.Session)
}

// dispatchRelayOnce handles an absolute-URI request: it forces the request
// and response closed, rewrites the target to path-only, dials upstream,
// and relays exactly one request/response exchange.
func dispatchRelayOnce(ctx context.Context, server *session.ServerSession, req *message.Message, parts uri.Parts, dial DialFunc, met *metrics.Metrics) error {
	req.SetClose()
	req.Target = parts.Path
	if req.Target == "" {
		req.Target = "/"
	}

	useTLS := parts.Scheme == "https"
	port := parts.Port
	if port == "" {
		if useTLS {
			port = "443"
		} else {
			port = "80"
		}
	}

	client, err := dial(ctx, parts.Host, port, useTLS)
	if err != nil {
		if met != nil {
			met.TunnelsFailed.WithLabelValues("relay_dial").Inc()
		}
		server.Log.TunnelFailed("relay", parts.Host, port, ferrors.NewTunnelError("relay", parts.Host, port, err))
		return writeErrorResponse(ctx, server, 502, "Bad Gateway", "Unable to reach upstream host\n")
	}
	defer client.Shutdown(ctx)

	if met != nil {
		met.TunnelsOpened.WithLabelValues("relay").Inc()
	}
	server.Log.TunnelOpened("relay", parts.Host, port)

	if _, _, err := relay.ForwardRequest(ctx, req, server.Session, client.Session, met); err != nil {
		return err
	}
	_, err = relay.Response(ctx, client.Session, server.Session, req.Method, true, met)
	return err
}

// spliceRaw copies raw bytes in both directions between server and client
// until either side hits EOF or an error, returning the first such error
// (nil on a clean EOF).
func spliceRaw(ctx context.Context, server, client *session.Session) error {
	errc := make(chan error, 2)
	go func() { errc <- copyRaw(ctx, client, server) }()
	go func() { errc <- copyRaw(ctx, server, client) }()
	return <-errc
}

func copyRaw(ctx context.Context, from, to *session.Session) error {
	buf := make([]byte, bufferSize)
	for {
		n, err := from.ReadRawBytes(ctx, buf)
		if n > 0 {
			if _, werr := to.WriteRawBytes(ctx, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func writeErrorResponse(ctx context.Context, server *session.ServerSession, status int, reason, body string) error {
	res := message.Message{Version: "HTTP/1.1", StatusCode: status, Reason: reason}
	res.Fields.Set("Content-Length", strconv.Itoa(len(body)))
	res.Fields.Set("Connection", "close")
	if err := server.WriteResponseHeader(ctx, &res); err != nil {
		return err
	}
	return server.WriteRaw(ctx, []byte(body))
}
