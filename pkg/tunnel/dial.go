package tunnel

import (
	"context"

	"github.com/foxyproxy/foxy/pkg/flog"
	"github.com/foxyproxy/foxy/pkg/session"
)

// DefaultDialer returns the DialFunc Dispatch uses in production: each call
// builds its own ClientSession from opts, nilling the TLS template when the
// caller doesn't want TLS for this particular hop (a CONNECT tunnel always
// dials plain; an absolute-URI relay to an https:// target dials TLS), so
// ClientSession.Connect's own TLS-from-Options.TLSConfig derivation stays
// accurate per call without opts itself ever carrying a "use TLS" bit.
func DefaultDialer(opts session.Options, log flog.Logger) DialFunc {
	return func(ctx context.Context, host, port string, useTLS bool) (*session.ClientSession, error) {
		callOpts := opts
		if !useTLS {
			callOpts.TLSConfig = nil
		}
		cs := session.NewClientSession(callOpts, log)
		if err := cs.Connect(ctx, host, port); err != nil {
			return nil, err
		}
		return cs, nil
	}
}
