package session

import (
	"crypto/tls"
	"time"
)

// Options controls per-session timeouts and TLS defaults. A Session is
// built once per tunnel, so Options is typically shared read-only across
// many sessions rather than copied per connection.
type Options struct {
	// Timeout bounds every individual blocking operation a session
	// performs (dial, handshake, header read, body read, write). Each
	// operation gets its own deadline starting when it begins, not a
	// single deadline for the whole tunnel's lifetime.
	Timeout time.Duration

	// TLSConfig is the version/cipher template a ClientSession clones and
	// connects with. A nil TLSConfig is what makes Connect dial plaintext:
	// TLS mode is derived from this field's presence, not from a separate
	// boolean passed alongside it.
	TLSConfig *tls.Config

	// VerifyPeerCert controls certificate verification on upstream TLS
	// dials; it is only consulted when TLSConfig is non-nil. false skips
	// verification (lab/test use only) by setting InsecureSkipVerify on
	// the per-dial clone of TLSConfig.
	VerifyPeerCert bool
}

// DefaultOptions returns a baseline profile: a 30s operation timeout,
// plaintext dialing (no TLSConfig template) and certificate verification
// enabled for whenever one is set. The CLI does not use it; it builds its
// Options from config.Default().SessionOptions().
func DefaultOptions() Options {
	return Options{
		Timeout:        30 * time.Second,
		VerifyPeerCert: true,
	}
}
