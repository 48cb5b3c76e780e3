package session

import "time"

// Metadata records the observable facts about one session's transport,
// independent of the messages relayed over it — the Go analogue of the
// teacher's ConnectionMetadata, trimmed to what a proxy tunnel (rather
// than an outbound HTTP client) actually needs.
type Metadata struct {
	ID         string
	RemoteAddr string
	LocalAddr  string
	OpenedAt   time.Time

	IsTLS          bool
	TLSVersion     string
	TLSCipherSuite string
	TLSServerName  string
}
