// Package tlsconfig turns a named version/cipher profile into a
// crypto/tls.Config template. Session construction clones that template
// per dial and fills in the fields that vary per connection (ServerName,
// certificate verification).
package tlsconfig

import "crypto/tls"

// VersionProfile pins a tls.Config's acceptable protocol version range.
type VersionProfile struct {
	Min         uint16
	Max         uint16
	Description string
}

var (
	// ProfileModern accepts TLS 1.3 only.
	ProfileModern = VersionProfile{tls.VersionTLS13, tls.VersionTLS13, "TLS 1.3 only"}

	// ProfileSecure accepts TLS 1.2 and 1.3. The default for upstream dials.
	ProfileSecure = VersionProfile{tls.VersionTLS12, tls.VersionTLS13, "TLS 1.2+"}

	// ProfileCompatible accepts TLS 1.0 through 1.3.
	ProfileCompatible = VersionProfile{tls.VersionTLS10, tls.VersionTLS13, "TLS 1.0+, maximum compatibility"}

	// ProfileLegacy accepts SSL 3.0 through TLS 1.3.
	ProfileLegacy = VersionProfile{tls.VersionSSL30, tls.VersionTLS13, "SSL 3.0+, includes deprecated versions"}
)

var versionNames = map[uint16]string{
	tls.VersionSSL30: "SSL 3.0",
	tls.VersionTLS10: "TLS 1.0",
	tls.VersionTLS11: "TLS 1.1",
	tls.VersionTLS12: "TLS 1.2",
	tls.VersionTLS13: "TLS 1.3",
}

// GetVersionName returns a human-readable name for a TLS version constant,
// or "Unknown" for one this package doesn't recognize.
func GetVersionName(version uint16) string {
	if name, ok := versionNames[version]; ok {
		return name
	}
	return "Unknown"
}

// cipherSuitesSecure is offered for TLS 1.2 connections that don't also
// need CBC-mode fallback.
var cipherSuitesSecure = []uint16{
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
}

// cipherSuitesCompatible adds CBC-mode suites on top of cipherSuitesSecure,
// for peers that predate AEAD support.
var cipherSuitesCompatible = append(append([]uint16{}, cipherSuitesSecure...),
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA,
	tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA,
)

// cipherSuitesLegacy covers SSL 3.0/TLS 1.0-only RSA key exchange, the
// bottom of ProfileLegacy's range. Not offered by any other profile.
var cipherSuitesLegacy = []uint16{
	tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_RSA_WITH_AES_128_CBC_SHA256,
	tls.TLS_RSA_WITH_AES_128_CBC_SHA,
	tls.TLS_RSA_WITH_AES_256_CBC_SHA,
	tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA,
}

var cipherSuiteNames = buildCipherSuiteNames()

func buildCipherSuiteNames() map[uint16]string {
	names := make(map[uint16]string)
	for _, suite := range tls.CipherSuites() {
		names[suite.ID] = suite.Name
	}
	for _, suite := range tls.InsecureCipherSuites() {
		names[suite.ID] = suite.Name
	}
	return names
}

// GetCipherSuiteName returns a human-readable cipher suite name, or
// "Unknown" for an ID that neither tls.CipherSuites() nor
// tls.InsecureCipherSuites() lists (TLS 1.3 suites are listed, so they
// resolve by name).
func GetCipherSuiteName(suite uint16) string {
	if name, ok := cipherSuiteNames[suite]; ok {
		return name
	}
	return "Unknown"
}

// ApplyVersionProfile sets config's acceptable version range to profile.
func ApplyVersionProfile(config *tls.Config, profile VersionProfile) {
	config.MinVersion = profile.Min
	config.MaxVersion = profile.Max
}

// ApplyCipherSuites picks a cipher suite list sized to minVersion. TLS 1.3
// negotiates its own suites, so a minVersion floor of TLS 1.3 clears the
// list entirely rather than constraining it.
func ApplyCipherSuites(config *tls.Config, minVersion uint16) {
	switch {
	case minVersion >= tls.VersionTLS13:
		config.CipherSuites = nil
	case minVersion >= tls.VersionTLS12:
		config.CipherSuites = cipherSuitesSecure
	case minVersion >= tls.VersionTLS10:
		config.CipherSuites = cipherSuitesCompatible
	default:
		config.CipherSuites = cipherSuitesLegacy
	}
}

// ConfigFor builds the version/cipher template a ClientSession clones for
// each dial, filling in ServerName and certificate verification per host.
// It carries no ServerName or InsecureSkipVerify of its own — those are
// connection-specific and applied by the caller.
func ConfigFor(profile VersionProfile) *tls.Config {
	cfg := &tls.Config{}
	ApplyVersionProfile(cfg, profile)
	ApplyCipherSuites(cfg, profile.Min)
	return cfg
}
