// Package config holds the flat, defaulted configuration struct the proxy
// core is constructed from, and binds it onto a cobra command's flags.
package config

import (
	"crypto/tls"
	"time"

	"github.com/spf13/cobra"

	"github.com/foxyproxy/foxy/pkg/ferrors"
	"github.com/foxyproxy/foxy/pkg/session"
	"github.com/foxyproxy/foxy/pkg/tlsconfig"
)

// Config controls how the proxy core listens, times out operations, and
// optionally terminates TLS on its client-facing port. There is no
// persisted state and no environment-variable surface: every field except
// TLSProfile can be supplied on the command line; the rest keep their
// Default.
type Config struct {
	// ListenAddr is the host:port the proxy accepts client connections on.
	ListenAddr string

	// MetricsAddr is the host:port the /metrics Prometheus endpoint is
	// served on. Empty disables it.
	MetricsAddr string

	// Timeout bounds every wrapped session operation: connect, TLS
	// handshake, header read/write, body read/write, accept.
	Timeout time.Duration

	// TLSCert and TLSKey, when both set, terminate TLS on the
	// client-facing listener using this certificate/key pair. Leaving
	// either empty keeps the client-facing listener plaintext.
	TLSCert string
	TLSKey  string

	// TLSProfile selects the cipher-suite/version floor used for the
	// client-facing listener (when TLSCert/TLSKey are set) and for
	// upstream TLS dials (absolute-URI relays to https:// targets; CONNECT
	// tunnels dial upstream in plaintext).
	TLSProfile tlsconfig.VersionProfile

	// InsecureSkipVerify disables certificate verification on upstream TLS
	// dials. Never applies to the client-facing listener.
	InsecureSkipVerify bool

	// PrettyLog switches the structured logger from ndjson to a
	// console-friendly format, for local development.
	PrettyLog bool
}

// Default returns the Config a bare invocation runs with: plaintext
// listener on localhost, metrics enabled, a 30s operation timeout, and the
// secure TLS profile for upstream dials.
func Default() Config {
	return Config{
		ListenAddr:  "127.0.0.1:8080",
		MetricsAddr: "127.0.0.1:9090",
		Timeout:     30 * time.Second,
		TLSProfile:  tlsconfig.ProfileSecure,
	}
}

// BindFlags registers cmd's flags directly onto cfg's fields, in cobra's
// flag-into-struct-field idiom.
func (cfg *Config) BindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr,
		"address the proxy accepts client connections on")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-listen", cfg.MetricsAddr,
		"address the /metrics endpoint is served on (empty disables it)")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout,
		"per-operation timeout for connects, handshakes, and header/body I/O")
	cmd.Flags().StringVar(&cfg.TLSCert, "tls-cert", cfg.TLSCert,
		"certificate file for the client-facing listener (enables HTTPS front-end)")
	cmd.Flags().StringVar(&cfg.TLSKey, "tls-key", cfg.TLSKey,
		"private key file for the client-facing listener")
	cmd.Flags().BoolVar(&cfg.InsecureSkipVerify, "insecure-skip-verify", cfg.InsecureSkipVerify,
		"skip certificate verification on upstream TLS dials")
	cmd.Flags().BoolVar(&cfg.PrettyLog, "pretty-log", cfg.PrettyLog,
		"use console-friendly log output instead of ndjson")
}

// ListenerTLSConfig builds the *tls.Config the client-facing listener uses,
// or nil if TLSCert/TLSKey aren't both set, keeping the listener plaintext.
func (cfg Config) ListenerTLSConfig() (*tls.Config, error) {
	if cfg.TLSCert == "" || cfg.TLSKey == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
	if err != nil {
		return nil, ferrors.NewTLSError(cfg.ListenAddr, 0, err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	tlsconfig.ApplyVersionProfile(tlsCfg, cfg.TLSProfile)
	tlsconfig.ApplyCipherSuites(tlsCfg, cfg.TLSProfile.Min)
	return tlsCfg, nil
}

// SessionOptions builds the session.Options every Session this proxy
// dials or accepts is constructed with. TLSConfig carries only the
// version/cipher template for cfg.TLSProfile; tunnel.DefaultDialer nils it
// per dial when that particular hop does not want TLS, and
// ClientSession.Connect clones it for the hops that do.
func (cfg Config) SessionOptions() session.Options {
	return session.Options{
		Timeout:        cfg.Timeout,
		TLSConfig:      tlsconfig.ConfigFor(cfg.TLSProfile),
		VerifyPeerCert: !cfg.InsecureSkipVerify,
	}
}
