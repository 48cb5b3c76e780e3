package tlsconfig

import (
	"crypto/tls"
	"testing"
)

func TestApplyVersionProfile(t *testing.T) {
	cfg := &tls.Config{}
	ApplyVersionProfile(cfg, ProfileSecure)
	if cfg.MinVersion != tls.VersionTLS12 || cfg.MaxVersion != tls.VersionTLS13 {
		t.Fatalf("unexpected version range: min=%d max=%d", cfg.MinVersion, cfg.MaxVersion)
	}
}

func TestApplyCipherSuitesByFloor(t *testing.T) {
	cases := []struct {
		name      string
		minVer    uint16
		wantEmpty bool
	}{
		{"tls13 floor clears list", tls.VersionTLS13, true},
		{"tls12 floor sets list", tls.VersionTLS12, false},
		{"tls10 floor sets list", tls.VersionTLS10, false},
		{"ssl30 floor sets legacy list", tls.VersionSSL30, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &tls.Config{}
			ApplyCipherSuites(cfg, tc.minVer)
			if tc.wantEmpty && cfg.CipherSuites != nil {
				t.Fatalf("expected nil cipher suites, got %v", cfg.CipherSuites)
			}
			if !tc.wantEmpty && len(cfg.CipherSuites) == 0 {
				t.Fatal("expected a non-empty cipher suite list")
			}
		})
	}
}

func TestConfigForCarriesNoConnectionSpecifics(t *testing.T) {
	cfg := ConfigFor(ProfileSecure)
	if cfg.ServerName != "" {
		t.Fatalf("expected empty ServerName, got %q", cfg.ServerName)
	}
	if cfg.InsecureSkipVerify {
		t.Fatal("expected InsecureSkipVerify false by default")
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Fatalf("unexpected MinVersion: %d", cfg.MinVersion)
	}
}

func TestGetVersionNameUnknown(t *testing.T) {
	if got := GetVersionName(0xffff); got != "Unknown" {
		t.Fatalf("expected Unknown, got %q", got)
	}
}

func TestGetCipherSuiteNameKnown(t *testing.T) {
	if got := GetCipherSuiteName(tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256); got == "Unknown" {
		t.Fatal("expected a recognized cipher suite name")
	}
}
