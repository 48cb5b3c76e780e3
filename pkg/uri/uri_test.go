package uri

import "testing"

func TestParseURIAbsolute(t *testing.T) {
	p := ParseURI("http://upstream.example/path?q=1#frag")
	if p.IsAbsolute() {
		t.Fatalf("a fragment rules out absolute-URI form, got %+v", p)
	}
	if p.IsAuthority() {
		t.Fatalf("should not classify as authority form: %+v", p)
	}
	if !p.IsHTTP() {
		t.Fatalf("expected http scheme: %+v", p)
	}
	if p.Scheme != "http" || p.Host != "upstream.example" || p.Path != "/path" || p.Query != "q=1" || p.Fragment != "frag" {
		t.Fatalf("unexpected parts: %+v", p)
	}
}

func TestParseURIAuthorityForm(t *testing.T) {
	p := ParseURI("upstream.example:443")
	if !p.IsAuthority() {
		t.Fatalf("expected authority form, got %+v", p)
	}
	if p.IsAbsolute() {
		t.Fatalf("authority form is never absolute: %+v", p)
	}
	if p.Host != "upstream.example" || p.Port != "443" {
		t.Fatalf("unexpected parts: %+v", p)
	}
}

func TestParseURIIPv6Authority(t *testing.T) {
	p := ParseURI("[::1]:8080")
	if !p.IsAuthority() || p.Host != "[::1]" || p.Port != "8080" {
		t.Fatalf("unexpected parts: %+v", p)
	}
}

func TestParseURIMalformed(t *testing.T) {
	p := ParseURI("lol some garbage target")
	if p != (Parts{}) {
		t.Fatalf("expected all-empty parts for malformed target, got %+v", p)
	}
}

func TestParseURIInvariant(t *testing.T) {
	cases := []string{
		"http://a/b",
		"a.b.c:443",
		"https://a.b/c?d#e",
		"not a uri at all !!",
	}
	for _, c := range cases {
		p := ParseURI(c)
		if p == (Parts{}) {
			continue
		}
		if !p.IsAuthority() && !p.IsAbsolute() {
			t.Errorf("%q: parsed parts satisfy neither predicate: %+v", c, p)
		}
	}
}

func TestPctDecode(t *testing.T) {
	got, err := PctDecode("a%20b%2Fc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a b/c" {
		t.Fatalf("got %q", got)
	}
}

func TestPctDecodeMalformed(t *testing.T) {
	_, err := PctDecode("a%2")
	if err != ErrUnexpectedPercent {
		t.Fatalf("expected ErrUnexpectedPercent, got %v", err)
	}

	_, err = PctDecode("a%zz")
	if err != ErrUnexpectedPercent {
		t.Fatalf("expected ErrUnexpectedPercent, got %v", err)
	}
}

func TestPctEncodeDecodeRoundTrip(t *testing.T) {
	in := "safe-path_~.123"
	encoded := PctEncodePath([]rune(in))
	if encoded != in {
		t.Fatalf("safe path should pass through unescaped, got %q", encoded)
	}
	decoded, err := PctDecode(encoded)
	if err != nil || decoded != in {
		t.Fatalf("round trip failed: decoded=%q err=%v", decoded, err)
	}
}

func TestPctEncodePathAllowsSlash(t *testing.T) {
	encoded := PctEncodePath([]rune("/a/b c"))
	if encoded != "/a/b%20c" {
		t.Fatalf("got %q", encoded)
	}
}

func TestPctEncodeHostEscapesUnsafe(t *testing.T) {
	encoded := PctEncodeHost([]rune("ho#st"))
	if encoded != "ho%23st" {
		t.Fatalf("got %q", encoded)
	}
}

func TestUTF8EncodeRoundTrip(t *testing.T) {
	for _, r := range []rune{'a', 0x7FF, 0xFFFF, 0x10FFFF} {
		b := UTF8Encode(r)
		decoded, size := decodeFirstRune(b)
		if decoded != r || size != len(b) {
			t.Errorf("round trip failed for %U: got %U (%d bytes)", r, decoded, size)
		}
	}
}

func decodeFirstRune(b []byte) (rune, int) {
	r := CodePointView(b, EncodingUTF8)
	if len(r) != 1 {
		return -1, 0
	}
	return r[0], len(b)
}

func TestCodePointViewUTF16(t *testing.T) {
	// "hi" in UTF-16LE.
	raw := []byte{'h', 0, 'i', 0}
	got := CodePointView(raw, EncodingUTF16LE)
	if string(got) != "hi" {
		t.Fatalf("got %q", string(got))
	}
}
