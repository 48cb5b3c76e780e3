// Package fields implements the ordered, case-insensitive header container
// and hop-by-hop field logic the relay engine needs, since net/textproto's
// MIMEHeader collapses duplicate field names and loses insertion order —
// both of which export_connect_fields and has_foxy_via rely on.
package fields

import (
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Field is one header line, preserving its original casing.
type Field struct {
	Name  string
	Value string
}

// Fields is an ordered multimap of header fields. Lookups are
// case-insensitive; iteration order follows insertion order.
type Fields []Field

// Add appends a field, preserving any existing fields of the same name.
func (f *Fields) Add(name, value string) {
	*f = append(*f, Field{Name: name, Value: value})
}

// Values returns every value for name, case-insensitively, in order.
func (f Fields) Values(name string) []string {
	var out []string
	for _, field := range f {
		if strings.EqualFold(field.Name, name) {
			out = append(out, field.Value)
		}
	}
	return out
}

// Has reports whether any field matches name, case-insensitively.
func (f Fields) Has(name string) bool {
	for _, field := range f {
		if strings.EqualFold(field.Name, name) {
			return true
		}
	}
	return false
}

// Del removes every field matching name, case-insensitively.
func (f *Fields) Del(name string) {
	out := (*f)[:0]
	for _, field := range *f {
		if !strings.EqualFold(field.Name, name) {
			out = append(out, field)
		}
	}
	*f = out
}

// Set replaces every field matching name with a single field carrying value.
func (f *Fields) Set(name, value string) {
	f.Del(name)
	f.Add(name, value)
}

// Clone returns an independent copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	copy(out, f)
	return out
}

// HopByHop is the fixed set of connection-scoped header names that must
// never be forwarded by a proxy, independent of any Connection token list.
var HopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authentication-Info",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Proxy-Features",
	"Proxy-Instruction",
	"TE",
	"Trailer",
	"Transfer-Encoding",
}

func isHopByHopName(name string) bool {
	for _, h := range HopByHop {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// connectionTokens collects every comma-separated token named across all
// Connection headers in f, deduplicated, per RFC 7230 §6.1.
func connectionTokens(f Fields) map[string]bool {
	tokens := make(map[string]bool)
	for _, value := range f.Values("Connection") {
		for _, tok := range strings.Split(value, ",") {
			tok = strings.TrimSpace(tok)
			if tok != "" && httpguts.ValidHeaderFieldName(tok) {
				tokens[strings.ToLower(tok)] = true
			}
		}
	}
	return tokens
}

// ExportConnectFields moves every hop-by-hop field out of src and into dst,
// in src's iteration order. A field qualifies if its name is in the fixed
// HopByHop set, or if its name (case-insensitively) was named as a token in
// any Connection header of src.
func ExportConnectFields(src, dst *Fields) {
	tokens := connectionTokens(*src)

	kept := (*src)[:0:0]
	for _, field := range *src {
		if isHopByHopName(field.Name) || tokens[strings.ToLower(field.Name)] {
			*dst = append(*dst, field)
			continue
		}
		kept = append(kept, field)
	}
	*src = kept
}

// HasFoxyVia reports whether any Via header value contains the literal
// token "1.1 foxy", case-insensitively — this proxy's own loop marker.
func HasFoxyVia(f Fields) bool {
	for _, v := range f.Values("Via") {
		if strings.Contains(strings.ToLower(v), "1.1 foxy") {
			return true
		}
	}
	return false
}
