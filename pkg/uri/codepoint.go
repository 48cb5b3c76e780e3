package uri

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// SourceEncoding names the encoding a byte sequence must be decoded under
// before it is viewed as a sequence of Unicode code points.
type SourceEncoding int

const (
	EncodingUTF8 SourceEncoding = iota
	EncodingUTF16LE
	EncodingUTF16BE
	EncodingUTF32LE
	EncodingUTF32BE
)

// CodePointView decodes raw into a slice of Unicode scalar values under the
// given source encoding. Ill-formed input yields utf8.RuneError (Go's
// replacement-character sentinel) in place of the offending unit rather
// than silently dropping bytes.
func CodePointView(raw []byte, enc SourceEncoding) []rune {
	switch enc {
	case EncodingUTF8:
		return decodeUTF8(raw)
	case EncodingUTF16LE:
		return decodeUTF16(raw, unicode.LittleEndian)
	case EncodingUTF16BE:
		return decodeUTF16(raw, unicode.BigEndian)
	case EncodingUTF32LE:
		return decodeUTF32(raw, false)
	case EncodingUTF32BE:
		return decodeUTF32(raw, true)
	default:
		return decodeUTF8(raw)
	}
}

func decodeUTF8(raw []byte) []rune {
	out := make([]rune, 0, len(raw))
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		out = append(out, r)
		i += size
	}
	return out
}

func decodeUTF16(raw []byte, endian unicode.Endianness) []rune {
	dec := unicode.UTF16(endian, unicode.UseBOM).NewDecoder()
	decoded, _, err := transform.Bytes(dec, raw)
	if err != nil {
		// Decode whatever transform.Bytes managed before the error and pad
		// a single replacement scalar so callers can tell decoding stopped
		// short rather than silently truncating.
		out := decodeUTF8(decoded)
		return append(out, utf8.RuneError)
	}
	return decodeUTF8(decoded)
}

func decodeUTF32(raw []byte, bigEndian bool) []rune {
	out := make([]rune, 0, len(raw)/4)
	for i := 0; i+4 <= len(raw); i += 4 {
		var v uint32
		if bigEndian {
			v = uint32(raw[i])<<24 | uint32(raw[i+1])<<16 | uint32(raw[i+2])<<8 | uint32(raw[i+3])
		} else {
			v = uint32(raw[i+3])<<24 | uint32(raw[i+2])<<16 | uint32(raw[i+1])<<8 | uint32(raw[i])
		}
		r := rune(v)
		if v > utf8.MaxRune || (v >= 0xD800 && v <= 0xDFFF) {
			r = utf8.RuneError
		}
		out = append(out, r)
	}
	if len(raw)%4 != 0 {
		out = append(out, utf8.RuneError)
	}
	return out
}
