package engine

import (
	"strconv"
)

// The engine writes JSON byte-transparently: string contents are copied as
// bytes and only quote, backslash and control characters are escaped. This
// keeps single-byte charset output intact until the host transcodes it.

func appendJSONString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			dst = append(dst, '\\', c)
		case c == '\n':
			dst = append(dst, '\\', 'n')
		case c == '\r':
			dst = append(dst, '\\', 'r')
		case c == '\t':
			dst = append(dst, '\\', 't')
		case c < 0x20:
			dst = append(dst, `\u00`...)
			dst = append(dst, "0123456789abcdef"[c>>4], "0123456789abcdef"[c&0xF])
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, '"')
}

func appendJSONStrings(dst []byte, ss []string) []byte {
	dst = append(dst, '[')
	for i, s := range ss {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendJSONString(dst, s)
	}
	return append(dst, ']')
}

func definedJSON(defined int) []byte {
	out := append([]byte(`{"defined":`), strconv.Itoa(defined)...)
	return append(out, '}')
}

func nodeJSON(subs []subscript, data []byte) []byte {
	texts := make([]string, len(subs))
	for i, s := range subs {
		texts[i] = s.text
	}
	out := append([]byte(`{"subscripts":`), appendJSONStrings(nil, texts)...)
	out = append(out, `,"data":`...)
	out = appendJSONString(out, string(data))
	return append(out, '}')
}
