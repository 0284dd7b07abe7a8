package transcoder

import (
	"golang.org/x/text/encoding/charmap"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/errors"
)

// ToEngine converts a Go string into the engine charset.
func ToEngine(s string, cs ydbbridge.Charset, path []string) (string, error) {
	if cs.IsUTF8() || isASCII(s) {
		return s, nil
	}
	out, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return "", errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Path(path...).
			Value(s).
			Cause(err).
			Detail("string cannot be represented in the single-byte charset").
			Build()
	}
	return out, nil
}

// FromEngine converts engine output into a Go string.
func FromEngine(raw []byte, cs ydbbridge.Charset) string {
	if cs.IsUTF8() || isASCII(string(raw)) {
		return string(raw)
	}
	// ISO-8859-1 maps every byte, so decoding cannot fail.
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	return string(out)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
