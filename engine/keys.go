package engine

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/ydb-bridge/transcoder"
)

// Node keys are an order-preserving byte encoding of a subscript list, so that
// SQLite's memcmp ordering of BLOBs is M collation: the empty string first,
// then numbers in numeric order, then strings in byte order.
//
//	key     = 0x00 element*
//	element = 0x01                         empty string
//	        | 0x02 number
//	        | 0x03 escaped-bytes 0x00 0x00 string, 0x00 escaped as 0x00 0xFF
//	number  = 0x80                         zero
//	        | 0x81 exp+128 digit* 0x00     positive, value = 0.digits * 10^exp
//	        | 0x7F 127-exp ^digit* 0xFF    negative, digits complemented
//
// Elements are self-delimiting, so every descendant of key K lies in
// [K+0x01, K+0x04) and nothing else does.
const (
	tagEmpty  byte = 0x01
	tagNumber byte = 0x02
	tagString byte = 0x03
	tagLimit  byte = 0x04

	numZero     byte = 0x80
	numPositive byte = 0x81
	numNegative byte = 0x7F
)

var rootKey = []byte{0x00}

type subscript struct {
	text    string
	numeric bool
}

// subscriptFromToken applies M's rule that canonical numeric strings are numbers.
func subscriptFromToken(tok transcoder.Token) (subscript, error) {
	switch tok.Kind {
	case transcoder.TokenEmpty:
		return subscript{}, nil
	case transcoder.TokenNumber:
		n, ok := normalizeNumber(tok.Text)
		if !ok {
			return subscript{}, fmt.Errorf("invalid numeric subscript %q", tok.Text)
		}
		return subscript{text: n, numeric: true}, nil
	case transcoder.TokenString:
		if transcoder.IsCanonicalNumber(tok.Text) {
			return subscript{text: tok.Text, numeric: true}, nil
		}
		return subscript{text: tok.Text}, nil
	}
	return subscript{}, fmt.Errorf("%s argument is not allowed as a subscript", tok.Kind)
}

// parseSubscripts decodes a wire string of subscripts.
func parseSubscripts(wire string) ([]subscript, error) {
	toks, err := transcoder.DecodeTokens(wire)
	if err != nil {
		return nil, err
	}
	subs := make([]subscript, len(toks))
	for i, tok := range toks {
		s, err := subscriptFromToken(tok)
		if err != nil {
			return nil, err
		}
		subs[i] = s
	}
	return subs, nil
}

func encodeKey(subs []subscript) []byte {
	key := append([]byte(nil), rootKey...)
	for _, s := range subs {
		key = appendElement(key, s)
	}
	return key
}

func appendElement(dst []byte, s subscript) []byte {
	switch {
	case s.numeric:
		dst = append(dst, tagNumber)
		return appendNumber(dst, s.text)
	case s.text == "":
		return append(dst, tagEmpty)
	}
	dst = append(dst, tagString)
	for i := 0; i < len(s.text); i++ {
		c := s.text[i]
		dst = append(dst, c)
		if c == 0x00 {
			dst = append(dst, 0xFF)
		}
	}
	return append(dst, 0x00, 0x00)
}

func appendNumber(dst []byte, text string) []byte {
	if text == "0" {
		return append(dst, numZero)
	}
	neg := strings.HasPrefix(text, "-")
	digits, exp := decimalParts(strings.TrimPrefix(text, "-"))
	if !neg {
		dst = append(dst, numPositive, byte(exp+128))
		dst = append(dst, digits...)
		return append(dst, 0x00)
	}
	dst = append(dst, numNegative, byte(127-exp))
	for i := 0; i < len(digits); i++ {
		dst = append(dst, '0'+'9'-digits[i])
	}
	return append(dst, 0xFF)
}

// decimalParts splits an unsigned canonical number into significant digits and
// the exponent such that value = 0.digits * 10^exp.
func decimalParts(text string) (string, int) {
	intPart, frac, _ := strings.Cut(text, ".")
	if intPart != "" {
		digits := strings.TrimRight(intPart+frac, "0")
		return digits, len(intPart)
	}
	trimmed := strings.TrimLeft(frac, "0")
	return trimmed, -(len(frac) - len(trimmed))
}

func decimalText(digits string, exp int) string {
	switch {
	case exp <= 0:
		return "." + strings.Repeat("0", -exp) + digits
	case exp >= len(digits):
		return digits + strings.Repeat("0", exp-len(digits))
	}
	return digits[:exp] + "." + digits[exp:]
}

// decodeKey is the inverse of encodeKey.
func decodeKey(key []byte) ([]subscript, error) {
	if !bytes.HasPrefix(key, rootKey) {
		return nil, fmt.Errorf("node key without root marker")
	}
	var subs []subscript
	rest := key[len(rootKey):]
	for len(rest) > 0 {
		s, n, err := decodeElement(rest)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
		rest = rest[n:]
	}
	return subs, nil
}

func decodeElement(b []byte) (subscript, int, error) {
	switch b[0] {
	case tagEmpty:
		return subscript{}, 1, nil
	case tagString:
		var out []byte
		for i := 1; i+1 < len(b); i++ {
			if b[i] != 0x00 {
				out = append(out, b[i])
				continue
			}
			if b[i+1] == 0x00 {
				return subscript{text: string(out)}, i + 2, nil
			}
			out = append(out, 0x00)
			i++
		}
		return subscript{}, 0, fmt.Errorf("unterminated string subscript")
	case tagNumber:
		return decodeNumber(b)
	}
	return subscript{}, 0, fmt.Errorf("unknown subscript tag 0x%02x", b[0])
}

func decodeNumber(b []byte) (subscript, int, error) {
	if len(b) < 2 {
		return subscript{}, 0, fmt.Errorf("truncated numeric subscript")
	}
	switch b[1] {
	case numZero:
		return subscript{text: "0", numeric: true}, 2, nil
	case numPositive, numNegative:
		if len(b) < 3 {
			return subscript{}, 0, fmt.Errorf("truncated numeric subscript")
		}
		neg := b[1] == numNegative
		term := byte(0x00)
		exp := int(b[2]) - 128
		if neg {
			term = 0xFF
			exp = 127 - int(b[2])
		}
		end := bytes.IndexByte(b[3:], term)
		if end < 0 {
			return subscript{}, 0, fmt.Errorf("unterminated numeric subscript")
		}
		digits := []byte(string(b[3 : 3+end]))
		if neg {
			for i := range digits {
				digits[i] = '0' + '9' - digits[i]
			}
		}
		text := decimalText(string(digits), exp)
		if neg {
			text = "-" + text
		}
		return subscript{text: text, numeric: true}, 3 + end + 1, nil
	}
	return subscript{}, 0, fmt.Errorf("unknown number class 0x%02x", b[1])
}

// childBounds returns the half-open range holding every descendant of key.
func childBounds(key []byte) ([]byte, []byte) {
	lo := append(append([]byte(nil), key...), tagEmpty)
	hi := append(append([]byte(nil), key...), tagLimit)
	return lo, hi
}

// subtreeBounds returns the half-open range holding key and its descendants.
func subtreeBounds(key []byte) ([]byte, []byte) {
	_, hi := childBounds(key)
	return append([]byte(nil), key...), hi
}

// firstElementLen is the length of the first element of b.
func firstElementLen(b []byte) (int, error) {
	_, n, err := decodeElement(b)
	return n, err
}

// normalizeNumber converts plain decimal text into M canonical form.
func normalizeNumber(text string) (string, bool) {
	neg := false
	s := text
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	intPart, frac, hasDot := strings.Cut(s, ".")
	if intPart == "" && frac == "" {
		return "", false
	}
	for _, part := range []string{intPart, frac} {
		for i := 0; i < len(part); i++ {
			if part[i] < '0' || part[i] > '9' {
				return "", false
			}
		}
	}
	if hasDot && frac == "" && intPart == "" {
		return "", false
	}
	intPart = strings.TrimLeft(intPart, "0")
	frac = strings.TrimRight(frac, "0")
	out := intPart
	if frac != "" {
		out += "." + frac
	}
	if out == "" {
		return "0", true
	}
	if neg {
		out = "-" + out
	}
	return out, true
}

// numericValue interprets s the way M does in arithmetic: the longest numeric
// prefix, with anything else counting as zero.
func numericValue(s string) float64 {
	i := 0
	neg := false
	for i < len(s) && (s[i] == '+' || s[i] == '-') {
		if s[i] == '-' {
			neg = !neg
		}
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
	}
	f, err := strconv.ParseFloat(s[start:i], 64)
	if err != nil {
		return 0
	}
	if neg {
		f = -f
	}
	return f
}

// formatNumber renders f as canonical M text.
func formatNumber(f float64) string {
	s, ok := transcoder.FormatFloat(f)
	if !ok {
		return "0"
	}
	if n, ok := normalizeNumber(s); ok {
		return n
	}
	return s
}
