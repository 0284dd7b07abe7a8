package transcoder

import (
	"math"
	"strconv"
	"strings"
)

// MaxCanonicalLength is the longest numeric text that decodes to a number. It
// mirrors the engine's own precision ceiling rather than float64's.
const MaxCanonicalLength = 16

// IsCanonicalNumber reports whether s is an M number in canonical form: optional
// minus sign, no leading zero (except "0" itself), no trailing zero after the
// decimal point, and at most MaxCanonicalLength characters.
func IsCanonicalNumber(s string) bool {
	if s == "" || len(s) > MaxCanonicalLength {
		return false
	}
	if s == "0" {
		return true
	}
	i := 0
	if s[0] == '-' {
		i = 1
	}
	intStart := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	intPart := s[intStart:i]
	if len(intPart) > 0 && intPart[0] == '0' {
		return false
	}
	if i == len(s) {
		return len(intPart) > 0
	}
	if s[i] != '.' {
		return false
	}
	i++
	fracStart := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i != len(s) || i == fracStart {
		return false
	}
	return s[len(s)-1] != '0'
}

// CanonicalizeNumber rewrites numeric text the way the engine renders it:
// "0.5" becomes ".5", "-0.5" becomes "-.5" and "-0" becomes "0".
func CanonicalizeNumber(s string) string {
	switch {
	case s == "-0":
		return "0"
	case strings.HasPrefix(s, "0."):
		return s[1:]
	case strings.HasPrefix(s, "-0."):
		return "-" + s[2:]
	}
	return s
}

// FormatFloat renders f as plain decimal text without an exponent.
func FormatFloat(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10), true
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}
