package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/ydb-bridge/runtime"
	"github.com/wippyai/ydb-bridge/transcoder"
)

// parseRef turns "^x" "a" "1" into a Ref. Canonical numbers become numbers so
// that text output quotes only string subscripts.
func parseRef(name string, subs []string) runtime.Ref {
	ref := runtime.Ref{Subscripts: parseValues(subs)}
	if strings.HasPrefix(name, "^") {
		ref.Global = name
	} else {
		ref.Local = name
	}
	return ref
}

func parseValues(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = parseValue(a)
	}
	return out
}

func parseValue(s string) any {
	if s != "" && transcoder.IsCanonicalNumber(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// formatNode renders a node the way M writes it: ^x(1,"a").
func formatNode(ref runtime.Ref, subs []any) string {
	name := ref.Global
	if name == "" {
		name = ref.Local
	} else if !strings.HasPrefix(name, "^") {
		name = "^" + name
	}
	if len(subs) == 0 {
		return name
	}
	parts := make([]string, len(subs))
	for i, s := range subs {
		parts[i] = formatValue(s)
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		if transcoder.IsCanonicalNumber(x) {
			return x
		}
		return strconv.Quote(x)
	case float64:
		if s, ok := transcoder.FormatFloat(x); ok {
			return transcoder.CanonicalizeNumber(s)
		}
	}
	return fmt.Sprint(v)
}

// hasPrefix reports whether subs lies under prefix.
func hasPrefix(subs, prefix []any) bool {
	if len(subs) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if formatValue(subs[i]) != formatValue(p) {
			return false
		}
	}
	return true
}
