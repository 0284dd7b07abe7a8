package main

import (
	"bytes"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/wippyai/ydb-bridge/runtime"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		name string
		subs []string
		want runtime.Ref
	}{
		{"^x", nil, runtime.Ref{Global: "^x", Subscripts: []any{}}},
		{"x", []string{"a", "1"}, runtime.Ref{Local: "x", Subscripts: []any{"a", int64(1)}}},
		{"^x", []string{".5", "01"}, runtime.Ref{Global: "^x", Subscripts: []any{.5, "01"}}},
	}
	for _, tt := range tests {
		got := parseRef(tt.name, tt.subs)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseRef(%q, %q) = %#v, want %#v", tt.name, tt.subs, got, tt.want)
		}
	}
}

func TestFormatNode(t *testing.T) {
	tests := []struct {
		ref  runtime.Ref
		subs []any
		want string
	}{
		{runtime.Ref{Global: "^x"}, nil, "^x"},
		{runtime.Ref{Global: "x"}, []any{int64(1), "a"}, `^x(1,"a")`},
		{runtime.Ref{Local: "v"}, []any{.5, "-1"}, "v(.5,-1)"},
	}
	for _, tt := range tests {
		if got := formatNode(tt.ref, tt.subs); got != tt.want {
			t.Errorf("formatNode = %s, want %s", got, tt.want)
		}
	}
}

func TestHasPrefix(t *testing.T) {
	if !hasPrefix([]any{"1", "a"}, []any{int64(1)}) {
		t.Error("1 and \"1\" should name the same subscript")
	}
	if hasPrefix([]any{"2"}, []any{"1"}) {
		t.Error("different subscript matched")
	}
	if hasPrefix(nil, []any{"1"}) {
		t.Error("shorter path matched")
	}
}

func TestParseNode(t *testing.T) {
	got := parseNode(`^x(1,"a b")`)
	want := runtime.Ref{Global: "^x", Subscripts: []any{int64(1), "a b"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseNode = %#v, want %#v", got, want)
	}
}

func TestBuildOptions(t *testing.T) {
	o, err := buildOptions(runtime.OpLock, map[field]string{
		fieldName:       "^acct",
		fieldSubscripts: "1",
		fieldTimeout:    "2.5",
	})
	if err != nil {
		t.Fatal(err)
	}
	if o.Timeout == nil || *o.Timeout != 2.5 {
		t.Errorf("timeout = %v", o.Timeout)
	}

	if _, err := buildOptions(runtime.OpLock, map[field]string{fieldTimeout: "soon"}); err == nil {
		t.Error("expected timeout parse error")
	}

	o, err = buildOptions(runtime.OpFunction, map[field]string{
		fieldEntryref:  "add^math",
		fieldArguments: "2, 3",
	})
	if err != nil {
		t.Fatal(err)
	}
	if o.Function != "add^math" || !reflect.DeepEqual(o.Arguments, []any{int64(2), int64(3)}) {
		t.Errorf("function options = %+v", o)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "ydb.yaml")
	writeConfig(t, cfg, filepath.Join(dir, "data.db"))

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"set", "^x", "a", "1", "hello"}, "hello\n"},
		{[]string{"set", "^x", "b", "42"}, "42\n"},
		{[]string{"get", "^x", "a", "1"}, "hello\n"},
		{[]string{"order", "^x", ""}, "a\n"},
		{[]string{"order", "-r", "^x", ""}, "b\n"},
		{[]string{"query", "^x"}, "^x(\"a\",1)\n"},
		{[]string{"dump", "^x"}, "^x(\"a\",1)=\"hello\"\n^x(\"b\")=42\n"},
		{[]string{"kill", "^x", "a"}, ""},
		{[]string{"dump", "^x"}, "^x(\"b\")=42\n"},
	}
	for _, s := range steps {
		got, err := execute(t, append([]string{"--config", cfg}, s.args...)...)
		if err != nil {
			t.Fatalf("%v: %v", s.args, err)
		}
		if got != s.want {
			t.Errorf("%v = %q, want %q", s.args, got, s.want)
		}
	}

	got, err := execute(t, "--config", cfg, "--format", "json", "get", "^x", "b")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, `"ok": true`) {
		t.Errorf("json output missing ok: %s", got)
	}

	if _, err := execute(t, "--config", cfg, "--format", "xml", "get", "^x"); err == nil {
		t.Error("expected invalid format error")
	}
}
