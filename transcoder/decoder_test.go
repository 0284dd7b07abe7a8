package transcoder

import (
	"errors"
	"testing"

	ydbbridge "github.com/wippyai/ydb-bridge"
	ydberrors "github.com/wippyai/ydb-bridge/errors"
)

func TestIsCanonicalNumber(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"0", true},
		{"1", true},
		{"-1", true},
		{".5", true},
		{"-.5", true},
		{"3.14", true},
		{"1234567890123456", true},
		{"12345678901234567", false},
		{"0.5", false},
		{"-0.5", false},
		{"-0", false},
		{"00", false},
		{"01", false},
		{"1.50", false},
		{"1.", false},
		{".", false},
		{"-", false},
		{"", false},
		{"1e5", false},
		{"+1", false},
		{" 1", false},
		{"abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsCanonicalNumber(tt.input); got != tt.want {
				t.Errorf("IsCanonicalNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCanonicalizeNumber(t *testing.T) {
	tests := map[string]string{
		"0.5":  ".5",
		"-0.5": "-.5",
		"0":    "0",
		"-0":   "0",
		"10.5": "10.5",
		"-3":   "-3",
	}
	for in, want := range tests {
		if got := CanonicalizeNumber(in); got != want {
			t.Errorf("CanonicalizeNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecoder_Coerce(t *testing.T) {
	canonical := NewDecoder(Options{Mode: ydbbridge.ModeCanonical})
	str := NewDecoder(Options{Mode: ydbbridge.ModeString})

	if got := canonical.Coerce("42"); got != float64(42) {
		t.Errorf("canonical Coerce(42) = %v (%T)", got, got)
	}
	if got := canonical.Coerce(".5"); got != 0.5 {
		t.Errorf("canonical Coerce(.5) = %v", got)
	}
	if got := canonical.Coerce("007"); got != "007" {
		t.Errorf("canonical Coerce(007) = %v", got)
	}
	if got := str.Coerce("42"); got != "42" {
		t.Errorf("string Coerce(42) = %v (%T)", got, got)
	}
}

func TestDecoder_Latin1(t *testing.T) {
	dec := NewDecoder(Options{Charset: ydbbridge.CharsetLatin1, Mode: ydbbridge.ModeString})
	if got := dec.Scalar([]byte("h\xe9llo")); got != "héllo" {
		t.Errorf("Scalar latin1 = %q", got)
	}
}

func TestDecoder_JSON(t *testing.T) {
	dec := NewDecoder(Options{})
	var out struct {
		Subscripts []string `json:"subscripts"`
		Data       string   `json:"data"`
	}
	if err := dec.JSON([]byte(`{"subscripts":["1","a"],"data":"x"}`), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Subscripts) != 2 || out.Data != "x" {
		t.Errorf("JSON decoded %+v", out)
	}
	subs := dec.Subscripts(out.Subscripts)
	if subs[0] != float64(1) || subs[1] != "a" {
		t.Errorf("Subscripts = %v", subs)
	}

	err := dec.JSON([]byte(`{"subscripts":[`), &out)
	if !errors.Is(err, ydberrors.ErrMalformedOutput) {
		t.Errorf("JSON error = %v, want MalformedOutput", err)
	}
}

func TestValidateNames(t *testing.T) {
	tests := []struct {
		name   string
		local  bool
		want   string
		target error
	}{
		{"x", false, "^x", nil},
		{"^x", false, "^x", nil},
		{"%data", false, "^%data", nil},
		{"^x(1)", false, "", ydberrors.ErrInvalidName},
		{"", false, "", ydberrors.ErrInvalidName},
		{"^", false, "", ydberrors.ErrInvalidName},
		{"1abc", false, "", ydberrors.ErrInvalidName},
		{"abc", true, "abc", nil},
		{" abc ", true, "abc", nil},
		{"a)", true, "", ydberrors.ErrInvalidName},
		{"^abc", true, "", ydberrors.ErrInvalidName},
		{"v4wName", true, "", ydberrors.ErrReservedName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			var err error
			if tt.local {
				got, err = ValidateLocal(tt.name, "")
			} else {
				got, err = ValidateGlobal(tt.name)
			}
			if tt.target != nil {
				if !errors.Is(err, tt.target) {
					t.Errorf("error = %v, want %v", err, tt.target)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got (%q, %v), want %q", got, err, tt.want)
			}
		})
	}
}
