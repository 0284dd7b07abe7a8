package errors

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseEncode,
				Kind:   KindUnsupported,
				Path:   []string{"subscripts", "2"},
				GoType: "chan int",
				Detail: "cannot encode",
			},
			contains: []string{"[encode]", "unsupported", "subscripts.2", "chan int", "cannot encode"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseState,
				Kind:  KindNotOpen,
			},
			contains: []string{"[state]", "not_open"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseOS,
				Kind:   KindSyscall,
				Detail: "tcgetattr",
				Cause:  errors.New("inappropriate ioctl"),
			},
			contains: []string{"[os]", "syscall", "tcgetattr", "caused by", "inappropriate ioctl"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !containsSubstring(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseOS,
		Kind:  KindSyscall,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := InvalidName([]string{"global"}, "^x(1)", "subscripts are not allowed")

	if !errors.Is(err, ErrInvalidName) {
		t.Error("errors.Is should match the InvalidName sentinel")
	}
	if errors.Is(err, ErrReservedName) {
		t.Error("errors.Is should not match a different kind")
	}
	if err.Is(&Error{Phase: PhaseEncode, Kind: KindInvalidName}) {
		t.Error("Is should not match a different phase")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseEncode, KindInvalidStructure).
		Path("arguments", "0").
		GoType("map[string]interface {}").
		Value(42).
		Cause(cause).
		Detail("unknown type %q", "pointer").
		Build()

	if err.Phase != PhaseEncode {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseEncode)
	}
	if err.Kind != KindInvalidStructure {
		t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidStructure)
	}
	if len(err.Path) != 2 || err.Path[0] != "arguments" || err.Path[1] != "0" {
		t.Errorf("Path = %v, want [arguments 0]", err.Path)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != `unknown type "pointer"` {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		target *Error
	}{
		{"NotOpen", NotOpen("get"), ErrNotOpen},
		{"AlreadyOpen", AlreadyOpen(), ErrAlreadyOpen},
		{"ReopenForbidden", ReopenForbidden(), ErrReopenForbidden},
		{"WrongThread", WrongThread("open"), ErrWrongThread},
		{"ReservedName", ReservedName(nil, "v4wTest", "v4w"), ErrReservedName},
		{"Unsupported", Unsupported(PhaseEncode, nil, "func()"), ErrUnsupported},
		{"InvalidStructure", InvalidStructure(nil, "bad"), ErrInvalidStructure},
		{"MalformedOutput", MalformedOutput(errors.New("eof"), []byte("{")), ErrMalformedOutput},
		{"AsyncInTP", AsyncInTP(), ErrAsyncInTP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("%v does not match %v", tt.err, tt.target)
			}
		})
	}
}

func containsSubstring(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 ||
		(len(s) > 0 && containsSubstringHelper(s, substr)))
}

func containsSubstringHelper(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
