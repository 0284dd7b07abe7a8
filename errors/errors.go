package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseState    Phase = "state"    // connection lifecycle
	PhaseValidate Phase = "validate" // argument validation
	PhaseEncode   Phase = "encode"   // Go to engine
	PhaseDecode   Phase = "decode"   // engine to Go
	PhaseDispatch Phase = "dispatch" // call scheduling
	PhaseEngine   Phase = "engine"   // engine status
	PhaseOS       Phase = "os"       // system calls
	PhaseSignal   Phase = "signal"   // signal handling
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindNotOpen          Kind = "not_open"
	KindAlreadyOpen      Kind = "already_open"
	KindReopenForbidden  Kind = "reopen_forbidden"
	KindWrongThread      Kind = "wrong_thread"
	KindInvalidName      Kind = "invalid_name"
	KindReservedName     Kind = "reserved_name"
	KindInvalidStructure Kind = "invalid_structure"
	KindNotArray         Kind = "not_array"
	KindUnsupported      Kind = "unsupported"
	KindInvalidData      Kind = "invalid_data"
	KindInvalidInput     Kind = "invalid_input"
	KindMalformedOutput  Kind = "malformed_output"
	KindAsyncInTP        Kind = "async_inside_transaction"
	KindEngine           Kind = "engine"
	KindSyscall          Kind = "syscall"
	KindTrapped          Kind = "trapped"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is. Only Phase and Kind take part in the comparison.
var (
	ErrNotOpen          = &Error{Phase: PhaseState, Kind: KindNotOpen}
	ErrAlreadyOpen      = &Error{Phase: PhaseState, Kind: KindAlreadyOpen}
	ErrReopenForbidden  = &Error{Phase: PhaseState, Kind: KindReopenForbidden}
	ErrWrongThread      = &Error{Phase: PhaseState, Kind: KindWrongThread}
	ErrInvalidName      = &Error{Phase: PhaseValidate, Kind: KindInvalidName}
	ErrReservedName     = &Error{Phase: PhaseValidate, Kind: KindReservedName}
	ErrInvalidStructure = &Error{Phase: PhaseEncode, Kind: KindInvalidStructure}
	ErrUnsupported      = &Error{Phase: PhaseEncode, Kind: KindUnsupported}
	ErrMalformedOutput  = &Error{Phase: PhaseDecode, Kind: KindMalformedOutput}
	ErrAsyncInTP        = &Error{Phase: PhaseDispatch, Kind: KindAsyncInTP}
)

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the argument path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// NotOpen creates a connection-not-open error
func NotOpen(op string) *Error {
	return &Error{
		Phase:  PhaseState,
		Kind:   KindNotOpen,
		Detail: fmt.Sprintf("%s: database connection is not open", op),
	}
}

// AlreadyOpen creates an already-open error
func AlreadyOpen() *Error {
	return &Error{
		Phase:  PhaseState,
		Kind:   KindAlreadyOpen,
		Detail: "database connection is already open",
	}
}

// ReopenForbidden creates an error for open after close
func ReopenForbidden() *Error {
	return &Error{
		Phase:  PhaseState,
		Kind:   KindReopenForbidden,
		Detail: "database connection cannot be reopened once closed",
	}
}

// WrongThread creates an error for main-thread-only operations called elsewhere
func WrongThread(op string) *Error {
	return &Error{
		Phase:  PhaseState,
		Kind:   KindWrongThread,
		Detail: fmt.Sprintf("%s must be called by the owner of the connection", op),
	}
}

// InvalidName creates an invalid variable name error
func InvalidName(path []string, name, reason string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidName,
		Path:   path,
		Value:  name,
		Detail: fmt.Sprintf("invalid name %q: %s", name, reason),
	}
}

// ReservedName creates a reserved-prefix collision error
func ReservedName(path []string, name, prefix string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindReservedName,
		Path:   path,
		Value:  name,
		Detail: fmt.Sprintf("local variable names beginning with %q are reserved: %q", prefix, name),
	}
}

// Unsupported creates an unsupported value error
func Unsupported(phase Phase, path []string, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Path:   path,
		GoType: goType,
		Detail: "value cannot be passed to the database",
	}
}

// InvalidStructure creates an error for object arguments of the wrong shape
func InvalidStructure(path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindInvalidStructure,
		Path:   path,
		Detail: detail,
	}
}

// NotArray creates an error for a non-sequence where a sequence is required
func NotArray(path []string, goType string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindNotArray,
		Path:   path,
		GoType: goType,
		Detail: "must be an array",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// MalformedOutput creates the fatal decode error for unparseable engine output
func MalformedOutput(cause error, raw []byte) *Error {
	preview := raw
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindMalformedOutput,
		Detail: fmt.Sprintf("missing or invalid data from the database: %q", preview),
		Cause:  cause,
	}
}

// AsyncInTP creates the error for asynchronous calls inside a transaction
func AsyncInTP() *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindAsyncInTP,
		Detail: "asynchronous calls are not allowed inside a transaction",
	}
}

// Syscall wraps an operating system error
func Syscall(op string, cause error) *Error {
	return &Error{
		Phase:  PhaseOS,
		Kind:   KindSyscall,
		Detail: op,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
