package ydbbridge

import (
	"fmt"
	"strings"
)

// Routine names one entry of the engine's call-in catalog.
type Routine string

const (
	RoutineData            Routine = "data"
	RoutineGet             Routine = "get"
	RoutineSet             Routine = "set"
	RoutineKill            Routine = "kill"
	RoutineOrder           Routine = "order"
	RoutinePrevious        Routine = "previous"
	RoutineNextNode        Routine = "next_node"
	RoutinePreviousNode    Routine = "previous_node"
	RoutineIncrement       Routine = "increment"
	RoutineLock            Routine = "lock"
	RoutineUnlock          Routine = "unlock"
	RoutineMerge           Routine = "merge"
	RoutineFunction        Routine = "function"
	RoutineProcedure       Routine = "procedure"
	RoutineGlobalDirectory Routine = "global_directory"
	RoutineLocalDirectory  Routine = "local_directory"
	RoutineTransaction     Routine = "transaction"
	RoutineVersion         Routine = "version"
)

// Engine status codes. Negative values follow the engine's own error numbering;
// the positive ones are informational return codes.
const (
	StatusOK              = 0
	StatusTPRestart       = 1
	StatusTPRollback      = 2
	StatusLockTimeout     = 30000
	StatusGlobalUndefined = -150372994
	StatusLocalUndefined  = -150373850
	StatusNodeEnd         = -151027922
	StatusResultTooLarge  = -150375522
	StatusInvalidArgument = -151027762
	StatusNotInitialized  = -151027770
)

// Buffer capacities used when the caller does not provide its own.
const (
	DefaultResultSize     = 1 << 20
	DefaultDiagnosticSize = 2048
)

// Call carries one engine invocation. Result and Diagnostic are caller-owned
// buffers: an engine overwrites them from offset zero and never grows them past
// their capacity.
type Call struct {
	Routine    Routine
	Args       []string
	Result     []byte
	Diagnostic []byte
}

// NewCall allocates a call with default-sized buffers.
func NewCall(routine Routine, args ...string) *Call {
	return &Call{
		Routine:    routine,
		Args:       args,
		Result:     make([]byte, 0, DefaultResultSize),
		Diagnostic: make([]byte, 0, DefaultDiagnosticSize),
	}
}

// SetResult copies out into the result buffer. It reports false when out does not
// fit; the buffer is left empty in that case.
func (c *Call) SetResult(out []byte) bool {
	if len(out) > cap(c.Result) {
		c.Result = c.Result[:0]
		return false
	}
	c.Result = append(c.Result[:0], out...)
	return true
}

// SetDiagnostic writes a "<code>,<message>" diagnostic, truncated to capacity.
func (c *Call) SetDiagnostic(code int, format string, args ...any) {
	msg := fmt.Sprintf("%d,", code) + fmt.Sprintf(format, args...)
	if len(msg) > cap(c.Diagnostic) {
		msg = msg[:cap(c.Diagnostic)]
	}
	c.Diagnostic = append(c.Diagnostic[:0], msg...)
}

// Engine is the call-in surface of an M database engine. Implementations are not
// required to be safe for concurrent use; callers serialize access.
type Engine interface {
	// Initialize starts the engine. It may be called at most once per process.
	Initialize() error
	// Invoke runs one routine and returns its status code.
	Invoke(c *Call) int
	// Transact runs body inside an engine transaction. Engine calls issued by
	// body belong to the transaction. A nil return from body commits.
	Transact(c *Call, body func() error) int
	// Shutdown runs the engine down. The engine cannot be reinitialized.
	Shutdown() error
}

// Mode selects how textual engine output is interpreted.
type Mode int

const (
	// ModeCanonical coerces output that is a canonical M number into a float64.
	ModeCanonical Mode = iota
	// ModeString keeps all engine output as text.
	ModeString
)

func (m Mode) String() string {
	if m == ModeString {
		return "string"
	}
	return "canonical"
}

// ParseMode parses "canonical" or "string".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "canonical":
		return ModeCanonical, nil
	case "string", "strict":
		return ModeString, nil
	}
	return ModeCanonical, fmt.Errorf("unknown data mode %q", s)
}

// Charset is the engine's character set.
type Charset int

const (
	CharsetUTF8 Charset = iota
	// CharsetLatin1 is the engine's single-byte "M" mode.
	CharsetLatin1
)

func (c Charset) String() string {
	if c == CharsetLatin1 {
		return "m"
	}
	return "utf-8"
}

// IsUTF8 reports whether strings cross the boundary as UTF-8.
func (c Charset) IsUTF8() bool {
	return c == CharsetUTF8
}

// ParseCharset parses "utf-8"/"utf8" or "m"/"ascii"/"latin1"/"binary".
func ParseCharset(s string) (Charset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf-8", "utf8":
		return CharsetUTF8, nil
	case "m", "ascii", "latin1", "iso-8859-1", "binary":
		return CharsetLatin1, nil
	}
	return CharsetUTF8, fmt.Errorf("unknown charset %q", s)
}

// DebugLevel controls dispatch tracing.
type DebugLevel int

const (
	DebugOff DebugLevel = iota
	DebugLow
	DebugMedium
	DebugHigh
)

func (d DebugLevel) String() string {
	switch d {
	case DebugLow:
		return "low"
	case DebugMedium:
		return "medium"
	case DebugHigh:
		return "high"
	}
	return "off"
}

// ParseDebugLevel accepts a level name or its number (0-3).
func ParseDebugLevel(s string) (DebugLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "false", "0":
		return DebugOff, nil
	case "low", "true", "1":
		return DebugLow, nil
	case "medium", "2":
		return DebugMedium, nil
	case "high", "3":
		return DebugHigh, nil
	}
	return DebugOff, fmt.Errorf("unknown debug level %q", s)
}
