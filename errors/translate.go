package errors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	ydbbridge "github.com/wippyai/ydb-bridge"
)

// trapMarker identifies the engine's own "interrupt trapped" diagnostic. The
// engine has already started its rundown when it reports this.
const trapMarker = "-E-CTRAP"

// ErrSignalTrapped is returned by Translate when the engine trapped an interrupt.
// It is never handed to callers; the dispatcher converts it into process shutdown.
var ErrSignalTrapped = &Error{Phase: PhaseSignal, Kind: KindTrapped, Detail: "engine trapped an interrupt"}

// EngineError is a non-zero engine status decoded from its diagnostic text.
type EngineError struct {
	Status  int
	Code    int
	Message string
}

// Error returns the engine's message
func (e *EngineError) Error() string {
	return e.Message
}

// Is makes every EngineError match the engine-phase sentinel.
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Phase == PhaseEngine && t.Kind == KindEngine
	}
	_, ok := target.(*EngineError)
	return ok
}

// ErrEngine matches any EngineError via errors.Is.
var ErrEngine = &Error{Phase: PhaseEngine, Kind: KindEngine}

// Translate maps a non-zero status and its diagnostic into an error.
// The diagnostic has the form "<code>,<message>".
func Translate(status int, diagnostic string) error {
	code, message := ParseDiagnostic(diagnostic)
	if strings.Contains(message, trapMarker) {
		return ErrSignalTrapped
	}
	if message == "" {
		message = fmt.Sprintf("database returned status %d", status)
	}
	if code == 0 {
		code = status
		if code < 0 {
			code = -code
		}
	}
	return &EngineError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// ParseDiagnostic splits "<code>,<message>". A diagnostic without a numeric first
// piece yields code 0 and the whole text as message.
func ParseDiagnostic(diagnostic string) (int, string) {
	diagnostic = strings.TrimRight(diagnostic, "\x00\r\n")
	head, tail, found := strings.Cut(diagnostic, ",")
	if !found {
		return 0, diagnostic
	}
	code, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return 0, diagnostic
	}
	if code < 0 {
		code = -code
	}
	return code, tail
}

// Benign reports whether status is an expected outcome of routine rather than a
// failure. Benign statuses go to the result decoder.
func Benign(routine ydbbridge.Routine, status int) bool {
	switch status {
	case ydbbridge.StatusOK:
		return true
	case ydbbridge.StatusGlobalUndefined, ydbbridge.StatusLocalUndefined:
		return routine == ydbbridge.RoutineGet || routine == ydbbridge.RoutineData
	case ydbbridge.StatusNodeEnd:
		switch routine {
		case ydbbridge.RoutineOrder, ydbbridge.RoutinePrevious,
			ydbbridge.RoutineNextNode, ydbbridge.RoutinePreviousNode:
			return true
		}
	case ydbbridge.StatusLockTimeout:
		return routine == ydbbridge.RoutineLock
	}
	return false
}

// Envelope is the structured form of an engine failure. Object-style calls
// return it in place of an exception; asynchronous calls hand it to their
// continuation as the error argument.
type Envelope struct {
	cause        error
	OK           bool   `json:"ok"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Error returns the engine message
func (e *Envelope) Error() string {
	return e.ErrorMessage
}

// Unwrap returns the translated error the envelope was built from.
func (e *Envelope) Unwrap() error {
	return e.cause
}

// AsEnvelope converts err to its structured form. Errors that are not engine
// errors carry code 0.
func AsEnvelope(err error) *Envelope {
	var ee *EngineError
	if errors.As(err, &ee) {
		return &Envelope{cause: err, ErrorCode: ee.Code, ErrorMessage: ee.Message}
	}
	return &Envelope{cause: err, ErrorMessage: err.Error()}
}
