package dispatch

import (
	"github.com/google/uuid"

	ydbbridge "github.com/wippyai/ydb-bridge"
)

// Flags describe how a call was made.
type Flags uint8

const (
	FlagAsync Flags = 1 << iota
	FlagLocal
	FlagByPosition
	FlagNodeOnly
)

func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

// Decoder turns a benign status and the raw result buffer into the caller's
// value. raw is only valid for the duration of the call.
type Decoder func(status int, raw []byte) (any, error)

// Repeater inspects a benign result while the engine mutex is still held and
// returns the arguments of a follow-up call when the result must be stepped
// past. It runs on whichever goroutine made the engine call, so it must not
// touch session state.
type Repeater func(status int, raw []byte) (args []string, again bool)

// Continuation receives the outcome of an asynchronous call exactly once.
// Engine failures arrive as *errors.Envelope.
type Continuation func(err error, result any)

// Baton carries one engine call from the operation that built it to the
// dispatcher and back.
type Baton struct {
	ID         uuid.UUID
	Routine    ydbbridge.Routine
	Name       string
	Args       []string
	Subscripts []any
	Option     float64
	Flags      Flags
	Decode     Decoder
	Repeat     Repeater
	Continue   Continuation
	Status     int

	call  *ydbbridge.Call
	level ydbbridge.DebugLevel
}

// NewBaton creates a baton for routine with pre-encoded arguments.
func NewBaton(routine ydbbridge.Routine, name string, args ...string) *Baton {
	return &Baton{
		ID:      uuid.New(),
		Routine: routine,
		Name:    name,
		Args:    args,
	}
}
