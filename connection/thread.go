package connection

import (
	"github.com/google/uuid"

	ydbbridge "github.com/wippyai/ydb-bridge"
)

// Settings are one session's effective configuration.
type Settings struct {
	Mode           ydbbridge.Mode
	Charset        ydbbridge.Charset
	DebugLevel     ydbbridge.DebugLevel
	AutoRelink     bool
	ReservedPrefix string
}

// ThreadContext is the state owned by one session: its settings, its scratch
// buffers and its transaction depth. It is not safe for concurrent use.
type ThreadContext struct {
	id       uuid.UUID
	settings Settings

	errBuf    []byte
	resultBuf []byte

	tpLevel         int
	holdsEngine     bool
	signalResetDone bool
}

// NewThreadContext snapshots d into a fresh context.
func NewThreadContext(d Defaults) *ThreadContext {
	size := d.ResultSize
	if size <= 0 {
		size = ydbbridge.DefaultResultSize
	}
	return &ThreadContext{
		id: uuid.New(),
		settings: Settings{
			Mode:           d.Mode,
			Charset:        d.Charset,
			DebugLevel:     d.DebugLevel,
			AutoRelink:     d.AutoRelink,
			ReservedPrefix: d.ReservedPrefix,
		},
		errBuf:    make([]byte, 0, ydbbridge.DefaultDiagnosticSize),
		resultBuf: make([]byte, 0, size),
	}
}

func (tc *ThreadContext) ID() uuid.UUID {
	return tc.id
}

func (tc *ThreadContext) Settings() Settings {
	return tc.settings
}

func (tc *ThreadContext) apply(o Overrides) {
	if o.Mode != nil {
		tc.settings.Mode = *o.Mode
	}
	if o.Charset != nil {
		tc.settings.Charset = *o.Charset
	}
	if o.DebugLevel != nil {
		tc.settings.DebugLevel = *o.DebugLevel
	}
	if o.AutoRelink != nil {
		tc.settings.AutoRelink = *o.AutoRelink
	}
}

// Call returns a call that writes into this context's buffers. The buffers are
// reused by the next call on the same context.
func (tc *ThreadContext) Call(routine ydbbridge.Routine, args ...string) *ydbbridge.Call {
	return &ydbbridge.Call{
		Routine:    routine,
		Args:       args,
		Result:     tc.resultBuf[:0],
		Diagnostic: tc.errBuf[:0],
	}
}

// ResultCapacity is the size of the result buffer.
func (tc *ThreadContext) ResultCapacity() int {
	return cap(tc.resultBuf)
}

// TPLevel is the current transaction nesting depth.
func (tc *ThreadContext) TPLevel() int {
	return tc.tpLevel
}

func (tc *ThreadContext) InTransaction() bool {
	return tc.tpLevel > 0
}

// EnterTransaction increments the nesting depth and returns the new level.
func (tc *ThreadContext) EnterTransaction() int {
	tc.tpLevel++
	return tc.tpLevel
}

// LeaveTransaction decrements the nesting depth and returns the new level.
func (tc *ThreadContext) LeaveTransaction() int {
	if tc.tpLevel > 0 {
		tc.tpLevel--
	}
	return tc.tpLevel
}

// HoldsEngine reports whether this context currently owns the engine mutex.
func (tc *ThreadContext) HoldsEngine() bool {
	return tc.holdsEngine
}

func (tc *ThreadContext) SetHoldsEngine(v bool) {
	tc.holdsEngine = v
}

// SignalResetDone reports whether the interrupt handler was already repaired
// for this context.
func (tc *ThreadContext) SignalResetDone() bool {
	return tc.signalResetDone
}

func (tc *ThreadContext) MarkSignalReset() {
	tc.signalResetDone = true
}
