package connection

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/errors"
)

// Status is the lifecycle position of the engine connection.
type Status int32

const (
	StatusNotOpen Status = iota
	StatusOpen
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	}
	return "not open"
}

// Token is the owner capability for lifecycle operations. Only the holder of the
// token returned by New may open or close the connection.
type Token struct {
	id uuid.UUID
}

// IsZero reports whether t was never issued.
func (t Token) IsZero() bool {
	return t.id == uuid.Nil
}

func (t Token) String() string {
	return t.id.String()
}

// Defaults are the connection-wide settings copied into every new ThreadContext.
type Defaults struct {
	Mode           ydbbridge.Mode
	Charset        ydbbridge.Charset
	DebugLevel     ydbbridge.DebugLevel
	AutoRelink     bool
	ReservedPrefix string
	ResultSize     int
}

// Overrides change a single session's copy of the defaults. Nil fields are left
// as they are.
type Overrides struct {
	Mode       *ydbbridge.Mode
	Charset    *ydbbridge.Charset
	DebugLevel *ydbbridge.DebugLevel
	AutoRelink *bool
}

// Empty reports whether no field is set.
func (o Overrides) Empty() bool {
	return o.Mode == nil && o.Charset == nil && o.DebugLevel == nil && o.AutoRelink == nil
}

// State is the engine connection's lifecycle. The zero value is not usable; call New.
type State struct {
	owner    Token
	status   atomic.Int32
	mu       sync.Mutex // serializes Open and Close
	defaults atomic.Pointer[Defaults]
}

// New creates a connection in StatusNotOpen together with its owner token.
func New() (*State, Token) {
	tok := Token{id: uuid.New()}
	s := &State{owner: tok}
	s.defaults.Store(&Defaults{})
	return s, tok
}

func (s *State) Status() Status {
	return Status(s.status.Load())
}

// IsOpen is safe to call from any goroutine.
func (s *State) IsOpen() bool {
	return s.Status() == StatusOpen
}

// Defaults returns the settings new sessions start from.
func (s *State) Defaults() Defaults {
	return *s.defaults.Load()
}

// Open moves NotOpen to Open. init runs the engine initializer; when it fails the
// connection stays NotOpen and the error is returned.
func (s *State) Open(tok Token, d Defaults, init func() error) error {
	if tok != s.owner {
		return errors.WrongThread("open")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.Status() {
	case StatusOpen:
		return errors.AlreadyOpen()
	case StatusClosed:
		return errors.ReopenForbidden()
	}

	prev := s.defaults.Load()
	s.defaults.Store(&d)
	if init != nil {
		if err := init(); err != nil {
			s.defaults.Store(prev)
			return err
		}
	}
	if !s.status.CompareAndSwap(int32(StatusNotOpen), int32(StatusOpen)) {
		return errors.AlreadyOpen()
	}
	return nil
}

// Close moves Open to Closed. The transition happens even when fini fails, since
// the engine cannot be trusted after a failed rundown.
func (s *State) Close(tok Token, fini func() error) error {
	if tok != s.owner {
		return errors.WrongThread("close")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status() != StatusOpen {
		return errors.NotOpen("close")
	}
	var err error
	if fini != nil {
		err = fini()
	}
	s.status.Store(int32(StatusClosed))
	return err
}

// Terminate marks an open connection Closed without an owner token. The signal
// guard uses it after running the engine down. It reports whether the
// connection was open.
func (s *State) Terminate() bool {
	return s.status.CompareAndSwap(int32(StatusOpen), int32(StatusClosed))
}

// Configure applies o to one session. The connection must be open.
func (s *State) Configure(tc *ThreadContext, o Overrides) error {
	if !s.IsOpen() {
		return errors.NotOpen("configure")
	}
	tc.apply(o)
	return nil
}

// NewThread creates a ThreadContext from the current defaults.
func (s *State) NewThread() *ThreadContext {
	return NewThreadContext(s.Defaults())
}
