package signals

import (
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"

	"github.com/wippyai/ydb-bridge/connection"
)

type fakeLock struct {
	mu     sync.Mutex
	denied bool
}

func (l *fakeLock) TryLock() bool {
	if l.denied {
		return false
	}
	return l.mu.TryLock()
}

func (l *fakeLock) Unlock() { l.mu.Unlock() }

type harness struct {
	guard     *Guard
	conn      *connection.State
	lock      *fakeLock
	shutdowns atomic.Int32
	exits     []int
	aborts    int
}

func newHarness(t *testing.T, open bool, opts Options) *harness {
	t.Helper()
	h := &harness{lock: &fakeLock{}}
	conn, tok := connection.New()
	if open {
		if err := conn.Open(tok, connection.Defaults{}, nil); err != nil {
			t.Fatal(err)
		}
	}
	h.conn = conn
	opts.Connection = conn
	opts.Engine = h.lock
	opts.Shutdown = func() error { h.shutdowns.Add(1); return nil }
	opts.Streams = []*os.File{}
	opts.Exit = func(code int) { h.exits = append(h.exits, code) }
	opts.Abort = func() { h.aborts++ }
	h.guard = New(opts)
	return h
}

func TestGuard_Raise(t *testing.T) {
	tests := []struct {
		name      string
		sig       os.Signal
		open      bool
		denied    bool
		shutdowns int32
		exits     int
		aborts    int
	}{
		{"interrupt", syscall.SIGINT, true, false, 1, 1, 0},
		{"terminate", syscall.SIGTERM, true, false, 1, 1, 0},
		{"quit aborts", syscall.SIGQUIT, true, false, 1, 0, 1},
		{"closed engine", syscall.SIGINT, false, false, 0, 1, 0},
		{"busy engine", syscall.SIGTERM, true, true, 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.open, Options{})
			h.lock.denied = tt.denied

			h.guard.Raise(tt.sig)

			if got := h.shutdowns.Load(); got != tt.shutdowns {
				t.Errorf("shutdowns = %d, want %d", got, tt.shutdowns)
			}
			if len(h.exits) != tt.exits || h.aborts != tt.aborts {
				t.Errorf("exits = %v aborts = %d", h.exits, h.aborts)
			}
			if tt.exits > 0 && h.exits[0] != 1 {
				t.Errorf("exit code = %d, want 1", h.exits[0])
			}
			if h.guard.State() != Terminated {
				t.Errorf("state = %v", h.guard.State())
			}
			if tt.shutdowns > 0 && h.conn.IsOpen() {
				t.Error("connection still open after rundown")
			}
			if !tt.denied && !h.lock.mu.TryLock() {
				t.Error("engine mutex left held")
			}
		})
	}
}

func TestGuard_OnlyFirstSignal(t *testing.T) {
	h := newHarness(t, true, Options{})
	h.guard.Raise(syscall.SIGINT)
	h.guard.Raise(syscall.SIGQUIT)
	if len(h.exits) != 1 || h.aborts != 0 || h.shutdowns.Load() != 1 {
		t.Errorf("exits=%v aborts=%d shutdowns=%d", h.exits, h.aborts, h.shutdowns.Load())
	}
}

func TestGuard_Ignore(t *testing.T) {
	h := newHarness(t, true, Options{Ignore: []os.Signal{syscall.SIGQUIT}})
	sigs := h.guard.Signals()
	if len(sigs) != 2 {
		t.Fatalf("Signals = %v", sigs)
	}
	for _, s := range sigs {
		if s == syscall.SIGQUIT {
			t.Error("ignored signal still guarded")
		}
	}
}

func TestGuard_EnsureInstalled(t *testing.T) {
	h := newHarness(t, true, Options{})
	if err := h.guard.Install(); err != nil {
		t.Fatal(err)
	}
	defer h.guard.Uninstall()

	tc := h.conn.NewThread()
	h.guard.EnsureInstalled(tc)
	if !tc.SignalResetDone() {
		t.Error("EnsureInstalled did not mark the context")
	}
	h.guard.EnsureInstalled(tc)
	h.guard.EnsureInstalled(nil)
}

func TestGuard_InstallTwice(t *testing.T) {
	h := newHarness(t, false, Options{})
	if err := h.guard.Install(); err != nil {
		t.Fatal(err)
	}
	if err := h.guard.Install(); err != nil {
		t.Fatal(err)
	}
	h.guard.Uninstall()
	h.guard.Uninstall()
	if h.guard.State() != Idle {
		t.Errorf("state = %v", h.guard.State())
	}
}
