package dispatch

import (
	"context"
	stderrors "errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/connection"
	"github.com/wippyai/ydb-bridge/errors"
)

type fakeEngine struct {
	inside  atomic.Int32
	overlap atomic.Bool
	calls   atomic.Int32
	invoke  func(c *ydbbridge.Call) int
}

func (f *fakeEngine) Initialize() error { return nil }
func (f *fakeEngine) Shutdown() error   { return nil }

func (f *fakeEngine) Invoke(c *ydbbridge.Call) int {
	if f.inside.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inside.Add(-1)
	time.Sleep(50 * time.Microsecond)
	f.calls.Add(1)
	if f.invoke != nil {
		return f.invoke(c)
	}
	c.SetResult([]byte(string(c.Routine)))
	return ydbbridge.StatusOK
}

func (f *fakeEngine) Transact(c *ydbbridge.Call, body func() error) int {
	if err := body(); err != nil {
		return ydbbridge.StatusTPRollback
	}
	return ydbbridge.StatusOK
}

type fakeGuard struct {
	ensured atomic.Int32
	raised  atomic.Int32
	onRaise func()
}

func (g *fakeGuard) EnsureInstalled(tc *connection.ThreadContext) {
	if !tc.SignalResetDone() {
		g.ensured.Add(1)
		tc.MarkSignalReset()
	}
}

func (g *fakeGuard) Raise(os.Signal) {
	g.raised.Add(1)
	if g.onRaise != nil {
		g.onRaise()
	}
}

func rawText(_ int, raw []byte) (any, error) {
	return string(raw), nil
}

func newDispatcher(t *testing.T, eng *fakeEngine, open bool) (*Dispatcher, *connection.State, *fakeGuard) {
	t.Helper()
	conn, tok := connection.New()
	if open {
		if err := conn.Open(tok, connection.Defaults{ResultSize: 1024}, nil); err != nil {
			t.Fatal(err)
		}
	}
	d := New(conn, eng, Options{Workers: 4})
	g := &fakeGuard{}
	d.SetGuard(g)
	t.Cleanup(d.Close)
	return d, conn, g
}

func TestDispatcher_NotOpen(t *testing.T) {
	eng := &fakeEngine{}
	d, conn, _ := newDispatcher(t, eng, false)
	tc := conn.NewThread()

	_, err := d.Run(context.Background(), tc, NewBaton(ydbbridge.RoutineGet, "^x"))
	if !errors.Is(err, errors.ErrNotOpen) {
		t.Errorf("Run = %v, want NotOpen", err)
	}
	b := NewBaton(ydbbridge.RoutineGet, "^x")
	b.Continue = func(error, any) { t.Error("continuation called") }
	if err := d.Go(context.Background(), tc, b); !errors.Is(err, errors.ErrNotOpen) {
		t.Errorf("Go = %v, want NotOpen", err)
	}
	if eng.calls.Load() != 0 {
		t.Error("engine was invoked")
	}
	if !d.TryLock() {
		t.Fatal("mutex was left held")
	}
	d.Unlock()
}

func TestDispatcher_Run(t *testing.T) {
	eng := &fakeEngine{}
	d, conn, g := newDispatcher(t, eng, true)
	tc := conn.NewThread()

	b := NewBaton(ydbbridge.RoutineGet, "^x", "2:^x")
	b.Decode = rawText
	got, err := d.Run(context.Background(), tc, b)
	if err != nil {
		t.Fatal(err)
	}
	if got != "get" {
		t.Errorf("Run = %v", got)
	}
	if tc.HoldsEngine() {
		t.Error("context still holds the engine")
	}
	if g.ensured.Load() != 1 {
		t.Errorf("EnsureInstalled repaired %d times", g.ensured.Load())
	}

	_, _ = d.Run(context.Background(), tc, NewBaton(ydbbridge.RoutineSet, "^x"))
	if g.ensured.Load() != 1 {
		t.Error("signal repair ran twice for one context")
	}
}

func TestDispatcher_Statuses(t *testing.T) {
	tests := []struct {
		name    string
		routine ydbbridge.Routine
		status  int
		decoded bool
	}{
		{"ok", ydbbridge.RoutineSet, ydbbridge.StatusOK, true},
		{"get undefined", ydbbridge.RoutineGet, ydbbridge.StatusGlobalUndefined, true},
		{"set undefined", ydbbridge.RoutineSet, ydbbridge.StatusGlobalUndefined, false},
		{"order end", ydbbridge.RoutineOrder, ydbbridge.StatusNodeEnd, true},
		{"next node end", ydbbridge.RoutineNextNode, ydbbridge.StatusNodeEnd, true},
		{"lock timeout", ydbbridge.RoutineLock, ydbbridge.StatusLockTimeout, true},
		{"failure", ydbbridge.RoutineGet, ydbbridge.StatusInvalidArgument, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{invoke: func(c *ydbbridge.Call) int {
				if tt.status != ydbbridge.StatusOK {
					c.SetDiagnostic(-tt.status, "%%YDB-E-TEST, failed")
				}
				return tt.status
			}}
			d, conn, _ := newDispatcher(t, eng, true)

			var seen int
			b := NewBaton(tt.routine, "^x")
			b.Decode = func(status int, _ []byte) (any, error) {
				seen = status
				return "decoded", nil
			}
			got, err := d.Run(context.Background(), conn.NewThread(), b)
			if tt.decoded {
				if err != nil || got != "decoded" || seen != tt.status {
					t.Errorf("Run = (%v, %v), decoder saw %d", got, err, seen)
				}
				return
			}
			var ee *errors.EngineError
			if !errors.As(err, &ee) {
				t.Fatalf("Run error = %v, want EngineError", err)
			}
			if ee.Message != "%YDB-E-TEST, failed" {
				t.Errorf("message = %q", ee.Message)
			}
		})
	}
}

func TestDispatcher_SignalTrapped(t *testing.T) {
	eng := &fakeEngine{invoke: func(c *ydbbridge.Call) int {
		c.SetDiagnostic(150372451, "%%YDB-E-CTRAP, Character trap $C(3) encountered")
		return -150372451
	}}
	d, conn, g := newDispatcher(t, eng, true)

	_, err := d.Run(context.Background(), conn.NewThread(), NewBaton(ydbbridge.RoutineGet, "^x"))
	if err != errors.ErrSignalTrapped {
		t.Errorf("Run = %v", err)
	}
	if g.raised.Load() != 1 {
		t.Errorf("guard raised %d times", g.raised.Load())
	}
}

func TestDispatcher_SignalTrappedInTransaction(t *testing.T) {
	eng := &fakeEngine{invoke: func(c *ydbbridge.Call) int {
		c.SetDiagnostic(150372451, "%%YDB-E-CTRAP, Character trap $C(3) encountered")
		return -150372451
	}}
	d, conn, g := newDispatcher(t, eng, true)
	var free bool
	g.onRaise = func() {
		if d.TryLock() {
			free = true
			d.Unlock()
		}
	}

	ctx := context.Background()
	tc := conn.NewThread()
	_, err := d.Transact(ctx, tc, NewBaton(ydbbridge.RoutineTransaction, ""), func() error {
		_, err := d.Run(ctx, tc, NewBaton(ydbbridge.RoutineGet, "^x"))
		return err
	})
	if err != errors.ErrSignalTrapped {
		t.Errorf("Transact = %v", err)
	}
	if !free {
		t.Error("engine mutex still held when the guard ran")
	}
	if tc.HoldsEngine() {
		t.Error("context still marked as holding the engine")
	}
	if !d.TryLock() {
		t.Fatal("engine mutex leaked")
	}
	d.Unlock()
}

func TestDispatcher_Serialization(t *testing.T) {
	eng := &fakeEngine{}
	d, conn, _ := newDispatcher(t, eng, true)

	const asyncCalls = 64
	const syncCalls = 8
	var got atomic.Int32
	var wg sync.WaitGroup

	tc := conn.NewThread()
	for i := 0; i < asyncCalls; i++ {
		b := NewBaton(ydbbridge.RoutineGet, "^x")
		b.Decode = rawText
		b.Continue = func(err error, result any) {
			if err == nil && result == "get" {
				got.Add(1)
			}
		}
		if err := d.Go(context.Background(), tc, b); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < syncCalls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			own := conn.NewThread()
			for j := 0; j < 8; j++ {
				if _, err := d.Run(context.Background(), own, NewBaton(ydbbridge.RoutineSet, "^y")); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()
	d.Drain()

	if eng.overlap.Load() {
		t.Error("two calls were inside the engine at the same time")
	}
	if got.Load() != asyncCalls {
		t.Errorf("%d continuations succeeded, want %d", got.Load(), asyncCalls)
	}
	if n := eng.calls.Load(); n != asyncCalls+syncCalls*8 {
		t.Errorf("engine saw %d calls", n)
	}
}

func TestDispatcher_AsyncEngineError(t *testing.T) {
	eng := &fakeEngine{invoke: func(c *ydbbridge.Call) int {
		c.SetDiagnostic(150372994, "%%YDB-E-GVUNDEF, Global variable undefined: ^x")
		return ydbbridge.StatusGlobalUndefined
	}}
	d, conn, _ := newDispatcher(t, eng, true)

	done := make(chan struct{})
	var calls atomic.Int32
	b := NewBaton(ydbbridge.RoutineSet, "^x")
	b.Continue = func(err error, result any) {
		defer close(done)
		calls.Add(1)
		env, ok := err.(*errors.Envelope)
		if !ok {
			t.Errorf("continuation error = %T, want *Envelope", err)
			return
		}
		if env.OK || env.ErrorCode != 150372994 || result != nil {
			t.Errorf("envelope = %+v result = %v", env, result)
		}
	}
	if err := d.Go(context.Background(), conn.NewThread(), b); err != nil {
		t.Fatal(err)
	}
	<-done
	d.Drain()
	if calls.Load() != 1 {
		t.Errorf("continuation ran %d times", calls.Load())
	}
}

func TestDispatcher_Transact(t *testing.T) {
	eng := &fakeEngine{}
	d, conn, _ := newDispatcher(t, eng, true)
	tc := conn.NewThread()
	ctx := context.Background()

	_, err := d.Transact(ctx, tc, NewBaton(ydbbridge.RoutineTransaction, ""), func() error {
		if !tc.HoldsEngine() || tc.TPLevel() != 1 {
			t.Errorf("inside transaction: holds=%v level=%d", tc.HoldsEngine(), tc.TPLevel())
		}
		if _, err := d.Run(ctx, tc, NewBaton(ydbbridge.RoutineSet, "^x")); err != nil {
			return err
		}
		if !tc.HoldsEngine() {
			t.Error("nested call released the engine")
		}

		_, err := d.Transact(ctx, tc, NewBaton(ydbbridge.RoutineTransaction, ""), func() error {
			if tc.TPLevel() != 2 {
				t.Errorf("nested level = %d", tc.TPLevel())
			}
			_, err := d.Run(ctx, tc, NewBaton(ydbbridge.RoutineSet, "^y"))
			return err
		})
		if err != nil {
			return err
		}

		b := NewBaton(ydbbridge.RoutineGet, "^x")
		b.Continue = func(error, any) {}
		if err := d.Go(ctx, tc, b); !errors.Is(err, errors.ErrAsyncInTP) {
			t.Errorf("Go inside transaction = %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if tc.HoldsEngine() || tc.TPLevel() != 0 {
		t.Errorf("after transaction: holds=%v level=%d", tc.HoldsEngine(), tc.TPLevel())
	}
	if !d.TryLock() {
		t.Fatal("engine mutex still held after the transaction")
	}
	d.Unlock()
}

func TestDispatcher_TransactBodyError(t *testing.T) {
	eng := &fakeEngine{}
	d, conn, _ := newDispatcher(t, eng, true)
	tc := conn.NewThread()

	boom := stderrors.New("boom")
	_, err := d.Transact(context.Background(), tc, NewBaton(ydbbridge.RoutineTransaction, ""), func() error {
		return boom
	})
	if err != boom {
		t.Errorf("Transact = %v, want body error", err)
	}
	if !d.TryLock() {
		t.Fatal("engine mutex still held after rollback")
	}
	d.Unlock()
}

func TestDispatcher_BlocksOtherSessionsDuringTransaction(t *testing.T) {
	eng := &fakeEngine{}
	d, conn, _ := newDispatcher(t, eng, true)
	ctx := context.Background()
	tc := conn.NewThread()

	entered := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		_, _ = d.Transact(ctx, tc, NewBaton(ydbbridge.RoutineTransaction, ""), func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	go func() {
		_, _ = d.Run(ctx, conn.NewThread(), NewBaton(ydbbridge.RoutineGet, "^x"))
		close(finished)
	}()

	select {
	case <-finished:
		t.Fatal("another session entered the engine during a transaction")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("call did not run after the transaction ended")
	}
}
