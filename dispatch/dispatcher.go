package dispatch

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/connection"
	"github.com/wippyai/ydb-bridge/errors"
)

// Guard is the part of the signal guard the dispatcher drives.
type Guard interface {
	// EnsureInstalled repairs the interrupt handler once per session.
	EnsureInstalled(tc *connection.ThreadContext)
	// Raise runs the guarded shutdown path as if sig had been delivered.
	Raise(sig os.Signal)
}

// Options configure a Dispatcher.
type Options struct {
	Workers int
	Logger  *zap.Logger
}

// Dispatcher owns the engine mutex and runs calls under it.
type Dispatcher struct {
	engine ydbbridge.Engine
	conn   *connection.State
	mu     sync.Mutex
	pool   *Pool
	loop   *Loop
	guard  Guard
	log    *zap.Logger

	inflight sync.WaitGroup
}

// New starts a dispatcher with its worker pool and completion loop.
func New(conn *connection.State, engine ydbbridge.Engine, opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = Logger()
	}
	return &Dispatcher{
		engine: engine,
		conn:   conn,
		pool:   NewPool(opts.Workers),
		loop:   NewLoop(log),
		log:    log,
	}
}

// SetGuard installs the signal guard. It must be called before the first call.
func (d *Dispatcher) SetGuard(g Guard) {
	d.guard = g
}

// Workers returns the size of the worker pool.
func (d *Dispatcher) Workers() int {
	return d.pool.Size()
}

// TryLock takes the engine mutex if it is free.
func (d *Dispatcher) TryLock() bool {
	return d.mu.TryLock()
}

// Unlock releases a mutex taken with TryLock.
func (d *Dispatcher) Unlock() {
	d.mu.Unlock()
}

// WithEngine runs fn under the engine mutex. Used for initialization and rundown.
func (d *Dispatcher) WithEngine(fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn()
}

// Run executes b synchronously on the calling goroutine.
func (d *Dispatcher) Run(ctx context.Context, tc *connection.ThreadContext, b *Baton) (any, error) {
	if err := d.admit(ctx, tc, b); err != nil {
		return nil, err
	}
	b.call = tc.Call(b.Routine, b.Args...)
	b.level = tc.Settings().DebugLevel

	if err := d.invoke(tc, b); err != nil {
		return nil, err
	}
	return d.finish(tc, b)
}

// Go queues b on the worker pool. The continuation runs later on the completion
// loop. Errors returned here are state and scheduling errors; the continuation
// is not called for them.
func (d *Dispatcher) Go(ctx context.Context, tc *connection.ThreadContext, b *Baton) error {
	if err := d.admit(ctx, tc, b); err != nil {
		return err
	}
	if tc.InTransaction() {
		return errors.AsyncInTP()
	}
	if b.Continue == nil {
		return errors.InvalidInput(errors.PhaseDispatch, "asynchronous call without a continuation")
	}
	b.Flags |= FlagAsync
	b.level = tc.Settings().DebugLevel
	b.call = &ydbbridge.Call{
		Routine:    b.Routine,
		Args:       b.Args,
		Result:     make([]byte, 0, tc.ResultCapacity()),
		Diagnostic: make([]byte, 0, ydbbridge.DefaultDiagnosticSize),
	}

	d.inflight.Add(1)
	if err := d.pool.Submit(ctx, func() { d.work(b) }); err != nil {
		d.inflight.Done()
		return err
	}
	return nil
}

// Transact runs body inside an engine transaction. Calls made by body on the same
// ThreadContext join the transaction without taking the mutex again. A non-nil
// error from body rolls the transaction back and is returned unchanged.
func (d *Dispatcher) Transact(ctx context.Context, tc *connection.ThreadContext, b *Baton, body func() error) (any, error) {
	if err := d.admit(ctx, tc, b); err != nil {
		return nil, err
	}
	// body reuses the context buffers, so the transaction keeps its own.
	b.call = &ydbbridge.Call{
		Routine:    b.Routine,
		Args:       b.Args,
		Result:     make([]byte, 0, 256),
		Diagnostic: make([]byte, 0, ydbbridge.DefaultDiagnosticSize),
	}
	b.level = tc.Settings().DebugLevel

	if err := d.acquire(tc); err != nil {
		return nil, err
	}
	level := tc.EnterTransaction()
	d.log.Debug("transaction start", zap.Stringer("baton", b.ID), zap.Int("tp_level", level))

	var bodyErr error
	start := time.Now()
	func() {
		defer func() {
			tc.LeaveTransaction()
			d.release(tc)
		}()
		b.Status = d.engine.Transact(b.call, func() error {
			bodyErr = body()
			return bodyErr
		})
	}()
	d.trace(b, time.Since(start))

	if bodyErr != nil {
		return nil, bodyErr
	}
	return d.finish(tc, b)
}

// Drain waits for every queued asynchronous call to deliver its continuation.
// It must not be called from a continuation.
func (d *Dispatcher) Drain() {
	d.inflight.Wait()
}

// Close drains outstanding work and stops the pool and loop.
func (d *Dispatcher) Close() {
	d.pool.Close()
	d.loop.Close()
}

func (d *Dispatcher) admit(ctx context.Context, tc *connection.ThreadContext, b *Baton) error {
	if !d.conn.IsOpen() {
		return errors.NotOpen(string(b.Routine))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.guard != nil {
		d.guard.EnsureInstalled(tc)
	}
	return nil
}

func (d *Dispatcher) invoke(tc *connection.ThreadContext, b *Baton) error {
	if err := d.acquire(tc); err != nil {
		return err
	}
	defer d.release(tc)

	start := time.Now()
	d.call(b)
	d.trace(b, time.Since(start))
	return nil
}

// call invokes b, repeating it for as long as its Repeater asks. The engine
// mutex must be held.
func (d *Dispatcher) call(b *Baton) {
	for {
		b.Status = d.engine.Invoke(b.call)
		if b.Repeat == nil || !errors.Benign(b.Routine, b.Status) {
			return
		}
		args, again := b.Repeat(b.Status, b.call.Result)
		if !again {
			return
		}
		b.Args = args
		b.call.Args = args
		b.call.Result = b.call.Result[:0]
		b.call.Diagnostic = b.call.Diagnostic[:0]
	}
}

// acquire takes the engine mutex unless tc already holds it. The open check is
// repeated under the mutex because Close runs the rundown while holding it.
func (d *Dispatcher) acquire(tc *connection.ThreadContext) error {
	if tc.HoldsEngine() {
		return nil
	}
	d.mu.Lock()
	if !d.conn.IsOpen() {
		d.mu.Unlock()
		return errors.NotOpen("dispatch")
	}
	tc.SetHoldsEngine(true)
	return nil
}

func (d *Dispatcher) release(tc *connection.ThreadContext) {
	if tc.TPLevel() == 0 && tc.HoldsEngine() {
		tc.SetHoldsEngine(false)
		d.mu.Unlock()
	}
}

func (d *Dispatcher) work(b *Baton) {
	d.mu.Lock()
	if !d.conn.IsOpen() {
		d.mu.Unlock()
		d.post(b, nil, errors.NotOpen(string(b.Routine)))
		return
	}
	start := time.Now()
	d.call(b)
	d.mu.Unlock()
	d.trace(b, time.Since(start))

	if !d.loop.Post(func() { d.complete(b) }) {
		d.inflight.Done()
	}
}

func (d *Dispatcher) post(b *Baton, result any, err error) {
	ok := d.loop.Post(func() {
		defer d.inflight.Done()
		b.Continue(err, result)
	})
	if !ok {
		d.inflight.Done()
	}
}

func (d *Dispatcher) complete(b *Baton) {
	defer d.inflight.Done()
	result, err := d.finish(nil, b)
	if err != nil {
		result = nil
		if errors.Is(err, errors.ErrEngine) {
			err = errors.AsEnvelope(err)
		}
	}
	b.call = nil
	b.Continue(err, result)
}

// finish routes benign statuses to the decoder and everything else to the
// error translator. tc is nil for asynchronous calls.
func (d *Dispatcher) finish(tc *connection.ThreadContext, b *Baton) (any, error) {
	if !errors.Benign(b.Routine, b.Status) {
		err := errors.Translate(b.Status, string(b.call.Diagnostic))
		if err == errors.ErrSignalTrapped {
			d.log.Warn("engine trapped an interrupt", zap.String("routine", string(b.Routine)))
			d.raise(tc)
		}
		return nil, err
	}
	if b.Decode == nil {
		return nil, nil
	}
	return b.Decode(b.Status, b.call.Result)
}

// raise hands a trapped interrupt to the guard. Inside a transaction tc still
// holds the engine mutex; it is given up first so the guard can run the
// engine down.
func (d *Dispatcher) raise(tc *connection.ThreadContext) {
	if d.guard == nil {
		return
	}
	if tc != nil && tc.HoldsEngine() {
		tc.SetHoldsEngine(false)
		d.mu.Unlock()
	}
	d.guard.Raise(os.Interrupt)
}

func (d *Dispatcher) trace(b *Baton, elapsed time.Duration) {
	switch b.level {
	case ydbbridge.DebugOff:
		return
	case ydbbridge.DebugLow:
		d.log.Info("engine call",
			zap.String("routine", string(b.Routine)),
			zap.Int("status", b.Status),
			zap.Duration("elapsed", elapsed))
	case ydbbridge.DebugMedium:
		d.log.Debug("engine call",
			zap.Stringer("baton", b.ID),
			zap.String("routine", string(b.Routine)),
			zap.String("name", b.Name),
			zap.Strings("args", b.Args),
			zap.Bool("async", b.Flags.Has(FlagAsync)),
			zap.Int("status", b.Status),
			zap.Duration("elapsed", elapsed))
	default:
		d.log.Debug("engine call",
			zap.Stringer("baton", b.ID),
			zap.String("routine", string(b.Routine)),
			zap.String("name", b.Name),
			zap.Strings("args", b.Args),
			zap.Bool("async", b.Flags.Has(FlagAsync)),
			zap.Int("status", b.Status),
			zap.ByteString("result", b.call.Result),
			zap.ByteString("diagnostic", b.call.Diagnostic),
			zap.Duration("elapsed", elapsed))
	}
}
