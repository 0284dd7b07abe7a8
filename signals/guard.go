package signals

import (
	"os"
	"os/signal"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"github.com/wippyai/ydb-bridge/connection"
)

// State is the guard's position in its one-way life.
type State int32

const (
	Idle State = iota
	Engaged
	Terminated
)

func (s State) String() string {
	switch s {
	case Engaged:
		return "engaged"
	case Terminated:
		return "terminated"
	}
	return "idle"
}

// Guarded lists the signals a guard handles unless opted out.
var Guarded = []os.Signal{syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM}

// Locker is the engine mutex as seen by the guard.
type Locker interface {
	TryLock() bool
	Unlock()
}

// Options configure a Guard.
type Options struct {
	Connection *connection.State
	Engine     Locker
	// Shutdown runs the engine down. It is called with the engine mutex held.
	Shutdown func() error
	// Ignore opts signals out of guarding.
	Ignore []os.Signal
	// Streams are checked for terminals. Nil means stdin, stdout and stderr.
	Streams []*os.File
	Exit    func(code int)
	Abort   func()
	Logger  *zap.Logger
}

type Guard struct {
	opts      Options
	signals   []os.Signal
	log       *zap.Logger
	ch        chan os.Signal
	terminals []terminal
	state     atomic.Int32
	mu        sync.Mutex
	installed bool
	sigint    disposition
	stop      chan struct{}
	done      chan struct{}
}

func New(opts Options) *Guard {
	if opts.Streams == nil {
		opts.Streams = []*os.File{os.Stdin, os.Stdout, os.Stderr}
	}
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}
	if opts.Abort == nil {
		opts.Abort = abort
	}
	log := opts.Logger
	if log == nil {
		log = Logger()
	}
	var sigs []os.Signal
	for _, s := range Guarded {
		if !slices.Contains(opts.Ignore, s) {
			sigs = append(sigs, s)
		}
	}
	return &Guard{
		opts:    opts,
		signals: sigs,
		log:     log,
		ch:      make(chan os.Signal, 1),
	}
}

// Signals returns the signals this guard handles.
func (g *Guard) Signals() []os.Signal {
	return slices.Clone(g.signals)
}

func (g *Guard) State() State {
	return State(g.state.Load())
}

// Install captures terminal attributes and starts handling signals. Calling it
// again is a no-op.
func (g *Guard) Install() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.installed {
		return nil
	}
	g.terminals = captureTerminals(g.opts.Streams, g.log)
	g.stop = make(chan struct{})
	g.done = make(chan struct{})
	if len(g.signals) > 0 {
		signal.Notify(g.ch, g.signals...)
	}
	g.sigint = saveDisposition(syscall.SIGINT)
	g.installed = true
	go g.watch(g.stop, g.done)

	g.log.Debug("signal guard installed",
		zap.Int("terminals", len(g.terminals)),
		zap.Int("signals", len(g.signals)))
	return nil
}

// Uninstall stops handling signals.
func (g *Guard) Uninstall() {
	g.mu.Lock()
	if !g.installed {
		g.mu.Unlock()
		return
	}
	g.installed = false
	signal.Stop(g.ch)
	close(g.stop)
	done := g.done
	g.mu.Unlock()
	<-done
}

// EnsureInstalled puts the SIGINT handler captured by Install back, once per
// session, if the engine has replaced it since.
func (g *Guard) EnsureInstalled(tc *connection.ThreadContext) {
	if tc == nil || tc.SignalResetDone() {
		return
	}
	g.mu.Lock()
	if g.installed && slices.Contains(g.signals, os.Signal(syscall.SIGINT)) {
		changed, err := g.sigint.restore(syscall.SIGINT)
		switch {
		case err != nil:
			g.log.Warn("restoring SIGINT handler failed", zap.Error(err))
		case changed:
			g.log.Debug("SIGINT handler restored")
		}
	}
	g.mu.Unlock()
	tc.MarkSignalReset()
}

// Raise runs the shutdown path for sig without waiting for delivery.
func (g *Guard) Raise(sig os.Signal) {
	g.handle(sig)
}

func (g *Guard) watch(stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case sig := <-g.ch:
			g.handle(sig)
		case <-stop:
			return
		}
	}
}

func (g *Guard) handle(sig os.Signal) {
	if !g.state.CompareAndSwap(int32(Idle), int32(Engaged)) {
		return
	}
	g.log.Warn("signal received, shutting down", zap.Stringer("signal", sig))

	g.shutdownEngine()

	g.mu.Lock()
	terminals := g.terminals
	g.mu.Unlock()
	restoreTerminals(terminals, g.log)

	g.state.Store(int32(Terminated))
	if sig == syscall.SIGQUIT {
		g.opts.Abort()
		return
	}
	g.opts.Exit(1)
}

func (g *Guard) shutdownEngine() {
	conn := g.opts.Connection
	if conn == nil || !conn.IsOpen() || g.opts.Engine == nil {
		return
	}
	if !g.opts.Engine.TryLock() {
		g.log.Warn("engine busy, skipping rundown")
		return
	}
	defer g.opts.Engine.Unlock()
	if !conn.Terminate() {
		return
	}
	if g.opts.Shutdown != nil {
		if err := g.opts.Shutdown(); err != nil {
			g.log.Error("engine rundown failed", zap.Error(err))
		}
	}
}
