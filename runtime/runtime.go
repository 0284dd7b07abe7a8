package runtime

import (
	"context"

	"go.uber.org/zap"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/config"
	"github.com/wippyai/ydb-bridge/connection"
	"github.com/wippyai/ydb-bridge/dispatch"
	"github.com/wippyai/ydb-bridge/engine"
	"github.com/wippyai/ydb-bridge/errors"
	"github.com/wippyai/ydb-bridge/signals"
)

// Runtime owns the engine connection. Open and Close belong to the goroutine
// that created it; every other goroutine works through its own Session.
type Runtime struct {
	cfg      config.Config
	settings config.Settings
	engine   ydbbridge.Engine
	conn     *connection.State
	token    connection.Token
	disp     *dispatch.Dispatcher
	guard    *signals.Guard
	routines *RoutineRegistry
	log      *zap.Logger
	main     *Session

	restoreStdout func() error
}

// New builds a runtime for cfg. A nil eng selects the engine named by
// cfg.Engine.
func New(cfg config.Config, eng ydbbridge.Engine) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}
	log, err := NewLogger(settings.Debug)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "build logger")
	}
	if eng == nil {
		if eng, err = newEngine(cfg, log); err != nil {
			return nil, err
		}
	}

	conn, token := connection.New()
	disp := dispatch.New(conn, eng, dispatch.Options{Workers: cfg.Workers, Logger: log})
	guard := signals.New(signals.Options{
		Connection: conn,
		Engine:     disp,
		Shutdown:   eng.Shutdown,
		Ignore:     cfg.IgnoredSignals(),
		Logger:     log,
	})
	disp.SetGuard(guard)

	r := &Runtime{
		cfg:      cfg,
		settings: settings,
		engine:   eng,
		conn:     conn,
		token:    token,
		disp:     disp,
		guard:    guard,
		routines: NewRoutineRegistry(),
		log:      log,
	}
	r.main = &Session{rt: r}
	return r, nil
}

func newEngine(cfg config.Config, log *zap.Logger) (ydbbridge.Engine, error) {
	if cfg.Engine == config.EngineYottaDB {
		return newYottaDB(log)
	}
	return engine.NewLocal(engine.LocalConfig{
		GlobalDirectory: cfg.GlobalDirectory,
		Logger:          log,
	}), nil
}

// Routines returns the registry of Go routines bound to the engine at Open.
func (r *Runtime) Routines() *RoutineRegistry {
	return r.routines
}

// Engine returns the engine the runtime drives.
func (r *Runtime) Engine() ydbbridge.Engine {
	return r.engine
}

// Status returns the connection's lifecycle state.
func (r *Runtime) Status() connection.Status {
	return r.conn.Status()
}

// Open exports the engine environment, installs the signal guard and
// initializes the engine. A runtime can be opened once.
func (r *Runtime) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := connection.Defaults{
		Mode:           r.settings.Mode,
		Charset:        r.settings.Charset,
		DebugLevel:     r.settings.Debug,
		AutoRelink:     r.cfg.AutoRelink,
		ReservedPrefix: r.cfg.ReservedPrefix,
		ResultSize:     r.cfg.ResultSize,
	}
	if err := r.conn.Open(r.token, d, r.initialize); err != nil {
		return err
	}
	r.main.tc = r.conn.NewThread()
	r.log.Info("runtime open",
		zap.String("engine", r.cfg.Engine),
		zap.Stringer("mode", r.settings.Mode),
		zap.Stringer("charset", r.settings.Charset),
		zap.Int("workers", r.disp.Workers()))
	return nil
}

func (r *Runtime) initialize() error {
	if err := r.cfg.Apply(); err != nil {
		return err
	}
	if reg, ok := r.engine.(Registrar); ok {
		r.routines.Bind(reg)
	} else if r.routines.Len() > 0 {
		r.log.Warn("engine cannot run Go routines; registrations ignored",
			zap.Strings("entryrefs", r.routines.Entryrefs()))
	}
	if err := r.guard.Install(); err != nil {
		return err
	}
	if r.settings.Debug != ydbbridge.DebugOff {
		restore, err := redirectStdout()
		if err != nil {
			r.guard.Uninstall()
			return err
		}
		r.restoreStdout = restore
	}
	if err := r.disp.WithEngine(r.engine.Initialize); err != nil {
		r.guard.Uninstall()
		r.restore()
		return errors.Wrap(errors.PhaseState, errors.KindEngine, err, "initialize engine")
	}
	return nil
}

func (r *Runtime) restore() {
	if r.restoreStdout == nil {
		return
	}
	if err := r.restoreStdout(); err != nil {
		r.log.Error("restore stdout", zap.Error(err))
	}
	r.restoreStdout = nil
}

// Close waits for outstanding asynchronous calls, runs the engine down and
// stops the runtime's goroutines. It must not be called from a continuation
// or inside a transaction.
func (r *Runtime) Close(ctx context.Context) error {
	if r.main.InTransaction() {
		return errors.New(errors.PhaseState, errors.KindInvalidInput).
			Detail("close inside a transaction").
			Build()
	}
	if !r.conn.IsOpen() {
		return errors.NotOpen("close")
	}

	drained := make(chan struct{})
	go func() {
		r.disp.Drain()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}

	err := r.conn.Close(r.token, func() error {
		return r.disp.WithEngine(r.engine.Shutdown)
	})
	if errors.Is(err, errors.ErrNotOpen) {
		return err
	}
	r.guard.Uninstall()
	r.restore()
	r.disp.Close()
	r.log.Info("runtime closed", zap.Error(err))
	_ = r.log.Sync()
	return err
}

// Session returns the session owned by the goroutine that opened the runtime.
func (r *Runtime) Session() *Session {
	return r.main
}

// NewSession creates a session for another goroutine. The runtime must be open.
func (r *Runtime) NewSession() (*Session, error) {
	if !r.conn.IsOpen() {
		return nil, errors.NotOpen("new session")
	}
	return &Session{rt: r, tc: r.conn.NewThread()}, nil
}
