package runtime

import (
	"context"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/connection"
	"github.com/wippyai/ydb-bridge/dispatch"
	"github.com/wippyai/ydb-bridge/errors"
	"github.com/wippyai/ydb-bridge/transcoder"
)

// Continuation receives the outcome of an asynchronous call exactly once, on
// the runtime's completion goroutine. Engine failures arrive as
// *errors.Envelope.
type Continuation = dispatch.Continuation

// Session is one caller's view of the engine: its own settings, buffers and
// transaction depth. A Session must not be used from more than one goroutine
// at a time; give each goroutine its own from Runtime.NewSession.
type Session struct {
	rt *Runtime
	tc *connection.ThreadContext
}

// Settings returns the session's effective settings.
func (s *Session) Settings() connection.Settings {
	if s.tc == nil {
		return connection.Settings{}
	}
	return s.tc.Settings()
}

// Configure overrides settings for this session only.
func (s *Session) Configure(o connection.Overrides) error {
	if s.tc == nil {
		return errors.NotOpen("configure")
	}
	return s.rt.conn.Configure(s.tc, o)
}

// InTransaction reports whether the session is inside Transaction.
func (s *Session) InTransaction() bool {
	return s.tc != nil && s.tc.InTransaction()
}

// Do runs op in object style. Engine failures are returned as an Envelope
// with OK false; the error is reserved for state, validation and protocol
// failures.
func (s *Session) Do(ctx context.Context, op Op, opts Options) (*Envelope, error) {
	req, err := s.newRequest(op, opts, false)
	if err != nil {
		return nil, err
	}
	env, err := s.run(ctx, req)
	if err != nil {
		if errors.Is(err, errors.ErrEngine) {
			return failure(err), nil
		}
		return nil, err
	}
	return env, nil
}

// Call runs op in positional style: name is the variable (or entryref), args
// are its subscripts followed, for set, by the value. The bare result is
// returned and every failure is an error.
func (s *Session) Call(ctx context.Context, op Op, name string, args ...any) (any, error) {
	opts, err := positional(op, name, args)
	if err != nil {
		return nil, err
	}
	req, err := s.newRequest(op, opts, true)
	if err != nil {
		return nil, err
	}
	env, err := s.run(ctx, req)
	if err != nil {
		return nil, err
	}
	return env.value(op), nil
}

// DoAsync queues op on the worker pool and returns at once. cont receives the
// *Envelope.
func (s *Session) DoAsync(ctx context.Context, op Op, opts Options, cont Continuation) error {
	if cont == nil {
		return errors.InvalidInput(errors.PhaseDispatch, "asynchronous call without a continuation")
	}
	req, err := s.newRequest(op, opts, false)
	if err != nil {
		return err
	}
	return s.goAsync(ctx, req, func(err error, env *Envelope) {
		if err != nil {
			cont(err, nil)
			return
		}
		cont(nil, env)
	})
}

// CallAsync is the asynchronous form of Call. cont receives the bare result.
func (s *Session) CallAsync(ctx context.Context, op Op, cont Continuation, name string, args ...any) error {
	if cont == nil {
		return errors.InvalidInput(errors.PhaseDispatch, "asynchronous call without a continuation")
	}
	opts, err := positional(op, name, args)
	if err != nil {
		return err
	}
	req, err := s.newRequest(op, opts, true)
	if err != nil {
		return err
	}
	return s.goAsync(ctx, req, func(err error, env *Envelope) {
		if err != nil {
			cont(err, nil)
			return
		}
		cont(nil, env.value(op))
	})
}

// Transaction runs fn inside an engine transaction. Calls fn makes through the
// session it is given join the transaction. A non-nil error from fn rolls the
// transaction back and is returned. Asynchronous calls are refused inside fn.
func (s *Session) Transaction(ctx context.Context, fn func(*Session) error) error {
	if s.tc == nil {
		return errors.NotOpen(string(ydbbridge.RoutineTransaction))
	}
	b := dispatch.NewBaton(ydbbridge.RoutineTransaction, "")
	_, err := s.rt.disp.Transact(ctx, s.tc, b, func() error {
		return fn(s)
	})
	return err
}

func (s *Session) newRequest(op Op, opts Options, byPosition bool) (*request, error) {
	if s.tc == nil {
		return nil, errors.NotOpen(op.String())
	}
	if !op.valid() {
		return nil, errors.InvalidInput(errors.PhaseValidate, "unknown operation "+op.String())
	}
	st := s.tc.Settings()
	req := &request{
		op:         op,
		opts:       opts,
		byPosition: byPosition,
		codec: transcoder.Options{
			Mode:           st.Mode,
			Charset:        st.Charset,
			ReservedPrefix: st.ReservedPrefix,
		},
		autoRelink: st.AutoRelink,
	}
	if opts.AutoRelink != nil {
		req.autoRelink = *opts.AutoRelink
	}
	if err := req.prepare(); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Session) baton(req *request) (*dispatch.Baton, error) {
	o := operations[req.op]
	args, err := o.encode(transcoder.NewEncoder(req.codec), req)
	if err != nil {
		return nil, err
	}
	b := dispatch.NewBaton(o.routine, req.glvn, args...)
	b.Subscripts = req.opts.Subscripts
	if req.byPosition {
		b.Flags |= dispatch.FlagByPosition
	}
	if req.glvn != "" && !req.global {
		b.Flags |= dispatch.FlagLocal
	}
	if req.opts.NodeOnly {
		b.Flags |= dispatch.FlagNodeOnly
	}
	switch req.op {
	case OpLock:
		if req.opts.Timeout != nil {
			b.Option = *req.opts.Timeout
		}
	case OpIncrement:
		b.Option = 1
		if v, ok := req.opts.Increment.(float64); ok {
			b.Option = v
		}
	}
	dec := transcoder.NewDecoder(req.codec)
	b.Decode = func(status int, raw []byte) (any, error) {
		return o.decode(dec, req, status, raw)
	}
	if req.walksLocalNames() {
		b.Repeat = func(status int, raw []byte) ([]string, bool) {
			return req.skipReserved(dec, status, raw)
		}
	}
	return b, nil
}

func (s *Session) run(ctx context.Context, req *request) (*Envelope, error) {
	b, err := s.baton(req)
	if err != nil {
		return nil, err
	}
	out, err := s.rt.disp.Run(ctx, s.tc, b)
	if err != nil {
		return nil, err
	}
	return out.(*Envelope), nil
}

func (s *Session) goAsync(ctx context.Context, req *request, done func(error, *Envelope)) error {
	b, err := s.baton(req)
	if err != nil {
		return err
	}
	b.Continue = func(err error, result any) {
		if err != nil {
			done(err, nil)
			return
		}
		done(nil, result.(*Envelope))
	}
	return s.rt.disp.Go(ctx, s.tc, b)
}

// walksLocalNames reports whether req is a top-level local order or previous,
// which must step past the engine's housekeeping variables.
func (r *request) walksLocalNames() bool {
	return (r.op == OpOrder || r.op == OpPrevious) && !r.global && len(r.opts.Subscripts) == 0
}

// skipReserved runs under the engine mutex. When the engine returned a
// housekeeping variable it moves the walk to that name and returns the
// arguments of the next call.
func (r *request) skipReserved(dec *transcoder.Decoder, status int, raw []byte) ([]string, bool) {
	if status == ydbbridge.StatusNodeEnd {
		return nil, false
	}
	name := dec.Text(raw)
	if name == "" || !transcoder.IsReserved(name, r.codec.ReservedPrefix) {
		return nil, false
	}
	r.glvn = name
	args, err := operations[r.op].encode(transcoder.NewEncoder(r.codec), r)
	if err != nil {
		return nil, false
	}
	return args, true
}
