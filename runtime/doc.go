// Package runtime is the public API of the bridge.
//
// # Quick Start
//
//	rt, err := runtime.New(config.Default(), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := rt.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	s := rt.Session()
//	s.Set(ctx, runtime.Options{Ref: runtime.Ref{Global: "^x", Subscripts: []any{1}}, Data: "hello"})
//	env, _ := s.Get(ctx, runtime.Options{Ref: runtime.Ref{Global: "^x", Subscripts: []any{1}}})
//	fmt.Println(env.Data, env.Defined) // hello true
//
// # Call Styles
//
// Every operation can be called two ways:
//
//	s.Do(ctx, op, opts)              object style: returns an *Envelope
//	s.Call(ctx, op, name, args...)   positional style: returns the bare value
//
// They differ in how engine failures surface. Object style returns an Envelope
// with OK false, ErrorCode and ErrorMessage, and a nil error. Positional style
// returns the failure as an error. State and validation errors are always
// returned as errors.
//
// DoAsync and CallAsync queue the call on the worker pool and deliver the
// outcome to a continuation on the runtime's completion goroutine. Engine
// failures reach the continuation as *errors.Envelope.
//
// # Sessions
//
// The engine accepts one caller at a time. Sessions carry per-caller state:
// settings changed with Configure, result buffers and transaction depth. The
// goroutine that opened the runtime uses Session(); other goroutines create
// their own with NewSession.
//
// # Transactions
//
//	err := s.Transaction(ctx, func(tx *runtime.Session) error {
//	    _, err := tx.Call(ctx, runtime.OpSet, "^acct", "alice", 90)
//	    return err
//	})
//
// The session holds the engine for the whole transaction. Asynchronous calls
// made inside it fail with an AsyncInTP error.
//
// # Go Routines
//
// With the local engine, Go functions can stand in for M routines:
//
//	rt.Routines().RegisterFunc("add^math", func(env *engine.Env, args []*engine.Arg) (string, error) {
//	    ...
//	})
//
// Registrations are bound when the runtime opens.
package runtime
