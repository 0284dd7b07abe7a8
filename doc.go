// Package ydbbridge provides a Go binding to a single-threaded M database engine
// (YottaDB/GT.M) through a narrow call-in protocol.
//
// The engine is not reentrant across OS threads and can be initialized only once
// per process. This module wraps it in a dispatch core that serializes every call
// behind one mutex, marshals Go values into the engine's length-prefixed token
// strings and decodes engine output back into Go values.
//
// # Architecture Overview
//
//	ydbbridge/           Root package with the Engine interface and shared enums
//	├── runtime/         High-level API: Runtime, Session, operations, envelopes
//	├── dispatch/        Baton, engine mutex, worker pool and completion loop
//	├── connection/      Connection state machine and per-session ThreadContext
//	├── transcoder/      Argument encoding and result decoding (wire format)
//	├── errors/          Structured error types and engine status translation
//	├── signals/         SIGINT/SIGQUIT/SIGTERM guard with terminal restore
//	├── engine/          Engine implementations (SQLite-backed Local, cgo YottaDB)
//	├── config/          YAML/TOML configuration, engine environment, hot reload
//	└── cmd/ydb/         Command line client and interactive shell
//
// # Quick Start
//
//	eng := engine.NewLocal(engine.LocalConfig{})
//	rt, err := runtime.New(config.Default(), eng)
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
//	fmt.Println(env.Data) // "hello"
//
// # Thread Safety
//
// Runtime is safe for concurrent use. Session is NOT: each goroutine that talks to
// the engine should obtain its own Session from Runtime.NewSession. Asynchronous
// calls run on a bounded worker pool and deliver their continuations, one at a
// time, on the runtime's completion loop.
package ydbbridge
