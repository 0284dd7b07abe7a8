// Package dispatch serializes calls into the database engine.
//
// The engine is not reentrant, so every call goes through one mutex owned by
// the Dispatcher. A Baton carries one call: the routine, its encoded arguments,
// the decode step and, for asynchronous calls, the continuation.
//
// Synchronous calls run on the caller's goroutine:
//
//	open? -> repair signal handler -> lock -> Invoke -> unlock -> decode
//
// Asynchronous calls are queued on a Pool of workers. A worker locks, invokes
// and unlocks, then posts the completion to the Loop, a single goroutine that
// decodes the result and runs continuations one at a time in arrival order.
//
// Inside a transaction the session already holds the mutex. Nested calls do not
// lock again and the mutex is released only when the outermost transaction
// returns. Asynchronous calls inside a transaction are rejected.
package dispatch
