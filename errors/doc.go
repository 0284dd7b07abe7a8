// Package errors provides structured error types for the ydb-bridge module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: argument path, Go type name, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindInvalidStructure).
//		Path("arguments", "1").
//		Detail("unknown indirection type %q", typ).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidName(path, name, "subscripts are not allowed")
//	err := errors.NotOpen("get")
//
// Engine failures are translated from a status code and a "<code>,<message>"
// diagnostic by Translate, which yields an *EngineError. Benign lists the
// per-routine statuses that are results rather than failures.
//
// All errors implement the standard error interface and support errors.Is/As;
// the Err* sentinels match on Phase and Kind only.
package errors
