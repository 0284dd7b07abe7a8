// Package engine provides implementations of the call-in engine surface
// declared by the root package.
//
// Local is an in-process engine backed by SQLite. It implements the M data
// model (sparse, hierarchical, string-valued arrays) closely enough for the
// bridge to be developed and tested without a database installation:
//
//	^name(sub,...)   globals, persisted in the global directory file
//	name(sub,...)    locals, held in a private in-memory database
//
// Subscripts are stored as order-preserving byte keys. Canonical numbers sort
// before strings and numerically among themselves; strings sort by byte value.
//
// # Locks
//
// Locks are held in a process-wide table shared by every Local. A lock on a
// node conflicts with locks held by another engine on the same node, its
// ancestors and its descendants. Locks are incremental.
//
// # Transactions
//
// Transact maps onto nested SAVEPOINTs on the globals database. Locals are not
// restored on rollback.
//
// # Extrinsics
//
// The function and procedure routines call Go functions registered with
// Register under their entryref.
//
// Building with the yottadb tag adds YottaDB, which forwards every routine to a
// real database through lang.yottadb.com/go/yottadb.
package engine
