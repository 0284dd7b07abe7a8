// Package connection holds the process-wide lifecycle of the database engine
// and the per-session settings snapshot that every call is made under.
//
// State moves one way only:
//
//	NotOpen -> Open -> Closed
//
// Closed is absorbing. Open and Close need the Token returned by New; any other
// caller receives a WrongThread error. Dispatchers read IsOpen without locks.
package connection
