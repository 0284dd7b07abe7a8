// Package signals runs the database engine down before the process dies on an
// interrupt, quit or termination signal, and puts any terminal back the way it
// was found.
//
// A Guard moves Idle -> Engaged -> Terminated. The first guarded signal engages
// it; later signals are ignored. When the engine is open and its mutex is free,
// the guard shuts the engine down under the mutex. Terminal attributes captured
// at Install are restored. SIGQUIT ends in an abort so a core dump is still
// produced; every other signal exits with status 1.
//
// Some engine releases replace the SIGINT disposition during certain calls.
// EnsureInstalled re-registers the handler the first time each session makes a
// call after installation.
package signals
