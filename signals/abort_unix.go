//go:build unix

package signals

import (
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"golang.org/x/sys/unix"
)

// abort sends SIGABRT to the process. With the crash traceback level the Go
// runtime re-raises it with the default disposition, so the process dumps core.
func abort() {
	signal.Reset(syscall.SIGABRT)
	debug.SetTraceback("crash")
	_ = unix.Kill(os.Getpid(), unix.SIGABRT)
	select {}
}
