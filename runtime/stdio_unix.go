//go:build linux || darwin || freebsd || netbsd || openbsd

package runtime

import (
	"golang.org/x/sys/unix"

	"github.com/wippyai/ydb-bridge/errors"
)

// redirectStdout points file descriptor 1 at stderr so engine trace output
// does not mix with the program's own stdout. The returned function restores
// the original descriptor.
func redirectStdout() (func() error, error) {
	saved, err := unix.Dup(unix.Stdout)
	if err != nil {
		return nil, errors.Syscall("dup stdout", err)
	}
	if err := unix.Dup2(unix.Stderr, unix.Stdout); err != nil {
		_ = unix.Close(saved)
		return nil, errors.Syscall("redirect stdout", err)
	}
	return func() error {
		defer unix.Close(saved)
		if err := unix.Dup2(saved, unix.Stdout); err != nil {
			return errors.Syscall("restore stdout", err)
		}
		return nil
	}, nil
}
