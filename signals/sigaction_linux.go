//go:build linux && (amd64 || arm64 || 386 || arm)

package signals

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sigaction is the kernel's struct sigaction on architectures that carry
// sa_restorer.
type sigaction struct {
	handler  uintptr
	flags    uintptr
	restorer uintptr
	mask     uint64
}

const sigsetSize = 8

func rtSigaction(sig syscall.Signal, act, old *sigaction) error {
	_, _, errno := unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(sig),
		uintptr(unsafe.Pointer(act)), uintptr(unsafe.Pointer(old)), sigsetSize, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// disposition is a saved OS-level handler for one signal.
type disposition struct {
	act   sigaction
	valid bool
}

func saveDisposition(sig syscall.Signal) disposition {
	var d disposition
	if err := rtSigaction(sig, nil, &d.act); err == nil {
		d.valid = true
	}
	return d
}

// restore puts d back when the current handler differs from it. It reports
// whether anything changed.
func (d disposition) restore(sig syscall.Signal) (bool, error) {
	if !d.valid {
		return false, nil
	}
	var cur sigaction
	if err := rtSigaction(sig, nil, &cur); err != nil {
		return false, err
	}
	if cur.handler == d.act.handler {
		return false, nil
	}
	act := d.act
	return true, rtSigaction(sig, &act, nil)
}

// resetDefault installs SIG_DFL for sig, the way an engine call can.
func resetDefault(sig syscall.Signal) error {
	var act sigaction
	return rtSigaction(sig, &act, nil)
}
