//go:build unix

package signals

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func TestGuard_DeliveredSignal(t *testing.T) {
	exited := make(chan int, 1)
	h := newHarness(t, true, Options{})
	h.guard.opts.Exit = func(code int) { exited <- code }

	if err := h.guard.Install(); err != nil {
		t.Fatal(err)
	}
	defer h.guard.Uninstall()

	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}
	select {
	case code := <-exited:
		if code != 1 {
			t.Errorf("exit code = %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("signal was not handled")
	}
	if h.shutdowns.Load() != 1 {
		t.Errorf("shutdowns = %d", h.shutdowns.Load())
	}
}
