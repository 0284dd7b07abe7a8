//go:build linux && (amd64 || arm64 || 386 || arm)

package signals

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

const childEnv = "YDB_SIGNALS_CHILD"

// The child resets SIGINT to the default action the way an engine call can,
// then relies on EnsureInstalled to route the signal back to the guard.
func TestGuard_RestoresSIGINT(t *testing.T) {
	if os.Getenv(childEnv) == "1" {
		h := newHarness(t, true, Options{})
		h.guard.opts.Exit = func(int) { os.Exit(42) }
		if err := h.guard.Install(); err != nil {
			t.Fatal(err)
		}
		if err := resetDefault(syscall.SIGINT); err != nil {
			t.Fatal(err)
		}
		h.guard.EnsureInstalled(h.conn.NewThread())
		_ = syscall.Kill(os.Getpid(), syscall.SIGINT)
		time.Sleep(5 * time.Second)
		os.Exit(0)
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestGuard_RestoresSIGINT$")
	cmd.Env = append(os.Environ(), childEnv+"=1")
	err := cmd.Run()

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("child err = %v, want exit status 42", err)
	}
	if code := exitErr.ExitCode(); code != 42 {
		t.Fatalf("child exit = %d (%v), want 42 from the guard", code, err)
	}
}

func TestDisposition_Restore(t *testing.T) {
	d := saveDisposition(syscall.SIGINT)
	if !d.valid {
		t.Fatal("could not read SIGINT disposition")
	}
	if changed, err := d.restore(syscall.SIGINT); err != nil || changed {
		t.Fatalf("restore of unchanged handler = %v, %v", changed, err)
	}
}
