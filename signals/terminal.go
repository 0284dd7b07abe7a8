package signals

import (
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/ydb-bridge/errors"
)

type terminal struct {
	name  string
	fd    int
	state *term.State
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func captureTerminals(files []*os.File, log *zap.Logger) []terminal {
	var out []terminal
	for _, f := range files {
		if f == nil || !IsTerminal(f) {
			continue
		}
		fd := int(f.Fd())
		st, err := term.GetState(fd)
		if err != nil {
			log.Warn("cannot read terminal attributes",
				zap.String("stream", f.Name()),
				zap.Error(errors.Syscall("get terminal state", err)))
			continue
		}
		out = append(out, terminal{name: f.Name(), fd: fd, state: st})
	}
	return out
}

// restoreTerminals is best effort: failures are logged and the rest continue.
func restoreTerminals(ts []terminal, log *zap.Logger) {
	for _, t := range ts {
		if err := term.Restore(t.fd, t.state); err != nil {
			log.Warn("cannot restore terminal attributes",
				zap.String("stream", t.name),
				zap.Error(errors.Syscall("restore terminal state", err)))
		}
	}
}
