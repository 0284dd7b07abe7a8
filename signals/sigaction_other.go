//go:build !(linux && (amd64 || arm64 || 386 || arm))

package signals

import (
	"errors"
	"syscall"
)

type disposition struct{}

func saveDisposition(syscall.Signal) disposition { return disposition{} }

func (disposition) restore(syscall.Signal) (bool, error) { return false, nil }

func resetDefault(syscall.Signal) error {
	return errors.ErrUnsupported
}
