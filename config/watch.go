package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wippyai/ydb-bridge/errors"
)

const debounce = 100 * time.Millisecond

// Watch reloads path whenever it changes and passes the result to fn. Bursts
// of events within the debounce window produce one reload. Invalid files are
// reported to fn with their error. Watch blocks until ctx is done.
//
// The parent directory is watched so editors that replace the file on save
// keep being followed.
func Watch(ctx context.Context, path string, log *zap.Logger, fn func(Config, error)) error {
	if log == nil {
		log = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Syscall("create watcher", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Syscall("resolve "+path, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return errors.Syscall("watch "+filepath.Dir(abs), err)
	}

	timer := newDebounceTimer()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				resetDebounceTimer(timer)
			}
		case <-timer.C:
			cfg, err := Load(abs)
			log.Debug("config reloaded", zap.String("path", abs), zap.Error(err))
			fn(cfg, err)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", zap.Error(err))
		}
	}
}

func newDebounceTimer() *time.Timer {
	t := time.NewTimer(0)
	if !t.Stop() {
		<-t.C
	}
	return t
}

func resetDebounceTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(debounce)
}
