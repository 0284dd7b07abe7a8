package engine

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lockKey struct {
	name string
	key  string
}

type lockEntry struct {
	owner uuid.UUID
	count int
}

// lockTable is shared by every Local engine in the process, the way the real
// engine's lock space is shared by every process on a database. A lock on a
// node conflicts with locks other owners hold on its ancestors or descendants.
type lockTable struct {
	mu      sync.Mutex
	held    map[lockKey]*lockEntry
	changed chan struct{}
}

var processLocks = newLockTable()

func newLockTable() *lockTable {
	return &lockTable{
		held:    make(map[lockKey]*lockEntry),
		changed: make(chan struct{}),
	}
}

// acquire increments owner's claim on k. A negative timeout waits forever.
func (t *lockTable) acquire(owner uuid.UUID, k lockKey, timeout time.Duration) bool {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		t.mu.Lock()
		if !t.conflicts(owner, k) {
			e := t.held[k]
			if e == nil {
				e = &lockEntry{owner: owner}
				t.held[k] = e
			}
			e.count++
			t.mu.Unlock()
			return true
		}
		changed := t.changed
		t.mu.Unlock()

		if timeout == 0 {
			return false
		}
		select {
		case <-changed:
		case <-deadline:
			return false
		}
	}
}

func (t *lockTable) conflicts(owner uuid.UUID, k lockKey) bool {
	for hk, e := range t.held {
		if e.owner == owner || hk.name != k.name {
			continue
		}
		if bytes.HasPrefix([]byte(hk.key), []byte(k.key)) || bytes.HasPrefix([]byte(k.key), []byte(hk.key)) {
			return true
		}
	}
	return false
}

// release decrements owner's claim on k and reports whether it held one.
func (t *lockTable) release(owner uuid.UUID, k lockKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.held[k]
	if e == nil || e.owner != owner {
		return false
	}
	e.count--
	if e.count == 0 {
		delete(t.held, k)
		t.broadcast()
	}
	return true
}

func (t *lockTable) releaseAll(owner uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	released := false
	for k, e := range t.held {
		if e.owner == owner {
			delete(t.held, k)
			released = true
		}
	}
	if released {
		t.broadcast()
	}
}

func (t *lockTable) count(owner uuid.UUID, k lockKey) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e := t.held[k]; e != nil && e.owner == owner {
		return e.count
	}
	return 0
}

func (t *lockTable) broadcast() {
	close(t.changed)
	t.changed = make(chan struct{})
}
