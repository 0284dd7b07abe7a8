package dispatch

import (
	"sync"

	"go.uber.org/zap"
)

// Loop runs posted functions one at a time, in the order they were posted, on a
// single goroutine. Completions of asynchronous calls run here.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	closing bool
	wake    chan struct{}
	stopped chan struct{}
	log     *zap.Logger
}

func NewLoop(log *zap.Logger) *Loop {
	if log == nil {
		log = Logger()
	}
	l := &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		log:     log,
	}
	go l.run()
	return l
}

// Post queues fn. It reports false once the loop is closing.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.signal()
	return true
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closing := l.closing
		l.mu.Unlock()

		for _, fn := range batch {
			l.call(fn)
		}
		if closing && len(batch) == 0 {
			return
		}
		if len(batch) == 0 {
			<-l.wake
		}
	}
}

func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("continuation panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// Close runs everything already posted, then stops the loop.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		<-l.stopped
		return
	}
	l.closing = true
	l.mu.Unlock()
	l.signal()
	<-l.stopped
}
