package job

import (
	"sync"
)

// InlineDispatcher runs callbacks immediately on the calling goroutine.
type InlineDispatcher struct{}

// Dispatch runs fn.
func (InlineDispatcher) Dispatch(fn func()) {
	fn()
}

// SerialDispatcher runs callbacks one at a time, in order, on a single
// goroutine it owns. It plays the role of the UI thread.
type SerialDispatcher struct {
	mu     sync.RWMutex
	queue  chan func()
	closed bool
	done   chan struct{}
}

// NewSerialDispatcher starts the event loop goroutine.
func NewSerialDispatcher(buffer int) *SerialDispatcher {
	d := &SerialDispatcher{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *SerialDispatcher) loop() {
	defer close(d.done)
	for fn := range d.queue {
		fn()
	}
}

// Dispatch queues fn. Callbacks dispatched after Close are dropped.
// A callback must never wait on the runner, or the queue stalls.
func (d *SerialDispatcher) Dispatch(fn func()) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	d.queue <- fn
}

// Close drains the queue and stops the event loop.
func (d *SerialDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}
