package store

import (
	"sync"
	"time"
)

// DefaultIdleTimeout is how long an ephemeral session may go without input.
const DefaultIdleTimeout = 180_000 * time.Millisecond

// Timer is the part of *time.Timer the watchdog needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc is the production implementation.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// IdleWatchdog calls onIdle once when no input has been reported for timeout
// and eligible() holds at that moment. It does not re-arm itself: the next
// Touch starts a new idle period.
type IdleWatchdog struct {
	mu        sync.Mutex
	timeout   time.Duration
	afterFunc AfterFunc
	eligible  func() bool
	onIdle    func()

	timer   Timer
	gen     uint64
	stopped bool
}

// NewIdleWatchdog builds a stopped-until-touched watchdog. A nil afterFunc uses time.AfterFunc.
func NewIdleWatchdog(timeout time.Duration, eligible func() bool, onIdle func(), afterFunc AfterFunc) *IdleWatchdog {
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	return &IdleWatchdog{
		timeout:   timeout,
		afterFunc: afterFunc,
		eligible:  eligible,
		onIdle:    onIdle,
	}
}

// Touch reports user input (pointer, key, scroll, click) and restarts the idle period.
func (w *IdleWatchdog) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.timer = w.afterFunc(w.timeout, func() { w.fire(gen) })
}

// Disarm cancels the pending idle period without stopping the watchdog.
func (w *IdleWatchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancel()
}

// Stop cancels the pending period; later Touch calls are ignored.
func (w *IdleWatchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.cancel()
}

// Timeout returns the configured idle threshold.
func (w *IdleWatchdog) Timeout() time.Duration {
	return w.timeout
}

func (w *IdleWatchdog) cancel() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
}

func (w *IdleWatchdog) fire(gen uint64) {
	w.mu.Lock()
	// A Touch, Disarm or Stop after this timer was scheduled supersedes it.
	if w.stopped || gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.gen++
	w.mu.Unlock()

	if w.eligible == nil || w.eligible() {
		w.onIdle()
	}
}
