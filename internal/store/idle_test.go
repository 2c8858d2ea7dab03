package store

import (
	"sync/atomic"
	"testing"
	"time"
)

type manualTimer struct {
	f       func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	was := !m.stopped
	m.stopped = true
	return was
}

func TestIdleWatchdog(t *testing.T) {
	var timers []*manualTimer
	var gotTimeout time.Duration
	after := func(d time.Duration, f func()) Timer {
		gotTimeout = d
		tm := &manualTimer{f: f}
		timers = append(timers, tm)
		return tm
	}

	var fired atomic.Int32
	eligible := true
	w := NewIdleWatchdog(0, func() bool { return eligible }, func() { fired.Add(1) }, after)

	if w.Timeout() != DefaultIdleTimeout {
		t.Errorf("Timeout = %v, want %v", w.Timeout(), DefaultIdleTimeout)
	}

	t.Run("fires once per idle period", func(t *testing.T) {
		w.Touch()
		if gotTimeout != DefaultIdleTimeout {
			t.Errorf("scheduled after %v", gotTimeout)
		}
		timers[len(timers)-1].f()
		timers[len(timers)-1].f()
		if fired.Load() != 1 {
			t.Errorf("fired = %d, want 1", fired.Load())
		}
	})

	t.Run("ineligible period does not fire", func(t *testing.T) {
		fired.Store(0)
		eligible = false
		w.Touch()
		timers[len(timers)-1].f()
		if fired.Load() != 0 {
			t.Errorf("fired = %d, want 0", fired.Load())
		}
		eligible = true
	})

	t.Run("disarm cancels the pending period", func(t *testing.T) {
		fired.Store(0)
		w.Touch()
		pending := timers[len(timers)-1]
		w.Disarm()
		if !pending.stopped {
			t.Error("timer not stopped")
		}
		pending.f()
		if fired.Load() != 0 {
			t.Errorf("fired = %d, want 0", fired.Load())
		}
	})

	t.Run("stop ignores later touches", func(t *testing.T) {
		n := len(timers)
		w.Stop()
		w.Touch()
		if len(timers) != n {
			t.Error("Touch after Stop scheduled a timer")
		}
	})
}
