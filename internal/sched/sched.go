// Package sched provides cancellable one-shot and repeating timers
// tied to conditions. Every timer started by a component is cleared
// when its triggering condition reverses or the owner shuts down, so
// no stale callback fires against a session it no longer belongs to.
package sched

import (
	"sync"
	"time"
)

// Timer is a cancellable one-shot.
type Timer struct {
	mu       sync.Mutex
	t        *time.Timer
	canceled bool
}

// After schedules fn once after d. Cancel stops it if it has not fired.
func After(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		tm.mu.Lock()
		canceled := tm.canceled
		tm.mu.Unlock()
		if !canceled {
			fn()
		}
	})
	return tm
}

// Cancel stops the timer. Safe to call multiple times and after the
// timer has fired.
func (t *Timer) Cancel() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.canceled = true
	if t.t != nil {
		t.t.Stop()
	}
	t.mu.Unlock()
}

// Interval is a cancellable repeating task.
type Interval struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Every runs fn every d until Stop is called. The first run happens
// after the first interval elapses, not immediately.
func Every(d time.Duration, fn func()) *Interval {
	iv := &Interval{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(iv.done)
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-iv.stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return iv
}

// Stop halts the interval and waits for any in-progress run to return.
// Safe to call multiple times.
func (iv *Interval) Stop() {
	if iv == nil {
		return
	}
	iv.once.Do(func() { close(iv.stop) })
	<-iv.done
}
