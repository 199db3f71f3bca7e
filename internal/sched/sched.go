// Package sched provides a small cancellable scheduled-task abstraction used
// by every component that arms a timer. Each armed task returns a Handle the
// owning component must retain and Stop on teardown, so leak-freedom is a
// structural property rather than a convention.
//
// The clock is injected (clockwork.Clock) so tests can advance time
// deterministically.
package sched

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler arms one-shot and periodic tasks against an injected clock.
type Scheduler struct {
	clock clockwork.Clock
}

// New returns a Scheduler driven by the given clock.
func New(clock clockwork.Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// Clock exposes the underlying clock, for components that need "now".
func (s *Scheduler) Clock() clockwork.Clock {
	return s.clock
}

// Handle is the cancellation token for a scheduled task.
type Handle struct {
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newHandle() *Handle {
	return &Handle{stopCh: make(chan struct{}), doneCh: make(chan struct{})}
}

// Stop cancels the task. It is idempotent and safe to call from any
// goroutine; it does not wait for a currently-running callback to return.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// Done is closed once the task's goroutine has exited. Useful in tests and
// teardown paths that must not outlive their timers.
func (h *Handle) Done() <-chan struct{} {
	return h.doneCh
}

// After arms a single-shot task that runs fn once after d, unless stopped
// first. A non-positive delay fires on the next tick of the scheduler
// goroutine.
func (s *Scheduler) After(d time.Duration, fn func()) *Handle {
	h := newHandle()
	go func() {
		defer close(h.doneCh)
		timer := s.clock.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.Chan():
			fn()
		case <-h.stopCh:
		}
	}()
	return h
}

// Every arms a periodic task that runs fn on every tick of period d until
// stopped. Ticks do not overlap: fn runs on the task goroutine.
func (s *Scheduler) Every(d time.Duration, fn func()) *Handle {
	h := newHandle()
	go func() {
		defer close(h.doneCh)
		ticker := s.clock.NewTicker(d)
		defer ticker.Stop()
		for {
			// prefer stop over a queued tick so a callback that stops its
			// own handle never runs again
			select {
			case <-h.stopCh:
				return
			default:
			}
			select {
			case <-ticker.Chan():
				fn()
			case <-h.stopCh:
				return
			}
		}
	}()
	return h
}
