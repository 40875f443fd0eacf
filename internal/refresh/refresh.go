// Package refresh coalesces bursts of edits into a single delayed action.
package refresh

import (
	"sync"
	"time"
)

// Scheduler holds at most one pending timer. Restarting replaces the pending
// timer instead of queueing another.
type Scheduler struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// Restart cancels any pending timer and arms a new one that calls fn after
// delay. The pending handle is cleared before fn runs, so fn may call Restart.
func (s *Scheduler) Restart(fn func(), delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.gen != gen || s.timer == nil {
			// Superseded or cancelled after the timer had already fired.
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending timer, if any.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Pending reports whether a timer is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
