package refresh_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/fakeyudi/projector/internal/refresh"
)

const delay = 50 * time.Millisecond

func TestRapidRestartsCoalesce(t *testing.T) {
	var s refresh.Scheduler
	var calls atomic.Int32
	fired := make(chan time.Time, 10)

	var last time.Time
	for i := 0; i < 10; i++ {
		last = time.Now()
		s.Restart(func() {
			calls.Add(1)
			fired <- time.Now()
		}, delay)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case at := <-fired:
		if elapsed := at.Sub(last); elapsed < delay {
			t.Errorf("callback fired %v after last restart, want >= %v", elapsed, delay)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}

	time.Sleep(3 * delay)
	if n := calls.Load(); n != 1 {
		t.Errorf("callback ran %d times, want 1", n)
	}
	if s.Pending() {
		t.Error("scheduler still pending after firing")
	}
}

func TestCancelPreventsCallback(t *testing.T) {
	var s refresh.Scheduler
	var calls atomic.Int32
	s.Restart(func() { calls.Add(1) }, delay)
	if !s.Pending() {
		t.Fatal("expected pending timer")
	}
	s.Cancel()
	if s.Pending() {
		t.Fatal("expected no pending timer after Cancel")
	}

	time.Sleep(3 * delay)
	if n := calls.Load(); n != 0 {
		t.Errorf("callback ran %d times after Cancel", n)
	}
}

func TestCallbackMayRearm(t *testing.T) {
	var s refresh.Scheduler
	var calls atomic.Int32
	done := make(chan struct{})

	var fn func()
	fn = func() {
		if s.Pending() {
			t.Error("pending handle not cleared before callback")
		}
		if calls.Add(1) < 3 {
			s.Restart(fn, time.Millisecond)
			return
		}
		close(done)
	}
	s.Restart(fn, time.Millisecond)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("re-armed callback stopped after %d calls", calls.Load())
	}
}
