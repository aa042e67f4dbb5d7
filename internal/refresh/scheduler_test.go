package refresh

import (
	"sync/atomic"
	"testing"
	"time"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) afterFunc(d time.Duration, f func()) stopper {
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) live() int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// fireLast runs the newest timer's callback as if it had expired.
func (c *fakeClock) fireLast() {
	t := c.timers[len(c.timers)-1]
	t.stopped = true
	t.f()
}

func newTestScheduler(fire func()) (*Scheduler, *fakeClock) {
	clock := &fakeClock{}
	s := New(time.Minute, fire)
	s.afterFunc = clock.afterFunc
	return s, clock
}

func TestScheduler_DisabledByDefault(t *testing.T) {
	s, clock := newTestScheduler(func() {})
	if s.Enabled() || s.Pending() {
		t.Error("new scheduler should be idle")
	}
	if len(clock.timers) != 0 {
		t.Errorf("timers = %d, want 0", len(clock.timers))
	}
}

func TestScheduler_EnableSchedulesOnce(t *testing.T) {
	s, clock := newTestScheduler(func() {})
	s.SetEnabled(true)
	s.SetEnabled(true)
	s.SetVisible(true)
	if len(clock.timers) != 1 {
		t.Fatalf("timers = %d, want 1", len(clock.timers))
	}
	if clock.timers[0].d != time.Minute {
		t.Errorf("interval = %v, want 1m", clock.timers[0].d)
	}
}

func TestScheduler_DisableCancels(t *testing.T) {
	s, clock := newTestScheduler(func() {})
	s.SetEnabled(true)
	s.SetEnabled(false)
	if s.Pending() {
		t.Error("Pending after disable")
	}
	if clock.live() != 0 {
		t.Errorf("live timers = %d, want 0", clock.live())
	}
}

func TestScheduler_FireAndReschedule(t *testing.T) {
	var fired int32
	s, clock := newTestScheduler(func() { atomic.AddInt32(&fired, 1) })
	s.SetEnabled(true)

	clock.fireLast()
	clock.fireLast()
	if got := atomic.LoadInt32(&fired); got != 2 {
		t.Errorf("fired = %d, want 2", got)
	}
	if clock.live() != 1 {
		t.Errorf("live timers = %d, want 1", clock.live())
	}
}

func TestScheduler_HiddenSkipsButKeepsTicking(t *testing.T) {
	var fired int32
	s, clock := newTestScheduler(func() { atomic.AddInt32(&fired, 1) })
	s.SetEnabled(true)
	s.SetVisible(false)

	clock.fireLast()
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Errorf("fired while hidden = %d, want 0", got)
	}
	if !s.Pending() {
		t.Error("expected rescheduled timer while hidden")
	}

	s.SetVisible(true)
	if clock.live() != 1 {
		t.Errorf("live timers = %d, want 1", clock.live())
	}
	clock.fireLast()
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Errorf("fired = %d, want 1", got)
	}
}

func TestScheduler_StaleFiringIgnored(t *testing.T) {
	var fired int32
	s, clock := newTestScheduler(func() { atomic.AddInt32(&fired, 1) })
	s.SetEnabled(true)
	stale := clock.timers[0]
	s.SetEnabled(false)
	s.SetEnabled(true)

	// The first timer's callback races with Stop and runs anyway.
	stale.f()
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Errorf("stale timer fired callback %d times", got)
	}
	if clock.live() != 1 {
		t.Errorf("live timers = %d, want 1", clock.live())
	}
}

func TestScheduler_Stop(t *testing.T) {
	s, clock := newTestScheduler(func() {})
	s.SetEnabled(true)
	s.Stop()
	s.SetEnabled(true)
	if s.Pending() || clock.live() != 0 {
		t.Error("scheduler rescheduled after Stop")
	}
}

func TestScheduler_RealTimer(t *testing.T) {
	done := make(chan struct{}, 1)
	s := New(10*time.Millisecond, func() {
		select {
		case done <- struct{}{}:
		default:
		}
	})
	s.SetEnabled(true)
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestNew_DefaultInterval(t *testing.T) {
	s := New(0, func() {})
	if s.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", s.interval, DefaultInterval)
	}
}
