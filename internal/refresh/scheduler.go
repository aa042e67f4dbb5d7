// Package refresh runs the auto-refresh timer.
package refresh

import (
	"sync"
	"time"
)

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = 60 * time.Second

// Scheduler fires a callback at a fixed interval while it is both enabled and
// visible. At most one timer is ever pending.
type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	fire     func()
	enabled  bool
	visible  bool
	pending  stopper
	gen      uint64
	stopped  bool

	afterFunc func(time.Duration, func()) stopper
}

type stopper interface {
	Stop() bool
}

func afterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// New creates a disabled, visible scheduler.
func New(interval time.Duration, fire func()) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval:  interval,
		fire:      fire,
		visible:   true,
		afterFunc: afterFunc,
	}
}

// SetEnabled turns auto-refresh on or off. Enabling schedules a firing only
// if none is pending; disabling cancels the pending one.
func (s *Scheduler) SetEnabled(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = on
	if on {
		s.scheduleLocked()
	} else {
		s.cancelLocked()
	}
}

// SetVisible records page visibility. A hidden page keeps its pending timer
// but the firing is skipped.
func (s *Scheduler) SetVisible(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = v
	if v && s.enabled {
		s.scheduleLocked()
	}
}

// Enabled reports whether auto-refresh is on.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Pending reports whether a firing is scheduled.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Stop cancels the pending firing and prevents new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.cancelLocked()
}

func (s *Scheduler) scheduleLocked() {
	if s.pending != nil || s.stopped {
		return
	}
	s.gen++
	gen := s.gen
	s.pending = s.afterFunc(s.interval, func() { s.tick(gen) })
}

func (s *Scheduler) cancelLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	if s.pending == nil || s.gen != gen {
		// Cancelled or superseded after the timer already fired.
		s.mu.Unlock()
		return
	}
	s.pending = nil
	run := s.enabled && s.visible
	if s.enabled {
		s.scheduleLocked()
	}
	s.mu.Unlock()

	if run {
		s.fire()
	}
}
