package session

import (
	"sync"
	"time"
)

// IdleTimer is the idle supervisor: a restartable countdown that fires its
// expiry callback at most once per Start/Reset cycle. Any meaningful user
// activity resets it so an actively transacting user is never interrupted,
// while an abandoned kiosk session reliably times out.
//
// Displayed countdowns must be derived from Remaining(), never from a
// separately maintained counter; the deadline held here is authoritative.
type IdleTimer struct {
	mu       sync.Mutex
	duration time.Duration
	deadline time.Time
	timer    *time.Timer
	running  bool
	gen      int // invalidates stale timer fires across Start/Reset
	onExpire func()
}

// NewIdleTimer creates a new IdleTimer. onExpire is called from a timer
// goroutine when the deadline is reached without an intervening Reset.
func NewIdleTimer(onExpire func()) *IdleTimer {
	return &IdleTimer{onExpire: onExpire}
}

// Start arms the timer with the given duration, replacing any previous cycle
func (t *IdleTimer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.duration = d
	t.deadline = time.Now().Add(d)
	t.running = true
	t.timer = time.AfterFunc(d, func() { t.expire(gen) })
}

// Reset pushes the deadline to now+duration. It is a no-op after expiry or
// before Start: an expired supervisor is inert until explicitly restarted.
func (t *IdleTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.timer.Stop()
	t.gen++
	gen := t.gen
	t.deadline = time.Now().Add(t.duration)
	t.timer = time.AfterFunc(t.duration, func() { t.expire(gen) })
}

// Remaining returns the time left until expiry, clamped to zero
func (t *IdleTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return 0
	}
	rem := time.Until(t.deadline)
	if rem < 0 {
		return 0
	}
	return rem
}

// Stop cancels the timer without firing the expiry callback
func (t *IdleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	t.running = false
}

func (t *IdleTimer) expire(gen int) {
	t.mu.Lock()
	if !t.running || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.running = false
	cb := t.onExpire
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}
