package drawer

import (
	"sync"
	"time"
)

// ReservationTimer counts down the cart reservation shown in the drawer.
// Restart rearms it; when it runs out onExpire is called on its own goroutine.
type ReservationTimer struct {
	mu       sync.Mutex
	duration time.Duration
	deadline time.Time
	timer    *time.Timer
	onExpire func()
	now      func() time.Time
}

// NewReservationTimer creates a stopped timer.
func NewReservationTimer(d time.Duration, onExpire func()) *ReservationTimer {
	return &ReservationTimer{duration: d, onExpire: onExpire, now: time.Now}
}

// Restart cancels any running countdown and starts a new one.
func (t *ReservationTimer) Restart() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.deadline = t.now().Add(t.duration)

	var fired *time.Timer
	fired = time.AfterFunc(t.duration, func() {
		t.mu.Lock()
		current := t.timer == fired
		if current {
			t.timer = nil
		}
		t.mu.Unlock()
		// A countdown replaced after firing but before taking the lock is stale
		if current {
			t.onExpire()
		}
	})
	t.timer = fired
}

// Stop cancels the countdown. Remaining reports 0 afterwards.
func (t *ReservationTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.deadline = time.Time{}
}

// Remaining returns the time left, 0 when stopped or expired.
func (t *ReservationTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer == nil {
		return 0
	}
	left := t.deadline.Sub(t.now())
	if left < 0 {
		return 0
	}
	return left
}
