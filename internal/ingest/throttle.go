package ingest

import (
	"sync"
	"time"
)

// Throttle caps event processing to a target frequency by dropping events
// that arrive sooner than one interval after the last accepted one. It
// never queues: an event is either accepted now or gone.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewThrottle creates a throttle for the given target rate. A rate of zero
// or below disables throttling.
func NewThrottle(targetRateHz float64) *Throttle {
	t := &Throttle{}
	t.SetRate(targetRateHz)
	return t
}

// SetRate changes the target rate without resetting the acceptance clock.
func (t *Throttle) SetRate(targetRateHz float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if targetRateHz <= 0 {
		t.interval = 0
		return
	}
	t.interval = time.Duration(float64(time.Second) / targetRateHz)
}

// Allow reports whether an event arriving at now should be accepted, and
// advances the acceptance clock when it is. The first event is always
// accepted.
func (t *Throttle) Allow(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.interval > 0 && !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
