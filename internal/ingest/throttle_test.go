package ingest

import (
	"testing"
	"time"
)

func TestThrottleFirstEventAccepted(t *testing.T) {
	th := NewThrottle(10)
	if !th.Allow(time.Now()) {
		t.Error("first event was dropped")
	}
}

func TestThrottleBurstWithinInterval(t *testing.T) {
	// Target 10 Hz, events arriving at 3x that rate: of three frames
	// inside one interval exactly one is accepted, and the next frame
	// after the interval elapses is accepted again.
	th := NewThrottle(10)
	base := time.Now()

	arrivals := []struct {
		offset time.Duration
		want   bool
	}{
		{0, true},
		{33 * time.Millisecond, false},
		{66 * time.Millisecond, false},
		{105 * time.Millisecond, true},
	}

	for i, a := range arrivals {
		if got := th.Allow(base.Add(a.offset)); got != a.want {
			t.Errorf("event %d at +%v: Allow = %v, want %v", i, a.offset, got, a.want)
		}
	}
}

func TestThrottleAcceptanceBound(t *testing.T) {
	// A source firing at 100 Hz for one second against a 5 Hz target
	// must forward at most floor(T*rate)+1 = 6 frames.
	const targetRateHz = 5.0
	th := NewThrottle(targetRateHz)
	base := time.Now()

	accepted := 0
	for off := time.Duration(0); off < time.Second; off += 10 * time.Millisecond {
		if th.Allow(base.Add(off)) {
			accepted++
		}
	}

	if accepted > 6 {
		t.Errorf("accepted %d frames, want at most 6", accepted)
	}
	if accepted == 0 {
		t.Error("no frames accepted")
	}
}

func TestThrottleDisabled(t *testing.T) {
	th := NewThrottle(0)
	base := time.Now()

	for i := 0; i < 5; i++ {
		if !th.Allow(base.Add(time.Duration(i) * time.Microsecond)) {
			t.Fatalf("event %d dropped with throttling disabled", i)
		}
	}
}

func TestThrottleSetRateKeepsClock(t *testing.T) {
	th := NewThrottle(1) // 1s interval
	base := time.Now()

	if !th.Allow(base) {
		t.Fatal("first event dropped")
	}

	th.SetRate(100) // 10ms interval

	if th.Allow(base.Add(5 * time.Millisecond)) {
		t.Error("event inside the new interval was accepted")
	}
	if !th.Allow(base.Add(20 * time.Millisecond)) {
		t.Error("event past the new interval was dropped")
	}
}
