package progress

import (
	"testing"
	"time"
)

func newTestThrottle(clock *fakeClock) *Throttle {
	t := NewThrottle()
	t.now = clock.Now
	t.lastEmit = clock.Now()
	return t
}

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time { return c.current }

func (c *fakeClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

func TestThrottleUnknownDurationNeverEmits(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	th := newTestThrottle(clock)

	for _, total := range []float64{0, -10} {
		for end := 0.0; end < 1000; end += 50 {
			if pct, ok := th.Update(end, total); ok {
				t.Fatalf("Update(%v, %v) emitted %d", end, total, pct)
			}
		}
	}
}

func TestThrottlePercentStep(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	th := newTestThrottle(clock)

	// 100s media: 90-point span means each second is 0.9 points above the
	// 5-point setup floor.
	if _, ok := th.Update(2, 100); ok {
		t.Error("2s into 100s is below the 5-point step")
	}
	pct, ok := th.Update(6, 100)
	if !ok || pct != 10 {
		t.Errorf("Update(6, 100) = %d, %v, want 10, true", pct, ok)
	}
	if _, ok := th.Update(7, 100); ok {
		t.Error("one further second should be suppressed")
	}
	pct, ok = th.Update(12, 100)
	if !ok || pct != 15 {
		t.Errorf("Update(12, 100) = %d, %v, want 15, true", pct, ok)
	}
}

func TestThrottleTimeStep(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	th := newTestThrottle(clock)

	if _, ok := th.Update(1, 1000); ok {
		t.Fatal("first tiny advance should be suppressed")
	}
	clock.Advance(31 * time.Second)
	// 5% + floor(20/1000*90) = 6: only a single point gained, but 30s have
	// elapsed since the setup percent was reported.
	pct, ok := th.Update(20, 1000)
	if !ok || pct != 6 {
		t.Errorf("timed update = %d, %v, want 6, true", pct, ok)
	}
	clock.Advance(31 * time.Second)
	if _, ok := th.Update(21, 1000); ok {
		t.Error("zero-point advance must not emit even after the time step")
	}
}

func TestThrottleTimeStepCountsFromConstruction(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	th := newTestThrottle(clock)

	// No updates arrive during the first window. The very first call after
	// it elapses carries a single point and must emit immediately rather
	// than wait another window.
	clock.Advance(31 * time.Second)
	pct, ok := th.Update(20, 1000)
	if !ok || pct != 6 {
		t.Errorf("first update after quiet window = %d, %v, want 6, true", pct, ok)
	}
}

func TestThrottleMonotonic(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	th := newTestThrottle(clock)

	last := SetupPercent
	for end := 0.0; end <= 4000; end += 7 {
		clock.Advance(3 * time.Second)
		pct, ok := th.Update(end, 3600)
		if !ok {
			continue
		}
		if pct < last {
			t.Fatalf("emitted %d after %d", pct, last)
		}
		last = pct
	}
	if last != 95 {
		t.Errorf("final emitted percent = %d, want 95", last)
	}
}

func TestThrottleCeiling(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	th := newTestThrottle(clock)

	pct, ok := th.Update(5000, 100)
	if !ok || pct != 95 {
		t.Errorf("Update past end = %d, %v, want clamp to 95", pct, ok)
	}
}

func TestThrottleNil(t *testing.T) {
	var th *Throttle
	if _, ok := th.Update(10, 100); ok {
		t.Error("nil throttle must not emit")
	}
}
