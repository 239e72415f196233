// Package progress bounds how often recognition progress reaches the job
// store. Long media can produce thousands of segments; persisting every one
// would hammer the store for updates nobody can see.
package progress

import (
	"math"
	"time"
)

const (
	// setupPercent is reported when the transcribing phase begins, before
	// any segment arrives.
	setupPercent = 5
	// ceilingPercent caps reported progress; the final 5 points belong to
	// the finalize phase so the bar never shows 100 before the job is done.
	ceilingPercent = 95

	defaultPercentStep = 5
	defaultMinStep     = 1
	defaultTimeStep    = 30 * time.Second
)

// SetupPercent is the progress value written at the transcribing phase
// transition.
const SetupPercent = setupPercent

// Throttle rate-limits percent updates derived from segment end times. An
// update is emitted when it advances at least PercentStep points, or when
// TimeStep has elapsed since the last emission and it advances at least one
// point. The emitted sequence is monotonically non-decreasing.
type Throttle struct {
	PercentStep int
	TimeStep    time.Duration

	lastPercent int
	lastEmit    time.Time
	now         func() time.Time
}

// NewThrottle constructs a throttle with the default thresholds, primed so
// the setup percent already counts as reported and the timed window is
// measured from construction.
func NewThrottle() *Throttle {
	return &Throttle{
		PercentStep: defaultPercentStep,
		TimeStep:    defaultTimeStep,
		lastPercent: setupPercent,
		lastEmit:    time.Now(),
		now:         time.Now,
	}
}

// Update maps a segment end time against the total media duration and
// reports whether the resulting percent should be persisted. A non-positive
// total duration (unknown, live content) never emits.
func (t *Throttle) Update(segmentEnd, totalDuration float64) (int, bool) {
	if t == nil || totalDuration <= 0 {
		return 0, false
	}

	pct := int(math.Floor(segmentEnd/totalDuration*90)) + setupPercent
	if pct > ceilingPercent {
		pct = ceilingPercent
	}
	if pct < t.lastPercent {
		return 0, false
	}

	step := pct - t.lastPercent
	if step >= t.PercentStep {
		t.emit(pct)
		return pct, true
	}
	if step >= defaultMinStep && !t.lastEmit.IsZero() && t.now().Sub(t.lastEmit) >= t.TimeStep {
		t.emit(pct)
		return pct, true
	}
	return 0, false
}

func (t *Throttle) emit(pct int) {
	t.lastPercent = pct
	t.lastEmit = t.now()
}
