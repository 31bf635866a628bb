// Package autocapture triggers a capture once quality has held long enough.
package autocapture

import "math"

// DefaultDelayMs is how long every quality check must pass continuously
// before a capture fires.
const DefaultDelayMs = 2500

// State is the timer state.
type State string

const (
	Idle     State = "idle"
	Counting State = "counting"
)

// Timer is a debounced capture trigger driven entirely by frame timestamps.
// Countdown and Progress are projections of the same elapsed time that
// Observe uses to decide when to fire.
//
// A Timer is not safe for concurrent use.
type Timer struct {
	thresholdMs int64
	started     bool
	startedAtMs int64
	lastMs      int64
}

// NewTimer creates a timer that fires after thresholdMs of continuous
// all-pass frames. A non-positive threshold uses DefaultDelayMs.
func NewTimer(thresholdMs int64) *Timer {
	if thresholdMs <= 0 {
		thresholdMs = DefaultDelayMs
	}
	return &Timer{thresholdMs: thresholdMs}
}

// Threshold returns the hold time in milliseconds.
func (t *Timer) Threshold() int64 {
	return t.thresholdMs
}

// State returns Idle or Counting.
func (t *Timer) State() State {
	if t.started {
		return Counting
	}
	return Idle
}

// Observe feeds one frame's aggregate quality result. It returns true
// exactly once per continuous all-pass run of at least the threshold, after
// which the timer is Idle again. Any failure discards elapsed time.
func (t *Timer) Observe(nowMs int64, allPassed bool) bool {
	t.lastMs = nowMs
	if !allPassed {
		t.Reset()
		return false
	}
	if !t.started {
		t.started = true
		t.startedAtMs = nowMs
		return false
	}
	if t.elapsed() >= t.thresholdMs {
		t.Reset()
		return true
	}
	return false
}

// Reset returns the timer to Idle.
func (t *Timer) Reset() {
	t.started = false
	t.startedAtMs = 0
}

func (t *Timer) elapsed() int64 {
	if !t.started {
		return 0
	}
	e := t.lastMs - t.startedAtMs
	if e < 0 {
		return 0
	}
	return e
}

// Countdown returns the whole seconds remaining, rounded up. It is zero
// when the timer is Idle.
func (t *Timer) Countdown() int {
	if !t.started {
		return 0
	}
	remaining := t.thresholdMs - t.elapsed()
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(float64(remaining) / 1000))
}

// Progress returns the elapsed share of the threshold in percent, 0–100.
func (t *Timer) Progress() float64 {
	if !t.started {
		return 0
	}
	p := float64(t.elapsed()) / float64(t.thresholdMs) * 100
	return math.Min(100, p)
}
