package quality

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/bodyfit/internal/pose"
)

// Stability defaults.
const (
	DefaultStabilityWindowMs = 1000
	DefaultMinSamples        = 15
	DefaultMaxJitterPx       = 15.0
)

// stabilityLandmarks are the central, rarely occluded joints whose jitter
// stands in for whole-body motion.
var stabilityLandmarks = [...]int{
	pose.Nose,
	pose.LeftShoulder,
	pose.RightShoulder,
	pose.LeftHip,
	pose.RightHip,
}

type stabilitySample struct {
	timestampMs int64
	points      [len(stabilityLandmarks)]pose.Landmark
	present     [len(stabilityLandmarks)]bool
}

// StabilityTracker keeps a time-bounded history of key landmark positions
// and judges whether the subject is holding still.
//
// A StabilityTracker is not safe for concurrent use.
type StabilityTracker struct {
	windowMs    int64
	minSamples  int
	maxJitterPx float64
	history     []stabilitySample
}

// NewStabilityTracker creates a tracker with the default window, sample
// floor and jitter ceiling.
func NewStabilityTracker() *StabilityTracker {
	return &StabilityTracker{
		windowMs:    DefaultStabilityWindowMs,
		minSamples:  DefaultMinSamples,
		maxJitterPx: DefaultMaxJitterPx,
	}
}

// Reset discards the history.
func (t *StabilityTracker) Reset() {
	t.history = t.history[:0]
}

// Len returns the number of samples in the window.
func (t *StabilityTracker) Len() int {
	return len(t.history)
}

// Update records the snapshot, evicts samples older than the window and
// returns the stability verdict for a frame of width × height pixels.
//
// Until the window holds enough samples the check is pending: not passed,
// with Info severity.
func (t *StabilityTracker) Update(snap *pose.Snapshot, width, height int) Check {
	if snap == nil {
		return t.verdict(width, height)
	}

	// A timestamp going backwards means a new stream; old samples no longer apply.
	if n := len(t.history); n > 0 && snap.TimestampMs < t.history[n-1].timestampMs {
		t.Reset()
	}

	s := stabilitySample{timestampMs: snap.TimestampMs}
	for k, idx := range stabilityLandmarks {
		s.points[k], s.present[k] = snap.At(idx)
	}
	t.history = append(t.history, s)

	cutoff := snap.TimestampMs - t.windowMs
	drop := 0
	for drop < len(t.history) && t.history[drop].timestampMs < cutoff {
		drop++
	}
	if drop > 0 {
		t.history = append(t.history[:0], t.history[drop:]...)
	}

	return t.verdict(width, height)
}

func (t *StabilityTracker) verdict(width, height int) Check {
	if len(t.history) < t.minSamples {
		return Check{Passed: false, Message: "Hold still…", Severity: Info}
	}
	jitter, ok := t.Jitter(width, height)
	if !ok {
		return Check{Passed: false, Message: "Hold still…", Severity: Info}
	}
	if jitter > t.maxJitterPx {
		return warn("Too much movement")
	}
	return pass("Stable pose")
}

// Jitter returns the mean pixel-space jitter of the key landmarks over the
// window. For each landmark it is sqrt(varX·W² + varY·H²) using population
// variance. Landmarks seen in fewer than two samples are skipped; it returns
// false when none remain.
func (t *StabilityTracker) Jitter(width, height int) (float64, bool) {
	w2 := float64(width) * float64(width)
	h2 := float64(height) * float64(height)

	xs := make([]float64, 0, len(t.history))
	ys := make([]float64, 0, len(t.history))
	var total float64
	var counted int
	for k := range stabilityLandmarks {
		xs, ys = xs[:0], ys[:0]
		for _, s := range t.history {
			if s.present[k] {
				xs = append(xs, s.points[k].X)
				ys = append(ys, s.points[k].Y)
			}
		}
		if len(xs) < 2 {
			continue
		}
		total += math.Sqrt(stat.PopVariance(xs, nil)*w2 + stat.PopVariance(ys, nil)*h2)
		counted++
	}
	if counted == 0 {
		return 0, false
	}
	return total / float64(counted), true
}
