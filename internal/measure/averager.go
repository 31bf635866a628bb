package measure

import (
	"gonum.org/v1/gonum/stat"
)

// Averager defaults.
const (
	DefaultAveragerCapacity = 5
	DefaultAveragerMinSets  = 3
)

// Averager keeps the most recent measurement sets and blends them into one
// set for live display. It does no throttling of its own; callers decide
// how often to push.
//
// An Averager is not safe for concurrent use.
type Averager struct {
	capacity int
	minSets  int
	buf      []Set
}

// NewAverager creates an averager holding up to capacity sets that produces
// output once it holds at least minSets. Non-positive arguments use the defaults.
func NewAverager(capacity, minSets int) *Averager {
	if capacity <= 0 {
		capacity = DefaultAveragerCapacity
	}
	if minSets <= 0 {
		minSets = DefaultAveragerMinSets
	}
	if minSets > capacity {
		minSets = capacity
	}
	return &Averager{
		capacity: capacity,
		minSets:  minSets,
		buf:      make([]Set, 0, capacity),
	}
}

// Push appends a set, evicting the oldest when the buffer is full.
func (a *Averager) Push(s Set) {
	if len(a.buf) == a.capacity {
		copy(a.buf, a.buf[1:])
		a.buf = a.buf[:len(a.buf)-1]
	}
	a.buf = append(a.buf, s)
}

// Clear drops every buffered set.
func (a *Averager) Clear() {
	a.buf = a.buf[:0]
}

// Len returns the number of buffered sets.
func (a *Averager) Len() int {
	return len(a.buf)
}

// Ready reports whether enough sets are buffered to produce an average.
func (a *Averager) Ready() bool {
	return len(a.buf) >= a.minSets
}

// Average blends the buffered sets. For each kind in the oldest buffered
// set, value and confidence are the arithmetic means over the sets that
// contain that kind. The result is stamped with nowMs and keeps the unit of
// the oldest set's measurement. It returns false until the buffer holds
// enough sets.
func (a *Averager) Average(nowMs int64) (Set, bool) {
	if !a.Ready() {
		return Set{}, false
	}

	first := a.buf[0]
	out := Set{
		Measurements: make([]Measurement, 0, len(first.Measurements)),
		TimestampMs:  nowMs,
	}

	values := make([]float64, 0, len(a.buf))
	confs := make([]float64, 0, len(a.buf))
	for _, ref := range first.Measurements {
		values, confs = values[:0], confs[:0]
		for _, s := range a.buf {
			if m, ok := s.Get(ref.Kind); ok {
				values = append(values, m.ValueCm)
				confs = append(confs, m.Confidence)
			}
		}

		avg := ref
		avg.ValueCm = stat.Mean(values, nil)
		avg.Confidence = stat.Mean(confs, nil)
		avg.TimestampMs = nowMs
		out.Measurements = append(out.Measurements, avg)
	}
	return out, true
}
