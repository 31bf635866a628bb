package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame differencing constants.
const (
	// BlurKernel is the Gaussian blur kernel size applied before differencing.
	BlurKernel = 21
	// PixelDiffThreshold is the per-pixel gray-level change counted as motion.
	PixelDiffThreshold = 25
	// DefaultMotionThreshold is the share of changed pixels, in percent,
	// that counts as activity in front of the station.
	DefaultMotionThreshold = 1.0
	// DefaultIdleTimeout is how long the station stays active after the
	// last detected motion.
	DefaultIdleTimeout = 5 * time.Second
)

// ActivityMonitor decides whether someone is in front of the station by
// differencing consecutive blurred gray frames. Once motion is seen it
// reports active until IdleTimeout passes without further motion, so a
// subject holding still for a capture keeps the station active.
type ActivityMonitor struct {
	threshold   float64
	idleTimeout time.Duration
	prevGray    gocv.Mat
	initialized bool
	active      bool
	lastMotion  time.Time
	mu          sync.Mutex
}

// NewActivityMonitor creates a monitor. Non-positive arguments use the defaults.
func NewActivityMonitor(threshold float64, idleTimeout time.Duration) *ActivityMonitor {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &ActivityMonitor{
		threshold:   threshold,
		idleTimeout: idleTimeout,
		prevGray:    gocv.NewMat(),
	}
}

// ChangePercent returns the percentage of pixels that changed since the
// previous frame. The first frame only sets the baseline and returns 0.
func (m *ActivityMonitor) ChangePercent(frame *gocv.Mat) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changePercent(frame)
}

func (m *ActivityMonitor) changePercent(frame *gocv.Mat) float64 {
	if frame == nil || frame.Empty() {
		return 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: BlurKernel, Y: BlurKernel}, 0, 0, gocv.BorderDefault)

	if !m.initialized || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, PixelDiffThreshold, 255, gocv.ThresholdBinary)

	changed := gocv.CountNonZero(thresh)
	total := thresh.Rows() * thresh.Cols()

	blurred.CopyTo(&m.prevGray)
	return float64(changed) / float64(total) * 100.0
}

// Observe feeds a frame seen at now and reports whether the station should
// be active, plus whether this frame changed the active state.
func (m *ActivityMonitor) Observe(frame *gocv.Mat, now time.Time) (active, changed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	was := m.active
	if m.changePercent(frame) > m.threshold {
		m.lastMotion = now
		m.active = true
	} else if m.active && now.Sub(m.lastMotion) > m.idleTimeout {
		m.active = false
	}
	return m.active, m.active != was
}

// Active reports the current state without consuming a frame.
func (m *ActivityMonitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Reset forgets the baseline frame and returns to idle.
func (m *ActivityMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *ActivityMonitor) resetLocked() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
	m.active = false
}

// Close releases the baseline frame.
func (m *ActivityMonitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// SetThreshold ignores values less than or equal to 0.
func (m *ActivityMonitor) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}
