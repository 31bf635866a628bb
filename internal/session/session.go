// Package session runs the per-frame measurement pipeline for one station.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/bodyfit/internal/autocapture"
	"github.com/ayusman/bodyfit/internal/garment"
	"github.com/ayusman/bodyfit/internal/measure"
	"github.com/ayusman/bodyfit/internal/pose"
	"github.com/ayusman/bodyfit/internal/quality"
	"github.com/ayusman/bodyfit/internal/units"
)

// DefaultAveragerIntervalMs is the minimum spacing between sets fed to the
// live averager (2 Hz).
const DefaultAveragerIntervalMs = 500

// Config holds session settings.
type Config struct {
	Garment            garment.Kind
	Unit               units.Unit
	HeightHintCm       float64
	CaptureDelayMs     int64
	AveragerIntervalMs int64
}

// DefaultConfig returns a shirt session in centimeters.
func DefaultConfig() Config {
	return Config{
		Garment:            garment.Shirt,
		Unit:               units.Cm,
		CaptureDelayMs:     autocapture.DefaultDelayMs,
		AveragerIntervalMs: DefaultAveragerIntervalMs,
	}
}

// Frame is one video frame's input to the pipeline.
type Frame struct {
	Detection pose.Detection
	Width     int
	Height    int
	Luma      quality.LumaSource
	// Image is an opaque handle passed through to the capture, such as an
	// encoded still.
	Image []byte
}

// Capture is a finalized measurement taken when quality held long enough.
type Capture struct {
	ID           string       `json:"id"`
	Garment      garment.Kind `json:"garment"`
	Unit         units.Unit   `json:"unit"`
	HeightHintCm float64      `json:"height_hint_cm,omitempty"`
	Measurements measure.Set  `json:"measurements"`
	Image        []byte       `json:"-"`
	TimestampMs  int64        `json:"timestamp_ms"`
	CapturedAt   time.Time    `json:"captured_at"`
}

// Handler receives captures. It runs on its own goroutine and may block.
type Handler func(Capture)

// noPoseMessage is shown for frames where no person was detected.
const noPoseMessage = "Step into frame"

// FrameResult is the pipeline output for one frame. Message is the guidance
// to show, taken from the most severe failing check; it is empty when every
// check passed.
type FrameResult struct {
	// Skipped is set for frames without a detected pose. Nothing is
	// measured for them and the capture timer goes back to idle.
	Skipped     bool              `json:"skipped"`
	TimestampMs int64             `json:"timestamp_ms"`
	Quality     quality.Result    `json:"quality"`
	AllPassed   bool              `json:"all_passed"`
	Message     string            `json:"message,omitempty"`
	State       autocapture.State `json:"state"`
	Countdown   int               `json:"countdown"`
	Progress    float64           `json:"progress"`
	Instant     measure.Set       `json:"instant"`
	Live        *measure.Set      `json:"live,omitempty"`
	Captured    *Capture          `json:"captured,omitempty"`
}

// Status is a point-in-time view of session settings and capture progress.
type Status struct {
	Garment      garment.Kind      `json:"garment"`
	Unit         units.Unit        `json:"unit"`
	HeightHintCm float64           `json:"height_hint_cm"`
	ReferenceCm  float64           `json:"reference_cm"`
	State        autocapture.State `json:"state"`
	Countdown    int               `json:"countdown"`
	Progress     float64           `json:"progress"`
}

// Session owns all per-session pipeline state: stability history, averaging
// buffer and capture timer. It is safe for concurrent use; Process calls are
// serialized.
type Session struct {
	mu sync.Mutex

	cfg       Config
	profile   garment.Profile
	engine    *measure.Engine
	evaluator *quality.Evaluator
	timer     *autocapture.Timer
	averager  *measure.Averager

	lastPushMs int64
	pushed     bool

	handler Handler
	now     func() time.Time
}

// New creates a session. handler may be nil.
func New(cfg Config, handler Handler) (*Session, error) {
	def := DefaultConfig()
	if cfg.Garment == "" {
		cfg.Garment = def.Garment
	}
	if cfg.Unit == "" {
		cfg.Unit = def.Unit
	}
	if cfg.AveragerIntervalMs <= 0 {
		cfg.AveragerIntervalMs = def.AveragerIntervalMs
	}
	if !cfg.Unit.Valid() {
		return nil, fmt.Errorf("invalid unit %q", cfg.Unit)
	}
	profile, ok := garment.Lookup(cfg.Garment)
	if !ok {
		return nil, fmt.Errorf("unknown garment %q", cfg.Garment)
	}

	return &Session{
		cfg:       cfg,
		profile:   profile,
		engine:    measure.NewEngine(cfg.HeightHintCm),
		evaluator: quality.NewEvaluator(profile),
		timer:     autocapture.NewTimer(cfg.CaptureDelayMs),
		averager:  measure.NewAverager(measure.DefaultAveragerCapacity, measure.DefaultAveragerMinSets),
		handler:   handler,
		now:       time.Now,
	}, nil
}

// Process runs one frame through the pipeline.
func (s *Session) Process(f Frame) FrameResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := pose.Ingest(f.Detection)
	if !ok {
		// No pose means the frame cannot pass, so the hold starts over.
		s.timer.Reset()
		return FrameResult{
			Skipped:     true,
			TimestampMs: f.Detection.TimestampMs,
			Message:     noPoseMessage,
			State:       s.timer.State(),
			Countdown:   s.timer.Countdown(),
			Progress:    s.timer.Progress(),
		}
	}
	ts := snap.TimestampMs

	q := s.evaluator.Evaluate(snap, f.Width, f.Height, f.Luma)
	instant := s.engine.Compute(snap, f.Width, f.Height, s.profile.Measurements)

	switch {
	case q.Stability.Passed:
		if instant.Len() > 0 && (!s.pushed || ts-s.lastPushMs >= s.cfg.AveragerIntervalMs) {
			s.averager.Push(instant)
			s.lastPushMs = ts
			s.pushed = true
		}
	case q.Stability.Failed():
		s.clearAverager()
	}

	allPassed := q.AllPassed()
	res := FrameResult{
		TimestampMs: ts,
		Quality:     q,
		AllPassed:   allPassed,
		Instant:     instant.WithUnit(s.cfg.Unit),
	}
	if c, failed := q.FirstFailure(); failed {
		res.Message = c.Message
	}

	if s.timer.Observe(ts, allPassed) && instant.Len() > 0 {
		c := Capture{
			ID:           uuid.New().String(),
			Garment:      s.profile.Kind,
			Unit:         s.cfg.Unit,
			HeightHintCm: s.cfg.HeightHintCm,
			Measurements: instant.WithUnit(s.cfg.Unit),
			Image:        f.Image,
			TimestampMs:  ts,
			CapturedAt:   s.now().UTC(),
		}
		res.Captured = &c
		if s.handler != nil {
			go s.handler(c)
		}
	}

	res.State = s.timer.State()
	res.Countdown = s.timer.Countdown()
	res.Progress = s.timer.Progress()

	if live, ok := s.averager.Average(ts); ok {
		live = live.WithUnit(s.cfg.Unit)
		res.Live = &live
	}
	return res
}

// State returns the capture timer state. Callers use it to decide whether
// the next frame needs an encoded still.
func (s *Session) State() autocapture.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer.State()
}

// Status returns the current settings and capture progress.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Garment:      s.profile.Kind,
		Unit:         s.cfg.Unit,
		HeightHintCm: s.cfg.HeightHintCm,
		ReferenceCm:  s.engine.ReferenceCm(),
		State:        s.timer.State(),
		Countdown:    s.timer.Countdown(),
		Progress:     s.timer.Progress(),
	}
}

// Config returns the session settings.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetGarment switches garment type and resets all pipeline state.
func (s *Session) SetGarment(k garment.Kind) error {
	profile, ok := garment.Lookup(k)
	if !ok {
		return fmt.Errorf("unknown garment %q", k)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Garment = k
	s.profile = profile
	s.evaluator.SetProfile(profile)
	s.resetLocked()
	return nil
}

// SetUnit changes the display unit. Buffered measurements stay valid since
// they are held in centimeters.
func (s *Session) SetUnit(u units.Unit) error {
	if !u.Valid() {
		return fmt.Errorf("invalid unit %q", u)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Unit = u
	return nil
}

// SetHeightHint recalibrates the scale reference and resets pipeline state,
// since buffered sets were computed against the old reference.
func (s *Session) SetHeightHint(cm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.HeightHintCm = cm
	s.engine = measure.NewEngine(cm)
	s.resetLocked()
}

// Reset clears stability history, the averaging buffer and the capture timer.
// Call it when the frame source stops.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.evaluator.Reset()
	s.timer.Reset()
	s.clearAverager()
}

func (s *Session) clearAverager() {
	s.averager.Clear()
	s.pushed = false
	s.lastPushMs = 0
}
