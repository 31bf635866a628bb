package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/bodyfit/internal/autocapture"
	"github.com/ayusman/bodyfit/internal/capture"
	"github.com/ayusman/bodyfit/internal/recording"
	"github.com/ayusman/bodyfit/internal/session"
)

// liveTimeout bounds cache writes made from the frame loop.
const liveTimeout = 100 * time.Millisecond

// LiveUpdate is the message pushed to live clients.
type LiveUpdate struct {
	Type    string               `json:"type"`
	Frame   *session.FrameResult `json:"frame,omitempty"`
	Capture *Capture             `json:"capture,omitempty"`
}

// Live update types.
const (
	UpdateFrame   = "frame"
	UpdateCapture = "capture"
)

// run is the frame loop. The activity monitor only throttles the frame
// rate; every frame goes through the session so a subject holding still
// keeps counting down.
func (a *App) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer a.session.Reset()

	interval := time.Second / time.Duration(a.config.IdleFPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := a.config.Camera.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrNoMoreFrames) {
				a.logger.Info("camera playback finished")
				return
			}
			a.logger.Warn("error reading frame", zap.Error(err))
			continue
		}

		now := time.Now()
		active, changed := a.monitor.Observe(frame, now)
		if changed {
			fps := a.config.IdleFPS
			if active {
				fps = a.config.ActiveFPS
			}
			a.config.Camera.SetFPS(fps)
			ticker.Reset(time.Second / time.Duration(fps))
			a.config.Metrics.SetCameraActive(active)
			a.logger.Info("activity changed", zap.Bool("active", active), zap.Int("fps", fps))
		}

		if a.IsEnabled() {
			a.ProcessFrame(frame, now)
		}
		frame.Close()
	}
}

// ProcessFrame runs one camera frame through detection and the measurement
// session, then publishes the result. The frame stays owned by the caller.
func (a *App) ProcessFrame(frame *gocv.Mat, now time.Time) session.FrameResult {
	started := time.Now()
	ts := now.Sub(a.start).Milliseconds()

	detection, err := a.config.Detector.Detect(frame, ts)
	if err != nil {
		a.logger.Warn("pose detection failed", zap.Error(err))
	}

	sf := session.Frame{
		Detection: detection,
		Width:     frame.Cols(),
		Height:    frame.Rows(),
		Luma:      capture.MatLuma{Frame: frame},
	}

	// A capture can only fire while counting down, so only then is the
	// still worth encoding.
	var still []byte
	if a.session.State() == autocapture.Counting {
		if still, err = capture.EncodeStill(frame, capture.DefaultStillQuality); err != nil {
			a.logger.Warn("failed to encode still", zap.Error(err))
		}
		sf.Image = still
	}

	res := a.session.Process(sf)
	a.config.Metrics.ObserveFrame(res, time.Since(started))

	if a.config.Recorder != nil {
		if err := a.config.Recorder.Write(recording.NewFrame(sf)); err != nil {
			a.logger.Warn("failed to record frame", zap.Error(err))
		}
	}

	a.publishPreview(frame, still)
	a.publishFrame(res)

	if res.Captured != nil {
		c := *res.Captured
		a.captures.Add(1)
		go func() {
			defer a.captures.Done()
			a.handleCapture(c)
		}()
	}
	return res
}

func (a *App) publishPreview(frame *gocv.Mat, encoded []byte) {
	if a.config.Preview == nil || !a.config.Preview.Wanted() {
		return
	}
	if encoded == nil {
		var err error
		if encoded, err = capture.EncodeStill(frame, capture.DefaultStillQuality); err != nil {
			return
		}
	}
	a.config.Preview.Publish(encoded)
}

func (a *App) publishFrame(res session.FrameResult) {
	if res.Skipped {
		return
	}
	if a.config.Live != nil {
		if err := a.config.Live.BroadcastJSON(LiveUpdate{Type: UpdateFrame, Frame: &res}); err != nil {
			a.logger.Debug("live broadcast failed", zap.Error(err))
		}
	}
	if a.config.Cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), liveTimeout)
		defer cancel()
		if err := a.config.Cache.SetLive(ctx, res); err != nil {
			a.logger.Debug("live cache write failed", zap.Error(err))
		}
	}
}
