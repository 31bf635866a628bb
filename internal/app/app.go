// Package app wires the camera, pose detector and measurement session into
// the running station.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/bodyfit/internal/capture"
	"github.com/ayusman/bodyfit/internal/emitter"
	"github.com/ayusman/bodyfit/internal/garment"
	"github.com/ayusman/bodyfit/internal/metrics"
	"github.com/ayusman/bodyfit/internal/plugin"
	"github.com/ayusman/bodyfit/internal/pose"
	"github.com/ayusman/bodyfit/internal/recording"
	"github.com/ayusman/bodyfit/internal/session"
	"github.com/ayusman/bodyfit/internal/store"
	"github.com/ayusman/bodyfit/internal/units"
)

// Frame rate defaults.
const (
	// IdleFPS is the frame rate while nobody is in front of the camera.
	IdleFPS = 5
	// ActiveFPS is the frame rate while someone is moving in view.
	ActiveFPS = 15
)

// Broadcaster pushes live updates to connected clients.
type Broadcaster interface {
	BroadcastJSON(v any) error
}

// LiveCache mirrors live state for other processes.
type LiveCache interface {
	SetLive(ctx context.Context, v any) error
	SetLastCapture(ctx context.Context, v any) error
}

// Exporter hands a finished capture to exporter plugins.
type Exporter interface {
	Export(ctx context.Context, c plugin.Capture) []plugin.Result
}

// PreviewSink receives JPEG preview frames when someone is watching.
type PreviewSink interface {
	Wanted() bool
	Publish(jpeg []byte)
}

// Config holds the station's collaborators. Only Session settings, Camera
// and Detector are needed; everything else is optional.
type Config struct {
	Session    session.Config
	StationID  string
	CaptureDir string

	Camera          capture.Camera
	Detector        pose.Detector
	IdleFPS         int
	ActiveFPS       int
	MotionThreshold float64
	IdleTimeout     time.Duration

	Store    *store.Store
	Emitter  emitter.Emitter
	Cache    LiveCache
	Exporter Exporter
	Live     Broadcaster
	Preview  PreviewSink
	Recorder *recording.Writer
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// App is the running station. It implements the session controller used
// by the HTTP API and tray.
type App struct {
	config  Config
	logger  *zap.Logger
	session *session.Session
	monitor *capture.ActivityMonitor
	start   time.Time

	mu        sync.RWMutex
	enabled   bool
	cancel    context.CancelFunc
	done      chan struct{}
	onCapture []func(Capture)
	captures  sync.WaitGroup
}

// New creates the station. Settings saved in the store take precedence
// over cfg.Session.
func New(cfg Config) (*App, error) {
	if cfg.Camera == nil {
		return nil, errors.New("app: camera is required")
	}
	if cfg.Detector == nil {
		return nil, errors.New("app: detector is required")
	}
	if cfg.IdleFPS <= 0 {
		cfg.IdleFPS = IdleFPS
	}
	if cfg.ActiveFPS <= 0 {
		cfg.ActiveFPS = ActiveFPS
	}

	a := &App{
		config:  cfg,
		logger:  cfg.Logger,
		monitor: capture.NewActivityMonitor(cfg.MotionThreshold, cfg.IdleTimeout),
		start:   time.Now(),
		enabled: true,
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}

	settings := a.loadSettings(cfg.Session)
	s, err := session.New(settings, nil)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	a.session = s
	return a, nil
}

// loadSettings overlays saved settings on def. Invalid saved values are
// ignored.
func (a *App) loadSettings(def session.Config) session.Config {
	if a.config.Store == nil {
		return def
	}
	saved, err := a.config.Store.Settings().All()
	if err != nil {
		a.logger.Warn("failed to load saved settings", zap.Error(err))
		return def
	}

	if v, ok := saved[store.SettingGarment]; ok {
		if k, err := garment.Parse(v); err == nil {
			def.Garment = k
		}
	}
	if v, ok := saved[store.SettingUnit]; ok {
		if u, err := units.Parse(v); err == nil {
			def.Unit = u
		}
	}
	if v, ok := saved[store.SettingHeightHint]; ok {
		if cm, err := strconv.ParseFloat(v, 64); err == nil {
			def.HeightHintCm = cm
		}
	}
	return def
}

func (a *App) saveSetting(key, value string) error {
	if a.config.Store == nil {
		return nil
	}
	if err := a.config.Store.Settings().Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Session returns the measurement session.
func (a *App) Session() *session.Session {
	return a.session
}

// Status returns the session status.
func (a *App) Status() session.Status {
	return a.session.Status()
}

// SetGarment switches the garment and remembers the choice.
func (a *App) SetGarment(k garment.Kind) error {
	if err := a.session.SetGarment(k); err != nil {
		return err
	}
	return a.saveSetting(store.SettingGarment, string(k))
}

// SetUnit switches the display unit and remembers the choice.
func (a *App) SetUnit(u units.Unit) error {
	if err := a.session.SetUnit(u); err != nil {
		return err
	}
	return a.saveSetting(store.SettingUnit, string(u))
}

// SetHeightHint sets the subject height used for scale and remembers it.
// Zero clears the hint.
func (a *App) SetHeightHint(cm float64) error {
	if cm < 0 {
		return fmt.Errorf("invalid height %v", cm)
	}
	a.session.SetHeightHint(cm)
	return a.saveSetting(store.SettingHeightHint, strconv.FormatFloat(cm, 'f', -1, 64))
}

// SetEnabled pauses or resumes frame processing.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()
	if !enabled {
		a.session.Reset()
	}
}

// IsEnabled reports whether frames are being processed.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// OnCapture registers fn to run after each capture has been stored and
// published.
func (a *App) OnCapture(fn func(Capture)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onCapture = append(a.onCapture, fn)
}

// Start opens the camera and runs the frame loop until ctx is done or Stop
// is called.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}
	if err := a.config.Camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.config.Camera.SetFPS(a.config.IdleFPS)

	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	go a.run(ctx, a.done)

	a.logger.Info("frame loop started",
		zap.String("garment", string(a.session.Config().Garment)),
		zap.Int("idle_fps", a.config.IdleFPS),
		zap.Int("active_fps", a.config.ActiveFPS),
	)
	return nil
}

// Stop halts the frame loop, waits for in-flight captures, resets the
// session and releases the camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	a.captures.Wait()
	a.session.Reset()

	if err := a.config.Camera.Close(); err != nil {
		a.logger.Warn("error closing camera", zap.Error(err))
	}
	a.monitor.Close()
	if err := a.config.Detector.Close(); err != nil {
		a.logger.Warn("error closing detector", zap.Error(err))
	}
	a.logger.Info("frame loop stopped")
}

// Uptime returns how long the station has been running.
func (a *App) Uptime() time.Duration {
	return time.Since(a.start)
}

// Active reports whether the activity monitor currently sees someone.
func (a *App) Active() bool {
	return a.monitor.Active()
}
