package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/bodyfit/internal/app"
	"github.com/ayusman/bodyfit/internal/capture"
	"github.com/ayusman/bodyfit/internal/config"
	"github.com/ayusman/bodyfit/internal/emitter"
	"github.com/ayusman/bodyfit/internal/garment"
	"github.com/ayusman/bodyfit/internal/livecache"
	"github.com/ayusman/bodyfit/internal/logging"
	"github.com/ayusman/bodyfit/internal/metrics"
	"github.com/ayusman/bodyfit/internal/plugin"
	"github.com/ayusman/bodyfit/internal/pose"
	"github.com/ayusman/bodyfit/internal/recording"
	"github.com/ayusman/bodyfit/internal/server"
	"github.com/ayusman/bodyfit/internal/store"
	"github.com/ayusman/bodyfit/internal/tray"
	"github.com/ayusman/bodyfit/internal/units"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	recordPath := flag.String("record", "", "Record pipeline input to this file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bodyfit: %v\n", err)
		os.Exit(1)
	}
	if *recordPath != "" {
		cfg.RecordPath = *recordPath
	}

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bodyfit: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("bodyfit stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting bodyfit", zap.String("station", cfg.StationID), zap.String("data_dir", cfg.DataDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sessionCfg, err := cfg.SessionSettings()
	if err != nil {
		return err
	}

	m := metrics.New(nil)

	sinks := newEmitter(ctx, cfg, m, logger)
	defer sinks.Close()

	var cache *livecache.Cache
	if cfg.Redis.Addr != "" {
		cache, err = livecache.New(ctx, livecache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
			Station:  cfg.StationID,
		})
		if err != nil {
			logger.Warn("live cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	pluginDir := cfg.Plugins.Dir
	if pluginDir == "" {
		pluginDir = filepath.Join(cfg.DataDir, "plugins")
	}
	plugins := plugin.NewManager(pluginDir, logger)
	if err := plugins.Discover(); err != nil {
		logger.Warn("plugin discovery failed", zap.Error(err))
	}
	logger.Info("plugins loaded", zap.String("dir", pluginDir), zap.Int("count", len(plugins.List())))

	var detector pose.Detector
	if mp, err := pose.NewMediaPipeDetector(pose.DefaultConfig(), logger); err == nil {
		detector = mp
		logger.Info("using MediaPipe pose detection")
	} else {
		logger.Warn("MediaPipe not available, using mock detector", zap.Error(err))
		detector = pose.NewMockDetector()
	}

	var recorder *recording.Writer
	if cfg.RecordPath != "" {
		recorder, err = recording.Create(cfg.RecordPath, cfg.Camera.Source)
		if err != nil {
			return fmt.Errorf("create recording: %w", err)
		}
		defer func() {
			logger.Info("recording closed", zap.String("path", cfg.RecordPath), zap.Int("frames", recorder.Frames()))
			recorder.Close()
		}()
	}

	hub := server.NewHub(cfg.Server.AllowedOrigins, logger)
	hub.OnClientsChanged(m.SetLiveClients)
	preview := server.NewPreview()

	stationCfg := app.Config{
		Session:         sessionCfg,
		StationID:       cfg.StationID,
		CaptureDir:      cfg.CaptureDir(),
		Camera:          capture.NewCamera(cfg.Camera.Source),
		Detector:        detector,
		IdleFPS:         cfg.Camera.IdleFPS,
		ActiveFPS:       cfg.Camera.ActiveFPS,
		MotionThreshold: cfg.Camera.MotionThreshold,
		IdleTimeout:     cfg.Camera.IdleTimeout,
		Store:           st,
		Exporter:        plugin.NewDispatcher(plugins, plugin.NewExecutor(cfg.Plugins.Timeout), logger),
		Live:            hub,
		Preview:         preview,
		Recorder:        recorder,
		Metrics:         m,
		Logger:          logger,
	}
	if sinks.Len() > 0 {
		stationCfg.Emitter = sinks
	}
	if cache != nil {
		stationCfg.Cache = cache
	}

	station, err := app.New(stationCfg)
	if err != nil {
		return err
	}

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		logger.Info("serving static files", zap.String("dir", staticDir))
	}

	srv := server.New(server.Config{
		StaticDir:      staticDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Store:          st,
		Session:        station,
		Hub:            hub,
		Preview:        preview,
		Metrics:        m,
		Logger:         logger,
		Health: func() map[string]any {
			return map[string]any{
				"station_id":    cfg.StationID,
				"enabled":       station.IsEnabled(),
				"camera_active": station.Active(),
				"plugins":       len(plugins.List()),
			}
		},
	})

	if err := station.Start(ctx); err != nil {
		// The API stays up so captures can still be browsed.
		logger.Error("camera unavailable", zap.String("source", cfg.Camera.Source), zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.Server.Addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	wait := func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		case runErr = <-errCh:
			if runErr != nil {
				runErr = fmt.Errorf("http server: %w", runErr)
			}
		case <-ctx.Done():
		}
	}

	if cfg.Tray.Enabled {
		t := newTray(station, cfg.Server.Addr, cancel, logger)
		go func() {
			wait()
			t.Quit()
		}()
		t.Run()
	} else {
		wait()
	}

	logger.Info("shutting down gracefully", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	station.Stop()

	logger.Info("bodyfit stopped")
	return runErr
}

// newEmitter builds the capture event sinks that are configured.
func newEmitter(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *emitter.Multi {
	var sinks []emitter.Emitter

	if len(cfg.Kafka.Brokers) > 0 {
		sinks = append(sinks, emitter.NewKafkaEmitter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		logger.Info("kafka emitter enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	if cfg.MQTT.Broker != "" {
		mq := emitter.NewMQTTEmitter(emitter.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
		}, logger)
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := mq.Connect(connectCtx); err != nil {
			// Auto-reconnect keeps trying in the background.
			logger.Warn("mqtt broker not reachable yet", zap.String("broker", cfg.MQTT.Broker), zap.Error(err))
		}
		cancel()
		sinks = append(sinks, mq)
	}

	return emitter.NewMulti(logger, func(sink string, err error) {
		m.EmitFailed(sink)
	}, sinks...)
}

// newTray builds the tray menu bound to the station.
func newTray(station *app.App, addr string, quit func(), logger *zap.Logger) *tray.Tray {
	status := station.Status()
	t := tray.New(status.Garment, status.Unit)

	t.OnToggle(station.SetEnabled)
	t.OnGarment(func(k garment.Kind) {
		if err := station.SetGarment(k); err != nil {
			logger.Warn("failed to switch garment", zap.Error(err))
		}
	})
	t.OnUnit(func(u units.Unit) {
		if err := station.SetUnit(u); err != nil {
			logger.Warn("failed to switch unit", zap.Error(err))
		}
	})
	t.OnSettings(func() {
		if err := openBrowser(settingsURL(addr)); err != nil {
			logger.Warn("failed to open browser", zap.Error(err))
		}
	})
	t.OnQuit(quit)

	station.OnCapture(func(c app.Capture) {
		t.SetLastCapture(fmt.Sprintf("%s %s", c.Garment, c.CapturedAt.Local().Format("15:04")))
	})
	return t
}

func settingsURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
