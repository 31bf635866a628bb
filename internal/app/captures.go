package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/bodyfit/internal/emitter"
	"github.com/ayusman/bodyfit/internal/plugin"
	"github.com/ayusman/bodyfit/internal/session"
	"github.com/ayusman/bodyfit/internal/store"
)

// captureTimeout bounds everything done with one capture after it fires.
const captureTimeout = 30 * time.Second

// Capture is a finished capture together with where its still was saved.
type Capture struct {
	session.Capture
	ImagePath string          `json:"image_path,omitempty"`
	Exports   []plugin.Result `json:"exports,omitempty"`
}

// handleCapture saves, publishes and exports one capture. Each step is
// independent; a failing step is logged and the rest still run.
func (a *App) handleCapture(c session.Capture) {
	ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
	defer cancel()

	logger := a.logger.With(zap.String("capture_id", c.ID), zap.String("garment", string(c.Garment)))
	logger.Info("capture taken",
		zap.Int("measurements", c.Measurements.Len()),
		zap.Float64("min_confidence", c.Measurements.MinConfidence()),
	)
	a.config.Metrics.CaptureTaken(string(c.Garment))

	out := Capture{Capture: c}

	if len(c.Image) > 0 && a.config.CaptureDir != "" {
		path, err := a.saveStill(c)
		if err != nil {
			logger.Warn("failed to save still", zap.Error(err))
		} else {
			out.ImagePath = path
		}
	}

	if a.config.Store != nil {
		if err := a.config.Store.Captures().Create(toStoreCapture(out)); err != nil {
			logger.Error("failed to store capture", zap.Error(err))
		}
	}

	if a.config.Emitter != nil {
		event := emitter.Event{
			Capture:       c,
			StationID:     a.config.StationID,
			ImagePath:     out.ImagePath,
			MinConfidence: c.Measurements.MinConfidence(),
		}
		if err := a.config.Emitter.Emit(ctx, event); err != nil {
			logger.Warn("capture event not delivered everywhere", zap.Error(err))
		}
	}

	if a.config.Cache != nil {
		if err := a.config.Cache.SetLastCapture(ctx, out); err != nil {
			logger.Warn("failed to cache capture", zap.Error(err))
		}
	}

	if a.config.Live != nil {
		if err := a.config.Live.BroadcastJSON(LiveUpdate{Type: UpdateCapture, Capture: &out}); err != nil {
			logger.Debug("live broadcast failed", zap.Error(err))
		}
	}

	if a.config.Exporter != nil {
		out.Exports = a.config.Exporter.Export(ctx, toPluginCapture(out))
		for _, r := range out.Exports {
			a.config.Metrics.ExportRun(r.Plugin, r.Success)
			if a.config.Store == nil {
				continue
			}
			err := a.config.Store.Exports().Create(&store.Export{
				CaptureID:  c.ID,
				PluginName: r.Plugin,
				Success:    r.Success,
				Message:    r.Message,
			})
			if err != nil {
				logger.Warn("failed to record export", zap.String("plugin", r.Plugin), zap.Error(err))
			}
		}
	}

	a.mu.RLock()
	callbacks := a.onCapture
	a.mu.RUnlock()
	for _, fn := range callbacks {
		fn(out)
	}
}

func (a *App) saveStill(c session.Capture) (string, error) {
	if err := os.MkdirAll(a.config.CaptureDir, 0755); err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}
	path := filepath.Join(a.config.CaptureDir, c.ID+".jpg")
	if err := os.WriteFile(path, c.Image, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func toStoreCapture(c Capture) *store.Capture {
	sc := &store.Capture{
		ID:           c.ID,
		Garment:      string(c.Garment),
		Unit:         string(c.Unit),
		HeightHintCm: c.HeightHintCm,
		ImagePath:    c.ImagePath,
		TimestampMs:  c.TimestampMs,
		CapturedAt:   c.CapturedAt,
		Measurements: make([]store.Measurement, 0, c.Measurements.Len()),
	}
	for _, m := range c.Measurements.Measurements {
		sc.Measurements = append(sc.Measurements, store.Measurement{
			Kind:       string(m.Kind),
			Label:      m.Label,
			ValueCm:    m.ValueCm,
			Confidence: m.Confidence,
		})
	}
	return sc
}

func toPluginCapture(c Capture) plugin.Capture {
	pc := plugin.Capture{
		ID:           c.ID,
		Garment:      string(c.Garment),
		Unit:         string(c.Unit),
		HeightHintCm: c.HeightHintCm,
		ImagePath:    c.ImagePath,
		CapturedAt:   c.CapturedAt,
		Measurements: make([]plugin.Measurement, 0, c.Measurements.Len()),
	}
	for _, m := range c.Measurements.Measurements {
		pc.Measurements = append(pc.Measurements, plugin.Measurement{
			Kind:       string(m.Kind),
			Label:      m.Label,
			ValueCm:    m.ValueCm,
			Value:      m.Value(),
			Unit:       string(m.Unit),
			Confidence: m.Confidence,
		})
	}
	return pc
}
