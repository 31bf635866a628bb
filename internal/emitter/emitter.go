// Package emitter publishes finished captures to external systems.
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ayusman/bodyfit/internal/session"
)

// Event is the capture notification sent to every sink. MinConfidence is
// the lowest confidence among the capture's measurements.
type Event struct {
	session.Capture
	StationID     string  `json:"station_id,omitempty"`
	ImagePath     string  `json:"image_path,omitempty"`
	MinConfidence float64 `json:"min_confidence"`
}

// Payload encodes the event as JSON.
func (e Event) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// Emitter publishes capture events to one sink.
type Emitter interface {
	Name() string
	Emit(ctx context.Context, e Event) error
	Close() error
}

// FailureFunc is told about every sink that fails to publish.
type FailureFunc func(sink string, err error)

// Multi fans an event out to several emitters. One failing sink does not
// stop the others.
type Multi struct {
	emitters  []Emitter
	onFailure FailureFunc
	logger    *zap.Logger
}

// NewMulti creates a fan-out emitter. onFailure may be nil.
func NewMulti(logger *zap.Logger, onFailure FailureFunc, emitters ...Emitter) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{emitters: emitters, onFailure: onFailure, logger: logger}
}

func (m *Multi) Name() string { return "multi" }

// Len returns the number of configured sinks.
func (m *Multi) Len() int { return len(m.emitters) }

// Emit publishes e to every sink and joins their errors.
func (m *Multi) Emit(ctx context.Context, e Event) error {
	var errs []error
	for _, em := range m.emitters {
		if err := em.Emit(ctx, e); err != nil {
			m.logger.Warn("capture event not published",
				zap.String("sink", em.Name()),
				zap.String("capture_id", e.ID),
				zap.Error(err))
			if m.onFailure != nil {
				m.onFailure(em.Name(), err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", em.Name(), err))
			continue
		}
		m.logger.Debug("capture event published",
			zap.String("sink", em.Name()),
			zap.String("capture_id", e.ID))
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, em := range m.emitters {
		if err := em.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", em.Name(), err))
		}
	}
	return errors.Join(errs...)
}
