package measure

import (
	"math"

	"github.com/ayusman/bodyfit/internal/pose"
	"github.com/ayusman/bodyfit/internal/units"
)

// Engine converts pose snapshots into measurement sets. An Engine holds only
// calibration inputs and is safe for concurrent use.
type Engine struct {
	referenceCm float64
}

// NewEngine creates an engine calibrated for the given height hint.
// Pass 0 when no hint is known.
func NewEngine(heightHintCm float64) *Engine {
	return &Engine{referenceCm: ReferenceTorsoCm(heightHintCm)}
}

// ReferenceCm returns the torso length the engine scales against.
func (e *Engine) ReferenceCm() float64 {
	return e.referenceCm
}

// Compute derives the requested measurement kinds from one snapshot taken
// from a frame of width × height pixels. Values are in centimeters with the
// unit set to cm.
//
// Kinds whose landmarks are not all detected are omitted. If the torso
// landmarks needed for scaling are missing, the result is empty.
func (e *Engine) Compute(snap *pose.Snapshot, width, height int, kinds []Kind) Set {
	set := Set{}
	if snap == nil {
		return set
	}
	set.TimestampMs = snap.TimestampMs

	scale, ok := ScaleFactor(snap, width, height, e.referenceCm)
	if !ok {
		return set
	}

	g := geometry{snap: snap, width: float64(width), height: float64(height)}
	for _, kind := range kinds {
		f, ok := formulas[kind]
		if !ok {
			continue
		}
		side, vis, ok := pickSide(snap, f.sides)
		if !ok {
			continue
		}
		set.Measurements = append(set.Measurements, Measurement{
			Kind:        kind,
			Label:       kind.Label(),
			ValueCm:     f.pixels(g, side) * scale,
			Unit:        units.Cm,
			Confidence:  clamp01(vis * f.penalty),
			TimestampMs: snap.TimestampMs,
		})
	}
	return set
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
