package measure

import (
	"github.com/ayusman/bodyfit/internal/pose"
)

// Scale calibration constants.
const (
	// DefaultReferenceTorsoCm is the assumed distance between the shoulder
	// midpoint and the hip midpoint of an average adult. It is a calibration
	// approximation and the dominant source of systematic error.
	DefaultReferenceTorsoCm = 50.0

	// TorsoToStatureRatio relates the reference torso length to standing
	// height (167 cm × 0.30 ≈ 50 cm, the default reference).
	TorsoToStatureRatio = 0.30

	// MinHeightHintCm and MaxHeightHintCm bound the height hints that are
	// trusted for calibration. Hints outside this band fall back to the default.
	MinHeightHintCm = 120.0
	MaxHeightHintCm = 220.0

	// minTorsoPixels guards against degenerate poses where shoulders and
	// hips collapse onto each other.
	minTorsoPixels = 1e-6
)

// ReferenceTorsoCm returns the torso length used for scaling. A height hint
// inside [MinHeightHintCm, MaxHeightHintCm] refines the reference linearly;
// anything else (including zero, meaning "no hint") uses the default.
func ReferenceTorsoCm(heightHintCm float64) float64 {
	if heightHintCm < MinHeightHintCm || heightHintCm > MaxHeightHintCm {
		return DefaultReferenceTorsoCm
	}
	return heightHintCm * TorsoToStatureRatio
}

// ScaleFactor returns centimeters per pixel for one frame, computed from the
// 3D distance between the shoulder midpoint and the hip midpoint.
// It returns false when any torso landmark is missing or the torso is degenerate.
func ScaleFactor(snap *pose.Snapshot, width, height int, referenceCm float64) (float64, bool) {
	ls, ok1 := snap.At(pose.LeftShoulder)
	rs, ok2 := snap.At(pose.RightShoulder)
	lh, ok3 := snap.At(pose.LeftHip)
	rh, ok4 := snap.At(pose.RightHip)
	if !(ok1 && ok2 && ok3 && ok4) || width <= 0 || height <= 0 {
		return 0, false
	}

	w, h := float64(width), float64(height)
	torso := pose.Midpoint(ls, rs, w, h).Distance(pose.Midpoint(lh, rh, w, h))
	if torso < minTorsoPixels {
		return 0, false
	}

	return referenceCm / torso, true
}
